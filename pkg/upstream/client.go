// Package upstream talks to the prediction service and turns every failure
// into an *Error the dashboard can display as is.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/raykavin/signalsense/pkg/metric"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultHistoryTTL = time.Minute

	endpointPredict = "predict"
	endpointHistory = "history"
	endpointLatest  = "latest-price"
)

// Client fetches predictions, price history and latest prices.
type Client struct {
	http    *resty.Client
	history *cache.Cache
	metrics *metric.Metrics
	log     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithHistoryTTL caches successful history payloads for ttl; zero disables it.
func WithHistoryTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.history = nil
			return
		}
		c.history = cache.New(ttl, 2*ttl)
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, log logger.Logger, options ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json"),
		history: cache.New(DefaultHistoryTTL, 2*DefaultHistoryTTL),
		log:     log,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// NormalizeSymbol trims and upper-cases symbol, rejecting empty input.
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", newError(KindValidation, 0, "", ErrEmptySymbol)
	}
	return symbol, nil
}

// FetchSignal requests GET /predict/{symbol}. An empty symbol fails without
// touching the network.
func (c *Client) FetchSignal(ctx context.Context, symbol string) (core.Prediction, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return core.Prediction{}, err
	}

	body, status, err := c.get(ctx, endpointPredict, "/predict/{ticker}", symbol, nil)
	if err != nil {
		return core.Prediction{}, err
	}

	var prediction core.Prediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return core.Prediction{}, newError(KindTransport, status, "malformed prediction body", err)
	}
	if prediction.Failed() {
		return core.Prediction{}, upstreamError(status, prediction.Error)
	}
	if err := prediction.Validate(); err != nil {
		return core.Prediction{}, newError(KindTransport, status, "invalid prediction", err)
	}
	if prediction.Ticker == "" {
		prediction.Ticker = symbol
	}

	return prediction, nil
}

// FetchHistory requests GET /history/{symbol}?range=r.
func (c *Client) FetchHistory(ctx context.Context, symbol string, r core.Range) ([]core.PricePoint, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	key := symbol + "|" + string(r)
	if c.history != nil {
		if cached, ok := c.history.Get(key); ok {
			c.metrics.CacheHit()
			return slices.Clone(cached.([]core.PricePoint)), nil
		}
	}

	body, status, err := c.get(ctx, endpointHistory, "/history/{ticker}", symbol, map[string]string{"range": string(r)})
	if err != nil {
		return nil, err
	}

	var payload struct {
		History []core.PricePoint `json:"history"`
		Error   string            `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, newError(KindTransport, status, "malformed history body", err)
	}
	if payload.Error != "" {
		return nil, upstreamError(status, payload.Error)
	}
	if payload.History == nil {
		payload.History = []core.PricePoint{}
	}

	if c.history != nil {
		c.history.SetDefault(key, slices.Clone(payload.History))
	}

	return payload.History, nil
}

// FetchLatestPrice requests GET /latest-price/{symbol}.
func (c *Client) FetchLatestPrice(ctx context.Context, symbol string) (core.LatestPrice, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return core.LatestPrice{}, err
	}

	body, status, err := c.get(ctx, endpointLatest, "/latest-price/{ticker}", symbol, nil)
	if err != nil {
		return core.LatestPrice{}, err
	}

	var price core.LatestPrice
	if err := json.Unmarshal(body, &price); err != nil || !price.Close.Valid() {
		return core.LatestPrice{}, newError(KindTransport, status, "malformed latest price body", err)
	}
	return price, nil
}

// InvalidateHistory drops every cached history payload.
func (c *Client) InvalidateHistory() {
	if c.history != nil {
		c.history.Flush()
	}
}

func (c *Client) get(ctx context.Context, endpoint, path, symbol string, query map[string]string) ([]byte, int, error) {
	start := time.Now()
	log := c.log.WithFields(map[string]any{"endpoint": endpoint, "ticker": symbol})

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticker", symbol).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		c.metrics.ObserveUpstream(endpoint, string(KindTransport), time.Since(start))
		log.WithError(err).Warn("upstream request failed")
		return nil, 0, newError(KindTransport, 0, err.Error(), fmt.Errorf("%s %s: %w", endpoint, symbol, err))
	}

	if !resp.IsSuccess() {
		uerr := statusError(resp.StatusCode(), resp.Body())
		c.metrics.ObserveUpstream(endpoint, string(uerr.Kind), time.Since(start))
		log.WithField("status", resp.StatusCode()).Warnf("upstream answered %s", uerr.Detail)
		return nil, resp.StatusCode(), uerr
	}

	c.metrics.ObserveUpstream(endpoint, "ok", time.Since(start))
	log.Debugf("upstream answered in %s", time.Since(start))
	return resp.Body(), resp.StatusCode(), nil
}
