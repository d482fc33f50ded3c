// Package dashboard is the root composition of the signal dashboard: it
// drives the upstream client, keeps the session state, feeds the chart
// manager and the confidence counter, and publishes snapshots of the
// result to whoever renders them.
package dashboard

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/raykavin/signalsense/pkg/animation"
	"github.com/raykavin/signalsense/pkg/chart"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/raykavin/signalsense/pkg/metric"
	"github.com/raykavin/signalsense/pkg/prefs"
	"github.com/raykavin/signalsense/pkg/series"
	"github.com/raykavin/signalsense/pkg/upstream"
)

// Upstream is the acquisition side the dashboard drives.
type Upstream interface {
	FetchSignal(ctx context.Context, symbol string) (core.Prediction, error)
	FetchHistory(ctx context.Context, symbol string, r core.Range) ([]core.PricePoint, error)
}

// Watcher keeps the latest price of one ticker fresh.
type Watcher interface {
	Watch(symbol string) error
	Clear()
}

// Features switches the optional parts of the dashboard.
type Features struct {
	Splash        time.Duration
	Glossary      bool
	AnimateSeries bool
	Polling       bool
}

func DefaultFeatures() Features {
	return Features{Glossary: true, AnimateSeries: true}
}

// Layout places the chart.
type Layout struct {
	Container string
	Width     int
	Height    int
	Step      int
}

func DefaultLayout() Layout {
	return Layout{Container: "chart", Width: 800, Height: 400, Step: 1}
}

type state struct {
	symbol     string
	ticker     string
	rng        core.Range
	loading    bool
	result     *core.Prediction
	resultErr  string
	inputErr   string
	history    []core.HistoryEntry
	series     series.Set
	historyErr string
	prefs      prefs.Preferences
	gauge      animation.Gauge
	latest     *LatestView
	started    time.Time
	// seq identifies the latest submission; responses of older ones are dropped
	seq uint64
}

// Dashboard owns the session state. Its methods may be called from any
// goroutine; chart work is posted to the scheduler.
type Dashboard struct {
	api      Upstream
	charts   *chart.Manager
	sched    animation.Scheduler
	counter  *animation.Counter
	watcher  Watcher
	metrics  *metric.Metrics
	log      logger.Logger
	features Features
	glossary map[string]string
	layout   Layout
	now      func() time.Time

	// Preferences receives every appearance or toggle change.
	Preferences Feed[prefs.Preferences]
	// Predictions receives every successful prediction.
	Predictions Feed[core.HistoryEntry]
	// Views receives a snapshot after every state change.
	Views Feed[View]

	mu    sync.Mutex
	state state
}

// Option configures a Dashboard.
type Option func(*Dashboard)

func WithFeatures(features Features) Option {
	return func(d *Dashboard) {
		d.features = features
	}
}

func WithGlossary(glossary map[string]string) Option {
	return func(d *Dashboard) {
		d.glossary = glossary
	}
}

// WithPreferences seeds the appearance and toggles, usually from prefs.Store.
func WithPreferences(p prefs.Preferences) Option {
	return func(d *Dashboard) {
		p.Toggles = p.Toggles.Clone()
		d.state.prefs = p
	}
}

func WithWatcher(watcher Watcher) Option {
	return func(d *Dashboard) {
		d.watcher = watcher
	}
}

func WithMetrics(metrics *metric.Metrics) Option {
	return func(d *Dashboard) {
		d.metrics = metrics
	}
}

func WithLayout(layout Layout) Option {
	return func(d *Dashboard) {
		d.layout = layout
	}
}

func WithDefaultRange(r core.Range) Option {
	return func(d *Dashboard) {
		if _, err := core.ParseRange(string(r)); err == nil {
			d.state.rng = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) {
		d.now = now
	}
}

func New(api Upstream, charts *chart.Manager, sched animation.Scheduler, log logger.Logger, options ...Option) *Dashboard {
	d := &Dashboard{
		api:      api,
		charts:   charts,
		sched:    sched,
		log:      log,
		features: DefaultFeatures(),
		glossary: DefaultGlossary,
		layout:   DefaultLayout(),
		now:      time.Now,
		state: state{
			rng:   core.DefaultRange,
			prefs: prefs.Defaults(),
		},
	}

	for _, option := range options {
		option(d)
	}

	d.state.started = d.now()
	d.counter = animation.NewCounter(sched, d.onGauge)

	return d
}

// Submit requests a prediction for symbol and, when it succeeds, the price
// history of the same symbol for the selected range. An empty symbol only
// sets the input error. The returned error is the prediction failure, if
// any; history failures land in the view only. A response arriving after a
// newer Submit or a Reset leaves the state untouched.
func (d *Dashboard) Submit(ctx context.Context, symbol string) error {
	symbol, err := upstream.NormalizeSymbol(symbol)

	d.mu.Lock()
	d.state.seq++
	seq := d.state.seq
	d.state.symbol = symbol
	if err != nil {
		d.state.inputErr = upstream.MessageOf(err)
		d.mu.Unlock()
		d.publish()
		return err
	}
	d.state.inputErr = ""
	d.state.loading = true
	d.mu.Unlock()
	d.publish()

	log := d.log.WithField("ticker", symbol)

	prediction, err := d.api.FetchSignal(ctx, symbol)

	d.mu.Lock()
	if d.state.seq != seq {
		d.mu.Unlock()
		d.metrics.StaleDropped()
		log.Debug("dropping superseded prediction response")
		return err
	}

	if err != nil {
		d.state.loading = false
		d.state.result = nil
		d.state.resultErr = upstream.MessageOf(err)
		d.mu.Unlock()

		d.resetConfidence()
		log.WithError(err).Warn("prediction failed")
		d.publish()
		return err
	}

	entry := core.HistoryEntry{Prediction: prediction, At: d.now()}
	d.state.result = &prediction
	d.state.resultErr = ""
	d.state.ticker = symbol
	d.state.history = append(d.state.history, entry)
	rng := d.state.rng
	d.mu.Unlock()

	log.Infof("%s (%s%%)", prediction.Signal, core.FormatPercent(prediction.Confidence))
	d.metrics.Predicted(string(prediction.Signal))
	d.Predictions.Publish(entry)
	d.sched.Post(func() {
		d.animateConfidence(prediction)
	})

	if d.features.Polling && d.watcher != nil {
		if err := d.watcher.Watch(symbol); err != nil {
			log.WithError(err).Warn("latest price polling unavailable")
		}
	}
	d.publish()

	d.loadHistory(ctx, symbol, rng)

	d.mu.Lock()
	if d.state.seq == seq {
		d.state.loading = false
	}
	d.mu.Unlock()
	d.publish()

	return nil
}

// SelectRange switches the history window and refetches it for the last
// successful ticker.
func (d *Dashboard) SelectRange(ctx context.Context, r core.Range) error {
	if _, err := core.ParseRange(string(r)); err != nil {
		return err
	}

	d.mu.Lock()
	changed := d.state.rng != r
	d.state.rng = r
	ticker := d.state.ticker
	d.mu.Unlock()

	if !changed {
		return nil
	}
	d.publish()

	if ticker != "" {
		d.loadHistory(ctx, ticker, r)
	}
	return nil
}

// SetToggles replaces the indicator visibility set.
func (d *Dashboard) SetToggles(toggles core.Toggles) {
	d.mu.Lock()
	d.state.prefs.Toggles = toggles.Clone()
	p := d.preferencesLocked()
	d.mu.Unlock()

	d.Preferences.Publish(p)
	d.render()
	d.publish()
}

// SetDarkMode switches the appearance.
func (d *Dashboard) SetDarkMode(dark bool) {
	d.mu.Lock()
	d.state.prefs.DarkMode = dark
	p := d.preferencesLocked()
	d.mu.Unlock()

	d.Preferences.Publish(p)
	d.render()
	d.publish()
}

// ClearHistory empties the prediction history list.
func (d *Dashboard) ClearHistory() {
	d.mu.Lock()
	d.state.history = nil
	d.mu.Unlock()
	d.publish()
}

// History returns a copy of the prediction history, oldest first.
func (d *Dashboard) History() []core.HistoryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.state.history)
}

// Reset forgets the current ticker and its result, chart, counter and
// polling. History and preferences are kept.
func (d *Dashboard) Reset() {
	d.mu.Lock()
	d.state.seq++
	d.state.loading = false
	d.state.symbol = ""
	d.state.ticker = ""
	d.state.result = nil
	d.state.resultErr = ""
	d.state.inputErr = ""
	d.state.historyErr = ""
	d.state.series = series.Set{}
	d.state.gauge = animation.Gauge{}
	d.state.latest = nil
	d.mu.Unlock()

	d.resetConfidence()
	if d.watcher != nil {
		d.watcher.Clear()
	}
	d.render()
	d.publish()
}

// OnLatestPrice records a polled price if it belongs to the current ticker.
func (d *Dashboard) OnLatestPrice(symbol string, price core.LatestPrice) {
	last, ok := price.Close.Float()
	if !ok {
		return
	}

	d.mu.Lock()
	if d.state.ticker != symbol {
		d.mu.Unlock()
		return
	}
	d.state.latest = &LatestView{Ticker: symbol, Date: price.Date, Close: last}
	d.mu.Unlock()

	d.publish()
}

// Close stops the timers and disposes the chart.
func (d *Dashboard) Close() {
	d.counter.Stop()
	if d.watcher != nil {
		d.watcher.Clear()
	}
	d.charts.Close()
}

// Snapshot returns the current view.
func (d *Dashboard) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.state
	glossary := map[string]string(nil)
	if d.features.Glossary {
		glossary = d.glossary
	}

	view := View{
		Symbol:       s.symbol,
		Ticker:       s.ticker,
		Range:        s.rng,
		Loading:      s.loading,
		Splash:       d.features.Splash > 0 && d.now().Sub(s.started) < d.features.Splash,
		DarkMode:     s.prefs.DarkMode,
		Toggles:      s.prefs.Toggles.Clone(),
		ResultError:  s.resultErr,
		InputError:   s.inputErr,
		Confidence:   s.gauge,
		History:      make([]HistoryView, 0, len(s.history)),
		Summary:      metric.Summarize(s.history),
		HistoryError: s.historyErr,
		Candles:      len(s.series.Candles),
		Overlays:     []string{},
		Glossary:     glossary,
	}

	for _, r := range core.Ranges {
		view.Ranges = append(view.Ranges, RangeView{Value: r, Label: r.Label(), Selected: r == s.rng})
	}
	if s.result != nil {
		view.Result = newResultView(*s.result, glossary)
	}
	for _, entry := range s.history {
		view.History = append(view.History, newHistoryView(entry))
	}
	for _, key := range core.OverlayOrder {
		if s.prefs.Toggles.Visible(key) && len(s.series.Overlay(key)) > 0 {
			view.Overlays = append(view.Overlays, string(key))
		}
	}
	if s.latest != nil {
		latest := *s.latest
		view.Latest = &latest
	}

	return view
}

// loadHistory fetches the history of symbol for r and stores it unless the
// selection has moved on meanwhile.
func (d *Dashboard) loadHistory(ctx context.Context, symbol string, r core.Range) {
	log := d.log.WithFields(map[string]any{"ticker": symbol, "range": string(r)})
	points, err := d.api.FetchHistory(ctx, symbol, r)

	d.mu.Lock()
	if d.state.ticker != symbol || d.state.rng != r {
		d.mu.Unlock()
		d.metrics.StaleDropped()
		log.Debug("dropping stale history response")
		return
	}

	if err != nil {
		d.state.historyErr = upstream.MessageOf(err)
		d.state.series = series.Set{}
		log.WithError(err).Warn("history unavailable")
	} else {
		d.state.historyErr = ""
		d.state.series = series.Normalize(points)
	}
	d.mu.Unlock()

	d.render()
	d.publish()
}

// render applies the current state to the chart on the scheduler.
func (d *Dashboard) render() {
	d.sched.Post(func() {
		d.mu.Lock()
		cfg := chart.Config{
			Container: d.layout.Container,
			Series:    d.state.series,
			Toggles:   d.state.prefs.Toggles.Clone(),
			Dark:      d.state.prefs.DarkMode,
			Width:     d.layout.Width,
			Height:    d.layout.Height,
			Animate:   d.features.AnimateSeries,
			Step:      d.layout.Step,
		}
		d.mu.Unlock()

		if _, err := d.charts.Apply(cfg); err != nil {
			d.log.WithError(err).Error("chart rebuild failed")
		}
	})
}

// animateConfidence starts the counter for a new ticker. A repeated ticker
// shows its value at once.
func (d *Dashboard) animateConfidence(p core.Prediction) {
	if d.counter.Start(p.Ticker, p.Confidence) {
		return
	}

	d.counter.Stop()
	target := core.Clamp(p.Confidence, 0, 100)
	d.onGauge(animation.Gauge{Ticker: p.Ticker, Percent: target, Width: target, Target: target, Done: true})
}

// resetConfidence clears the counter on the scheduler, behind any start
// posted before it.
func (d *Dashboard) resetConfidence() {
	d.sched.Post(func() {
		d.counter.Reset()
		d.onGauge(animation.Gauge{})
	})
}

func (d *Dashboard) onGauge(g animation.Gauge) {
	d.mu.Lock()
	d.state.gauge = g
	d.mu.Unlock()
	d.publish()
}

func (d *Dashboard) preferencesLocked() prefs.Preferences {
	p := d.state.prefs
	p.Toggles = p.Toggles.Clone()
	return p
}

func (d *Dashboard) publish() {
	if d.Views.Len() == 0 {
		return
	}
	d.Views.Publish(d.Snapshot())
}
