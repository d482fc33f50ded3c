package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector exported on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec   // labels: endpoint, outcome
	UpstreamDuration *prometheus.HistogramVec // labels: endpoint
	HistoryCacheHits prometheus.Counter
	ChartRebuilds    prometheus.Counter
	LiveSurfaces     prometheus.Gauge
	StaleResponses   prometheus.Counter
	WSClients        prometheus.Gauge
	Predictions      *prometheus.CounterVec // labels: signal
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalsense_upstream_requests_total",
			Help: "Requests sent to the prediction service",
		}, []string{"endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalsense_upstream_request_duration_seconds",
			Help:    "Latency of prediction service requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		HistoryCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalsense_history_cache_hits_total",
			Help: "History responses served from the local cache",
		}),
		ChartRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalsense_chart_rebuilds_total",
			Help: "Chart instances disposed and rebuilt",
		}),
		LiveSurfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalsense_chart_live_surfaces",
			Help: "Chart instances currently alive",
		}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalsense_stale_history_responses_total",
			Help: "History responses dropped because the selection moved on",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalsense_ws_clients",
			Help: "Connected dashboard websocket clients",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalsense_predictions_total",
			Help: "Successful predictions by signal",
		}, []string{"signal"}),
	}

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.HistoryCacheHits,
		m.ChartRebuilds,
		m.LiveSurfaces,
		m.StaleResponses,
		m.WSClients,
		m.Predictions,
	)

	return m
}

// ObserveUpstream records one request to endpoint.
func (m *Metrics) ObserveUpstream(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.HistoryCacheHits.Inc()
	}
}

func (m *Metrics) Rebuilt(live int) {
	if m == nil {
		return
	}
	m.ChartRebuilds.Inc()
	m.LiveSurfaces.Set(float64(live))
}

func (m *Metrics) SurfacesLive(live int) {
	if m != nil {
		m.LiveSurfaces.Set(float64(live))
	}
}

func (m *Metrics) StaleDropped() {
	if m != nil {
		m.StaleResponses.Inc()
	}
}

func (m *Metrics) ClientsConnected(n int) {
	if m != nil {
		m.WSClients.Set(float64(n))
	}
}

func (m *Metrics) Predicted(signal string) {
	if m != nil {
		m.Predictions.WithLabelValues(signal).Inc()
	}
}
