package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Prometheus Recorder
// =============================================================================

// Recorder handles metrics recording and exposure
// ⭐ SSOT: 프로세스 메트릭은 이 Recorder를 통해서만 기록
type Recorder struct {
	registry *prometheus.Registry

	// Risk engine
	sliceCounter *prometheus.CounterVec
	sliceLatency *prometheus.HistogramVec

	// Recalculation
	recalcCounter   *prometheus.CounterVec
	coalescedCount  prometheus.Counter
	activeSessions  prometheus.Gauge
	subscriberGauge prometheus.Gauge

	// API
	httpCounter *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// NewRecorder creates a recorder backed by its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sliceCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskdash_slice_calculations_total",
				Help: "Risk result slices computed, by outcome",
			},
			[]string{"slice", "status"},
		),
		sliceLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskdash_slice_duration_seconds",
				Help:    "Time spent computing a risk result slice",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"slice"},
		),
		recalcCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskdash_recalculations_total",
				Help: "Recalculation requests, by trigger",
			},
			[]string{"trigger"},
		),
		coalescedCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "riskdash_recalculations_coalesced_total",
			Help: "Recalculation requests folded into a running calculation",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riskdash_sessions",
			Help: "Sessions holding risk state",
		}),
		subscriberGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riskdash_ws_subscribers",
			Help: "Connected WebSocket subscribers",
		}),
		httpCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskdash_http_requests_total",
				Help: "HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskdash_http_request_duration_seconds",
				Help:    "HTTP request latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"method", "path"},
		),
	}
}

// ObserveSlice records one slice computation of the risk engine
func (r *Recorder) ObserveSlice(slice string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.sliceCounter.WithLabelValues(slice, status).Inc()
	r.sliceLatency.WithLabelValues(slice).Observe(d.Seconds())
}

// RecordRecalculation counts a recalculation request
func (r *Recorder) RecordRecalculation(trigger string, coalesced bool) {
	r.recalcCounter.WithLabelValues(trigger).Inc()
	if coalesced {
		r.coalescedCount.Inc()
	}
}

// SetSessions sets the number of live sessions
func (r *Recorder) SetSessions(n int) {
	r.activeSessions.Set(float64(n))
}

// SetSubscribers sets the number of WebSocket subscribers
func (r *Recorder) SetSubscribers(n int) {
	r.subscriberGauge.Set(float64(n))
}

// RecordHTTPRequest records one served HTTP request
func (r *Recorder) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	r.httpCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
