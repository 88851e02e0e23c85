package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects crop session metrics on its own registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	sessions          prometheus.Counter
	rejections        *prometheus.CounterVec
	submits           prometheus.Counter
	rasterizeFailures prometheus.Counter
	uploads           *prometheus.CounterVec
	rasterizeDuration prometheus.Histogram
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avatar_sessions_total",
			Help: "Total number of file selections that started a crop session.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatar_rejections_total",
			Help: "Total number of rejected files by reason.",
		}, []string{"reason"}),
		submits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avatar_submits_total",
			Help: "Total number of successfully rasterized crops.",
		}),
		rasterizeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avatar_rasterize_failures_total",
			Help: "Total number of submits that could not obtain a drawing surface.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatar_uploads_total",
			Help: "Total number of upload calls by outcome.",
		}, []string{"outcome"}),
		rasterizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "avatar_rasterize_duration_milliseconds",
			Help:    "The duration of crop rasterization in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1ms to ~8s
		}),
	}
	r.registry.MustRegister(r.sessions, r.rejections, r.submits, r.rasterizeFailures, r.uploads, r.rasterizeDuration)
	return r
}

func (r *Recorder) SessionStarted() {
	if r == nil {
		return
	}
	r.sessions.Inc()
}

func (r *Recorder) Rejected(reason string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) Rasterized(d time.Duration) {
	if r == nil {
		return
	}
	r.submits.Inc()
	r.rasterizeDuration.Observe(float64(d.Milliseconds()))
}

func (r *Recorder) RasterizeFailed() {
	if r == nil {
		return
	}
	r.rasterizeFailures.Inc()
}

func (r *Recorder) Uploaded(err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.uploads.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
