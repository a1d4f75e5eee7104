package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the agent-wide metrics registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// SessionStep tracks the session's current step as its wire value.
	SessionStep = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "abflash_session_step",
			Help: "Current step of the flash session (0=Initializing .. 7=Done).",
		},
	)

	// SessionErrors counts terminal session failures by error code name.
	SessionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abflash_session_errors_total",
			Help: "Total number of terminal session errors.",
		},
		[]string{"code"},
	)

	// PhaseDuration observes how long each phase took.
	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "abflash_phase_duration_seconds",
			Help:    "Duration of each completed session phase.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"phase"},
	)

	// BytesFlashed counts payload bytes written to device partitions.
	BytesFlashed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "abflash_bytes_flashed_total",
			Help: "Total payload bytes written to device partitions.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		SessionStep,
		SessionErrors,
		PhaseDuration,
		BytesFlashed,
	)
}

// Handler returns the HTTP handler serving the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
