package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "filconv", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "filconv", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	Conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "filconv", Name: "conversions_total", Help: "Remote conversions by outcome."},
		[]string{"outcome"},
	)
	ConversionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "filconv",
			Name:      "conversion_duration_seconds",
			Help:      "Wall time of a remote conversion, upload to download.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	PDFOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "filconv", Name: "pdf_operations_total", Help: "Local PDF operations by kind and outcome."},
		[]string{"operation", "outcome"},
	)
	CleanupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "filconv", Name: "artifact_cleanup_failures_total", Help: "Artifacts that could not be deleted, by area."},
		[]string{"area"},
	)
	JanitorRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "filconv", Name: "janitor_removed_total", Help: "Stale artifacts removed by the janitor, by area."},
		[]string{"area"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Conversions)
	reg.MustRegister(ConversionDuration)
	reg.MustRegister(PDFOperations)
	reg.MustRegister(CleanupFailures)
	reg.MustRegister(JanitorRemoved)
}

// Outcome maps an error to the "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
