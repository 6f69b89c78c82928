package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Per-document stage latencies by stage and document type
	StageLatency *prometheus.HistogramVec

	// Verification outcomes by status
	VerificationOutcome *prometheus.CounterVec

	// Overall pipeline latency per request
	PipelineLatency prometheus.Histogram
}

// New creates a new Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_pipeline_stage_duration_seconds",
			Help:    "Duration of per-document pipeline stages by stage and document type",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage", "document"}), // stage: "quality", "extraction", "face_match"

		VerificationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_verification_outcomes_total",
			Help: "Total verification outcomes by status",
		}, []string{"status"}),

		PipelineLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_pipeline_duration_seconds",
			Help:    "Duration of full pipeline runs including external calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// ObserveStageLatency records the duration of one per-document stage.
func (m *Metrics) ObserveStageLatency(stage, document string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage, document).Observe(d.Seconds())
	}
}

// IncrementOutcome records a verification outcome.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.VerificationOutcome.WithLabelValues(status).Inc()
	}
}

// ObservePipelineLatency records the total pipeline duration.
func (m *Metrics) ObservePipelineLatency(d time.Duration) {
	if m != nil {
		m.PipelineLatency.Observe(d.Seconds())
	}
}
