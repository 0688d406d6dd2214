package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline-wide metrics. Labels stay low-cardinality: format is one of
// word/pdf/html, stage is one of the orchestrator's state names.
var (
	documentsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docforge_documents_generated_total",
			Help: "Per-format generation outcomes.",
		},
		[]string{"format", "status"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docforge_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format", "stage"},
	)

	renderWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docforge_render_warnings_total",
			Help: "Non-fatal render warnings (missing placeholder data).",
		},
		[]string{"format"},
	)

	maskedValues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docforge_masked_values_total",
			Help: "Leaf values redacted by the data masker, by PII kind.",
		},
		[]string{"kind"},
	)

	versionWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docforge_template_version_writes_total",
			Help: "Template version chain writes.",
		},
		[]string{"format", "op"},
	)
)

// Init registers the pipeline metrics in the default registry.
func Init() {
	prometheus.MustRegister(documentsGenerated, stageDuration, renderWarnings, maskedValues, versionWrites)
}

// DocumentGenerated records one per-format outcome.
func DocumentGenerated(format, status string) {
	documentsGenerated.WithLabelValues(format, status).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(format, stage string, d time.Duration) {
	stageDuration.WithLabelValues(format, stage).Observe(d.Seconds())
}

// RenderWarnings adds n warnings for the given format.
func RenderWarnings(format string, n int) {
	if n > 0 {
		renderWarnings.WithLabelValues(format).Add(float64(n))
	}
}

// MaskedValue counts one redacted leaf value.
func MaskedValue(kind string) {
	maskedValues.WithLabelValues(kind).Inc()
}

// VersionWrite counts one append or rollback on a version chain.
func VersionWrite(format, op string) {
	versionWrites.WithLabelValues(format, op).Inc()
}
