package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GenerationMetrics records outcomes of content generation runs.
type GenerationMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	tokens   *prometheus.CounterVec
}

// NewGenerationMetrics registers the generation metrics on the provided registerer.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Duration of generation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_success",
		Help: "Successful generation runs.",
	}, []string{"kind"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_failure",
		Help: "Failed generation runs.",
	}, []string{"kind"})
	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_model_tokens_total",
		Help: "Model tokens consumed by generation runs.",
	}, []string{"kind", "type"})
	reg.MustRegister(duration, success, failure, tokens)
	return &GenerationMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		tokens:   tokens,
	}
}

// ObserveDuration records the duration of a run for the given purchase kind.
func (g *GenerationMetrics) ObserveDuration(kind string, duration time.Duration) {
	if g == nil || g.duration == nil {
		return
	}
	g.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the given purchase kind.
func (g *GenerationMetrics) IncSuccess(kind string) {
	if g == nil || g.success == nil {
		return
	}
	g.success.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailure increments the failure counter for the given purchase kind.
func (g *GenerationMetrics) IncFailure(kind string) {
	if g == nil || g.failure == nil {
		return
	}
	g.failure.WithLabelValues(normalizeLabel(kind)).Inc()
}

// AddModelTokens records prompt or completion token usage for a run.
func (g *GenerationMetrics) AddModelTokens(kind, tokenType string, count int) {
	if g == nil || g.tokens == nil || count <= 0 {
		return
	}
	g.tokens.WithLabelValues(normalizeLabel(kind), normalizeLabel(tokenType)).Add(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
