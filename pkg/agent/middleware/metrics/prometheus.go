package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	costsTotal      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the model-call metrics with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omniagent_llm_requests_total",
				Help: "Total number of model calls by model, tier, and status",
			},
			[]string{"model", "tier", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omniagent_llm_tokens_total",
				Help: "Total number of tokens used in model calls",
			},
			[]string{"model", "tier", "type"},
		),
		costsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omniagent_llm_costs_total",
				Help: "Estimated cost in USD for model calls",
			},
			[]string{"model", "tier"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omniagent_llm_request_duration_seconds",
				Help:    "Duration of model calls in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"model", "tier"},
		),
	}
}

// ObserveRequest records metrics for a completed model call.
func (p *PrometheusRecorder) ObserveRequest(
	model, tier string,
	promptTokens, completionTokens int,
	cost float64,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	p.requestsTotal.WithLabelValues(model, tier, status, errorType).Inc()

	// Tokens and costs only on success
	if success {
		p.tokensTotal.WithLabelValues(model, tier, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, tier, "completion").Add(float64(completionTokens))
		p.costsTotal.WithLabelValues(model, tier).Add(cost)
	}
	p.requestDuration.WithLabelValues(model, tier).Observe(duration.Seconds())
}
