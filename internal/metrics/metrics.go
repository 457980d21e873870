package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors shared across components.
type Metrics struct {
	LineEvents          *prometheus.CounterVec
	Resolutions         *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	SpoonacularRequests *prometheus.CounterVec
	SpoonacularLatency  *prometheus.HistogramVec
	OpenAIRequests      *prometheus.CounterVec
	Errors              *prometheus.CounterVec
}

// New registers all collectors on the given registerer under the namespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LineEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_events_total",
			Help:      "Inbound LINE webhook events by message type.",
		}, []string{"type"}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Nutrition resolution outcomes.",
		}, []string{"outcome"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Nutrition cache lookups by result.",
		}, []string{"result"}),
		SpoonacularRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spoonacular_requests_total",
			Help:      "Spoonacular API requests by endpoint and status.",
		}, []string{"endpoint", "status"}),
		SpoonacularLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "spoonacular_latency_seconds",
			Help:      "Spoonacular API request latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"endpoint", "status"}),
		OpenAIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "openai_requests_total",
			Help:      "OpenAI API requests by kind and status.",
		}, []string{"kind", "status"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Internal errors by component.",
		}, []string{"component"}),
	}
}
