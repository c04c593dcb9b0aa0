package metrics

import "github.com/prometheus/client_golang/prometheus"

// InferenceMetrics exposes counters/histograms for roast, chat and vision calls.
type InferenceMetrics struct {
	attemptsTotal  *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	providerTotal  *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

func NewInferenceMetrics(reg prometheus.Registerer) *InferenceMetrics {
	m := &InferenceMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loveauditor",
			Subsystem: "inference",
			Name:      "attempts_total",
			Help:      "Inference attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loveauditor",
			Subsystem: "inference",
			Name:      "fallbacks_total",
			Help:      "Calls resolved to a static fallback value",
		}, []string{"operation", "reason"}),
		providerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loveauditor",
			Subsystem: "inference",
			Name:      "provider_calls_total",
			Help:      "Provider calls behind a fallback chain by provider and outcome",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loveauditor",
			Subsystem: "inference",
			Name:      "call_latency_seconds",
			Help:      "Wall-clock latency of a full call including retries",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90, 180},
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.fallbacksTotal, m.providerTotal, m.latency)
	return m
}

// ObserveAttempt records one upstream attempt. Outcome is "success",
// "transport_error" or "invalid_output".
func (m *InferenceMetrics) ObserveAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *InferenceMetrics) ObserveFallback(operation, reason string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(operation, reason).Inc()
}

// ObserveProvider records which provider answered (or failed) a call.
// Outcome is "success", "timeout" or "error".
func (m *InferenceMetrics) ObserveProvider(provider, outcome string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.providerTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *InferenceMetrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(operation).Observe(seconds)
}

// WebhookMetrics exposes counters/histograms for payment webhooks.
type WebhookMetrics struct {
	eventsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loveauditor",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Payment webhook deliveries by provider, event and outcome",
		}, []string{"provider", "event", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loveauditor",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of payment webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.latency)
	return m
}

func (m *WebhookMetrics) ObserveEvent(provider, event, outcome string) {
	if m == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	m.eventsTotal.WithLabelValues(provider, event, outcome).Inc()
}

func (m *WebhookMetrics) ObserveLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(provider).Observe(seconds)
}
