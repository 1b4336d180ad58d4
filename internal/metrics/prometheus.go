package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests            *prometheus.CounterVec
	RequestLatency      prometheus.Histogram
	Renewals            *prometheus.CounterVec
	SignOuts            *prometheus.CounterVec
	PendingPlaceholders prometheus.Gauge
	Reconciliations     *prometheus.CounterVec
	EnhanceFailures     prometheus.Counter
	FeedMessages        *prometheus.CounterVec
}

// New registers the client metrics on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cdex_client_requests_total",
			Help: "Total number of API requests by outcome",
		}, []string{"method", "outcome"}),
		RequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdex_client_request_latency_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		Renewals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cdex_client_token_renewals_total",
			Help: "Total number of access token renewals",
		}, []string{"status"}),
		SignOuts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cdex_client_sign_outs_total",
			Help: "Total number of sign-outs by reason",
		}, []string{"reason"}),
		PendingPlaceholders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cdex_client_pending_placeholders",
			Help: "Number of submissions awaiting reconciliation",
		}),
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cdex_client_reconciliations_total",
			Help: "Total number of reconciled placeholders by result",
		}, []string{"result"}),
		EnhanceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cdex_client_enhance_failures_total",
			Help: "Total number of invitation detail lookups that failed",
		}),
		FeedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cdex_client_feed_messages_total",
			Help: "Total number of live feed messages processed",
		}, []string{"source", "status"}),
	}
}

func (m *Metrics) IncRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) ObserveLatency(seconds float64) {
	if m == nil {
		return
	}
	m.RequestLatency.Observe(seconds)
}

func (m *Metrics) IncRenewal(status string) {
	if m == nil {
		return
	}
	m.Renewals.WithLabelValues(status).Inc()
}

func (m *Metrics) IncSignOut(reason string) {
	if m == nil {
		return
	}
	m.SignOuts.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncPlaceholders() {
	if m == nil {
		return
	}
	m.PendingPlaceholders.Inc()
}

func (m *Metrics) DecPlaceholders() {
	if m == nil {
		return
	}
	m.PendingPlaceholders.Dec()
}

func (m *Metrics) IncReconciliation(result string) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncEnhanceFailures() {
	if m == nil {
		return
	}
	m.EnhanceFailures.Inc()
}

func (m *Metrics) IncFeedMessage(source, status string) {
	if m == nil {
		return
	}
	m.FeedMessages.WithLabelValues(source, status).Inc()
}
