package common

import "github.com/prometheus/client_golang/prometheus"

const (
	HTTPRequestTotal           = "http_requests_total"
	HTTPRequestDurationSeconds = "http_request_duration_seconds"
	TicketPurchaseTotal        = "ticket_purchase_total"
	LedgerFailureTotal         = "ledger_failure_total"
	ReconcileChangeTotal       = "reconcile_change_total"
)

var (
	PromCounters = map[string]*prometheus.CounterVec{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: HTTPRequestTotal,
			Help: "Count of all HTTP requests",
		}, []string{"path", "code"}),
		TicketPurchaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: TicketPurchaseTotal,
			Help: "Count of ticket purchases by outcome",
		}, []string{"network", "outcome"}),
		LedgerFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: LedgerFailureTotal,
			Help: "Count of failed ledger calls by kind",
		}, []string{"network", "kind"}),
		ReconcileChangeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ReconcileChangeTotal,
			Help: "Count of tickets changed by reconciliation",
		}, []string{"network", "action"}),
	}

	PromHistograms = map[string]*prometheus.HistogramVec{
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: HTTPRequestDurationSeconds,
			Help: "Duration of all HTTP requests",
		}, []string{"path", "code"}),
	}
)

func IncCounter(name string, labels ...string) {
	if counter, ok := PromCounters[name]; ok {
		counter.WithLabelValues(labels...).Inc()
	}
}
