package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementTotal counts mock settlement outcomes by provider and result.
	SettlementTotal *prometheus.CounterVec
	// SettlementLatency records simulated settlement latency in milliseconds.
	SettlementLatency *prometheus.HistogramVec
	// CheckoutTotal counts checkout attempts by result.
	CheckoutTotal *prometheus.CounterVec
	// ReceiptDeliveriesTotal tracks receipt webhook dispatch outcomes.
	ReceiptDeliveriesTotal *prometheus.CounterVec
	// CartMutationsTotal counts cart mutations by operation.
	CartMutationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_settlement_total",
			Help:      "Count of mock payment settlement outcomes.",
		}, []string{"provider", "result"})
		SettlementLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_settlement_duration_ms",
			Help:      "Simulated settlement latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2500},
		}, []string{"provider"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"})
		ReceiptDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_deliveries_total",
			Help:      "Count of receipt webhook delivery outcomes.",
		}, []string{"result"})
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation.",
		}, []string{"op"})

		reg.MustRegister(SettlementTotal, SettlementLatency, CheckoutTotal, ReceiptDeliveriesTotal, CartMutationsTotal)
	})
}
