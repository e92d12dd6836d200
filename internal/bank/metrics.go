package bank

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the public operation surface.
type Metrics struct {
	operations        *prometheus.CounterVec
	transfersInFlight prometheus.Gauge
}

// NewMetrics registers the bank metrics with reg. A nil registerer yields
// working but unregistered collectors, which keeps tests independent of the
// process-global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exbanking",
			Name:      "operations_total",
			Help:      "Public operations by name and outcome.",
		}, []string{"op", "outcome"}),
		transfersInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "exbanking",
			Name:      "transfers_in_flight",
			Help:      "Transfers currently awaiting the credit handshake.",
		}),
	}
}

func (m *Metrics) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	m.operations.WithLabelValues(op, outcome).Inc()
}
