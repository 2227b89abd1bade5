package master

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mklimuk/twi"
)

// Metrics counts transactions by outcome. A nil *Metrics records nothing.
type Metrics struct {
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMetrics creates the transaction collectors and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twi",
			Name:      "transactions_total",
			Help:      "Bus transactions by operation and result.",
		}, []string{"bus", "op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "twi",
			Name:      "transaction_duration_seconds",
			Help:      "Bus transaction duration.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}, []string{"bus", "op"}),
	}
	if reg != nil {
		reg.MustRegister(m.transactions, m.duration)
	}
	return m
}

func (m *Metrics) observe(bus, op string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.transactions.With(prometheus.Labels{"bus": bus, "op": op, "result": result(err)}).Inc()
	m.duration.With(prometheus.Labels{"bus": bus, "op": op}).Observe(took.Seconds())
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, twi.ErrTimeout) {
		return "timeout"
	}
	kind, ok := twi.KindOf(err)
	if !ok {
		return "invalid"
	}
	return kind.String()
}
