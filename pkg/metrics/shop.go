package metrics

import "github.com/prometheus/client_golang/prometheus"

// ShopMetrics tracks storefront business events.
type ShopMetrics struct {
	ordersPlaced    prometheus.Counter
	statusChanges   *prometheus.CounterVec
	cartsRepriced   prometheus.Counter
	paymentFailures prometheus.Counter
}

// NewShopMetrics registers the storefront counters on the provided registerer.
func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	m := &ShopMetrics{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders created at checkout.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Order status transitions by target status.",
		}, []string{"status"}),
		cartsRepriced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_repriced_total",
			Help:      "Stored carts rewritten after a catalog change.",
		}),
		paymentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_failures_total",
			Help:      "Checkout attempts rejected by the payment gateway.",
		}),
	}
	reg.MustRegister(m.ordersPlaced, m.statusChanges, m.cartsRepriced, m.paymentFailures)
	return m
}

func (m *ShopMetrics) IncOrdersPlaced() {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.Inc()
}

func (m *ShopMetrics) IncStatusChange(status string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *ShopMetrics) AddCartsRepriced(n int) {
	if m == nil || m.cartsRepriced == nil || n <= 0 {
		return
	}
	m.cartsRepriced.Add(float64(n))
}

func (m *ShopMetrics) IncPaymentFailures() {
	if m == nil || m.paymentFailures == nil {
		return
	}
	m.paymentFailures.Inc()
}
