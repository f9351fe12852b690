package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts business outcomes. Nil receivers are no-ops so
// services can run without a registry in tests.
type DomainMetrics struct {
	restockFired   prometheus.Counter
	restockFailed  prometheus.Counter
	ordersCreated  prometheus.Counter
	invoicesIssued prometheus.Counter
	invoiceFailed  prometheus.Counter
	returns        *prometheus.CounterVec
}

// NewDomainMetrics registers the domain counters on reg.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	m := &DomainMetrics{
		restockFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fm_restock_notifications_fired_total",
			Help: "Waitlist entries marked notified after a restock.",
		}),
		restockFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fm_restock_notifications_failed_total",
			Help: "Restock emails that could not be delivered.",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fm_orders_created_total",
			Help: "Orders created from confirmed payments.",
		}),
		invoicesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fm_invoices_issued_total",
			Help: "Invoices issued.",
		}),
		invoiceFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fm_invoice_generation_failed_total",
			Help: "Invoice generation attempts that failed after order creation.",
		}),
		returns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fm_returns_total",
			Help: "Return workflow transitions by resulting status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.restockFired, m.restockFailed, m.ordersCreated, m.invoicesIssued, m.invoiceFailed, m.returns)
	return m
}

func (m *DomainMetrics) RestockFired(n int) {
	if m == nil || m.restockFired == nil || n <= 0 {
		return
	}
	m.restockFired.Add(float64(n))
}

func (m *DomainMetrics) RestockFailed() {
	if m == nil || m.restockFailed == nil {
		return
	}
	m.restockFailed.Inc()
}

func (m *DomainMetrics) OrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *DomainMetrics) InvoiceIssued() {
	if m == nil || m.invoicesIssued == nil {
		return
	}
	m.invoicesIssued.Inc()
}

func (m *DomainMetrics) InvoiceFailed() {
	if m == nil || m.invoiceFailed == nil {
		return
	}
	m.invoiceFailed.Inc()
}

func (m *DomainMetrics) ReturnTransition(status string) {
	if m == nil || m.returns == nil {
		return
	}
	m.returns.WithLabelValues(normalizeLabel(status)).Inc()
}
