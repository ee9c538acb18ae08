package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "order_tracking"

// Collector agrupa las métricas del servicio en un registro propio.
// Todos los métodos aceptan un receptor nil para que las pruebas no necesiten métricas.
type Collector struct {
	registry *prometheus.Registry

	TrackingAssignedTotal prometheus.Counter
	ReconciliationsTotal  *prometheus.CounterVec
	SimulatorPassesTotal  *prometheus.CounterVec
	OrdersDeliveredTotal  prometheus.Counter
	PaymentEventsTotal    *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		TrackingAssignedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_numbers_assigned_total",
			Help:      "Tracking numbers persisted for orders",
		}),
		ReconciliationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_reconciliations_total",
			Help:      "Payment reconciliations by result",
		}, []string{"result"}),
		SimulatorPassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulator_passes_total",
			Help:      "Delivery simulator passes by result",
		}, []string{"result"}),
		OrdersDeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulated_deliveries_total",
			Help:      "Orders marked delivered by the simulator",
		}),
		PaymentEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_events_total",
			Help:      "Payment events consumed from the broker by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		c.TrackingAssignedTotal,
		c.ReconciliationsTotal,
		c.SimulatorPassesTotal,
		c.OrdersDeliveredTotal,
		c.PaymentEventsTotal,
	)
	return c
}

// Handler expone el registro en formato Prometheus.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) TrackingAssigned() {
	if c == nil {
		return
	}
	c.TrackingAssignedTotal.Inc()
}

func (c *Collector) Reconciled(result string) {
	if c == nil {
		return
	}
	c.ReconciliationsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) SimulatorPass(result string) {
	if c == nil {
		return
	}
	c.SimulatorPassesTotal.WithLabelValues(result).Inc()
}

func (c *Collector) OrdersDelivered(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.OrdersDeliveredTotal.Add(float64(n))
}

func (c *Collector) PaymentEvent(outcome string) {
	if c == nil {
		return
	}
	c.PaymentEventsTotal.WithLabelValues(outcome).Inc()
}
