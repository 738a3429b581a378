package metrics

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stock_ledger"

// Collectors métricas del servicio. Implementa inventory.Metrics, realtime.Metrics y notify.Metrics.
type Collectors struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	subscribers       prometheus.Gauge
	subscriberClosed  *prometheus.CounterVec
	eventsDelivered   prometheus.Counter
	eventsDropped     *prometheus.CounterVec
	sinkFailures      *prometheus.CounterVec
}

// New registra los collectors en reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operaciones del ledger por tipo de movimiento y resultado.",
		}, []string{"type", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duración de las operaciones del ledger, incluida la espera de bloqueos.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"type"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Suscriptores en vivo registrados en el hub.",
		}),
		subscriberClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "subscribers_closed_total",
			Help:      "Suscriptores cerrados por motivo.",
		}, []string{"reason"}),
		eventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_delivered_total",
			Help:      "Mensajes escritos en conexiones en vivo.",
		}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_dropped_total",
			Help:      "ChangeEvent descartados por cola llena, por sink.",
		}, []string{"sink"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sink_failures_total",
			Help:      "Entregas fallidas por sink.",
		}, []string{"sink"}),
	}
	reg.MustRegister(
		c.operations,
		c.operationDuration,
		c.subscribers,
		c.subscriberClosed,
		c.eventsDelivered,
		c.eventsDropped,
		c.sinkFailures,
	)
	return c
}

func (c *Collectors) ObserveOperation(t entity.MovementType, outcome string, elapsed time.Duration) {
	label := string(t)
	if label == "" {
		label = "UNKNOWN"
	}
	c.operations.WithLabelValues(label, outcome).Inc()
	c.operationDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

func (c *Collectors) SetSubscribers(n int) { c.subscribers.Set(float64(n)) }

func (c *Collectors) SubscriberClosed(reason string) {
	c.subscriberClosed.WithLabelValues(reason).Inc()
}

func (c *Collectors) EventDelivered() { c.eventsDelivered.Inc() }

func (c *Collectors) EventDropped(sink string) { c.eventsDropped.WithLabelValues(sink).Inc() }

func (c *Collectors) SinkFailed(sink string) { c.sinkFailures.WithLabelValues(sink).Inc() }
