package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/rs/zerolog"
)

// Sink destino de los ChangeEvent confirmados (hub local, relay Redis, tópico Kafka).
type Sink interface {
	Deliver(ctx context.Context, event entity.ChangeEvent) error
}

// SinkFunc adapta una función a Sink.
type SinkFunc func(ctx context.Context, event entity.ChangeEvent) error

func (f SinkFunc) Deliver(ctx context.Context, event entity.ChangeEvent) error { return f(ctx, event) }

// Metrics observador del dispatcher.
type Metrics interface {
	EventDropped(sink string)
	SinkFailed(sink string)
}

type nopMetrics struct{}

func (nopMetrics) EventDropped(string) {}
func (nopMetrics) SinkFailed(string)   {}

const (
	defaultQueueSize      = 1024
	defaultDeliverTimeout = 5 * time.Second
)

type route struct {
	name  string
	sink  Sink
	queue chan entity.ChangeEvent
}

// Dispatcher implementa inventory.Notifier. Cada sink tiene su cola acotada y su worker:
// un destino lento pierde eventos propios pero no retrasa a los demás ni al ledger.
type Dispatcher struct {
	routes         []*route
	queueSize      int
	deliverTimeout time.Duration
	log            zerolog.Logger
	metrics        Metrics

	mu      sync.RWMutex
	stopped bool
}

// Option configura el Dispatcher.
type Option func(*Dispatcher)

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

func WithDeliverTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.deliverTimeout = t
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l.With().Str("component", "notify").Logger() }
}

func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher crea el dispatcher sin sinks; se agregan con Register antes de Run.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queueSize:      defaultQueueSize,
		deliverTimeout: defaultDeliverTimeout,
		log:            zerolog.Nop(),
		metrics:        nopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register agrega un sink con nombre (usado en logs y métricas).
func (d *Dispatcher) Register(name string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, &route{
		name:  name,
		sink:  sink,
		queue: make(chan entity.ChangeEvent, d.queueSize),
	})
}

// Publish encola los eventos en cada sink sin bloquear. Con la cola llena el evento se descarta
// para ese sink. El orden de llamadas se conserva por sink.
func (d *Dispatcher) Publish(events ...entity.ChangeEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return
	}
	for _, r := range d.routes {
		for _, evt := range events {
			select {
			case r.queue <- evt:
			default:
				d.metrics.EventDropped(r.name)
				d.log.Warn().
					Str("sink", r.name).
					Str("item_id", evt.ItemID).
					Str("warehouse_id", evt.WarehouseID).
					Int64("movement_id", evt.CausingMovementID).
					Msg("cola de notificación llena, evento descartado")
			}
		}
	}
}

// Run arranca un worker por sink y bloquea hasta ctx.Done(). Al cancelar, deja de aceptar
// eventos y entrega lo ya encolado antes de retornar.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.RLock()
	routes := append([]*route(nil), d.routes...)
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for _, r := range routes {
		wg.Add(1)
		go func(r *route) {
			defer wg.Done()
			d.work(r)
		}(r)
	}

	<-ctx.Done()
	d.mu.Lock()
	d.stopped = true
	for _, r := range routes {
		close(r.queue)
	}
	d.mu.Unlock()
	wg.Wait()
	return nil
}

func (d *Dispatcher) work(r *route) {
	for evt := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.deliverTimeout)
		err := r.sink.Deliver(ctx, evt)
		cancel()
		if err != nil {
			d.metrics.SinkFailed(r.name)
			d.log.Error().Err(err).
				Str("sink", r.name).
				Str("item_id", evt.ItemID).
				Str("warehouse_id", evt.WarehouseID).
				Int64("movement_id", evt.CausingMovementID).
				Msg("entrega de evento fallida")
		}
	}
}
