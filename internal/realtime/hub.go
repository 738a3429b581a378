package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/rs/zerolog"
)

// ErrHubClosed el hub está apagándose y no acepta suscriptores.
var ErrHubClosed = errors.New("hub cerrado")

// Motivos de cierre de un suscriptor (logs y métricas).
const (
	reasonGraceful     = "graceful"
	reasonWriteError   = "write_error"
	reasonBackpressure = "backpressure"
	reasonHeartbeat    = "heartbeat_timeout"
)

// Tipos de mensaje enviados a los suscriptores.
const (
	MessageSubscribed   = "subscribed"
	MessageStockChanged = "stock.changed"
)

// Message sobre JSON enviado por la conexión.
type Message struct {
	Type         string              `json:"type"`
	SubscriberID string              `json:"subscriber_id,omitempty"`
	Filter       *Filter             `json:"filter,omitempty"`
	Event        *entity.ChangeEvent `json:"event,omitempty"`
}

// Config parámetros del hub.
type Config struct {
	SendBuffer        int           // mensajes pendientes por suscriptor antes de considerarlo lento
	WriteTimeout      time.Duration // deadline de cada escritura
	HeartbeatInterval time.Duration // período de ping del servidor
	HeartbeatTimeout  time.Duration // silencio máximo del cliente antes de cerrarlo
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 20 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 3 * c.HeartbeatInterval
	}
	return c
}

// Metrics observador del hub.
type Metrics interface {
	SetSubscribers(n int)
	SubscriberClosed(reason string)
	EventDelivered()
}

type nopMetrics struct{}

func (nopMetrics) SetSubscribers(int)      {}
func (nopMetrics) SubscriberClosed(string) {}
func (nopMetrics) EventDelivered()         {}

// Hub mantiene el conjunto de suscriptores en vivo y les reparte los ChangeEvent.
// Su lock es independiente de los bloqueos del ledger: un suscriptor lento nunca frena un commit.
type Hub struct {
	cfg     Config
	log     zerolog.Logger
	metrics Metrics
	now     func() time.Time

	mu      sync.RWMutex
	subs    map[string]*Subscriber
	stopped bool
}

// HubOption configura el hub.
type HubOption func(*Hub)

// WithLogger fija el logger.
func WithLogger(l zerolog.Logger) HubOption {
	return func(h *Hub) { h.log = l.With().Str("component", "realtime_hub").Logger() }
}

// WithMetrics fija el observador de métricas.
func WithMetrics(m Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub construye el hub.
func NewHub(cfg Config, opts ...HubOption) *Hub {
	h := &Hub{
		cfg:     cfg.withDefaults(),
		log:     zerolog.Nop(),
		metrics: nopMetrics{},
		now:     time.Now,
		subs:    make(map[string]*Subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registra una conexión ya establecida (handshake completo) y la deja en OPEN.
// El primer mensaje que recibe el cliente confirma la suscripción.
func (h *Hub) Subscribe(conn Conn, filter Filter) (*Subscriber, error) {
	s := &Subscriber{
		id:     uuid.NewString(),
		conn:   conn,
		filter: filter,
		hub:    h,
		send:   make(chan []byte, h.cfg.SendBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	s.Touch()

	welcome, err := json.Marshal(Message{Type: MessageSubscribed, SubscriberID: s.id, Filter: &filter})
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	s.state.Store(int32(StateOpen))
	s.send <- welcome
	h.subs[s.id] = s
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	go s.writePump()
	h.log.Debug().Str("subscriber_id", s.id).
		Str("warehouse_id", filter.WarehouseID).
		Str("item_id", filter.ItemID).
		Msg("suscriptor registrado")
	return s, nil
}

// Unsubscribe cierre ordenado (OPEN → CLOSING → CLOSED tras drenar). Idempotente.
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	h.remove(s)
	s.beginClosing()
}

// Broadcast entrega el evento a cada suscriptor cuyo filtro coincide. Un suscriptor que no puede
// recibir (buffer lleno) se cierra sin afectar a los demás. Nunca devuelve error de entrega.
func (h *Hub) Broadcast(_ context.Context, event entity.ChangeEvent) error {
	payload, err := json.Marshal(Message{Type: MessageStockChanged, Event: &event})
	if err != nil {
		h.log.Error().Err(err).Msg("serializar ChangeEvent")
		return nil
	}

	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		if s.filter.Match(event) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.enqueue(payload) {
			h.fail(s, reasonBackpressure, nil)
		}
	}
	return nil
}

// Deliver implementa notify.Sink.
func (h *Hub) Deliver(ctx context.Context, event entity.ChangeEvent) error {
	return h.Broadcast(ctx, event)
}

// Len número de suscriptores registrados.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run revisa periódicamente los heartbeats y cierra los suscriptores silenciosos. Bloquea hasta ctx.Done().
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.reap()
		}
	}
}

func (h *Hub) reap() {
	now := h.now()
	h.mu.RLock()
	var stale []*Subscriber
	for _, s := range h.subs {
		if s.silentSince(now) > h.cfg.HeartbeatTimeout {
			stale = append(stale, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range stale {
		h.fail(s, reasonHeartbeat, nil)
	}
}

// Shutdown cierra ordenadamente todos los suscriptores y espera a que drenen o a que venza ctx.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.stopped = true
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()
	h.metrics.SetSubscribers(0)

	for _, s := range subs {
		s.beginClosing()
	}
	for _, s := range subs {
		select {
		case <-s.Done():
		case <-ctx.Done():
			for _, rest := range subs {
				rest.abort()
			}
			return ctx.Err()
		}
	}
	return nil
}

// fail OPEN/CLOSING → CLOSED por error de envío, backpressure o heartbeat vencido.
func (h *Hub) fail(s *Subscriber, reason string, err error) {
	h.remove(s)
	if !s.abort() {
		return
	}
	h.metrics.SubscriberClosed(reason)
	ev := h.log.Warn()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Str("subscriber_id", s.id).Str("reason", reason).Msg("suscriptor cerrado")
}

// closed registra el fin de un cierre ordenado.
func (h *Hub) closed(s *Subscriber, reason string) {
	h.remove(s)
	h.metrics.SubscriberClosed(reason)
	h.log.Debug().Str("subscriber_id", s.id).Str("reason", reason).Msg("suscriptor cerrado")
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.SetSubscribers(n)
}
