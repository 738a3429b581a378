package redisrelay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel canal pub/sub compartido por todos los nodos.
const DefaultChannel = "stock-ledger:changes"

// Target recibe los eventos publicados por otros nodos (el hub local).
type Target interface {
	Deliver(ctx context.Context, event entity.ChangeEvent) error
}

// envelope mensaje en el canal; origin evita que un nodo reenvíe sus propios eventos.
type envelope struct {
	Origin string             `json:"origin"`
	Event  entity.ChangeEvent `json:"event"`
}

// Relay replica los ChangeEvent entre nodos vía Redis pub/sub. Como sink publica los eventos
// locales; Run entrega al hub local los publicados por los demás nodos.
type Relay struct {
	client  *redis.Client
	channel string
	nodeID  string
	log     zerolog.Logger
}

// NewRelay crea el relay. channel vacío usa DefaultChannel.
func NewRelay(client *redis.Client, channel string, log zerolog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		client:  client,
		channel: channel,
		nodeID:  uuid.NewString(),
		log:     log.With().Str("component", "redis_relay").Logger(),
	}
}

// NodeID identificador de este nodo en el canal.
func (r *Relay) NodeID() string { return r.nodeID }

// Deliver publica un evento local en el canal.
func (r *Relay) Deliver(ctx context.Context, event entity.ChangeEvent) error {
	payload, err := json.Marshal(envelope{Origin: r.nodeID, Event: event})
	if err != nil {
		return fmt.Errorf("serializar evento: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publicar en %s: %w", r.channel, err)
	}
	return nil
}

// Run se suscribe al canal y entrega a target los eventos de otros nodos hasta ctx.Done().
func (r *Relay) Run(ctx context.Context, target Target) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("suscribir a %s: %w", r.channel, err)
	}
	r.log.Info().Str("channel", r.channel).Str("node_id", r.nodeID).Msg("relay suscrito")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, []byte(msg.Payload), target)
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload []byte, target Target) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.log.Warn().Err(err).Msg("mensaje de relay inválido")
		return
	}
	if env.Origin == r.nodeID {
		return
	}
	if err := target.Deliver(ctx, env.Event); err != nil {
		r.log.Error().Err(err).Str("origin", env.Origin).Msg("entrega de evento remoto fallida")
	}
}
