package redisrelay

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []entity.ChangeEvent
}

func (c *collector) Deliver(_ context.Context, e entity.ChangeEvent) error {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func sampleEvent() entity.ChangeEvent {
	return entity.ChangeEvent{
		ItemID:            "SKU-1",
		WarehouseID:       "W1",
		PreviousQuantity:  4,
		NewQuantity:       9,
		CausingMovementID: 12,
		MovementType:      entity.MovementTypeReceipt,
		Timestamp:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRelay_HandleSkipsOwnEvents(t *testing.T) {
	r := NewRelay(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "", zerolog.Nop())
	assert.Equal(t, DefaultChannel, r.channel)

	target := &collector{}
	own, err := json.Marshal(envelope{Origin: r.NodeID(), Event: sampleEvent()})
	require.NoError(t, err)
	remote, err := json.Marshal(envelope{Origin: "otro-nodo", Event: sampleEvent()})
	require.NoError(t, err)

	r.handle(context.Background(), own, target)
	r.handle(context.Background(), []byte("{no json"), target)
	r.handle(context.Background(), remote, target)

	require.Equal(t, 1, target.len())
	assert.Equal(t, sampleEvent(), target.events[0])
}

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis no disponible: %v", err)
	}
	return client
}

func TestRelay_ForwardsBetweenNodes(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	channel := "stock-ledger:test:" + time.Now().Format("150405.000000")
	nodeA := NewRelay(client, channel, zerolog.Nop())
	nodeB := NewRelay(client, channel, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	targetA := &collector{}
	targetB := &collector{}
	go func() { _ = nodeA.Run(ctx, targetA) }()
	go func() { _ = nodeB.Run(ctx, targetB) }()

	// espera a que ambas suscripciones estén activas
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, nodeA.Deliver(ctx, sampleEvent()))

	require.Eventually(t, func() bool { return targetB.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, targetA.len())
}
