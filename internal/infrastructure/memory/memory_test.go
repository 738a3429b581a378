package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

func TestPositionStore_ApplyDelta(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	qty, err := s.Get(ctx, "X", "W1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), qty)

	prev, cur, err := s.ApplyDelta(ctx, "X", "W1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), prev)
	assert.Equal(t, int64(10), cur)

	prev, cur, err = s.ApplyDelta(ctx, "X", "W1", -11)
	var neg *domain.NegativeStockError
	require.ErrorAs(t, err, &neg)
	assert.ErrorIs(t, err, domain.ErrNegativeStock)
	assert.Equal(t, int64(10), neg.Previous)
	assert.Equal(t, int64(-11), neg.Delta)
	assert.Equal(t, prev, cur)

	qty, _ = s.Get(ctx, "X", "W1")
	assert.Equal(t, int64(10), qty, "un delta rechazado no modifica la posición")

	_, cur, err = s.ApplyDelta(ctx, "X", "W1", -10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)
}

func TestPositionStore_ApplyDeltaRejectsOverflow(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()
	_, _, err := s.ApplyDelta(ctx, "X", "W1", math.MaxInt64)
	require.NoError(t, err)

	prev, cur, err := s.ApplyDelta(ctx, "X", "W1", 1)
	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "quantity", invalid.Field)
	assert.NotErrorIs(t, err, domain.ErrNegativeStock)
	assert.Equal(t, int64(math.MaxInt64), prev)
	assert.Equal(t, prev, cur)

	qty, _ := s.Get(ctx, "X", "W1")
	assert.Equal(t, int64(math.MaxInt64), qty)
}

func TestPositionStore_ListByItemSortedByWarehouse(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()
	for _, wh := range []string{"W3", "W1", "W2"} {
		_, _, err := s.ApplyDelta(ctx, "X", wh, 1)
		require.NoError(t, err)
	}
	_, _, err := s.ApplyDelta(ctx, "Y", "W1", 1)
	require.NoError(t, err)

	list, err := s.ListByItem(ctx, "X")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"W1", "W2", "W3"}, []string{list[0].WarehouseID, list[1].WarehouseID, list[2].WarehouseID})
	assert.False(t, list[0].UpdatedAt.IsZero())

	empty, err := s.ListByItem(ctx, "Z")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestMovementLog_AppendAndQueries(t *testing.T) {
	log := NewMovementLog()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(time.Minute), base.Add(-time.Hour), base.Add(2 * time.Minute)}
	log.now = func() time.Time {
		t := clock[0]
		clock = clock[1:]
		return t
	}

	moves := []*entity.StockMovement{
		{ItemID: "X", Quantity: 5, Type: entity.MovementTypeReceipt, DestinationWarehouseID: "W1"},
		{ItemID: "X", Quantity: 2, Type: entity.MovementTypeTransfer, SourceWarehouseID: "W1", DestinationWarehouseID: "W2"},
		{ItemID: "Y", Quantity: 1, Type: entity.MovementTypeReceipt, DestinationWarehouseID: "W2"},
		{ItemID: "X", Quantity: 1, Type: entity.MovementTypeIssue, SourceWarehouseID: "W2"},
	}
	for i, m := range moves {
		id, err := log.Append(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
		assert.Equal(t, id, m.ID)
	}
	assert.Equal(t, 4, log.Len())
	assert.Equal(t, moves[1].CreatedAt, moves[2].CreatedAt, "CreatedAt no retrocede con el reloj")

	byItem, _ := log.QueryByItem(ctx, "X")
	assert.Len(t, byItem, 3)
	byWarehouse, _ := log.QueryByWarehouse(ctx, "W2")
	require.Len(t, byWarehouse, 3)
	assert.Equal(t, int64(2), byWarehouse[0].ID)

	ranged, _ := log.QueryByDateRange(ctx, base, base.Add(2*time.Minute))
	assert.Len(t, ranged, 3, "el extremo final es exclusivo")

	// las consultas devuelven copias
	byItem[0].Quantity = 999
	again, _ := log.QueryByItem(ctx, "X")
	assert.Equal(t, int64(5), again[0].Quantity)
}

func TestTxRunner_PassesStores(t *testing.T) {
	positions := NewPositionStore()
	movements := NewMovementLog()
	runner := NewTxRunner(positions, movements)

	err := runner.Run(context.Background(), func(ctx context.Context, p repository.PositionRepository, m repository.MovementRepository) error {
		assert.Same(t, positions, p)
		assert.Same(t, movements, m)
		return nil
	})
	require.NoError(t, err)
}
