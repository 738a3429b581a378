package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/pkg/config"
)

// getPool conecta a TEST_DATABASE_URL y aplica las migraciones; sin base disponible el test se omite.
func getPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := NewPool(ctx, config.DBConfig{DatabaseURL: dsn, MaxConns: 8})
	if err != nil {
		t.Skipf("PostgreSQL no disponible: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

// seed registra un item y bodegas con ids únicos para aislar cada test.
func seed(t *testing.T, pool *pgxpool.Pool, warehouses int) (string, []string) {
	t.Helper()
	ctx := context.Background()
	catalog := NewCatalogRepository(pool)
	item := "it-" + uuid.NewString()
	require.NoError(t, catalog.UpsertItem(ctx, item, "item de prueba"))
	ids := make([]string, warehouses)
	for i := range ids {
		ids[i] = "wh-" + uuid.NewString()
		require.NoError(t, catalog.UpsertWarehouse(ctx, ids[i], "bodega de prueba"))
	}
	return item, ids
}

func newLedger(pool *pgxpool.Pool) *inventory.LedgerService {
	return inventory.NewLedgerService(NewTxRunner(pool), NewPositionRepository(pool), NewMovementRepository(pool))
}

func TestPostgresLedger_Scenarios(t *testing.T) {
	pool := getPool(t)
	item, wh := seed(t, pool, 2)
	ledger := newLedger(pool)
	ctx := context.Background()

	cost := decimal.RequireFromString("10.5")
	mov, err := ledger.RecordReceipt(ctx, item, wh[0], 50, &cost, entity.MovementOptions{ReferenceID: "PO-1", UserID: "u1"})
	require.NoError(t, err)
	assert.Positive(t, mov.ID)
	assert.False(t, mov.CreatedAt.IsZero())

	_, err = ledger.Transfer(ctx, item, wh[0], wh[1], 30, entity.MovementOptions{})
	require.NoError(t, err)

	_, err = ledger.RecordIssue(ctx, item, wh[0], 25, entity.MovementOptions{})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = ledger.Adjust(ctx, item, wh[0], -5, entity.MovementOptions{Notes: "merma"})
	require.NoError(t, err)

	q0, err := ledger.GetPosition(ctx, item, wh[0])
	require.NoError(t, err)
	q1, err := ledger.GetPosition(ctx, item, wh[1])
	require.NoError(t, err)
	assert.Equal(t, int64(15), q0)
	assert.Equal(t, int64(30), q1)

	movs, err := ledger.Movements(ctx, inventory.MovementQuery{ItemID: item})
	require.NoError(t, err)
	require.Len(t, movs, 3)
	require.NotNil(t, movs[0].UnitCost)
	assert.True(t, cost.Equal(*movs[0].UnitCost))
	assert.Equal(t, "PO-1", movs[0].ReferenceID)
	assert.Equal(t, int64(-5), movs[2].SignedDelta())

	for _, w := range wh {
		report, err := ledger.Audit(ctx, item, w)
		require.NoError(t, err)
		assert.True(t, report.Consistent)
	}
}

func TestPostgresLedger_UnknownReference(t *testing.T) {
	pool := getPool(t)
	item, wh := seed(t, pool, 1)
	ledger := newLedger(pool)
	ctx := context.Background()

	_, err := ledger.RecordReceipt(ctx, item, wh[0], 5, nil, entity.MovementOptions{})
	require.NoError(t, err)

	_, err = ledger.Transfer(ctx, item, wh[0], "wh-inexistente-"+uuid.NewString(), 2, entity.MovementOptions{})
	require.ErrorIs(t, err, domain.ErrUnknownReference)

	qty, err := ledger.GetPosition(ctx, item, wh[0])
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty, "el destino desconocido se detecta antes de aplicar deltas")
}

func TestPostgresLedger_ConcurrentTransfersAcrossProcesses(t *testing.T) {
	pool := getPool(t)
	item, wh := seed(t, pool, 2)
	ctx := context.Background()

	// dos instancias del servicio con locks en proceso independientes: la serialización la dan los FOR UPDATE
	a, b := newLedger(pool), newLedger(pool)
	_, err := a.RecordReceipt(ctx, item, wh[0], 500, nil, entity.MovementOptions{})
	require.NoError(t, err)
	_, err = a.RecordReceipt(ctx, item, wh[1], 500, nil, entity.MovementOptions{})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := a.Transfer(ctx, item, wh[0], wh[1], 10, entity.MovementOptions{})
			return err
		})
		g.Go(func() error {
			_, err := b.Transfer(ctx, item, wh[1], wh[0], 5, entity.MovementOptions{})
			return err
		})
	}
	require.NoError(t, g.Wait())

	q0, _ := a.GetPosition(ctx, item, wh[0])
	q1, _ := a.GetPosition(ctx, item, wh[1])
	assert.Equal(t, int64(500-200+100), q0)
	assert.Equal(t, int64(500+200-100), q1)
}

func TestMovementRepo_AppendOnly(t *testing.T) {
	pool := getPool(t)
	item, wh := seed(t, pool, 1)
	ledger := newLedger(pool)
	mov, err := ledger.RecordReceipt(context.Background(), item, wh[0], 1, nil, entity.MovementOptions{})
	require.NoError(t, err)

	_, err = pool.Exec(context.Background(), `UPDATE stock_movements SET quantity = 2 WHERE id = $1`, mov.ID)
	assert.Error(t, err)
	_, err = pool.Exec(context.Background(), `DELETE FROM stock_movements WHERE id = $1`, mov.ID)
	assert.Error(t, err)
}
