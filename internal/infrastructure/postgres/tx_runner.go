package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// txOptions READ COMMITTED basta: toda lectura que decide un cambio se hace con FOR UPDATE.
var txOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}

// TxRunner unidad de trabajo del ledger sobre una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run pasa a fn los repositorios atados a la transacción. Error de fn = Rollback; si no, Commit.
func (r *TxRunner) Run(ctx context.Context, fn func(
	ctx context.Context,
	positions repository.PositionRepository,
	movements repository.MovementRepository,
) error) error {
	var fnErr error
	err := pgx.BeginTxFunc(ctx, r.pool, txOptions, func(tx pgx.Tx) error {
		fnErr = fn(ctx, NewPositionRepository(tx), NewMovementRepository(tx))
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("transacción del ledger: %w", err)
	}
	return err
}
