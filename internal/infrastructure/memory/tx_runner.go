package memory

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner unidad de trabajo en memoria. No hay rollback: la atomicidad la dan los bloqueos por
// posición del ledger y su compensación explícita.
type TxRunner struct {
	positions repository.PositionRepository
	movements repository.MovementRepository
}

// NewTxRunner construye el runner sobre los almacenes dados.
func NewTxRunner(positions repository.PositionRepository, movements repository.MovementRepository) *TxRunner {
	return &TxRunner{positions: positions, movements: movements}
}

// Run ejecuta fn con los almacenes en memoria.
func (r *TxRunner) Run(ctx context.Context, fn func(
	ctx context.Context,
	positions repository.PositionRepository,
	movements repository.MovementRepository,
) error) error {
	return fn(ctx, r.positions, r.movements)
}
