package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.PositionRepository = (*PositionRepo)(nil)

// PositionRepo implementación de PositionRepository sobre PostgreSQL (usable con pool o tx).
// ApplyDelta debe ejecutarse dentro de una transacción para que el bloqueo de fila dure hasta el commit.
type PositionRepo struct {
	q Querier
}

// NewPositionRepository construye el adaptador de posiciones. Pasar pool o tx (Querier).
func NewPositionRepository(q Querier) *PositionRepo {
	return &PositionRepo{q: q}
}

// Get obtiene la cantidad actual de un item en una bodega; 0 si no hay fila.
func (r *PositionRepo) Get(ctx context.Context, itemID, warehouseID string) (int64, error) {
	query := `
		SELECT quantity FROM inventory_positions
		WHERE item_id = $1 AND warehouse_id = $2`
	var qty int64
	err := r.q.QueryRow(ctx, query, itemID, warehouseID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get position: %w", err)
	}
	return qty, nil
}

// LockPositions crea las filas faltantes en 0 y las bloquea en el orden recibido.
// Dentro de una transacción los ApplyDelta posteriores ya no esperan por otras transacciones.
func (r *PositionRepo) LockPositions(ctx context.Context, keys []entity.PositionKey) error {
	for _, k := range keys {
		if _, err := r.lockRow(ctx, k.ItemID, k.WarehouseID); err != nil {
			return err
		}
	}
	return nil
}

// lockRow asegura la fila y la lee con FOR UPDATE.
func (r *PositionRepo) lockRow(ctx context.Context, itemID, warehouseID string) (int64, error) {
	ensure := `
		INSERT INTO inventory_positions (item_id, warehouse_id, quantity, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (item_id, warehouse_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, ensure, itemID, warehouseID); err != nil {
		return 0, wrapWriteError("ensure position", err)
	}

	lock := `
		SELECT quantity FROM inventory_positions
		WHERE item_id = $1 AND warehouse_id = $2
		FOR UPDATE`
	var qty int64
	if err := r.q.QueryRow(ctx, lock, itemID, warehouseID).Scan(&qty); err != nil {
		return 0, fmt.Errorf("get position for update: %w", err)
	}
	return qty, nil
}

// ApplyDelta crea la fila en 0 si no existe, la bloquea (SELECT FOR UPDATE), verifica que la
// cantidad no quede negativa y la actualiza. Devuelve (anterior, nueva) de la misma lectura bloqueada.
func (r *PositionRepo) ApplyDelta(ctx context.Context, itemID, warehouseID string, delta int64) (int64, int64, error) {
	previous, err := r.lockRow(ctx, itemID, warehouseID)
	if err != nil {
		return 0, 0, err
	}
	if domain.ExceedsMaxQuantity(previous, delta) {
		return previous, previous, domain.NewQuantityOverflowError(previous, delta)
	}
	if previous+delta < 0 {
		return previous, previous, &domain.NegativeStockError{
			ItemID: itemID, WarehouseID: warehouseID, Previous: previous, Delta: delta,
		}
	}

	update := `
		UPDATE inventory_positions SET quantity = $3, updated_at = now()
		WHERE item_id = $1 AND warehouse_id = $2`
	current := previous + delta
	if _, err := r.q.Exec(ctx, update, itemID, warehouseID, current); err != nil {
		return 0, 0, wrapWriteError("update position", err)
	}
	return previous, current, nil
}

// ListByItem posiciones del item en todas las bodegas.
func (r *PositionRepo) ListByItem(ctx context.Context, itemID string) ([]entity.InventoryPosition, error) {
	query := `
		SELECT item_id, warehouse_id, quantity, updated_at
		FROM inventory_positions WHERE item_id = $1
		ORDER BY warehouse_id`
	rows, err := r.q.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list positions by item: %w", err)
	}
	defer rows.Close()
	list := make([]entity.InventoryPosition, 0)
	for rows.Next() {
		var p entity.InventoryPosition
		if err := rows.Scan(&p.ItemID, &p.WarehouseID, &p.Quantity, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
