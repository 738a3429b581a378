package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo log de movimientos sobre PostgreSQL (usable con pool o tx).
// La tabla stock_movements no admite UPDATE ni DELETE desde la aplicación.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, item_id, quantity, type, source_warehouse_id, destination_warehouse_id,
		reference_id, reference_type, user_id, notes, unit_cost, created_at`

// Append persiste el movimiento; id (BIGSERIAL) y created_at los asigna la base de datos.
func (r *MovementRepo) Append(ctx context.Context, m *entity.StockMovement) (int64, error) {
	query := `
		INSERT INTO stock_movements (item_id, quantity, type, source_warehouse_id, destination_warehouse_id,
			reference_id, reference_type, user_id, notes, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query,
		m.ItemID, m.Quantity, string(m.Type),
		nullable(m.SourceWarehouseID), nullable(m.DestinationWarehouseID),
		nullable(m.ReferenceID), nullable(m.ReferenceType), nullable(m.UserID), nullable(m.Notes),
		m.UnitCost,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return 0, wrapWriteError("append movement", err)
	}
	return m.ID, nil
}

// QueryByItem movimientos de un item en orden de creación.
func (r *MovementRepo) QueryByItem(ctx context.Context, itemID string) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE item_id = $1 ORDER BY id`
	return r.list(ctx, "list by item", query, itemID)
}

// QueryByWarehouse movimientos donde la bodega es origen o destino.
func (r *MovementRepo) QueryByWarehouse(ctx context.Context, warehouseID string) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements
		WHERE source_warehouse_id = $1 OR destination_warehouse_id = $1 ORDER BY id`
	return r.list(ctx, "list by warehouse", query, warehouseID)
}

// QueryByDateRange movimientos con created_at en [start, end).
func (r *MovementRepo) QueryByDateRange(ctx context.Context, start, end time.Time) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements
		WHERE created_at >= $1 AND created_at < $2 ORDER BY id`
	return r.list(ctx, "list by date range", query, start, end)
}

func (r *MovementRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	list := make([]*entity.StockMovement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var (
		m                                       entity.StockMovement
		movType                                 string
		source, dest, refID, refType, user, nts *string
		unitCost                                *decimal.Decimal
	)
	if err := row.Scan(&m.ID, &m.ItemID, &m.Quantity, &movType, &source, &dest,
		&refID, &refType, &user, &nts, &unitCost, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Type = entity.MovementType(movType)
	m.SourceWarehouseID = deref(source)
	m.DestinationWarehouseID = deref(dest)
	m.ReferenceID = deref(refID)
	m.ReferenceType = deref(refType)
	m.UserID = deref(user)
	m.Notes = deref(nts)
	m.UnitCost = unitCost
	return &m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
