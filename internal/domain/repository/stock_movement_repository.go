package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementRepository define el puerto del log de movimientos (solo anexar, sin update/delete).
// Todas las consultas devuelven los movimientos en orden de creación (ID ascendente).
type MovementRepository interface {
	// Append asigna ID y CreatedAt al movimiento y lo persiste.
	Append(ctx context.Context, movement *entity.StockMovement) (int64, error)
	QueryByItem(ctx context.Context, itemID string) ([]*entity.StockMovement, error)
	// QueryByWarehouse incluye movimientos donde la bodega es origen o destino.
	QueryByWarehouse(ctx context.Context, warehouseID string) ([]*entity.StockMovement, error)
	// QueryByDateRange rango [start, end).
	QueryByDateRange(ctx context.Context, start, end time.Time) ([]*entity.StockMovement, error)
}
