package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// PositionRepository define el puerto del almacén de posiciones (item, bodega) → cantidad.
// Solo el ledger escribe en él; se usa dentro de la unidad de trabajo del ledger.
type PositionRepository interface {
	// Get devuelve la cantidad actual; 0 si la posición aún no existe.
	Get(ctx context.Context, itemID, warehouseID string) (int64, error)
	// ApplyDelta lee-modifica-escribe de forma atómica y devuelve (anterior, nueva).
	// Si anterior+delta < 0 devuelve *domain.NegativeStockError sin cambiar nada.
	ApplyDelta(ctx context.Context, itemID, warehouseID string, delta int64) (previous, current int64, err error)
	// ListByItem devuelve las posiciones del item en todas las bodegas, ordenadas por bodega.
	ListByItem(ctx context.Context, itemID string) ([]entity.InventoryPosition, error)
}
