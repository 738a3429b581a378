package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementQuery filtros de consulta del historial. Se requiere al menos ItemID, WarehouseID o el rango completo.
type MovementQuery struct {
	ItemID      string
	WarehouseID string
	From        *time.Time
	To          *time.Time // exclusivo
}

// AuditReport resultado de reconstruir una posición desde el log de movimientos.
type AuditReport struct {
	ItemID      string `json:"item_id"`
	WarehouseID string `json:"warehouse_id"`
	Position    int64  `json:"position"`
	Replayed    int64  `json:"replayed"`
	Movements   int    `json:"movements"`
	Consistent  bool   `json:"consistent"`
}

// GetPosition cantidad actual del item en la bodega (0 si nunca tuvo movimientos).
func (s *LedgerService) GetPosition(ctx context.Context, itemID, warehouseID string) (int64, error) {
	if err := requireIDs(itemID, warehouseID); err != nil {
		return 0, err
	}
	qty, err := s.positions.Get(ctx, itemID, warehouseID)
	if err != nil {
		return 0, classify(err)
	}
	return qty, nil
}

// GetPositionsAcrossWarehouses posiciones del item en todas las bodegas donde tuvo movimientos.
func (s *LedgerService) GetPositionsAcrossWarehouses(ctx context.Context, itemID string) ([]entity.InventoryPosition, error) {
	if itemID == "" {
		return nil, domain.NewValidationError("item_id", "requerido")
	}
	list, err := s.positions.ListByItem(ctx, itemID)
	if err != nil {
		return nil, classify(err)
	}
	return list, nil
}

// Movements consulta el historial en orden de creación.
func (s *LedgerService) Movements(ctx context.Context, q MovementQuery) ([]*entity.StockMovement, error) {
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return nil, domain.NewValidationError("to", "debe ser posterior a from")
	}
	var (
		list []*entity.StockMovement
		err  error
	)
	switch {
	case q.ItemID != "":
		list, err = s.movements.QueryByItem(ctx, q.ItemID)
	case q.WarehouseID != "":
		list, err = s.movements.QueryByWarehouse(ctx, q.WarehouseID)
	case q.From != nil && q.To != nil:
		return s.queryRange(ctx, *q.From, *q.To)
	default:
		return nil, domain.NewValidationError("item_id", "indique item_id, warehouse_id o el rango from/to")
	}
	if err != nil {
		return nil, classify(err)
	}
	out := make([]*entity.StockMovement, 0, len(list))
	for _, m := range list {
		if q.WarehouseID != "" && !m.Touches(q.WarehouseID) {
			continue
		}
		if q.From != nil && m.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && !m.CreatedAt.Before(*q.To) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *LedgerService) queryRange(ctx context.Context, from, to time.Time) ([]*entity.StockMovement, error) {
	list, err := s.movements.QueryByDateRange(ctx, from, to)
	if err != nil {
		return nil, classify(err)
	}
	return list, nil
}

// Audit reconstruye la posición desde cantidad 0 aplicando el log del item y la compara con la
// almacenada. Toma el bloqueo de la posición para que la foto sea consistente.
func (s *LedgerService) Audit(ctx context.Context, itemID, warehouseID string) (AuditReport, error) {
	if err := requireIDs(itemID, warehouseID); err != nil {
		return AuditReport{}, err
	}
	unlock, err := s.lock(ctx, key(itemID, warehouseID))
	if err != nil {
		return AuditReport{}, err
	}
	defer unlock()

	position, err := s.positions.Get(ctx, itemID, warehouseID)
	if err != nil {
		return AuditReport{}, classify(err)
	}
	movs, err := s.movements.QueryByItem(ctx, itemID)
	if err != nil {
		return AuditReport{}, classify(err)
	}

	report := AuditReport{ItemID: itemID, WarehouseID: warehouseID, Position: position}
	for _, m := range movs {
		if !m.Touches(warehouseID) {
			continue
		}
		report.Movements++
		report.Replayed += m.DeltaFor(warehouseID)
		if report.Replayed < 0 {
			return report, fmt.Errorf("%w: replay negativo en movimiento %d", domain.ErrInternal, m.ID)
		}
	}
	report.Consistent = report.Replayed == report.Position
	if !report.Consistent {
		s.log.Error().
			Str("item_id", itemID).
			Str("warehouse_id", warehouseID).
			Int64("position", position).
			Int64("replayed", report.Replayed).
			Msg("posición inconsistente con el log de movimientos")
	}
	return report, nil
}

// IsRetryable indica si el caller puede reintentar sin consultar la posición primero:
// solo cuando se sabe que nada se aplicó (timeout de bloqueo).
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrLockTimeout)
}
