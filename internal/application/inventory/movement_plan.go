package inventory

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// positionDelta cambio a aplicar sobre una posición.
type positionDelta struct {
	key   entity.PositionKey
	delta int64
}

// movementPlan resultado de validar una solicitud: deltas en orden de aplicación
// (origen antes que destino) y el movimiento a anexar.
type movementPlan struct {
	deltas   []positionDelta
	movement *entity.StockMovement
}

func (p movementPlan) keys() []entity.PositionKey {
	keys := make([]entity.PositionKey, len(p.deltas))
	for i, d := range p.deltas {
		keys[i] = d.key
	}
	return keys
}

// planFor valida la forma de la solicitud y calcula los deltas. El switch es exhaustivo
// sobre las variantes de entity.MovementRequest.
func planFor(req entity.MovementRequest) (movementPlan, error) {
	if req == nil {
		return movementPlan{}, domain.NewValidationError("type", "solicitud vacía")
	}
	opts := req.Options()
	switch r := req.(type) {
	case entity.ReceiptRequest:
		if err := requireIDs(r.ItemID, r.WarehouseID); err != nil {
			return movementPlan{}, err
		}
		if r.Quantity <= 0 {
			return movementPlan{}, domain.NewValidationError("quantity", "debe ser mayor que 0")
		}
		if r.UnitCost != nil && r.UnitCost.LessThan(decimal.Zero) {
			return movementPlan{}, domain.NewValidationError("unit_cost", "no puede ser negativo")
		}
		mov := newMovement(entity.MovementTypeReceipt, r.ItemID, r.Quantity, opts)
		mov.DestinationWarehouseID = r.WarehouseID
		mov.UnitCost = r.UnitCost
		return movementPlan{
			deltas:   []positionDelta{{key: key(r.ItemID, r.WarehouseID), delta: r.Quantity}},
			movement: mov,
		}, nil

	case entity.IssueRequest:
		if err := requireIDs(r.ItemID, r.WarehouseID); err != nil {
			return movementPlan{}, err
		}
		if r.Quantity <= 0 {
			return movementPlan{}, domain.NewValidationError("quantity", "debe ser mayor que 0")
		}
		mov := newMovement(entity.MovementTypeIssue, r.ItemID, r.Quantity, opts)
		mov.SourceWarehouseID = r.WarehouseID
		return movementPlan{
			deltas:   []positionDelta{{key: key(r.ItemID, r.WarehouseID), delta: -r.Quantity}},
			movement: mov,
		}, nil

	case entity.TransferRequest:
		if strings.TrimSpace(r.ItemID) == "" {
			return movementPlan{}, domain.NewValidationError("item_id", "requerido")
		}
		if strings.TrimSpace(r.SourceWarehouseID) == "" {
			return movementPlan{}, domain.NewValidationError("source_warehouse_id", "requerido")
		}
		if strings.TrimSpace(r.DestinationWarehouseID) == "" {
			return movementPlan{}, domain.NewValidationError("destination_warehouse_id", "requerido")
		}
		if r.SourceWarehouseID == r.DestinationWarehouseID {
			return movementPlan{}, domain.NewValidationError("destination_warehouse_id", "debe ser distinta de la bodega origen")
		}
		if r.Quantity <= 0 {
			return movementPlan{}, domain.NewValidationError("quantity", "debe ser mayor que 0")
		}
		mov := newMovement(entity.MovementTypeTransfer, r.ItemID, r.Quantity, opts)
		mov.SourceWarehouseID = r.SourceWarehouseID
		mov.DestinationWarehouseID = r.DestinationWarehouseID
		return movementPlan{
			deltas: []positionDelta{
				{key: key(r.ItemID, r.SourceWarehouseID), delta: -r.Quantity},
				{key: key(r.ItemID, r.DestinationWarehouseID), delta: r.Quantity},
			},
			movement: mov,
		}, nil

	case entity.AdjustmentRequest:
		if err := requireIDs(r.ItemID, r.WarehouseID); err != nil {
			return movementPlan{}, err
		}
		if r.Delta == 0 {
			return movementPlan{}, domain.NewValidationError("quantity", "el ajuste no puede ser 0")
		}
		if r.Delta == math.MinInt64 {
			return movementPlan{}, domain.NewValidationError("quantity", "el ajuste excede el mínimo representable")
		}
		magnitude := r.Delta
		if magnitude < 0 {
			magnitude = -magnitude
		}
		mov := newMovement(entity.MovementTypeAdjustment, r.ItemID, magnitude, opts)
		if r.Delta > 0 {
			mov.DestinationWarehouseID = r.WarehouseID
		} else {
			mov.SourceWarehouseID = r.WarehouseID
		}
		return movementPlan{
			deltas:   []positionDelta{{key: key(r.ItemID, r.WarehouseID), delta: r.Delta}},
			movement: mov,
		}, nil
	}
	return movementPlan{}, domain.NewValidationError("type", fmt.Sprintf("tipo de movimiento no soportado: %T", req))
}

func requireIDs(itemID, warehouseID string) error {
	if strings.TrimSpace(itemID) == "" {
		return domain.NewValidationError("item_id", "requerido")
	}
	if strings.TrimSpace(warehouseID) == "" {
		return domain.NewValidationError("warehouse_id", "requerido")
	}
	return nil
}

func newMovement(t entity.MovementType, itemID string, qty int64, opts entity.MovementOptions) *entity.StockMovement {
	return &entity.StockMovement{
		ItemID:        itemID,
		Quantity:      qty,
		Type:          t,
		ReferenceID:   opts.ReferenceID,
		ReferenceType: opts.ReferenceType,
		UserID:        opts.UserID,
		Notes:         opts.Notes,
	}
}

func key(itemID, warehouseID string) entity.PositionKey {
	return entity.PositionKey{ItemID: itemID, WarehouseID: warehouseID}
}
