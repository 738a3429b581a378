package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

// Valuation costo promedio ponderado de una posición reconstruido desde el log.
type Valuation struct {
	ItemID      string          `json:"item_id"`
	WarehouseID string          `json:"warehouse_id"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

type costState struct {
	qty int64
	avg decimal.Decimal
}

// Valuate recorre los movimientos del item en orden de creación. Las entradas con unit_cost
// recalculan el promedio de la bodega destino; las entradas sin costo y los ajustes positivos
// entran al promedio vigente; un traslado lleva el promedio de la bodega origen al destino.
// Las salidas no alteran el promedio.
func (s *LedgerService) Valuate(ctx context.Context, itemID, warehouseID string) (Valuation, error) {
	if err := requireIDs(itemID, warehouseID); err != nil {
		return Valuation{}, err
	}
	movs, err := s.movements.QueryByItem(ctx, itemID)
	if err != nil {
		return Valuation{}, classify(err)
	}

	states := map[string]*costState{}
	get := func(wh string) *costState {
		st, ok := states[wh]
		if !ok {
			st = &costState{}
			states[wh] = st
		}
		return st
	}
	receive := func(wh string, qty int64, cost decimal.Decimal) {
		st := get(wh)
		st.avg = domaininv.WeightedAverageCost(st.qty, st.avg, qty, cost)
		st.qty += qty
	}

	for _, m := range movs {
		switch m.Type {
		case entity.MovementTypeReceipt:
			st := get(m.DestinationWarehouseID)
			cost := st.avg
			if m.UnitCost != nil {
				cost = *m.UnitCost
			}
			receive(m.DestinationWarehouseID, m.Quantity, cost)
		case entity.MovementTypeIssue:
			get(m.SourceWarehouseID).qty -= m.Quantity
		case entity.MovementTypeTransfer:
			src := get(m.SourceWarehouseID)
			src.qty -= m.Quantity
			receive(m.DestinationWarehouseID, m.Quantity, src.avg)
		case entity.MovementTypeAdjustment:
			if m.DestinationWarehouseID != "" {
				st := get(m.DestinationWarehouseID)
				receive(m.DestinationWarehouseID, m.Quantity, st.avg)
			} else {
				get(m.SourceWarehouseID).qty -= m.Quantity
			}
		default:
			return Valuation{}, domain.NewValidationError("type", "movimiento desconocido en el log: "+string(m.Type))
		}
	}

	st := get(warehouseID)
	if st.qty <= 0 {
		st.avg = decimal.Zero
	}
	return Valuation{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Quantity:    st.qty,
		AverageCost: st.avg,
		TotalValue:  st.avg.Mul(decimal.NewFromInt(st.qty)),
	}, nil
}
