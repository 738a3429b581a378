package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// RegisterMovementRequest body para POST /api/inventory/movements.
// type: RECEIPT | ISSUE | TRANSFER | ADJUSTMENT. En ADJUSTMENT quantity lleva signo.
type RegisterMovementRequest struct {
	Type                   string           `json:"type"`
	ItemID                 string           `json:"item_id"`
	WarehouseID            string           `json:"warehouse_id,omitempty"`
	SourceWarehouseID      string           `json:"source_warehouse_id,omitempty"`
	DestinationWarehouseID string           `json:"destination_warehouse_id,omitempty"`
	Quantity               int64            `json:"quantity"`
	UnitCost               *decimal.Decimal `json:"unit_cost,omitempty"`
	ReferenceID            string           `json:"reference_id,omitempty"`
	ReferenceType          string           `json:"reference_type,omitempty"`
	Notes                  string           `json:"notes,omitempty"`
}

// StockMovementDTO representación JSON de un movimiento del ledger.
type StockMovementDTO struct {
	ID                     int64            `json:"id"`
	Type                   string           `json:"type"`
	ItemID                 string           `json:"item_id"`
	Quantity               int64            `json:"quantity"`
	SignedDelta            int64            `json:"signed_delta"`
	SourceWarehouseID      string           `json:"source_warehouse_id,omitempty"`
	DestinationWarehouseID string           `json:"destination_warehouse_id,omitempty"`
	ReferenceID            string           `json:"reference_id,omitempty"`
	ReferenceType          string           `json:"reference_type,omitempty"`
	UserID                 string           `json:"user_id,omitempty"`
	Notes                  string           `json:"notes,omitempty"`
	UnitCost               *decimal.Decimal `json:"unit_cost,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
}

// PositionDTO cantidad de un item en una bodega.
type PositionDTO struct {
	ItemID      string     `json:"item_id"`
	WarehouseID string     `json:"warehouse_id"`
	Quantity    int64      `json:"quantity"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// InsufficientStockResponse cuerpo 409 con el detalle del faltante.
type InsufficientStockResponse struct {
	ErrorResponse
	ItemID      string `json:"item_id"`
	WarehouseID string `json:"warehouse_id"`
	Available   int64  `json:"available"`
	Requested   int64  `json:"requested"`
	Shortfall   int64  `json:"shortfall"`
}

// FromMovement mapea la entidad al DTO.
func FromMovement(m *entity.StockMovement) StockMovementDTO {
	return StockMovementDTO{
		ID:                     m.ID,
		Type:                   string(m.Type),
		ItemID:                 m.ItemID,
		Quantity:               m.Quantity,
		SignedDelta:            m.SignedDelta(),
		SourceWarehouseID:      m.SourceWarehouseID,
		DestinationWarehouseID: m.DestinationWarehouseID,
		ReferenceID:            m.ReferenceID,
		ReferenceType:          m.ReferenceType,
		UserID:                 m.UserID,
		Notes:                  m.Notes,
		UnitCost:               m.UnitCost,
		CreatedAt:              m.CreatedAt,
	}
}

// FromMovements mapea una lista de movimientos.
func FromMovements(list []*entity.StockMovement) []StockMovementDTO {
	out := make([]StockMovementDTO, 0, len(list))
	for _, m := range list {
		out = append(out, FromMovement(m))
	}
	return out
}

// FromPositions mapea posiciones.
func FromPositions(list []entity.InventoryPosition) []PositionDTO {
	out := make([]PositionDTO, 0, len(list))
	for _, p := range list {
		dto := PositionDTO{ItemID: p.ItemID, WarehouseID: p.WarehouseID, Quantity: p.Quantity}
		if !p.UpdatedAt.IsZero() {
			updated := p.UpdatedAt
			dto.UpdatedAt = &updated
		}
		out = append(out, dto)
	}
	return out
}
