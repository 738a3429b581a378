package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType tipo de movimiento del ledger.
type MovementType string

// Tipos de movimiento de inventario.
const (
	MovementTypeReceipt    MovementType = "RECEIPT"    // entrada
	MovementTypeIssue      MovementType = "ISSUE"      // salida
	MovementTypeTransfer   MovementType = "TRANSFER"   // traslado entre bodegas
	MovementTypeAdjustment MovementType = "ADJUSTMENT" // ajuste (signo según lado)
)

// Valid indica si el tipo es uno de los cuatro conocidos.
func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeReceipt, MovementTypeIssue, MovementTypeTransfer, MovementTypeAdjustment:
		return true
	}
	return false
}

// StockMovement registro inmutable de un evento que cambia cantidades (pista de auditoría).
// Quantity es siempre la magnitud positiva; el lado (origen/destino) define el signo.
type StockMovement struct {
	ID                     int64
	ItemID                 string
	Quantity               int64
	Type                   MovementType
	SourceWarehouseID      string // vacío en RECEIPT
	DestinationWarehouseID string // vacío en ISSUE
	ReferenceID            string
	ReferenceType          string
	UserID                 string
	Notes                  string
	UnitCost               *decimal.Decimal // solo RECEIPT
	CreatedAt              time.Time
}

// DeltaFor devuelve el cambio neto que el movimiento produjo en la bodega indicada.
func (m *StockMovement) DeltaFor(warehouseID string) int64 {
	var d int64
	if m.SourceWarehouseID == warehouseID {
		d -= m.Quantity
	}
	if m.DestinationWarehouseID == warehouseID {
		d += m.Quantity
	}
	return d
}

// SignedDelta efecto sobre la única bodega tocada: negativo en salidas y ajustes a la baja.
// Un TRANSFER no tiene signo propio (usar DeltaFor) y devuelve la magnitud.
func (m *StockMovement) SignedDelta() int64 {
	switch {
	case m.Type == MovementTypeIssue:
		return -m.Quantity
	case m.Type == MovementTypeAdjustment && m.SourceWarehouseID != "":
		return -m.Quantity
	}
	return m.Quantity
}

// Touches indica si el movimiento afecta la bodega (como origen o destino).
func (m *StockMovement) Touches(warehouseID string) bool {
	return m.SourceWarehouseID == warehouseID || m.DestinationWarehouseID == warehouseID
}
