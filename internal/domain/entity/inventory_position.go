package entity

import "time"

// PositionKey identifica una posición: un item en una bodega.
type PositionKey struct {
	ItemID      string
	WarehouseID string
}

// Less orden global usado para adquirir bloqueos: bodega ascendente y luego item.
func (k PositionKey) Less(o PositionKey) bool {
	if k.WarehouseID != o.WarehouseID {
		return k.WarehouseID < o.WarehouseID
	}
	return k.ItemID < o.ItemID
}

func (k PositionKey) String() string {
	return k.ItemID + "@" + k.WarehouseID
}

// InventoryPosition cantidad disponible actual de un item en una bodega (proyección del ledger).
// Se crea implícitamente en 0 con el primer movimiento; nunca queda negativa.
type InventoryPosition struct {
	ItemID      string
	WarehouseID string
	Quantity    int64
	UpdatedAt   time.Time
}

// Key devuelve la clave de la posición.
func (p InventoryPosition) Key() PositionKey {
	return PositionKey{ItemID: p.ItemID, WarehouseID: p.WarehouseID}
}
