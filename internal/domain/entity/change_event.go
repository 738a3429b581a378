package entity

import "time"

// ChangeEvent cambio de una posición tras un commit del ledger. Efímero: no se persiste.
// Un TRANSFER genera dos, uno por bodega.
type ChangeEvent struct {
	ItemID            string       `json:"item_id"`
	WarehouseID       string       `json:"warehouse_id"`
	PreviousQuantity  int64        `json:"previous_quantity"`
	NewQuantity       int64        `json:"new_quantity"`
	CausingMovementID int64        `json:"movement_id"`
	MovementType      MovementType `json:"movement_type"`
	Timestamp         time.Time    `json:"timestamp"`
}

// Delta diferencia aplicada en la posición.
func (e ChangeEvent) Delta() int64 {
	return e.NewQuantity - e.PreviousQuantity
}
