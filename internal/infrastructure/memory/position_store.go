package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.PositionRepository = (*PositionStore)(nil)

// PositionStore almacén de posiciones en memoria. Útil para tests y despliegues de un solo nodo
// sin PostgreSQL; no sobrevive a reinicios.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[entity.PositionKey]entity.InventoryPosition
	now       func() time.Time
}

// NewPositionStore construye el almacén vacío.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		positions: make(map[entity.PositionKey]entity.InventoryPosition),
		now:       time.Now,
	}
}

// Get devuelve la cantidad actual (0 si no existe).
func (s *PositionStore) Get(_ context.Context, itemID, warehouseID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[entity.PositionKey{ItemID: itemID, WarehouseID: warehouseID}].Quantity, nil
}

// ApplyDelta lectura-modificación-escritura atómica.
func (s *PositionStore) ApplyDelta(_ context.Context, itemID, warehouseID string, delta int64) (int64, int64, error) {
	k := entity.PositionKey{ItemID: itemID, WarehouseID: warehouseID}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[k]
	if !ok {
		p = entity.InventoryPosition{ItemID: itemID, WarehouseID: warehouseID}
	}
	previous := p.Quantity
	if domain.ExceedsMaxQuantity(previous, delta) {
		return previous, previous, domain.NewQuantityOverflowError(previous, delta)
	}
	if previous+delta < 0 {
		return previous, previous, &domain.NegativeStockError{
			ItemID: itemID, WarehouseID: warehouseID, Previous: previous, Delta: delta,
		}
	}
	p.Quantity = previous + delta
	p.UpdatedAt = s.now()
	s.positions[k] = p
	return previous, p.Quantity, nil
}

// ListByItem posiciones del item ordenadas por bodega.
func (s *PositionStore) ListByItem(_ context.Context, itemID string) ([]entity.InventoryPosition, error) {
	s.mu.RLock()
	list := make([]entity.InventoryPosition, 0)
	for k, p := range s.positions {
		if k.ItemID == itemID {
			list = append(list, p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].WarehouseID < list[j].WarehouseID })
	return list, nil
}

// Snapshot copia de todas las posiciones (inspección en tests).
func (s *PositionStore) Snapshot() map[entity.PositionKey]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[entity.PositionKey]int64, len(s.positions))
	for k, p := range s.positions {
		out[k] = p.Quantity
	}
	return out
}
