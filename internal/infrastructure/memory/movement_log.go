package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementLog)(nil)

// MovementLog log de movimientos en memoria, solo anexar. Los IDs son consecutivos desde 1
// y CreatedAt nunca retrocede aunque el reloj del sistema lo haga.
type MovementLog struct {
	mu      sync.RWMutex
	entries []entity.StockMovement
	lastAt  time.Time
	now     func() time.Time
}

// NewMovementLog construye el log vacío.
func NewMovementLog() *MovementLog {
	return &MovementLog{now: time.Now}
}

// Append asigna ID y CreatedAt y guarda una copia del movimiento.
func (l *MovementLog) Append(_ context.Context, m *entity.StockMovement) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	at := l.now().UTC()
	if at.Before(l.lastAt) {
		at = l.lastAt
	}
	l.lastAt = at
	m.ID = int64(len(l.entries) + 1)
	m.CreatedAt = at
	l.entries = append(l.entries, *m)
	return m.ID, nil
}

// QueryByItem movimientos del item en orden de creación.
func (l *MovementLog) QueryByItem(_ context.Context, itemID string) ([]*entity.StockMovement, error) {
	return l.filter(func(m *entity.StockMovement) bool { return m.ItemID == itemID }), nil
}

// QueryByWarehouse movimientos con la bodega como origen o destino.
func (l *MovementLog) QueryByWarehouse(_ context.Context, warehouseID string) ([]*entity.StockMovement, error) {
	return l.filter(func(m *entity.StockMovement) bool { return m.Touches(warehouseID) }), nil
}

// QueryByDateRange movimientos con CreatedAt en [start, end).
func (l *MovementLog) QueryByDateRange(_ context.Context, start, end time.Time) ([]*entity.StockMovement, error) {
	return l.filter(func(m *entity.StockMovement) bool {
		return !m.CreatedAt.Before(start) && m.CreatedAt.Before(end)
	}), nil
}

// Len número de movimientos anexados.
func (l *MovementLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *MovementLog) filter(keep func(*entity.StockMovement) bool) []*entity.StockMovement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*entity.StockMovement, 0)
	for i := range l.entries {
		m := l.entries[i]
		if keep(&m) {
			out = append(out, &m)
		}
	}
	return out
}
