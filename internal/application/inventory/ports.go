package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una unidad de trabajo, pasando repositorios atados a ella.
// Si fn devuelve error no se confirma nada que la implementación pueda deshacer (Rollback en PostgreSQL).
type TxRunner interface {
	Run(ctx context.Context, fn func(
		ctx context.Context,
		positions repository.PositionRepository,
		movements repository.MovementRepository,
	) error) error
}

// RowLocker lo implementan los almacenes de posiciones con bloqueo propio (filas en PostgreSQL).
// El ledger lo invoca al inicio de la unidad de trabajo con las claves en orden global, de modo que
// varios procesos sobre la misma base tomen las filas en el mismo orden.
type RowLocker interface {
	LockPositions(ctx context.Context, keys []entity.PositionKey) error
}

// Notifier recibe los ChangeEvent de un commit ya confirmado.
// Publish no bloquea ni falla: la entrega es best-effort y no afecta el commit.
type Notifier interface {
	Publish(events ...entity.ChangeEvent)
}

// Metrics observa el resultado de cada operación del ledger.
type Metrics interface {
	ObserveOperation(movementType entity.MovementType, outcome string, elapsed time.Duration)
}

type nopNotifier struct{}

func (nopNotifier) Publish(...entity.ChangeEvent) {}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(entity.MovementType, string, time.Duration) {}
