package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Resultados de operación reportados a Metrics.
const (
	OutcomeCommitted    = "committed"
	OutcomeInvalid      = "invalid"
	OutcomeInsufficient = "insufficient_stock"
	OutcomeUnknownRef   = "unknown_reference"
	OutcomeLockTimeout  = "lock_timeout"
	OutcomeInternal     = "internal"
)

// DefaultLockTimeout espera máxima por los bloqueos cuando el caller no fija deadline.
const DefaultLockTimeout = 5 * time.Second

// LedgerService único punto de entrada para cambiar stock. Valida, bloquea las posiciones
// afectadas en orden global, aplica los deltas y anexa el movimiento en una unidad de trabajo,
// y solo tras el commit entrega los ChangeEvent al Notifier.
type LedgerService struct {
	txRunner    TxRunner
	positions   repository.PositionRepository
	movements   repository.MovementRepository
	locker      *KeyLocker
	notifier    Notifier
	metrics     Metrics
	log         zerolog.Logger
	lockTimeout time.Duration
}

// Option configura opcionalmente el LedgerService.
type Option func(*LedgerService)

// WithNotifier fija el notificador de cambios.
func WithNotifier(n Notifier) Option {
	return func(s *LedgerService) { s.notifier = n }
}

// WithMetrics fija el observador de métricas.
func WithMetrics(m Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

// WithLogger fija el logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *LedgerService) { s.log = l.With().Str("component", "ledger").Logger() }
}

// WithLockTimeout fija la espera por defecto de los bloqueos por posición.
func WithLockTimeout(d time.Duration) Option {
	return func(s *LedgerService) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// NewLedgerService construye el servicio. positions y movements se usan para lecturas fuera de transacción.
func NewLedgerService(
	txRunner TxRunner,
	positions repository.PositionRepository,
	movements repository.MovementRepository,
	opts ...Option,
) *LedgerService {
	s := &LedgerService{
		txRunner:    txRunner,
		positions:   positions,
		movements:   movements,
		locker:      NewKeyLocker(),
		notifier:    nopNotifier{},
		metrics:     nopMetrics{},
		log:         zerolog.Nop(),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// appliedDelta delta ya aplicado con las cantidades devueltas por ApplyDelta.
type appliedDelta struct {
	positionDelta
	previous int64
	current  int64
}

// Apply registra un movimiento. Todas las operaciones públicas se reducen a esta.
func (s *LedgerService) Apply(ctx context.Context, req entity.MovementRequest) (*entity.StockMovement, error) {
	start := time.Now()
	mov, err := s.apply(ctx, req)
	var t entity.MovementType
	if req != nil {
		t = entity.TypeOf(req)
	}
	s.metrics.ObserveOperation(t, outcomeOf(err), time.Since(start))
	return mov, err
}

func (s *LedgerService) apply(ctx context.Context, req entity.MovementRequest) (*entity.StockMovement, error) {
	plan, err := planFor(req)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, plan.keys()...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// A partir de aquí la operación termina (commit o compensación) aunque el caller cancele.
	work := context.WithoutCancel(ctx)
	mov := plan.movement
	var applied []appliedDelta

	err = s.txRunner.Run(work, func(
		ctx context.Context,
		positions repository.PositionRepository,
		movements repository.MovementRepository,
	) error {
		applied = applied[:0]
		if rl, ok := positions.(RowLocker); ok {
			if err := rl.LockPositions(ctx, sortedUnique(plan.keys())); err != nil {
				if errors.Is(err, domain.ErrUnknownReference) {
					return err
				}
				return fmt.Errorf("%w: bloquear posiciones: %v", domain.ErrInternal, err)
			}
		}
		for _, d := range plan.deltas {
			prev, cur, err := positions.ApplyDelta(ctx, d.key.ItemID, d.key.WarehouseID, d.delta)
			if err != nil {
				s.compensate(ctx, positions, applied)
				return translateApplyError(d, err)
			}
			applied = append(applied, appliedDelta{positionDelta: d, previous: prev, current: cur})
		}
		if _, err := movements.Append(ctx, mov); err != nil {
			s.compensate(ctx, positions, applied)
			if errors.Is(err, domain.ErrUnknownReference) {
				return err
			}
			return fmt.Errorf("%w: anexar movimiento: %v", domain.ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, domain.ErrInternal) || errors.Is(err, domain.ErrUnknownReference) {
			s.log.Error().Err(err).
				Str("type", string(mov.Type)).
				Str("item_id", mov.ItemID).
				Msg("movimiento no confirmado")
		}
		return nil, err
	}

	s.notifier.Publish(changeEvents(mov, applied)...)
	s.log.Debug().
		Int64("movement_id", mov.ID).
		Str("type", string(mov.Type)).
		Str("item_id", mov.ItemID).
		Int64("quantity", mov.Quantity).
		Msg("movimiento confirmado")
	return mov, nil
}

// lock adquiere las posiciones; sin deadline del caller se usa lockTimeout.
func (s *LedgerService) lock(ctx context.Context, keys ...entity.PositionKey) (func(), error) {
	lockCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	unlock, err := s.locker.Lock(lockCtx, keys...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
	}
	return unlock, nil
}

// compensate revierte en orden inverso los deltas ya aplicados de esta operación.
// En PostgreSQL el Rollback de la transacción también los descarta; aquí se hace explícito
// para que el protocolo no dependa del backend.
func (s *LedgerService) compensate(ctx context.Context, positions repository.PositionRepository, applied []appliedDelta) {
	for i := len(applied) - 1; i >= 0; i-- {
		d := applied[i]
		if _, _, err := positions.ApplyDelta(ctx, d.key.ItemID, d.key.WarehouseID, -d.delta); err != nil {
			s.log.Warn().Err(err).
				Str("item_id", d.key.ItemID).
				Str("warehouse_id", d.key.WarehouseID).
				Int64("delta", -d.delta).
				Msg("compensación fallida; se delega al rollback de la unidad de trabajo")
		}
	}
}

func translateApplyError(d positionDelta, err error) error {
	var neg *domain.NegativeStockError
	if errors.As(err, &neg) {
		return &domain.InsufficientStockError{
			ItemID:      d.key.ItemID,
			WarehouseID: d.key.WarehouseID,
			Available:   neg.Previous,
			Requested:   -d.delta,
		}
	}
	if errors.Is(err, domain.ErrUnknownReference) || errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: aplicar delta en %s: %v", domain.ErrInternal, d.key, err)
}

// classify garantiza que todo error devuelto pertenezca a la taxonomía del ledger.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrUnknownReference),
		errors.Is(err, domain.ErrInternal),
		errors.Is(err, domain.ErrLockTimeout):
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrInternal, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeCommitted
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrInsufficientStock):
		return OutcomeInsufficient
	case errors.Is(err, domain.ErrUnknownReference):
		return OutcomeUnknownRef
	case errors.Is(err, domain.ErrLockTimeout):
		return OutcomeLockTimeout
	default:
		return OutcomeInternal
	}
}

// changeEvents un evento por posición tocada, con (anterior, nueva) tomados del mismo ApplyDelta.
func changeEvents(mov *entity.StockMovement, applied []appliedDelta) []entity.ChangeEvent {
	events := make([]entity.ChangeEvent, 0, len(applied))
	for _, a := range applied {
		events = append(events, entity.ChangeEvent{
			ItemID:            a.key.ItemID,
			WarehouseID:       a.key.WarehouseID,
			PreviousQuantity:  a.previous,
			NewQuantity:       a.current,
			CausingMovementID: mov.ID,
			MovementType:      mov.Type,
			Timestamp:         mov.CreatedAt,
		})
	}
	return events
}
