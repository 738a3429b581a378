package domain

import (
	"errors"
	"fmt"
	"math"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrInsufficientStock = errors.New("stock insuficiente")
	// ErrNegativeStock lo devuelve el almacén de posiciones cuando un delta dejaría la cantidad < 0.
	ErrNegativeStock = errors.New("la cantidad resultante sería negativa")
	// ErrUnknownReference: la capa de persistencia rechazó el item o la bodega (integridad referencial).
	ErrUnknownReference = errors.New("item o bodega desconocido")
	// ErrInternal: fallo de almacenamiento; el resultado de la operación es desconocido para el caller.
	ErrInternal = errors.New("error interno del ledger")
	// ErrLockTimeout: no se obtuvo el bloqueo antes del deadline; no se mutó nada.
	ErrLockTimeout = errors.New("tiempo de espera agotado al bloquear la posición")
)

// ValidationError describe una solicitud mal formada. Nunca se aplica parcialmente.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validación: " + e.Reason
	}
	return fmt.Sprintf("validación: %s: %s", e.Field, e.Reason)
}

// Unwrap permite errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError atajo para construir errores de validación.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError indica el faltante de una salida o traslado rechazado.
type InsufficientStockError struct {
	ItemID      string
	WarehouseID string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para item %s en bodega %s: disponible %d, solicitado %d",
		e.ItemID, e.WarehouseID, e.Available, e.Requested)
}

// Shortfall cantidad que falta para poder aplicar el movimiento.
func (e *InsufficientStockError) Shortfall() int64 {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ExceedsMaxQuantity indica si previous+delta desborda int64. La validación resultante va sobre quantity.
func ExceedsMaxQuantity(previous, delta int64) bool {
	return delta > 0 && previous > math.MaxInt64-delta
}

// NewQuantityOverflowError error de validación cuando la posición superaría el máximo representable.
func NewQuantityOverflowError(previous, delta int64) *ValidationError {
	return NewValidationError("quantity", fmt.Sprintf("la posición %d + %d excede el máximo representable", previous, delta))
}

// NegativeStockError lo produce PositionRepository.ApplyDelta; Previous es la cantidad vigente.
type NegativeStockError struct {
	ItemID      string
	WarehouseID string
	Previous    int64
	Delta       int64
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("delta %d sobre %d dejaría negativa la posición %s/%s",
		e.Delta, e.Previous, e.ItemID, e.WarehouseID)
}

func (e *NegativeStockError) Unwrap() error { return ErrNegativeStock }
