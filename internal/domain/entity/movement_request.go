package entity

import "github.com/shopspring/decimal"

// MovementOptions campos comunes y opcionales de cualquier movimiento.
// ReferenceID/ReferenceType enlazan al documento que lo originó (p. ej. recepción de una orden de compra).
type MovementOptions struct {
	ReferenceID   string
	ReferenceType string
	UserID        string
	Notes         string
}

// MovementRequest unión etiquetada de solicitudes al ledger.
// Cada variante lleva solo sus campos válidos; la interfaz está sellada por movementType.
type MovementRequest interface {
	movementType() MovementType
	Options() MovementOptions
}

// TypeOf devuelve el tipo de movimiento de una solicitud.
func TypeOf(r MovementRequest) MovementType { return r.movementType() }

// ReceiptRequest entrada de mercancía a una bodega.
type ReceiptRequest struct {
	ItemID      string
	WarehouseID string
	Quantity    int64
	UnitCost    *decimal.Decimal
	Opts        MovementOptions
}

// IssueRequest salida de mercancía desde una bodega.
type IssueRequest struct {
	ItemID      string
	WarehouseID string
	Quantity    int64
	Opts        MovementOptions
}

// TransferRequest traslado entre dos bodegas distintas.
type TransferRequest struct {
	ItemID                 string
	SourceWarehouseID      string
	DestinationWarehouseID string
	Quantity               int64
	Opts                   MovementOptions
}

// AdjustmentRequest ajuste con signo sobre una bodega (conteo físico, merma, etc.).
type AdjustmentRequest struct {
	ItemID      string
	WarehouseID string
	Delta       int64
	Opts        MovementOptions
}

func (ReceiptRequest) movementType() MovementType    { return MovementTypeReceipt }
func (IssueRequest) movementType() MovementType      { return MovementTypeIssue }
func (TransferRequest) movementType() MovementType   { return MovementTypeTransfer }
func (AdjustmentRequest) movementType() MovementType { return MovementTypeAdjustment }

func (r ReceiptRequest) Options() MovementOptions    { return r.Opts }
func (r IssueRequest) Options() MovementOptions      { return r.Opts }
func (r TransferRequest) Options() MovementOptions   { return r.Opts }
func (r AdjustmentRequest) Options() MovementOptions { return r.Opts }
