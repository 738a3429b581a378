package inventory

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// RecordReceipt registra una entrada: +quantity en la bodega destino.
func (s *LedgerService) RecordReceipt(ctx context.Context, itemID, warehouseID string, quantity int64, unitCost *decimal.Decimal, opts entity.MovementOptions) (*entity.StockMovement, error) {
	return s.Apply(ctx, entity.ReceiptRequest{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Quantity:    quantity,
		UnitCost:    unitCost,
		Opts:        opts,
	})
}

// RecordIssue registra una salida: -quantity en la bodega origen.
func (s *LedgerService) RecordIssue(ctx context.Context, itemID, warehouseID string, quantity int64, opts entity.MovementOptions) (*entity.StockMovement, error) {
	return s.Apply(ctx, entity.IssueRequest{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Quantity:    quantity,
		Opts:        opts,
	})
}

// Transfer traslada quantity de una bodega a otra; ambos lados se aplican o ninguno.
func (s *LedgerService) Transfer(ctx context.Context, itemID, sourceWarehouseID, destinationWarehouseID string, quantity int64, opts entity.MovementOptions) (*entity.StockMovement, error) {
	return s.Apply(ctx, entity.TransferRequest{
		ItemID:                 itemID,
		SourceWarehouseID:      sourceWarehouseID,
		DestinationWarehouseID: destinationWarehouseID,
		Quantity:               quantity,
		Opts:                   opts,
	})
}

// Adjust aplica un ajuste con signo sobre una bodega.
func (s *LedgerService) Adjust(ctx context.Context, itemID, warehouseID string, signedDelta int64, opts entity.MovementOptions) (*entity.StockMovement, error) {
	return s.Apply(ctx, entity.AdjustmentRequest{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Delta:       signedDelta,
		Opts:        opts,
	})
}

// RegisterMovementFromRequest adapta el body HTTP (con discriminador type) a la variante correspondiente.
// userID es el actor extraído del token; reemplaza cualquier valor del body.
func (s *LedgerService) RegisterMovementFromRequest(ctx context.Context, userID string, in dto.RegisterMovementRequest) (*entity.StockMovement, error) {
	req, err := MovementRequestFromDTO(userID, in)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, req)
}

// MovementRequestFromDTO construye la unión etiquetada a partir del request HTTP.
// Rechaza campos que no pertenecen al tipo indicado.
func MovementRequestFromDTO(userID string, in dto.RegisterMovementRequest) (entity.MovementRequest, error) {
	opts := entity.MovementOptions{
		ReferenceID:   in.ReferenceID,
		ReferenceType: in.ReferenceType,
		UserID:        userID,
		Notes:         in.Notes,
	}
	switch entity.MovementType(strings.ToUpper(strings.TrimSpace(in.Type))) {
	case entity.MovementTypeReceipt:
		if in.SourceWarehouseID != "" {
			return nil, domain.NewValidationError("source_warehouse_id", "no aplica a RECEIPT")
		}
		wh, err := warehouseAlias(in.WarehouseID, "destination_warehouse_id", in.DestinationWarehouseID)
		if err != nil {
			return nil, err
		}
		return entity.ReceiptRequest{
			ItemID:      in.ItemID,
			WarehouseID: wh,
			Quantity:    in.Quantity,
			UnitCost:    in.UnitCost,
			Opts:        opts,
		}, nil
	case entity.MovementTypeIssue:
		if in.DestinationWarehouseID != "" {
			return nil, domain.NewValidationError("destination_warehouse_id", "no aplica a ISSUE")
		}
		if in.UnitCost != nil {
			return nil, domain.NewValidationError("unit_cost", "solo aplica a RECEIPT")
		}
		wh, err := warehouseAlias(in.WarehouseID, "source_warehouse_id", in.SourceWarehouseID)
		if err != nil {
			return nil, err
		}
		return entity.IssueRequest{
			ItemID:      in.ItemID,
			WarehouseID: wh,
			Quantity:    in.Quantity,
			Opts:        opts,
		}, nil
	case entity.MovementTypeTransfer:
		if in.WarehouseID != "" {
			return nil, domain.NewValidationError("warehouse_id", "TRANSFER usa source_warehouse_id y destination_warehouse_id")
		}
		if in.UnitCost != nil {
			return nil, domain.NewValidationError("unit_cost", "solo aplica a RECEIPT")
		}
		return entity.TransferRequest{
			ItemID:                 in.ItemID,
			SourceWarehouseID:      in.SourceWarehouseID,
			DestinationWarehouseID: in.DestinationWarehouseID,
			Quantity:               in.Quantity,
			Opts:                   opts,
		}, nil
	case entity.MovementTypeAdjustment:
		if in.SourceWarehouseID != "" {
			return nil, domain.NewValidationError("source_warehouse_id", "ADJUSTMENT usa warehouse_id con quantity firmada")
		}
		if in.DestinationWarehouseID != "" {
			return nil, domain.NewValidationError("destination_warehouse_id", "ADJUSTMENT usa warehouse_id con quantity firmada")
		}
		if in.UnitCost != nil {
			return nil, domain.NewValidationError("unit_cost", "solo aplica a RECEIPT")
		}
		return entity.AdjustmentRequest{
			ItemID:      in.ItemID,
			WarehouseID: in.WarehouseID,
			Delta:       in.Quantity,
			Opts:        opts,
		}, nil
	}
	return nil, domain.NewValidationError("type", "debe ser RECEIPT, ISSUE, TRANSFER o ADJUSTMENT")
}

// warehouseAlias resuelve warehouse_id y su alias por tipo; si vienen ambos deben coincidir.
func warehouseAlias(warehouseID, aliasField, alias string) (string, error) {
	if warehouseID != "" && alias != "" && warehouseID != alias {
		return "", domain.NewValidationError(aliasField, "no coincide con warehouse_id")
	}
	if warehouseID != "" {
		return warehouseID, nil
	}
	return alias, nil
}
