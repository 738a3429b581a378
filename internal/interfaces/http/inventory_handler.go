package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// InventoryHandler maneja las peticiones HTTP del ledger de stock.
type InventoryHandler struct {
	ledger *inventory.LedgerService
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(ledger *inventory.LedgerService) *InventoryHandler {
	return &InventoryHandler{ledger: ledger}
}

// RegisterMovement godoc
// @Summary      Registrar movimiento de inventario
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "type RECEIPT|ISSUE|TRANSFER|ADJUSTMENT"
// @Success      201   {object}  dto.StockMovementDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.InsufficientStockResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) RegisterMovement(c *fiber.Ctx) error {
	return h.register(c, "")
}

// RecordReceipt POST /api/inventory/receipts
func (h *InventoryHandler) RecordReceipt(c *fiber.Ctx) error {
	return h.register(c, entity.MovementTypeReceipt)
}

// RecordIssue POST /api/inventory/issues
func (h *InventoryHandler) RecordIssue(c *fiber.Ctx) error {
	return h.register(c, entity.MovementTypeIssue)
}

// Transfer POST /api/inventory/transfers
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	return h.register(c, entity.MovementTypeTransfer)
}

// Adjust POST /api/inventory/adjustments (quantity con signo)
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	return h.register(c, entity.MovementTypeAdjustment)
}

// register con fixed != "" el tipo lo fija la ruta y un type distinto en el body es inválido.
func (h *InventoryHandler) register(c *fiber.Ctx, fixed entity.MovementType) error {
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if fixed != "" {
		if in.Type != "" && !strings.EqualFold(in.Type, string(fixed)) {
			return writeError(c, domain.NewValidationError("type", "no coincide con la ruta"))
		}
		in.Type = string(fixed)
	}
	mov, err := h.ledger.RegisterMovementFromRequest(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromMovement(mov))
}

// GetPositions godoc
// @Summary      Posiciones de un item en todas las bodegas
// @Tags         inventory
// @Produce      json
// @Param        item_id  path  string  true  "Item"
// @Success      200  {array}   dto.PositionDTO
// @Router       /api/inventory/positions/{item_id} [get]
func (h *InventoryHandler) GetPositions(c *fiber.Ctx) error {
	list, err := h.ledger.GetPositionsAcrossWarehouses(c.UserContext(), c.Params("item_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"item_id":   c.Params("item_id"),
		"total":     sumQuantities(list),
		"positions": dto.FromPositions(list),
	})
}

// GetPosition godoc
// @Summary      Cantidad de un item en una bodega
// @Tags         inventory
// @Produce      json
// @Param        item_id       path  string  true  "Item"
// @Param        warehouse_id  path  string  true  "Bodega"
// @Success      200  {object}  dto.PositionDTO
// @Router       /api/inventory/positions/{item_id}/{warehouse_id} [get]
func (h *InventoryHandler) GetPosition(c *fiber.Ctx) error {
	itemID, warehouseID := c.Params("item_id"), c.Params("warehouse_id")
	qty, err := h.ledger.GetPosition(c.UserContext(), itemID, warehouseID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.PositionDTO{ItemID: itemID, WarehouseID: warehouseID, Quantity: qty})
}

// Audit godoc
// @Summary      Auditoría de una posición
// @Description  Reconstruye la posición desde el log de movimientos y la compara con la almacenada.
// @Tags         inventory
// @Produce      json
// @Param        item_id       path  string  true  "Item"
// @Param        warehouse_id  path  string  true  "Bodega"
// @Success      200  {object}  inventory.AuditReport
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/positions/{item_id}/{warehouse_id}/audit [get]
func (h *InventoryHandler) Audit(c *fiber.Ctx) error {
	report, err := h.ledger.Audit(c.UserContext(), c.Params("item_id"), c.Params("warehouse_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

// Valuation godoc
// @Summary      Costo promedio ponderado
// @Description  Costo promedio ponderado y valor total de la posición, reconstruidos desde el log.
// @Tags         inventory
// @Produce      json
// @Param        item_id       path  string  true  "Item"
// @Param        warehouse_id  path  string  true  "Bodega"
// @Success      200  {object}  inventory.Valuation
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/positions/{item_id}/{warehouse_id}/valuation [get]
func (h *InventoryHandler) Valuation(c *fiber.Ctx) error {
	v, err := h.ledger.Valuate(c.UserContext(), c.Params("item_id"), c.Params("warehouse_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(v)
}

// ListMovements godoc
// @Summary      Historial de movimientos
// @Tags         inventory
// @Produce      json
// @Param        item_id       query  string  false  "Item"
// @Param        warehouse_id  query  string  false  "Bodega (origen o destino)"
// @Param        from          query  string  false  "RFC3339, inclusivo"
// @Param        to            query  string  false  "RFC3339, exclusivo"
// @Success      200  {array}   dto.StockMovementDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	q := inventory.MovementQuery{
		ItemID:      c.Query("item_id"),
		WarehouseID: c.Query("warehouse_id"),
	}
	var err error
	if q.From, err = parseTime(c.Query("from"), "from"); err != nil {
		return writeError(c, err)
	}
	if q.To, err = parseTime(c.Query("to"), "to"); err != nil {
		return writeError(c, err)
	}
	list, err := h.ledger.Movements(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"total":     len(list),
		"movements": dto.FromMovements(list),
	})
}

func parseTime(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, domain.NewValidationError(field, "formato RFC3339 esperado")
	}
	return &t, nil
}

func sumQuantities(list []entity.InventoryPosition) int64 {
	var total int64
	for _, p := range list {
		total += p.Quantity
	}
	return total
}

// writeError traduce la taxonomía de errores del ledger a HTTP.
func writeError(c *fiber.Ctx, err error) error {
	var insufficient *domain.InsufficientStockError
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusConflict).JSON(dto.InsufficientStockResponse{
			ErrorResponse: dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente"},
			ItemID:        insufficient.ItemID,
			WarehouseID:   insufficient.WarehouseID,
			Available:     insufficient.Available,
			Requested:     insufficient.Requested,
			Shortfall:     insufficient.Shortfall(),
		})
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: invalid.Reason, Field: invalid.Field})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrLockTimeout):
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "LOCK_TIMEOUT", Message: "posición ocupada, no se aplicó ningún cambio; reintente", Retryable: true})
	case errors.Is(err, domain.ErrUnknownReference):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "UNKNOWN_REFERENCE", Message: "item o bodega inexistente"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno; confirme la posición actual antes de reintentar"})
}
