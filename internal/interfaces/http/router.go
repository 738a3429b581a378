package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/realtime"
	"github.com/rs/zerolog"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger      *inventory.LedgerService
	Hub         *realtime.Hub
	JWTSecret   string
	JWTRequired bool
	Logger      zerolog.Logger
}

// Router registra las rutas de la API y del canal en vivo.
func Router(app *fiber.App, deps RouterDeps) {
	auth := AuthMiddleware(deps.JWTSecret, deps.JWTRequired)

	inv := app.Group("/api/inventory", auth)
	inventoryHandler := NewInventoryHandler(deps.Ledger)
	inv.Post("/movements", inventoryHandler.RegisterMovement)
	inv.Get("/movements", inventoryHandler.ListMovements)
	inv.Post("/receipts", inventoryHandler.RecordReceipt)
	inv.Post("/issues", inventoryHandler.RecordIssue)
	inv.Post("/transfers", inventoryHandler.Transfer)
	inv.Post("/adjustments", inventoryHandler.Adjust)
	inv.Get("/positions/:item_id", inventoryHandler.GetPositions)
	inv.Get("/positions/:item_id/:warehouse_id", inventoryHandler.GetPosition)
	inv.Get("/positions/:item_id/:warehouse_id/audit", inventoryHandler.Audit)
	inv.Get("/positions/:item_id/:warehouse_id/valuation", inventoryHandler.Valuation)

	realtimeHandler := NewRealtimeHandler(deps.Hub, deps.Logger)
	app.Get("/ws/stock", auth, realtimeHandler.RequireUpgrade, realtimeHandler.Subscribe())
}
