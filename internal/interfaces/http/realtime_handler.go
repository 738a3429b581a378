package http

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/realtime"
	"github.com/rs/zerolog"
)

const localFilter = "realtime_filter"

// RealtimeHandler expone el hub de cambios de stock por WebSocket.
type RealtimeHandler struct {
	hub *realtime.Hub
	log zerolog.Logger
}

// NewRealtimeHandler construye el handler.
func NewRealtimeHandler(hub *realtime.Hub, log zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, log: log.With().Str("component", "realtime_http").Logger()}
}

// RequireUpgrade rechaza con 426 lo que no sea un handshake WebSocket y guarda el filtro pedido.
func (h *RealtimeHandler) RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(dto.ErrorResponse{Code: "UPGRADE_REQUIRED", Message: "se requiere WebSocket"})
	}
	c.Locals(localFilter, realtime.Filter{
		WarehouseID: c.Query("warehouse_id"),
		ItemID:      c.Query("item_id"),
	})
	return c.Next()
}

// Subscribe GET /ws/stock?warehouse_id=&item_id=
// El servidor solo envía; lo que llega del cliente (mensajes o pongs) cuenta como heartbeat.
func (h *RealtimeHandler) Subscribe() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		filter, _ := conn.Locals(localFilter).(realtime.Filter)
		sub, err := h.hub.Subscribe(conn, filter)
		if err != nil {
			if errors.Is(err, realtime.ErrHubClosed) {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "apagando"))
			} else {
				h.log.Error().Err(err).Msg("registrar suscriptor")
			}
			_ = conn.Close()
			return
		}

		conn.SetPongHandler(func(string) error {
			sub.Touch()
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.log.Debug().Err(err).Str("subscriber_id", sub.ID()).Msg("conexión interrumpida")
				}
				break
			}
			sub.Touch()
		}
		h.hub.Unsubscribe(sub)
		<-sub.Done()
	})
}
