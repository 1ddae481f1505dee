package handler

import (
	"go-inventory-insights/internal/middleware"
	"go-inventory-insights/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Upgrade rejects plain HTTP requests. Locals set by the auth middleware stay
// readable on the upgraded connection.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}
	return c.Next()
}

// Serve joins the connection to its room and blocks until the peer goes away.
// Incoming frames are read only to detect the close.
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		storeID, _ := conn.Locals(middleware.LocalStoreID).(uuid.UUID)
		role, _ := conn.Locals(middleware.LocalRole).(string)

		client := h.hub.Join(conn, storeID, role)
		log.Debug().Str("client", client.ID.String()).Str("room", client.Room).Msg("ws client joined")
		defer h.hub.Leave(client)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
