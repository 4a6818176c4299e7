package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/services"
)

// WebSocketHandler handles WebSocket connections
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := caller(c)
		hub.HandleWebSocket(c.Writer, c.Request, u.UserID, u.Role)
	}
}
