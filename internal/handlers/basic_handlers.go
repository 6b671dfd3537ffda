package handlers

import (
	"net/http"

	"cashier-backend/internal/db"
	"cashier-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// HealthCheckHandler liveness probe
// GET /health
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "cashier-backend",
		"api":     "healthy",
	})
}

// DatabaseHealthCheckHandler readiness probe for the audit database
// GET /health/db
func DatabaseHealthCheckHandler(c *gin.Context) {
	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// WebSocketHandler upgrades /ws connections into pending-set subscribers.
type WebSocketHandler struct {
	push *services.PendingPushService
}

// NewWebSocketHandler creates the WebSocket handler.
func NewWebSocketHandler(push *services.PendingPushService) *WebSocketHandler {
	return &WebSocketHandler{push: push}
}

// HandleWebSocket GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.push.HandleWebSocket(c.Writer, c.Request)
}

// ConnectionCountHandler GET /ws/stats
func (h *WebSocketHandler) ConnectionCountHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"connections": h.push.ConnectionCount(),
	})
}
