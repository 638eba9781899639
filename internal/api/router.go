package api

import (
	"github.com/SIMPLYBOYS/pay_usdc/internal/websocket"
	"github.com/gin-gonic/gin"
)

// SetupRouter initializes the Gin router and sets up the routes
func SetupRouter(h *Handler, wsManager *websocket.WebSocketManager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), ErrorMiddleware())

	r.GET("/healthz", h.Health)

	r.POST("/quote", h.Quote)

	r.POST("/batches", h.SendBatch)
	r.GET("/batches/:id", h.GetBatch)
	r.POST("/lists/:id/send", h.SendList)

	if wsManager != nil {
		r.GET("/ws", func(c *gin.Context) {
			wsManager.HandleWebSocket(c.Writer, c.Request)
		})
	}

	return r
}
