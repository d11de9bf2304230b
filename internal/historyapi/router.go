// Package historyapi exposes a store.Store over the chat history REST API.
package historyapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter wires the history handlers under /api/chat.
func NewRouter(log zerolog.Logger, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(loggerMiddleware(log), gin.Recovery(), jsonContentTypeMiddleware())

	chat := r.Group("/api/chat")
	chat.POST("/save", h.Save)
	chat.GET("/latest", h.Latest)
	chat.GET("/all", h.All)
	chat.GET("/health", h.Health)

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "not found")
	})
	return r
}

func loggerMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
