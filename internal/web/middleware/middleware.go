// Package middleware carries the cross-cutting gin handlers of the
// web API.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"growrack/internal/logging"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (int64, error)
}

// Manager builds the middleware chain from its dependencies.
type Manager struct {
	auth TokenVerifier
}

func NewManager(auth TokenVerifier) *Manager {
	return &Manager{auth: auth}
}

// RequestLogger emits one structured line per request.
func RequestLogger() gin.HandlerFunc {
	log := logging.WithComponent("web")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
