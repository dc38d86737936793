// Package web runs the HTTP API: account and rack management, rule
// CRUD, telemetry reads, the realtime websocket endpoint, and the
// operational endpoints.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"growrack/auth"
	"growrack/internal/cache"
	"growrack/internal/db"
	"growrack/internal/logging"
	"growrack/internal/mqtt"
	"growrack/internal/realtime"
	"growrack/internal/web/api"
	"growrack/internal/web/middleware"
)

// Broker is the connector surface the health endpoint reports on.
type Broker interface {
	api.CommandPublisher
	Snapshot() mqtt.Snapshot
}

// Deps carries everything the server serves from.
type Deps struct {
	DB     *db.DB
	Cache  *cache.Cache
	Auth   *auth.Service
	Hub    *realtime.Hub
	Broker Broker
}

// Server owns the HTTP listener.
type Server struct {
	log  zerolog.Logger
	http *http.Server
}

// NewServer builds the router and binds all routes.
func NewServer(port int, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())

	m := middleware.NewManager(deps.Auth)

	api.RegisterAuthRoutes(router, deps.Auth)
	api.RegisterUserRoutes(router, m, deps.Auth, deps.DB)
	api.RegisterRackRoutes(router, m, deps.DB, deps.Cache, deps.Broker)
	api.RegisterPlantRoutes(router, m, deps.DB)
	api.RegisterRuleRoutes(router, m, deps.DB)
	api.RegisterNotificationRoutes(router, m, deps.DB)

	router.GET("/ws", deps.Hub.HandleWS)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", healthHandler(deps))

	return &Server{
		log: logging.WithComponent("web"),
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("http server stopping")
	return s.http.Shutdown(ctx)
}

// healthHandler reports the liveness of every dependency. Any failed
// dependency turns the response into a 503 while still listing the
// healthy ones.
func healthHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		healthy := true
		dbStatus := "ok"
		if err := deps.DB.Pool().Ping(ctx); err != nil {
			dbStatus = "unreachable"
			healthy = false
		}
		cacheStatus := "ok"
		if err := deps.Cache.Ping(ctx); err != nil {
			cacheStatus = "unreachable"
			healthy = false
		}

		broker := deps.Broker.Snapshot()
		if broker.State != "connected" {
			healthy = false
		}

		status := http.StatusOK
		overall := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		c.JSON(status, gin.H{
			"status":     overall,
			"database":   dbStatus,
			"cache":      cacheStatus,
			"broker":     broker,
			"ws_clients": deps.Hub.ClientCount(),
		})
	}
}
