// Package transport wires the coordinator to the outside world: a gin
// router exposing the websocket upgrade endpoints, health and metrics
// probes, and CORS/recovery middleware, the way the teacher backend's
// internal/v1/transport package wires its Hub into cmd/v1/session/main.go.
package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/upperlevel/carcassonne-server/internal/coordinator"
	"github.com/upperlevel/carcassonne-server/internal/logging"
	"github.com/upperlevel/carcassonne-server/internal/ratelimit"
	"github.com/upperlevel/carcassonne-server/internal/session"
)

// primaryPath is the single websocket endpoint new clients should use.
// legacyPath is kept for deployments that haven't migrated off the old
// matchmaking URL; it enforces username uniqueness the primary path does
// not (see SPEC_FULL.md's supplemented features).
const (
	primaryPath = "/ws"
	legacyPath  = "/api/matchmaking"
)

// Coordinator is the subset of *coordinator.Coordinator the router needs.
type Coordinator interface {
	Submit(req coordinator.Request)
}

// Router assembles the HTTP surface in front of a Coordinator.
type Router struct {
	coord          Coordinator
	limiter        *ratelimit.Limiter
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewRouter builds a Router. limiter may be nil to disable rate limiting
// (tests, local development).
func NewRouter(coord Coordinator, limiter *ratelimit.Limiter, allowedOrigins []string) *Router {
	return &Router{
		coord:          coord,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return validateOrigin(r, allowedOrigins) == nil
			},
			WriteBufferPool: &sync.Pool{
				New: func() any { return make([]byte, 4096) },
			},
		},
	}
}

// Engine builds the gin engine: CORS, recovery, tracing, the two websocket
// endpoints, and the operational endpoints (/healthz, /metrics).
func (rt *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("carcassonne-coordinator"))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = rt.allowedOrigins
	engine.Use(cors.New(corsConfig))

	engine.GET(primaryPath, rt.serveWs(false))
	engine.GET(legacyPath, rt.serveWs(true))

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return engine
}

// serveWs returns the gin handler for one of the two upgrade endpoints.
// legacy marks connections accepted on /api/matchmaking, which enforce
// username uniqueness on every JoinRoom/FindRoom regardless of the
// process-wide ENFORCE_NAME_UNIQUENESS default (SPEC_FULL.md's supplemented
// features); the primary endpoint defers entirely to that default.
func (rt *Router) serveWs(legacy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rt.limiter != nil && !rt.limiter.Allow(c.Request.Context(), c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		conn, err := rt.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logging.Warn(c.Request.Context(), "transport: websocket upgrade failed", zap.Error(err))
			return
		}

		// The gin/http request context is cancelled as soon as this handler
		// returns, which happens immediately after a successful upgrade; the
		// session's own lifetime is governed by its connection and
		// heartbeat, not by the HTTP request that established it.
		sess := session.New(conn, rt.coord, legacy)
		go sess.Run(context.Background())
	}
}
