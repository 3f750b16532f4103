// Package api exposes the simulator over HTTP: start a run, poll its
// status, fetch the topology it was built from, and stream its
// per-tick state live over a WebSocket. Grounded on
// pkg/redis-mcp/server.go's gin server shape.
package api

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/htbsim/htbsim/internal/events"
	"github.com/htbsim/htbsim/internal/logging"
	"github.com/htbsim/htbsim/internal/metrics"
	"github.com/htbsim/htbsim/internal/store"
)

// Server wires the HTTP routes to a Store, a Publisher, and an auth
// configuration.
type Server struct {
	router    *gin.Engine
	store     store.Store
	publisher events.Publisher
	logger    *logging.Logger
	auth      *Authenticator
	streams   *streamHub
	metrics   *metrics.Registry
}

// Config controls the server's auth and CORS behavior.
type Config struct {
	JWTSecret       string
	AdminAPIKeyHash string // bcrypt hash, checked by the TOTP-gated delete endpoint
	AdminTOTPSecret string
	CORSOrigins     []string
}

// NewServer builds a Server with routes registered.
func NewServer(cfg Config, st store.Store, publisher events.Publisher, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:    router,
		store:     st,
		publisher: publisher,
		logger:    logger,
		auth:      NewAuthenticator(cfg.JWTSecret, cfg.AdminAPIKeyHash, cfg.AdminTOTPSecret),
		streams:   newStreamHub(),
		metrics:   metrics.NewRegistry(),
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   corsOriginsOrWildcard(cfg.CORSOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	router.Use(func(c *gin.Context) {
		corsHandler.HandlerFunc(c.Writer, c.Request)
		c.Next()
	})

	s.routes()
	return s
}

func corsOriginsOrWildcard(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (s *Server) routes() {
	v1 := s.router.Group("/v1")
	v1.Use(s.auth.RequireBearer())
	{
		v1.POST("/simulations", s.handleCreateSimulation)
		v1.GET("/simulations/:id", s.handleGetSimulation)
		v1.GET("/simulations/:id/topology", s.handleGetTopology)
		v1.GET("/simulations/:id/stream", s.handleStream)
		v1.DELETE("/simulations/:id", s.auth.RequireAdminTOTP(), s.handleDeleteSimulation)
	}
}

// Handler returns the underlying http.Handler for use with net/http.Server.
func (s *Server) Handler() http.Handler { return s.router }

// SetAdminTOTPSecret rotates the admin TOTP secret in place, for a
// config hot-reload.
func (s *Server) SetAdminTOTPSecret(secret string) {
	s.auth.SetAdminTOTPSecret(secret)
}

// MetricsGatherer exposes the server's shared metrics registry so
// cmd/htbsim/commands/serve.go can mount it on the admin server's
// /metrics endpoint, alongside the public API.
func (s *Server) MetricsGatherer() prometheus.Gatherer {
	return s.metrics.Gatherer()
}

// newRNG returns a time-seeded RNG for one run. The simulator's
// internal accounting is deterministic given a seed; only which seed
// a fresh HTTP-triggered run gets is nondeterministic.
func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
