// Package adminserver runs the operational side-channel a simulator
// node exposes separately from the public API: liveness/readiness
// probes, Prometheus scraping, and pprof profiling. Grounded on
// internal/kitchen/transport/http/handlers.go's
// Handler+RegisterRoutes(*mux.Router) shape.
package adminserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/htbsim/htbsim/internal/logging"
)

// ReadinessCheck reports whether the node is ready to accept traffic
// (e.g. its Store connection is reachable).
type ReadinessCheck func(ctx context.Context) error

// Handler serves the admin endpoints.
type Handler struct {
	router    *mux.Router
	logger    *logging.Logger
	readiness ReadinessCheck
}

// NewHandler builds a Handler with routes registered. readiness may be
// nil, in which case /readyz always reports ready. gatherer may be nil,
// in which case /metrics serves prometheus.DefaultGatherer — real
// deployments pass the api.Server's metrics.Registry so /metrics
// reflects the leaf-labeled collectors the running simulations feed.
func NewHandler(logger *logging.Logger, readiness ReadinessCheck, gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &Handler{
		router:    mux.NewRouter(),
		logger:    logger,
		readiness: readiness,
	}
	h.registerRoutes(gatherer)
	return h
}

func (h *Handler) registerRoutes(gatherer prometheus.Gatherer) {
	h.router.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	h.router.HandleFunc("/readyz", h.handleReadyz).Methods(http.MethodGet)
	h.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	h.router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	h.router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	h.router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	h.router.HandleFunc("/debug/pprof/trace", pprof.Trace)
	// Registered last: the prefix serves the index and every named
	// profile (heap, goroutine, ...) not matched above.
	h.router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	if err := h.readiness(r.Context()); err != nil {
		h.logger.Sugar().Warnw("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler { return h.router }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
