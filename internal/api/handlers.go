package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/htbsim/htbsim/internal/events"
	"github.com/htbsim/htbsim/internal/metrics"
	"github.com/htbsim/htbsim/internal/profile"
	"github.com/htbsim/htbsim/internal/runner"
	"github.com/htbsim/htbsim/internal/scheduler"
	"github.com/htbsim/htbsim/internal/store"
)

// createSimulationRequest is the POST /v1/simulations body: a profile
// tree plus how many seconds of virtual time to simulate.
type createSimulationRequest struct {
	ProfileName string       `json:"profile_name" binding:"required"`
	Profile     profile.Node `json:"profile" binding:"required"`
	DurationSec float64      `json:"duration_seconds" binding:"required,gt=0"`
}

// handleCreateSimulation starts a run in the background and returns
// immediately with a pending run ID: callers poll GET /simulations/:id
// or subscribe to GET /simulations/:id/stream for live per-tick state.
func (s *Server) handleCreateSimulation(c *gin.Context) {
	var req createSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := s.streams.reserve()
	pending := store.RunSummary{
		RunID:       runID,
		ProfileName: req.ProfileName,
		Status:      store.StatusPending,
		StartedAt:   time.Now(),
	}
	if err := s.store.SaveRun(c.Request.Context(), pending); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go s.runInBackground(runID, req)

	c.JSON(http.StatusAccepted, pending)
}

func (s *Server) runInBackground(runID string, req createSimulationRequest) {
	ctx := context.Background()
	_ = s.store.SetStatus(ctx, runID, store.StatusRunning)

	broadcaster := s.streams.observer(runID)
	observers := []scheduler.TickObserver{broadcaster}
	if s.publisher != nil {
		observers = append(observers, &events.TickObserver{RunID: runID, Publisher: s.publisher})
	}
	if s.metrics != nil {
		observers = append(observers, metrics.NewObserver(runID, s.metrics))
	}

	result, err := runner.RunWithID(ctx, runID, runner.Options{
		Profile:     req.Profile,
		Duration:    time.Duration(req.DurationSec * float64(time.Second)),
		ProfileName: req.ProfileName,
		Publisher:   s.publisher,
		Observers:   observers,
	}, newRNG())

	s.streams.close(runID)

	if err != nil {
		s.logger.Sugar().Errorw("run failed", "run_id", runID, "error", err)
		_ = s.store.SetStatus(ctx, runID, store.StatusFailed)
		return
	}

	if err := s.store.SaveRun(ctx, result.Summary); err != nil {
		s.logger.Sugar().Errorw("saving run", "run_id", runID, "error", err)
	}
}

func (s *Server) handleGetSimulation(c *gin.Context) {
	runID := c.Param("id")
	run, ok, err := s.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetTopology(c *gin.Context) {
	runID := c.Param("id")
	run, ok, err := s.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	statsByName := make(map[string]store.LeafSummary, len(run.Leaves))
	for _, l := range run.Leaves {
		statsByName[l.Name] = l
	}

	type topologyLeaf struct {
		store.TopologyNode
		StatsLine       string `json:"stats_line,omitempty"`
		SourceStatsLine string `json:"source_stats_line,omitempty"`
		SinkStatsLine   string `json:"sink_stats_line,omitempty"`
	}

	nodes := make([]topologyLeaf, 0, len(run.Topology))
	for _, n := range run.Topology {
		tl := topologyLeaf{TopologyNode: n}
		if ls, ok := statsByName[n.Name]; ok {
			tl.StatsLine = ls.StatsLine
			tl.SourceStatsLine = ls.SourceStatsLine
			tl.SinkStatsLine = ls.SinkStatsLine
		}
		nodes = append(nodes, tl)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "nodes": nodes})
}

func (s *Server) handleDeleteSimulation(c *gin.Context) {
	runID := c.Param("id")
	if err := s.store.SetStatus(c.Request.Context(), runID, store.RunStatus("deleted")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
