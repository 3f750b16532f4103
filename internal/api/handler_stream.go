package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleStream upgrades to a WebSocket and relays TickEvents for the
// named run until it completes or the client disconnects.
func (s *Server) handleStream(c *gin.Context) {
	runID := c.Param("id")

	ch, ok := s.streams.subscribe(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	defer s.streams.unsubscribe(runID, ch)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Sugar().Warnw("websocket upgrade failed", "run_id", runID, "error", err)
		return
	}
	defer conn.Close()

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}
