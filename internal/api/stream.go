package api

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/htbsim/htbsim/internal/events"
	"github.com/htbsim/htbsim/internal/scheduler"
	"github.com/htbsim/htbsim/internal/shaper"
)

// streamHub fans out each run's per-tick leaf state to any number of
// subscribed WebSocket clients. Grounded on
// internal/kitchen/transport/websocket/server.go's
// clients-map-plus-broadcast-channel shape, simplified to one
// broadcast channel per run instead of one global hub.
type streamHub struct {
	mu    sync.Mutex
	runs  map[string]*runStream
}

type runStream struct {
	mu      sync.Mutex
	clients map[chan events.TickEvent]struct{}
	closed  bool
}

func newStreamHub() *streamHub {
	return &streamHub{runs: make(map[string]*runStream)}
}

// reserve allocates a fresh run ID and its stream bookkeeping.
func (h *streamHub) reserve() string {
	runID := uuid.NewString()
	h.mu.Lock()
	h.runs[runID] = &runStream{clients: make(map[chan events.TickEvent]struct{})}
	h.mu.Unlock()
	return runID
}

// observer returns a scheduler.TickObserver that fans out ticks for
// runID to every currently subscribed client.
func (h *streamHub) observer(runID string) scheduler.TickObserver {
	return tickFanout{hub: h, runID: runID}
}

type tickFanout struct {
	hub   *streamHub
	runID string
}

func (f tickFanout) OnTick(now float64, shapers []scheduler.Shaper) {
	f.hub.mu.Lock()
	rs, ok := f.hub.runs[f.runID]
	f.hub.mu.Unlock()
	if !ok {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.closed {
		return
	}
	for _, s := range shapers {
		leaf, ok := s.(*shaper.Leaf)
		if !ok {
			continue
		}
		event := events.TickEvent{
			RunID:       f.runID,
			Now:         now,
			Shaper:      leaf.Name(),
			State:       leaf.State.String(),
			Tokens:      leaf.Tokens,
			CTokens:     leaf.CTokens,
			QueueDepth:  leaf.Source.Len(),
			BytesSent:   leaf.BytesSent,
			PacketsSent: leaf.PacketsSent,
		}
		for ch := range rs.clients {
			select {
			case ch <- event:
			default: // slow client drops a tick rather than stalling the sim
			}
		}
	}
}

func (h *streamHub) subscribe(runID string) (chan events.TickEvent, bool) {
	h.mu.Lock()
	rs, ok := h.runs[runID]
	h.mu.Unlock()
	if !ok {
		return nil, false
	}

	ch := make(chan events.TickEvent, 64)
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		close(ch)
		return ch, true
	}
	rs.clients[ch] = struct{}{}
	rs.mu.Unlock()
	return ch, true
}

func (h *streamHub) unsubscribe(runID string, ch chan events.TickEvent) {
	h.mu.Lock()
	rs, ok := h.runs[runID]
	h.mu.Unlock()
	if !ok {
		return
	}
	rs.mu.Lock()
	delete(rs.clients, ch)
	rs.mu.Unlock()
}

// close marks a run's stream finished: no further ticks will arrive,
// and every subscribed client's channel is closed.
func (h *streamHub) close(runID string) {
	h.mu.Lock()
	rs, ok := h.runs[runID]
	h.mu.Unlock()
	if !ok {
		return
	}
	rs.mu.Lock()
	rs.closed = true
	for ch := range rs.clients {
		close(ch)
	}
	rs.clients = make(map[chan events.TickEvent]struct{})
	rs.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
