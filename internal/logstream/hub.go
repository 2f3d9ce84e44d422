package logstream

import (
	"sync"
	"time"
)

// Event is one progress update or log line of a deployment. Percent is the
// latest progress at the time of the event, also on log lines.
type Event struct {
	DeploymentID string    `json:"deploymentId"`
	Percent      int       `json:"percent"`
	Step         string    `json:"step,omitempty"`
	Phase        string    `json:"phase,omitempty"`
	Status       string    `json:"status"`
	Line         string    `json:"line,omitempty"`
	Time         time.Time `json:"time"`
}

// Hub is a pub/sub hub for deployment events.
// Subscribers receive events on a buffered channel; slow consumers
// have events dropped rather than blocking the orchestrator.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives events for the given deployment,
// and an unsubscribe function. The channel is buffered (64 events).
func (h *Hub) Subscribe(deploymentID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	if h.subs[deploymentID] == nil {
		h.subs[deploymentID] = make(map[chan Event]struct{})
	}
	h.subs[deploymentID][ch] = struct{}{}
	h.mu.Unlock()

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[deploymentID][ch]; !ok {
			return // already closed by Close
		}
		delete(h.subs[deploymentID], ch)
		if len(h.subs[deploymentID]) == 0 {
			delete(h.subs, deploymentID)
		}
	}
	return ch, unsub
}

// Publish sends an event to all subscribers for the given deployment.
// Non-blocking: drops events for slow consumers.
func (h *Hub) Publish(deploymentID string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[deploymentID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels for the given deployment,
// signaling that it has finished.
func (h *Hub) Close(deploymentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[deploymentID] {
		close(ch)
	}
	delete(h.subs, deploymentID)
}

func (h *Hub) Subscribers(deploymentID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[deploymentID])
}
