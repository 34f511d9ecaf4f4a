// Package eventstream is an optional observability surface over the
// scheduler: it broadcasts machine-swap, quiescence, and task-completion
// events as JSON frames to connected websocket clients.
//
// Grounded in the teacher's internal/app healthcheck server (an
// http.Server field on a long-lived struct, started in a goroutine,
// stopped with a timeout-bounded Shutdown), generalized from a static
// "OK" responder to a streaming one using github.com/gorilla/websocket.
// Broadcasting is best-effort and non-blocking: a slow or absent client
// never delays the worker that published the event.
package eventstream

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// EventType names the kind of scheduler event being reported.
type EventType string

const (
	EventMachineStarted    EventType = "machine_started"
	EventMachineQuiesced   EventType = "machine_quiesced"
	EventMachineSwapped    EventType = "machine_swapped"
	EventShutdownRequested EventType = "shutdown_requested"
	EventTaskCompleted     EventType = "task_completed"
)

// Event is one JSON frame sent to every connected client.
type Event struct {
	Type      EventType `json:"type"`
	Machine   uint32    `json:"machine,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans out events to any number of connected clients. The
// zero value is not usable; construct with NewBroadcaster.
type Broadcaster struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan Event]struct{}
}

// NewBroadcaster creates an empty Broadcaster. A nil logger falls back to
// slog.Default().
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{logger: logger, clients: make(map[chan Event]struct{})}
}

// Publish sends ev to every currently-connected client. A client whose
// buffer is full is skipped for this event rather than blocking the
// caller — the scheduler's hot path must never wait on a websocket peer.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("eventstream: dropping event for slow client", "type", ev.Type)
		}
	}
}

// subscribe registers a new client channel and returns an unsubscribe
// function the caller must invoke when the connection closes.
func (b *Broadcaster) subscribe() (chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

func (ev Event) marshal() ([]byte, error) {
	return json.Marshal(ev)
}
