package eventstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Server serves a single websocket endpoint, "/events", that streams the
// Broadcaster's events to every connected client as JSON text frames.
// Lifecycle mirrors the teacher's healthcheck server: ListenAndServe in a
// background goroutine, Shutdown bounded by a timeout.
type Server struct {
	logger      *slog.Logger
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	httpServer  *http.Server
}

// NewServer builds a Server that will listen on addr and stream events
// published to b. A nil logger falls back to slog.Default().
func NewServer(addr string, b *Broadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:      logger,
		broadcaster: b,
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Start runs the server in a background goroutine. It does not block.
func (s *Server) Start() {
	go func() {
		s.logger.Info("eventstream server starting", "address", "ws://"+s.httpServer.Addr+"/events")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("eventstream server failed unexpectedly", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server, giving in-flight connections up
// to 5 seconds to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("eventstream: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("eventstream: websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.broadcaster.subscribe()
	defer unsubscribe()

	s.logger.Debug("eventstream: client connected", "remote_addr", r.RemoteAddr)

	for ev := range ch {
		payload, err := ev.marshal()
		if err != nil {
			s.logger.Error("eventstream: marshal event", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.logger.Debug("eventstream: client write failed, disconnecting", "error", err, "remote_addr", r.RemoteAddr)
			return
		}
	}
}
