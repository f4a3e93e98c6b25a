// Package diagnostics implements the Diagnostics Server: an optional
// HTTP+WebSocket endpoint exposing a live view of running Source
// Workers and emitted messages.
//
// Grounded on the teacher's internal/dashboard/server.go (an
// http.Server wrapping a github.com/gorilla/websocket upgrader that
// fans a single event stream out to many browser connections). The
// Python original has no equivalent of this; it is a supplemented
// feature per spec §4.10 — disabled entirely when [main].diagnostics_addr
// is empty.
package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/schlitzer/pylogchop/pkg/types"
)

// Source wires the Supervisor's read-only view into the server
// without diagnostics importing the supervisor package back.
type Source interface {
	Snapshots() []Snapshot
	QueueDepth() int
}

// Snapshot mirrors supervisor.Snapshot; duplicated here to keep this
// package's only dependency on its caller a narrow interface.
type Snapshot struct {
	Section         string `json:"section"`
	FilePath        string `json:"file_path"`
	MessagesEmitted int64  `json:"messages_emitted"`
}

// event is one message pushed to every connected websocket client.
type event struct {
	Type    string            `json:"type"`
	Emitted *types.QueueMessage `json:"emitted,omitempty"`
	State   []Snapshot        `json:"state,omitempty"`
	Queue   int               `json:"queue_depth,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server serves /ws (live event stream) and /state (point-in-time
// JSON snapshot) over addr. It never blocks the Dispatcher: OnEmit
// fan-out to slow/disconnected clients drops events rather than
// backing up.
type Server struct {
	addr   string
	source Source
	log    *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan event

	httpServer *http.Server
}

// New returns nil if addr is empty — the documented "disabled" state.
func New(addr string, source Source, log *zap.SugaredLogger) *Server {
	if addr == "" {
		return nil
	}
	return &Server{
		addr:    addr,
		source:  source,
		log:     log,
		clients: make(map[*websocket.Conn]chan event),
	}
}

// Emit is the Dispatcher.OnEmit callback: fan one emitted message out
// to every connected client.
func (s *Server) Emit(msg types.QueueMessage) {
	s.broadcast(event{Type: "emit", Emitted: &msg})
}

// Changed is the Supervisor.OnWorkersChanged callback: push a fresh
// worker-state snapshot to every connected client.
func (s *Server) Changed() {
	s.broadcast(event{Type: "state", State: s.source.Snapshots(), Queue: s.source.QueueDepth()})
}

func (s *Server) broadcast(ev event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- ev:
		default:
			s.log.Warnw("diagnostics: client too slow, dropping event", "remote", conn.RemoteAddr())
		}
	}
}

// Start launches the HTTP listener in a new goroutine. Stop must be
// called to shut it down cleanly.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/state", s.handleState)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("diagnostics: server stopped", "error", err)
		}
	}()
	s.log.Infow("diagnostics: listening", "addr", s.addr)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(ctx)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(event{
		Type:  "state",
		State: s.source.Snapshots(),
		Queue: s.source.QueueDepth(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("diagnostics: websocket upgrade failed", "error", err)
		return
	}

	ch := make(chan event, 32)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// initial snapshot so a freshly-connected client has state
	// immediately, without waiting for the next change.
	initial := event{Type: "state", State: s.source.Snapshots(), Queue: s.source.QueueDepth()}
	if err := conn.WriteJSON(initial); err != nil {
		return
	}

	// drain client->server control frames (pings, close) in the
	// background; this connection never expects inbound data frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-ch:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
