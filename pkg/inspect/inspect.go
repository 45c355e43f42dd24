// Package inspect serves a live view of a running reactivity graph for
// development tooling: a JSON snapshot of the engine counters and a
// WebSocket stream of engine events (effect runs, triggers, scope
// teardowns).
//
// The server is an http.Handler, so it mounts in any router; attach its
// Observer to the engine to start the event flow:
//
//	srv := inspect.New()
//	strand.SetObserver(srv.Observer())
//	http.ListenAndServe(":6060", srv.Handler())
package inspect

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/strand-dev/strand/pkg/strand"
)

// Event is one engine event as framed to inspector clients.
type Event struct {
	// Kind is one of run_start, run_finish, trigger, owner_stop.
	Kind string `json:"kind"`

	// EffectID identifies the effect for run and trigger events.
	EffectID uint64 `json:"effect_id,omitempty"`

	// OwnerID identifies the scope for owner_stop events.
	OwnerID uint64 `json:"owner_id,omitempty"`

	// Op and Key describe the operation behind a trigger.
	Op  string `json:"op,omitempty"`
	Key string `json:"key,omitempty"`

	// Dirty is the effect's dirty level after a run.
	Dirty string `json:"dirty,omitempty"`

	// Time is the event timestamp in unix milliseconds.
	Time int64 `json:"time"`
}

// Config configures the inspector server.
type Config struct {
	// Logger receives connection lifecycle logs (default: slog.Default()).
	Logger *slog.Logger

	// SendBuffer is the per-client event buffer; events beyond it are
	// dropped rather than blocking the engine (default: 256).
	SendBuffer int

	// WriteTimeout bounds each WebSocket write (default: 10s).
	WriteTimeout time.Duration
}

// Option configures New.
type Option func(*Config)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithSendBuffer sets the per-client event buffer size.
func WithSendBuffer(n int) Option {
	return func(c *Config) {
		c.SendBuffer = n
	}
}

// WithWriteTimeout sets the per-write deadline for event frames.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = d
	}
}

// Server is the inspector: an HTTP handler plus the engine observer that
// feeds it.
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	clients  mapset.Set[*client]
}

// client is one connected inspector.
type client struct {
	conn *websocket.Conn
	send chan Event
}

// New creates an inspector server.
func New(opts ...Option) *Server {
	config := Config{
		Logger:       slog.Default(),
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			// The inspector is a dev tool; same-origin policy is left
			// to the embedding server.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: mapset.NewSet[*client](),
	}
}

// Handler returns the inspector's routes for mounting in an external router:
//
//	GET /stats   engine counter snapshot as JSON
//	GET /events  WebSocket stream of engine events
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/stats", s.handleStats)
	r.Get("/events", s.handleEvents)
	return r
}

// ListenAndServe runs the inspector on addr. It blocks like
// http.ListenAndServe.
func (s *Server) ListenAndServe(addr string) error {
	s.config.Logger.Info("inspector listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Observer returns the engine tap feeding this server. Install it with
// strand.SetObserver, or combine it with other observers via
// strand.CombineObservers.
func (s *Server) Observer() strand.Observer {
	return (*serverObserver)(s)
}

// ClientCount returns the number of connected inspector clients.
func (s *Server) ClientCount() int {
	return s.clients.Cardinality()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(strand.Stats()); err != nil {
		s.config.Logger.Error("stats encode error", "error", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.Logger.Error("websocket upgrade error", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Event, s.config.SendBuffer),
	}
	s.clients.Add(c)
	s.config.Logger.Info("inspector client connected", "remote", conn.RemoteAddr())

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop discards inbound frames and detects the close.
func (s *Server) readLoop(c *client) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				s.config.Logger.Error("inspector read error", "error", err)
			}
			return
		}
	}
}

// writeLoop flushes the client's event buffer to the socket.
func (s *Server) writeLoop(c *client) {
	defer s.drop(c)
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// drop disconnects a client. Safe to call from both loops.
func (s *Server) drop(c *client) {
	if s.clients.Contains(c) {
		s.clients.Remove(c)
		c.conn.Close()
		s.config.Logger.Info("inspector client disconnected", "remote", c.conn.RemoteAddr())
	}
}

// broadcast fans an event to every connected client, dropping it for
// clients whose buffer is full: the engine never blocks on the inspector.
func (s *Server) broadcast(ev Event) {
	ev.Time = time.Now().UnixMilli()
	s.clients.Each(func(c *client) bool {
		select {
		case c.send <- ev:
		default:
		}
		return false
	})
}

// serverObserver adapts Server to strand.Observer.
type serverObserver Server

func (o *serverObserver) server() *Server { return (*Server)(o) }

func (o *serverObserver) EffectRunStarted(e *strand.Effect) {
	o.server().broadcast(Event{Kind: "run_start", EffectID: e.ID()})
}

func (o *serverObserver) EffectRunFinished(e *strand.Effect) {
	o.server().broadcast(Event{
		Kind:     "run_finish",
		EffectID: e.ID(),
		Dirty:    e.DirtyLevel().String(),
	})
}

func (o *serverObserver) Triggered(ev strand.DebugEvent) {
	event := Event{Kind: "trigger", Op: ev.Type.String()}
	if ev.Effect != nil {
		event.EffectID = ev.Effect.ID()
	}
	if ev.Key != nil {
		event.Key = fmt.Sprintf("%v", ev.Key)
	}
	o.server().broadcast(event)
}

func (o *serverObserver) OwnerStopped(owner *strand.Owner) {
	o.server().broadcast(Event{Kind: "owner_stop", OwnerID: owner.ID()})
}
