// Package stream broadcasts live particle frames to browser clients over
// websockets.
//
// Every frame is a binary message. In positions mode (the default) it
// holds the x block then the y block as little-endian float32; in flat
// mode it holds the whole flat buffer. Clients steer the stream with
// JSON text messages such as {"mode":"flat"}, {"paused":true} or
// {"reset":true}; each is answered with a JSON status message.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/sph"
)

type Mode string

const (
	ModePositions Mode = "positions"
	ModeFlat      Mode = "flat"
)

const writeTimeout = 2 * time.Second

// Control is a client request; unset fields are left alone.
type Control struct {
	Mode   Mode  `json:"mode,omitempty"`
	Paused *bool `json:"paused,omitempty"`
	Reset  bool  `json:"reset,omitempty"`
}

type Status struct {
	Mode      Mode   `json:"mode"`
	Paused    bool   `json:"paused"`
	Particles int    `json:"particles"`
	Steps     int    `json:"steps"`
	Clients   int    `json:"clients"`
	Error     string `json:"error,omitempty"`
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
	mode Mode
}

func (c *client) write(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data)
}

type Server struct {
	// Follow makes Run broadcast only, leaving stepping to whoever else
	// owns the shared state.
	Follow bool

	shared   *sim.Shared
	log      logr.Logger
	interval time.Duration
	paused   atomic.Bool

	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*client

	pool *sim.BufferPool
}

// NewServer streams shared at one frame per interval.
func NewServer(shared *sim.Shared, interval time.Duration, log logr.Logger) *Server {
	var size int
	shared.Read(func(st *sph.State) { size = len(st.Flat()) })

	return &Server{
		shared:   shared,
		pool:     sim.NewBufferPool(size),
		log:      log,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*client),
	}
}

// Handler serves the websocket at /ws and a JSON status at /status.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.status())
	})
	return mux
}

func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) status() Status {
	st := Status{Paused: s.paused.Load(), Clients: s.Clients()}
	s.shared.Read(func(state *sph.State) {
		st.Particles = state.Len()
		st.Steps = state.Steps()
	})
	return st
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error(err, "websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &client{conn: conn, mode: ModePositions}
	s.clientsMu.Lock()
	s.clients[conn] = c
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()
	s.log.V(1).Info("client connected", "remote", r.RemoteAddr)

	if err := s.send(c); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.V(1).Info("client read failed", "remote", r.RemoteAddr, "error", err.Error())
			}
			return
		}

		reply := s.apply(c, data)
		msg, _ := json.Marshal(reply)
		if err := c.write(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) apply(c *client, data []byte) Status {
	var ctl Control
	if err := json.Unmarshal(data, &ctl); err != nil {
		st := s.status()
		st.Error = "invalid control message: " + err.Error()
		return st
	}

	var bad string
	switch ctl.Mode {
	case "":
	case ModePositions, ModeFlat:
		c.mu.Lock()
		c.mode = ctl.Mode
		c.mu.Unlock()
	default:
		bad = "unknown mode " + string(ctl.Mode)
	}
	if ctl.Paused != nil {
		s.paused.Store(*ctl.Paused)
	}
	if ctl.Reset {
		s.shared.Reset()
		if ctl.Paused == nil {
			s.paused.Store(false)
		}
	}

	st := s.status()
	c.mu.Lock()
	st.Mode = c.mode
	c.mu.Unlock()
	st.Error = bad
	return st
}

// frame encodes the current state in mode.
func (s *Server) frame(mode Mode) []byte {
	buf, _ := s.shared.Snapshot(s.pool.Get())
	defer s.pool.Put(buf)

	if mode == ModeFlat {
		return EncodeFlat(make([]byte, 0, 4*len(buf)), buf)
	}
	n := len(buf) / int(sph.NumFields)
	return EncodePositions(make([]byte, 0, 8*n), n, buf)
}

func (s *Server) send(c *client) error {
	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()
	return c.write(websocket.BinaryMessage, s.frame(mode))
}

// Broadcast sends the current frame to every client, dropping clients
// whose writes fail.
func (s *Server) Broadcast() {
	frames := make(map[Mode][]byte, 2)

	s.clientsMu.RLock()
	failed := make([]*websocket.Conn, 0)
	for conn, c := range s.clients {
		c.mu.Lock()
		mode := c.mode
		c.mu.Unlock()

		data, ok := frames[mode]
		if !ok {
			data = s.frame(mode)
			frames[mode] = data
		}
		if err := c.write(websocket.BinaryMessage, data); err != nil {
			s.log.V(1).Info("dropping client", "error", err.Error())
			conn.Close()
			failed = append(failed, conn)
		}
	}
	s.clientsMu.RUnlock()

	if len(failed) > 0 {
		s.clientsMu.Lock()
		for _, conn := range failed {
			delete(s.clients, conn)
		}
		s.clientsMu.Unlock()
	}
}

// Run steps the shared state one frame per interval, unless paused, and
// broadcasts each frame until ctx ends. A diverged state pauses the
// stream until a client resets it.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.Follow && !s.paused.Load() {
				if err := s.shared.Step(); err != nil {
					s.log.Error(err, "simulation diverged, pausing")
					s.paused.Store(true)
				}
			}
			s.Broadcast()
		}
	}
}

// ListenAndServe serves Handler on addr while Run drives the frames.
// It returns once ctx ends or either side fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() { errc <- s.Run(ctx) }()
	go func() { errc <- srv.ListenAndServe() }()

	s.log.Info("streaming", "addr", addr, "interval", s.interval.String())

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	srv.Shutdown(shutdownCtx)

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
