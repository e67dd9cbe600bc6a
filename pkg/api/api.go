// Package api is the local HTTP interface: metrics, the current telemetry as
// json and a websocket feed pushing it after every poll.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bsm/openmetrics"
	"github.com/bsm/openmetrics/omhttp"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

// Status is the json document served at /api/telemetry and on /ws.
type Status struct {
	telemetry.Snapshot
	Link     string `json:"link"`
	LinkCode uint8  `json:"linkCode"`
	// LinkQuality is the share of recent successful polls, null before the
	// first poll.
	LinkQuality *float64 `json:"linkQuality"`
}

type Server struct {
	cache   *telemetry.Cache
	quality func() float64

	m       sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// client serializes writes to one websocket connection.
type client struct {
	m    sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(data []byte) error {
	c.m.Lock()
	defer c.m.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// New serves cache. quality may be nil.
func New(cache *telemetry.Cache, quality func() float64) *Server {
	return &Server{
		cache:   cache,
		quality: quality,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "api").Logger(),
	}
}

func (s *Server) status(snap telemetry.Snapshot) Status {
	st := Status{
		Snapshot: snap,
		Link:     snap.Link.String(),
		LinkCode: snap.Link.Code(),
	}
	if s.quality != nil {
		if q := s.quality(); !math.IsNaN(q) {
			st.LinkQuality = &q
		}
	}
	return st
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", omhttp.NewHandler(openmetrics.DefaultRegistry()))
	mux.HandleFunc("/api/telemetry", s.handleTelemetry)
	mux.HandleFunc("/ws", s.handleWebsocket)
	return mux
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status(s.cache.Snapshot())); err != nil {
		s.log.Warn().Err(err).Msg("failed to write telemetry")
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn}

	s.m.Lock()
	s.clients[c] = struct{}{}
	s.m.Unlock()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("websocket client connected")

	if data, err := json.Marshal(s.status(s.cache.Snapshot())); err == nil {
		if err := c.write(data); err != nil {
			s.remove(c)
			return
		}
	}

	// Clients only listen, reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.m.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.m.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.m.RLock()
	defer s.m.RUnlock()
	return len(s.clients)
}

// Broadcast pushes snap to every websocket client. Clients failing the
// write are dropped.
func (s *Server) Broadcast(snap telemetry.Snapshot) {
	s.m.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.m.RUnlock()
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(s.status(snap))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal telemetry")
		return
	}
	for _, c := range clients {
		if err := c.write(data); err != nil {
			s.remove(c)
		}
	}
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
