// Package admin implements the optional debug HTTP+WebSocket endpoint
// from SPEC_FULL.md §4.10: a /stats JSON snapshot and a /stream
// WebSocket pushing a full stat snapshot every second, grounded in the teacher's
// scm/network.go HTTPServe + gorilla/websocket upgrade pattern.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/launix-de/icache/internal/store"
	"github.com/rs/zerolog"
)

// Snapshot is the JSON shape both /stats and /stream emit.
type Snapshot struct {
	Shards    int     `json:"shards"`
	Keys      uint64  `json:"keys"`
	Dirty     uint64  `json:"dirty"`
	AvgTTLMs  float64 `json:"avg_ttl_ms"`
	Timestamp int64   `json:"timestamp_ms"`
}

func snapshot(st *store.Store) Snapshot {
	var keys, dirty uint64
	var ttlSum float64
	shards := st.AllShards()
	for _, sh := range shards {
		keys += uint64(sh.Count())
		dirty += sh.Dirty()
		ttlSum += sh.AvgTTL()
	}
	avg := 0.0
	if len(shards) > 0 {
		avg = ttlSum / float64(len(shards))
	}
	return Snapshot{Shards: len(shards), Keys: keys, Dirty: dirty, AvgTTLMs: avg, Timestamp: time.Now().UnixMilli()}
}

// Server is the admin HTTP server; config.Config.AdminEnabled gates whether
// main wires it up at all (SPEC_FULL.md §2: "default off").
type Server struct {
	store    *store.Store
	log      zerolog.Logger
	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

func New(addr string, st *store.Store, log zerolog.Logger) *Server {
	s := &Server{store: st, log: log, upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}}
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/stream", s.handleStream)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until Stop closes the listener.
func (s *Server) Run() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error { return s.httpSrv.Close() }

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot(s.store))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("admin: websocket upgrade failed")
		return
	}
	defer conn.Close()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(snapshot(s.store)); err != nil {
			return
		}
	}
}
