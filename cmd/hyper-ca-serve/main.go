// hyper-ca-serve runs a headless lattice simulation and streams sparse state
// snapshots to websocket clients. Clients may send control messages to change
// rules, reseed, or pause; the full record they receive is
// {dimension, size, generation, rules, livingCellIndices}.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"hyper-ca/internal/app"
	"hyper-ca/internal/compute"
	"hyper-ca/internal/core"
	"hyper-ca/internal/engine"
	"hyper-ca/internal/patterns"
	"hyper-ca/internal/snapshot"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// controlMessage is the inbound client command shape. Absent fields leave
// the corresponding setting untouched.
type controlMessage struct {
	Rules   *core.Rule `json:"rules,omitempty"`
	Density *float64   `json:"density,omitempty"`
	Pattern string     `json:"pattern,omitempty"`
	Paused  *bool      `json:"paused,omitempty"`
}

type server struct {
	mu      sync.Mutex
	eng     *engine.Engine
	paused  bool
	density float64
	seed    int64

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	logger *slog.Logger
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	s.clientsMu.Lock()
	s.clients[conn] = connMu
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()
	s.logger.Info("client connected", "remote", conn.RemoteAddr())

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.logger.Info("client disconnected", "remote", conn.RemoteAddr(), "error", err)
			return
		}
		if err := s.apply(msg); err != nil {
			s.logger.Warn("control message rejected", "error", err)
		}
	}
}

// apply mutates the simulation under the engine lock.
func (s *server) apply(msg controlMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Paused != nil {
		s.paused = *msg.Paused
	}
	if msg.Rules != nil {
		if err := s.eng.UpdateRules(*msg.Rules); err != nil {
			return err
		}
		s.logger.Info("rules updated", "rules", *msg.Rules)
	}
	if msg.Pattern != "" {
		p, ok := patterns.Get(msg.Pattern)
		if !ok {
			s.logger.Warn("unknown pattern", "pattern", msg.Pattern, "known", patterns.Names())
			return nil
		}
		return s.eng.Seed(p(s.eng.Lattice()))
	}
	if msg.Density != nil {
		s.density = *msg.Density
		s.seed = time.Now().UnixNano()
		return s.eng.SeedRandom(s.density, s.seed)
	}
	return nil
}

// tick advances one generation (unless paused) and captures a snapshot.
func (s *server) tick() (snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		if err := s.eng.Step(); err != nil {
			return snapshot.Snapshot{}, err
		}
	}
	cells, err := s.eng.State()
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.Capture(s.eng.Lattice(), s.eng.Generation(), s.eng.Rule(), cells), nil
}

func (s *server) broadcast(snap snapshot.Snapshot) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for conn, connMu := range s.clients {
		connMu.Lock()
		if err := conn.WriteJSON(snap); err != nil {
			s.logger.Warn("broadcast failed", "remote", conn.RemoteAddr(), "error", err)
		}
		connMu.Unlock()
	}
}

func (s *server) run(tps int) {
	ticker := time.NewTicker(time.Second / time.Duration(tps))
	defer ticker.Stop()
	for range ticker.C {
		snap, err := s.tick()
		if err != nil {
			s.logger.Error("simulation tick failed", "error", err)
			os.Exit(1)
		}
		s.broadcast(snap)
	}
}

func main() {
	cfg := app.NewConfig()
	cfg.Bind(flag.CommandLine)
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	compute.SetLogger(logger)

	backend, err := compute.Open(cfg.Backend)
	if err != nil {
		logger.Error("no compute backend", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	eng, err := engine.New(backend, cfg.Dim, cfg.Extent(), core.DefaultRule(cfg.Dim))
	if err != nil {
		logger.Error("engine construction failed", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	s := &server{
		eng:     eng,
		density: cfg.Density,
		seed:    cfg.Seed,
		clients: make(map[*websocket.Conn]*sync.Mutex),
		logger:  logger,
	}
	if p, ok := patterns.Get(cfg.Pattern); ok {
		err = eng.Seed(p(eng.Lattice()))
	} else {
		err = eng.SeedRandom(cfg.Density, cfg.Seed)
	}
	if err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	go s.run(cfg.TPS)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Info("serving",
		"addr", *addr,
		"dim", cfg.Dim,
		"size", cfg.Extent(),
		"backend", backend.Name())
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
