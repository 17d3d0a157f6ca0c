package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"airspace-sim/internal/sim"
	"airspace-sim/internal/uav"
)

const (
	defaultStreamInterval = time.Second
	minStreamInterval     = 50 * time.Millisecond
	writeTimeout          = 5 * time.Second
)

// Server exposes a read-mostly HTTP view of a running simulation.
type Server struct {
	Sim      *sim.Simulator
	log      *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func NewServer(s *sim.Simulator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	srv := &Server{
		Sim: s,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		mux: http.NewServeMux(),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /agents", s.handleAgents)
	s.mux.HandleFunc("GET /agents/{id}", s.handleAgent)
	s.mux.HandleFunc("POST /agents/{id}/speed", s.handleAgentSpeed)
	s.mux.HandleFunc("GET /conflicts", s.handleConflicts)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /flights", s.handleFlights)
	s.mux.HandleFunc("GET /flights/{id}", s.handleFlight)
	s.mux.HandleFunc("GET /density", s.handleDensity)
	s.mux.HandleFunc("GET /summary", s.handleSummary)
	s.mux.HandleFunc("GET /config", s.handleConfig)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("POST /rate", s.handleRate)
	s.mux.HandleFunc("GET /ws", s.handleStream)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()
	s.log.Info("admin api listening", "addr", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	return id, err == nil
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Sim.Snapshot())
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	d, ok := s.Sim.Agent(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAgentSpeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	v, err := strconv.ParseFloat(r.URL.Query().Get("v"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "v must be a number")
		return
	}
	switch err := s.Sim.SetAgentSpeed(id, v); {
	case errors.Is(err, sim.ErrUnknownAgent):
		s.writeError(w, http.StatusNotFound, "agent not found")
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, _ := s.Sim.Agent(id)
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	c := s.Sim.Conflicts()
	if c == nil {
		c = []sim.ConflictView{}
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.Sim.Events(limit))
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	f := s.Sim.Stats().RecentFlights()
	if f == nil {
		f = []uav.FlightRecord{}
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid flight id")
		return
	}
	rec, ok := s.Sim.Stats().Flight(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "flight not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDensity(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Sim.Density().Snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Sim.Summary())
}

// handleConfig returns the running configuration in the same YAML form
// the simulator was started from.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	out, err := yaml.Marshal(s.Sim.GetConfig())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(out)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Sim.Reset()
	s.log.Info("simulation reset via admin api")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	fph, err := strconv.ParseFloat(r.URL.Query().Get("fph"), 64)
	if err != nil || fph < 0 {
		s.writeError(w, http.StatusBadRequest, "fph must be a non-negative number")
		return
	}
	s.Sim.SetFlightsPerHour(fph)
	s.writeJSON(w, http.StatusOK, map[string]float64{"flights_per_hour": fph})
}

// Frame is one message of the live stream.
type Frame struct {
	SimTime   float64            `json:"sim_time"`
	Agents    []uav.Snapshot     `json:"agents"`
	Conflicts []sim.ConflictView `json:"conflicts"`
}

func (s *Server) frame() Frame {
	f := Frame{Agents: s.Sim.Snapshot(), Conflicts: s.Sim.Conflicts()}
	f.SimTime = s.Sim.Now()
	return f
}

// handleStream pushes a Frame every interval (milliseconds, query
// parameter) until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	interval := defaultStreamInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid interval", http.StatusBadRequest)
			return
		}
		interval = max(time.Duration(ms)*time.Millisecond, minStreamInterval)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// Reads are only needed to notice the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(s.frame()); err != nil {
			s.log.Debug("websocket stream closed", "err", err)
			return
		}
		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
