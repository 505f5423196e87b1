// Package api provides the HTTP API for inspecting the pedestrian simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/pedsim/internal/agents"
	"github.com/talgya/pedsim/internal/engine"
	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/persistence"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim       *engine.Simulation
	Eng       *engine.Engine
	DB        *persistence.DB // optional run history
	RunID     string
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
	AdminRate int    // admin requests per minute per client

	Hub *Hub
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	if s.Hub == nil {
		s.Hub = NewHub()
	}
	rate := s.AdminRate
	if rate <= 0 {
		rate = 30
	}
	adminLimiter := NewRateLimiter(rate, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/reports", s.handleReports)
	mux.HandleFunc("GET /api/v1/plots", s.handlePlots)
	mux.HandleFunc("GET /api/v1/peds", s.handlePeds)
	mux.HandleFunc("GET /api/v1/ped/{ssn}", s.handlePed)
	mux.HandleFunc("GET /api/v1/ped/{ssn}/path", s.handlePedPath)
	mux.HandleFunc("GET /api/v1/pick", s.handlePick)
	mux.HandleFunc("GET /api/v1/sphere", s.handleSphere)
	mux.HandleFunc("GET /api/v1/selected", s.handleSelected)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}/reports", s.handleRunReports)
	mux.HandleFunc("GET /api/v1/ws", s.Hub.handler(s.Sim.LastReport))

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/destroy", RateLimitMiddleware(adminLimiter, s.adminOnly(s.handleDestroy)))
	mux.HandleFunc("POST /api/v1/select", RateLimitMiddleware(adminLimiter, s.adminOnly(s.handleSelect)))
	mux.HandleFunc("POST /api/v1/focus", RateLimitMiddleware(adminLimiter, s.adminOnly(s.handleFocus)))
	mux.HandleFunc("POST /api/v1/speed", RateLimitMiddleware(adminLimiter, s.adminOnly(s.handleSpeed)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	handler := s.Handler()
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no PEDSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":    "pedsim",
		"run_id":  s.RunID,
		"tick":    s.Eng.Tick(),
		"speed":   s.Eng.Speed(),
		"running": s.Eng.Running(),
		"cities":  s.Sim.World.NumCities(),
		"plots":   s.Sim.World.NumPlots(),
	}
	s.Sim.Read(func(m *engine.Manager) {
		status["peds"] = m.Len()
		status["frame"] = m.Frame()
	})
	if rep, ok := s.Sim.LastReport(); ok {
		status["last_report"] = rep
	}
	writeJSON(w, status)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	writeJSON(w, s.Sim.Recent(n))
}

// handlePlots lists pedestrian counts per plot.
func (s *Server) handlePlots(w http.ResponseWriter, r *http.Request) {
	type plotSummary struct {
		ID        int       `json:"id"`
		City      int       `json:"city"`
		BCube     geom.Cube `json:"bcube"`
		Peds      int       `json:"peds"`
		Crosswalk bool      `json:"crosswalk_in_use"`
	}
	world := s.Sim.World
	out := make([]plotSummary, world.NumPlots())
	s.Sim.Read(func(m *engine.Manager) {
		for p := range out {
			out[p] = plotSummary{
				ID:        p,
				City:      world.PlotCity(p),
				BCube:     world.PlotBCube(p),
				Peds:      len(m.PedsOnPlot(p)),
				Crosswalk: m.CrosswalkInUse(p),
			}
		}
	})
	writeJSON(w, out)
}

type pedSummary struct {
	SSN      agents.SSN `json:"ssn"`
	Name     string     `json:"name"`
	Pos      geom.Vec3  `json:"pos"`
	Speed    float64    `json:"speed"`
	Plot     int        `json:"plot"`
	DestPlot int        `json:"dest_plot"`
	Collided bool       `json:"collided"`
	InRoad   bool       `json:"in_the_road"`
}

func summarize(p agents.Pedestrian) pedSummary {
	return pedSummary{
		SSN:      p.SSN,
		Name:     agents.Name(p.SSN),
		Pos:      p.Pos,
		Speed:    p.Speed(),
		Plot:     p.Plot,
		DestPlot: p.DestPlot,
		Collided: p.Collided,
		InRoad:   p.InTheRoad,
	}
}

func (s *Server) handlePeds(w http.ResponseWriter, r *http.Request) {
	plot, err := strconv.Atoi(r.URL.Query().Get("plot"))
	if err != nil || plot < 0 || plot >= s.Sim.World.NumPlots() {
		http.Error(w, fmt.Sprintf("plot must be an id in [0, %d)", s.Sim.World.NumPlots()), http.StatusBadRequest)
		return
	}
	var out []pedSummary
	s.Sim.Read(func(m *engine.Manager) {
		for _, p := range m.PedsOnPlot(plot) {
			out = append(out, summarize(p))
		}
	})
	writeJSON(w, out)
}

func parseSSN(r *http.Request) (agents.SSN, error) {
	v, err := strconv.ParseUint(r.PathValue("ssn"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ssn %q", r.PathValue("ssn"))
	}
	return agents.SSN(v), nil
}

// writeLookupError maps unknown identities to 404.
func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrUnknownPed) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) handlePed(w http.ResponseWriter, r *http.Request) {
	ssn, err := parseSSN(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var (
		p     agents.Pedestrian
		debug string
	)
	s.Sim.Read(func(m *engine.Manager) {
		if p, err = m.Ped(ssn); err == nil {
			debug, err = m.DebugString(ssn)
		}
	})
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"name":  agents.Name(ssn),
		"ped":   p,
		"debug": debug,
	})
}

func (s *Server) handlePedPath(w http.ResponseWriter, r *http.Request) {
	ssn, err := parseSSN(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var info engine.PathInfo
	s.Sim.Read(func(m *engine.Manager) {
		info, err = m.DebugPath(ssn)
	})
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, info)
}

// queryFloats parses the named query parameters as floats.
func queryFloats(r *http.Request, names ...string) ([]float64, error) {
	q := r.URL.Query()
	out := make([]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			return nil, fmt.Errorf("query parameter %s: expected a number", name)
		}
		out[i] = v
	}
	return out, nil
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	v, err := queryFloats(r, "x1", "y1", "z1", "x2", "y2", "z2")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p1, p2 := geom.V(v[0], v[1], v[2]), geom.V(v[3], v[4], v[5])
	resp := map[string]any{"hit": false}
	s.Sim.Read(func(m *engine.Manager) {
		if t, ssn, ok := m.LineIntersect(p1, p2); ok {
			resp["hit"], resp["ssn"], resp["t"] = true, ssn, t
			resp["point"] = p1.Add(p2.Sub(p1).Scale(t))
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handleSphere(w http.ResponseWriter, r *http.Request) {
	v, err := queryFloats(r, "x", "y", "z", "r")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if v[3] < 0 {
		http.Error(w, "r must be non-negative", http.StatusBadRequest)
		return
	}
	resp := map[string]any{"hit": false}
	s.Sim.Read(func(m *engine.Manager) {
		if normal, hit := m.ProcSphereColl(geom.V(v[0], v[1], v[2]), v[3]); hit {
			resp["hit"], resp["normal"] = true, normal
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handleSelected(w http.ResponseWriter, r *http.Request) {
	var (
		p  agents.Pedestrian
		ok bool
	)
	s.Sim.Read(func(m *engine.Manager) { p, ok = m.Selected() })
	if !ok {
		http.Error(w, "no pedestrian selected", http.StatusNotFound)
		return
	}
	writeJSON(w, summarize(p))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run history disabled", http.StatusNotFound)
		return
	}
	runs, err := s.DB.Runs()
	if err != nil {
		slog.Error("list runs", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleRunReports(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run history disabled", http.StatusNotFound)
		return
	}
	reports, err := s.DB.Reports(r.PathValue("id"))
	if err != nil {
		slog.Error("list reports", "run", r.PathValue("id"), "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, reports)
}

func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pos    geom.Vec3 `json:"pos"`
		Radius float64   `json:"radius"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Radius < 0 || req.Radius > 1000 {
		http.Error(w, "radius must be 0-1000", http.StatusBadRequest)
		return
	}
	var n int
	s.Sim.Write(func(m *engine.Manager) { n = m.DestroyInRadius(req.Pos, req.Radius) })
	slog.Info("destroy requested", "pos", req.Pos, "radius", req.Radius, "destroyed", n)
	writeJSON(w, map[string]int{"destroyed": n})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SSN agents.SSN `json:"ssn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var err error
	s.Sim.Write(func(m *engine.Manager) { err = m.Select(req.SSN) })
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, map[string]agents.SSN{"selected": req.SSN})
}

// handleFocus moves the point that nearby pedestrians refresh their routes
// around more often.
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pos geom.Vec3 `json:"pos"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.Sim.Write(func(m *engine.Manager) { m.SetFocus(req.Pos) })
	writeJSON(w, map[string]geom.Vec3{"focus": req.Pos})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
