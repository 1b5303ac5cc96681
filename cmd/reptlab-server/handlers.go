package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reptlab/internal/rept"
	"reptlab/internal/storage"
)

// extractSimID extracts the simulation ID from a path like "/sim/{simID}/..."
// Returns the simulation ID and the remaining path, or empty string if not found
func extractSimID(path string) (rept.SimulationID, string) {
	if !strings.HasPrefix(path, "/sim/") {
		return "", ""
	}

	rest := path[len("/sim/"):]

	idx := strings.Index(rest, "/")
	if idx == -1 {
		// No more path segments, the whole thing is the sim ID
		return rept.SimulationID(rest), ""
	}

	return rept.SimulationID(rest[:idx]), rest[idx:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /sims
func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ListSimulations())
}

// createSimulationRequest is the body of POST /sim/{simID}:
// structural parameters plus optional runtime overrides.
type createSimulationRequest struct {
	Simulation rept.SimulationConfig `json:"simulation"`
	Runtime    *rept.RuntimeConfig   `json:"runtime,omitempty"`
}

// handleSim routes everything under /sim/{simID}/...
func (s *Server) handleSim(w http.ResponseWriter, r *http.Request) {
	simID, rest := extractSimID(r.URL.Path)
	if simID == "" {
		http.Error(w, "simulation ID is required in path: /sim/{simID}", http.StatusBadRequest)
		return
	}

	if rest == "" || rest == "/" {
		switch r.Method {
		case http.MethodPost:
			s.handleCreate(w, r, simID)
		case http.MethodDelete:
			s.handleDelete(w, r, simID)
		case http.MethodGet:
			s.handleInfo(w, r, simID)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	engine, exists := s.manager.GetSimulation(simID)
	if !exists {
		http.Error(w, "simulation not found", http.StatusNotFound)
		return
	}

	switch rest {
	case "/step":
		s.handleStep(w, r, engine)
	case "/params":
		s.handleParams(w, r, engine)
	case "/run":
		s.handleRun(w, r, engine)
	case "/stop":
		s.handleStop(w, r, engine)
	case "/reset":
		s.handleReset(w, r, engine)
	case "/chains":
		writeJSON(w, http.StatusOK, engine.Chains())
	case "/obstacles":
		writeJSON(w, http.StatusOK, engine.Obstacles())
	case "/stats":
		writeJSON(w, http.StatusOK, engine.Stats())
	case "/history":
		writeJSON(w, http.StatusOK, engine.History())
	case "/report":
		s.handleReport(w, r, engine)
	case "/snapshot":
		s.handleSnapshot(w, r, engine)
	case "/narrate":
		s.handleNarrate(w, r, engine)
	case "/archive":
		s.handleArchive(w, r, simID, engine)
	case "/ws":
		s.handleWebSocket(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// POST /sim/{simID}
// Body: createSimulationRequest JSON
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, simID rept.SimulationID) {
	defer r.Body.Close()

	var req createSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid config json: "+err.Error(), http.StatusBadRequest)
		return
	}

	runtime := rept.DefaultRuntimeConfig()
	if req.Runtime != nil {
		runtime = *req.Runtime
	}

	engine, err := s.createSimulation(simID, req.Simulation, runtime)
	if err != nil {
		http.Error(w, "cannot create simulation: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Infof("Simulation created: sim_id=%s lattice=%d chains=%d length=%d",
		simID, req.Simulation.LatticeSize, req.Simulation.NumChains, req.Simulation.ChainLength)
	writeJSON(w, http.StatusCreated, engine.Stats())
}

// DELETE /sim/{simID}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, simID rept.SimulationID) {
	if err := s.manager.DeleteSimulation(simID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Infof("Simulation deleted: sim_id=%s", simID)
	w.WriteHeader(http.StatusNoContent)
}

// GET /sim/{simID}
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, simID rept.SimulationID) {
	engine, exists := s.manager.GetSimulation(simID)
	if !exists {
		http.Error(w, "simulation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"simulation": engine.Config(),
		"runtime":    engine.Runtime(),
		"running":    engine.IsRunning(),
		"stats":      engine.Stats(),
	})
}

// POST /sim/{simID}/step?sweeps=N
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, engine *rept.Engine) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sweeps := 1
	if v := r.URL.Query().Get("sweeps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "sweeps must be a positive integer", http.StatusBadRequest)
			return
		}
		sweeps = n
	}

	engine.StepN(sweeps)
	writeJSON(w, http.StatusOK, engine.Stats())
}

// PUT /sim/{simID}/params
// Body: RuntimeConfig JSON. Updates runtime parameters without
// resetting geometry.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request, engine *rept.Engine) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var runtime rept.RuntimeConfig
	if err := json.NewDecoder(r.Body).Decode(&runtime); err != nil {
		http.Error(w, "invalid runtime json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := engine.UpdateRuntime(runtime); err != nil {
		http.Error(w, "cannot update runtime params: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, runtime)
}

// POST /sim/{simID}/run?interval_ms=N
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, engine *rept.Engine) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	interval := 10 * time.Millisecond
	if v := r.URL.Query().Get("interval_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 1 {
			http.Error(w, "interval_ms must be a positive integer", http.StatusBadRequest)
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	engine.Run(interval)
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("running"))
}

// POST /sim/{simID}/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request, engine *rept.Engine) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	engine.Stop()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("stopped"))
}

// POST /sim/{simID}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, engine *rept.Engine) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := engine.Reset(); err != nil {
		http.Error(w, "reset failed: "+err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, engine.Stats())
}

// GET /sim/{simID}/report
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, engine *rept.Engine) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(rept.FormatReport(engine.Config(), engine.Stats())))
}

// GET  /sim/{simID}/snapshot: export current state
// POST /sim/{simID}/snapshot: restore state from a snapshot body
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, engine *rept.Engine) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, engine.Snapshot())
	case http.MethodPost:
		defer r.Body.Close()
		var snap rept.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			http.Error(w, "invalid snapshot json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := engine.RestoreSnapshot(snap); err != nil {
			http.Error(w, "cannot restore snapshot: "+err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, engine.Stats())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// narrateResponse is the body of POST /sim/{simID}/narrate.
type narrateResponse struct {
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
}

// POST /sim/{simID}/narrate
// The narration service is optional and fallible: any failure is
// reported as "analysis unavailable" and never touches engine state.
func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request, engine *rept.Engine) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.narrator == nil {
		writeJSON(w, http.StatusServiceUnavailable, narrateResponse{Error: "analysis unavailable: narration is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	text, err := s.narrator.Describe(ctx, engine.Config(), engine.Stats())
	if err != nil {
		s.logger.Warnf("Narration failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, narrateResponse{Error: "analysis unavailable: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, narrateResponse{Analysis: text})
}

// POST /sim/{simID}/archive
// Saves the run's configuration, final stats and sample series to the
// run store.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request, simID rept.SimulationID, engine *rept.Engine) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "run archive is not configured", http.StatusServiceUnavailable)
		return
	}

	run := storage.Run{
		Config: engine.Config(),
		Stats:  engine.Stats(),
	}
	id, err := s.store.SaveRun(r.Context(), run, engine.History())
	if err != nil {
		s.logger.Errorf("Failed to archive run: sim_id=%s error=%v", simID, err)
		http.Error(w, "cannot archive run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Infof("Run archived: sim_id=%s run_id=%s", simID, id)
	writeJSON(w, http.StatusCreated, map[string]string{"run_id": id})
}

// GET /runs          lists archived runs
// GET /runs/{id}     returns one archived run with its sample series
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "run archive is not configured", http.StatusServiceUnavailable)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/runs")
	rest = strings.TrimPrefix(rest, "/")

	if rest == "" {
		runs, err := s.store.ListRuns(r.Context())
		if err != nil {
			http.Error(w, "cannot list runs: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs)
		return
	}

	run, found, err := s.store.GetRun(r.Context(), rest)
	if err != nil {
		http.Error(w, "cannot load run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	samples, err := s.store.Samples(r.Context(), rest)
	if err != nil {
		http.Error(w, "cannot load samples: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "samples": samples})
}

// GET /sim/{simID}/ws
// Upgrades to a WebSocket and streams sampled stats events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.wsNotifier.GetUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	s.wsNotifier.RegisterClient(conn)
	s.logger.Debugf("WebSocket client connected: %s", conn.RemoteAddr())

	// Drain the read side until the client goes away, then unregister.
	go func() {
		defer s.wsNotifier.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
