package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tablexport/internal/core"
)

// TableStatus is the JSON view of one table.
type TableStatus struct {
	core.TableProgress
	Percent int `json:"percent"`
}

// RunStatusResponse is the JSON view of the whole run.
type RunStatusResponse struct {
	RunID  string        `json:"runId"`
	Done   bool          `json:"done"`
	Failed int           `json:"failed"`
	Tables []TableStatus `json:"tables"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()

	resp := RunStatusResponse{
		RunID:  snap.RunID,
		Done:   snap.Done,
		Failed: snap.Failed,
		Tables: make([]TableStatus, 0, len(snap.Tables)),
	}
	for _, p := range snap.Tables {
		resp.Tables = append(resp.Tables, TableStatus{TableProgress: p, Percent: p.Percent()})
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTableStatus(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	p, ok := s.tracker.Table(table)
	if !ok {
		respondError(w, r, http.StatusNotFound, "unknown table: "+table)
		return
	}

	respondJSON(w, http.StatusOK, TableStatus{TableProgress: p, Percent: p.Percent()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
