package daemon

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/citation"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// Response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code models.ErrorCode, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

// Health endpoints

// handleHealth reports liveness of the session store, message store and
// vector DB registry.
func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	checks := map[string]string{"redis": "ok", "sqlite": "ok", "qdrant": "ok"}

	if err := d.sessions.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		checks["redis"] = err.Error()
	}
	if err := d.messages.Health(ctx); err != nil {
		status = "unhealthy"
		checks["sqlite"] = err.Error()
	}
	if err := d.registry.EnsureAll(ctx); err != nil {
		status = "unhealthy"
		checks["qdrant"] = err.Error()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady returns whether the daemon is ready to serve requests.
func (d *Daemon) handleReady(w http.ResponseWriter, r *http.Request) {
	if d.Ready() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ready":     true,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	} else {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ready":     false,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// handleStatus returns process-wide stats (spec §6 admin status surface).
func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	proc := d.adminOps.ProcessStats(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"daemon": map[string]interface{}{
			"version":    Version,
			"build_time": BuildTime,
			"uptime":     time.Since(d.startTime).String(),
			"ready":      d.Ready(),
		},
		"process":   proc,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Per-turn API

type turnRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// handleTurn drives one Orchestrator.HandleTurn call (spec §4.6, §6).
func (d *Daemon) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrInvalidRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, models.ErrInvalidRequest, "session_id is required")
		return
	}

	result := d.orchestrator.HandleTurn(r.Context(), req.SessionID, req.Query)

	d.eventBus.Publish(EventTurnCompleted, TurnEventData{
		SessionID:    req.SessionID,
		Category:     string(result.Category),
		ProcessingMs: result.ProcessingTimeMs,
		Error:        result.Error,
	})

	writeJSON(w, http.StatusOK, result)
}

// handleNewChat starts (or clears into) a fresh session for a client that
// wants to reset conversational memory without losing the persisted
// message log (spec §6 "new-chat").
func (d *Daemon) handleNewChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, models.ErrInvalidRequest, "session_id is required")
		return
	}

	if err := d.sessions.Clear(r.Context(), req.SessionID); err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrSessionCorrupted, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": req.SessionID, "cleared": true})
}

// Session admin API

func (d *Daemon) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	msgs, err := d.messages.List(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrMessageAppendFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": sessionID, "messages": msgs})
}

func (d *Daemon) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := d.sessions.Clear(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrSessionCorrupted, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": sessionID, "cleared": true})
}

func (d *Daemon) handleSessionAnalytics(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	stats, proc, err := d.adminOps.SessionAnalytics(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, models.ErrSessionNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": stats,
		"process": proc,
	})
}

// Test endpoints (spec §6: inspect citation extraction and exercise
// hybrid search in isolation, without a full turn / ChatModel call).

// handleTestPrecedent reports citation-extraction diagnostics for a raw
// case-number string: its normalized form, detected court, and the full
// Citation set CitationExtractor would hand the precedent gate.
func (d *Daemon) handleTestPrecedent(w http.ResponseWriter, r *http.Request) {
	caseNumber := r.URL.Query().Get("case_number")
	if caseNumber == "" {
		writeError(w, http.StatusBadRequest, models.ErrInvalidRequest, "case_number is required")
		return
	}

	citations := citation.Extract(caseNumber)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"case_number": caseNumber,
		"normalized":  citation.Normalize(caseNumber),
		"court":       citation.DetectCourt(caseNumber),
		"citations":   citations,
	})
}

func (d *Daemon) handleTestHybridRAG(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	category := models.Category(r.URL.Query().Get("category"))
	if query == "" || !category.Valid() {
		writeError(w, http.StatusBadRequest, models.ErrInvalidRequest, "query and a valid category are required")
		return
	}

	result := d.retriever.Search(r.Context(), query, category)
	writeJSON(w, http.StatusOK, map[string]interface{}{"query": query, "category": category, "result": result})
}

// Admin index rebuild

func (d *Daemon) handleKBRebuild(w http.ResponseWriter, r *http.Request) {
	category := models.Category(r.URL.Query().Get("category"))
	force := r.URL.Query().Get("force") == "true"

	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, models.ErrInvalidRequest, "unknown category")
		return
	}

	d.eventBus.Publish(EventIndexRebuildStarted, IndexRebuildEventData{Category: string(category)})
	reports := d.adminOps.RebuildIndex(r.Context(), category, force)
	for _, report := range reports {
		d.eventBus.Publish(EventIndexRebuildCompleted, IndexRebuildEventData{
			Category:   string(report.Category),
			Loaded:     report.Loaded,
			Indexed:    report.Indexed,
			Skipped:    report.Skipped,
			DurationMs: report.DurationMs,
			Error:      report.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}
