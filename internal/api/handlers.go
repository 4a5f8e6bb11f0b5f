package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/governstack/govern-trust/internal/history"
	"github.com/governstack/govern-trust/internal/models"
	"github.com/governstack/govern-trust/internal/services"
	"github.com/governstack/govern-trust/internal/utils"
)

const (
	defaultHistoryHours = 24
	defaultListLimit    = 20
	maxListLimit        = 500
)

// Handler carries the route implementations.
type Handler struct {
	logger  *slog.Logger
	service *services.TrustService
}

func NewHandler(logger *slog.Logger, service *services.TrustService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// Routes builds the HTTP mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /api/v1/trust", h.currentTrust)
	mux.HandleFunc("GET /api/v1/trust/history", h.trustHistory)
	mux.HandleFunc("GET /api/v1/incidents", h.listIncidents)
	mux.HandleFunc("POST /api/v1/incidents/{id}/resolve", h.resolveIncident)
	mux.HandleFunc("GET /api/v1/executions", h.listExecutions)
	mux.HandleFunc("GET /api/v1/patterns", h.listPatterns)
	mux.HandleFunc("POST /api/v1/simulate", h.simulate)
	mux.HandleFunc("POST /api/v1/reset", h.reset)
	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CurrentTrust(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	payload := map[string]any{
		"status": "ok",
		"stale":  status.Stale,
	}
	if status.LastTickAt != nil {
		payload["last_tick_at"] = status.LastTickAt
	}
	h.writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) currentTrust(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CurrentTrust(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) trustHistory(w http.ResponseWriter, r *http.Request) {
	// An explicit since= cutoff wins over the trailing-hours window.
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := utils.ParseRFC3339(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since parameter: %w", err))
			return
		}
		records, err := h.service.ScoreHistorySince(r.Context(), since)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"since":   since,
			"records": records,
		})
		return
	}

	hours := utils.ParseHours(r.URL.Query().Get("hours"), defaultHistoryHours)
	records, err := h.service.ScoreHistory(r.Context(), hours)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hours":   hours,
		"records": records,
	})
}

func (h *Handler) listIncidents(w http.ResponseWriter, r *http.Request) {
	status := models.IncidentStatus(r.URL.Query().Get("status"))
	limit := utils.ParseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	incidents, err := h.service.Incidents(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) resolveIncident(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req resolveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
			return
		}
	}

	incident, err := h.service.ResolveIncident(r.Context(), id, req.Notes)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, http.StatusOK, incident)
}

func (h *Handler) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit := utils.ParseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	executions, err := h.service.Executions(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"executions": executions})
}

func (h *Handler) listPatterns(w http.ResponseWriter, r *http.Request) {
	mined, err := h.service.Patterns(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"patterns": mined})
}

func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	var snapshot models.MetricSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("malformed snapshot body"))
		return
	}
	if snapshot.DriftSeverity != "" && !snapshot.DriftSeverity.Valid() {
		h.writeError(w, http.StatusBadRequest, errors.New("unknown drift severity"))
		return
	}

	result, err := h.service.Simulate(r.Context(), snapshot)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Reset(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("response encode failed", "error", err)
	}
}

type errorResponse struct {
	Error string    `json:"error"`
	Time  time.Time `json:"time"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Time: time.Now().UTC()})
}
