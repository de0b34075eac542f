// Package api provides HTTP API handlers for the activity log service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
	"github.com/apconsolide/tale-mosaic/internal/middleware"
)

// LogHandlers holds dependencies for activity log HTTP handlers.
type LogHandlers struct {
	repo activitylog.Repository
}

// NewLogHandlers creates a new LogHandlers instance.
func NewLogHandlers(repo activitylog.Repository) *LogHandlers {
	return &LogHandlers{repo: repo}
}

// ListResponse wraps the log list payload.
type ListResponse struct {
	Logs []activitylog.ActivityLog `json:"logs"`
}

// logIDFromPath extracts the log ID from /logs/{id} paths.
func logIDFromPath(path string) string {
	id := strings.TrimPrefix(path, "/logs/")
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// List handles GET /logs - returns all activity logs.
// Logs are returned newest first by default. Optional sortBy and direction
// query parameters re-sort on any table column, and q filters by substring
// across the text fields.
func (h *LogHandlers) List(w http.ResponseWriter, r *http.Request) {
	logs, err := h.repo.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list activity logs", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list activity logs")
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		logs = filterLogs(logs, q)
	}

	if sortBy := r.URL.Query().Get("sortBy"); sortBy != "" {
		dir := activitylog.Ascending
		if r.URL.Query().Get("direction") == string(activitylog.Descending) {
			dir = activitylog.Descending
		}
		activitylog.Sort(logs, sortBy, dir)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ListResponse{Logs: logs}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode log list response", "error", err)
	}
}

// filterLogs returns the logs whose text fields contain q, case-insensitive.
func filterLogs(logs []activitylog.ActivityLog, q string) []activitylog.ActivityLog {
	q = strings.ToLower(q)
	filtered := make([]activitylog.ActivityLog, 0, len(logs))
	for _, log := range logs {
		fields := []string{
			log.Location, log.ActivityCategory, log.ActivityType,
			log.Equipment, log.Personnel, log.Material,
			log.Measurement, log.Status, log.Notes, log.ReferenceID,
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				filtered = append(filtered, log)
				break
			}
		}
	}
	return filtered
}

// Get handles GET /logs/{id} - returns a single activity log.
func (h *LogHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := logIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Log ID is required")
		return
	}

	log, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, activitylog.ErrLogNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Activity log not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get activity log", "error", err, "log_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve activity log")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(log); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode log response", "error", err)
	}
}

// Create handles POST /logs - stores a manually entered activity log.
// The request body uses the same loose shape as extracted records, so
// missing fields pick up the usual defaults.
func (h *LogHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var raw activitylog.RawLog
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(raw.Location) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "location is required")
		return
	}

	log := activitylog.Normalize(raw, time.Now())
	if err := h.repo.Insert(r.Context(), &log); err != nil {
		slog.ErrorContext(r.Context(), "failed to insert activity log", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodePersistenceFailed)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodePersistenceFailed, "Failed to save activity log")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(log); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode created log response", "error", err)
	}
}

// Update handles PUT /logs/{id} - replaces an existing activity log.
// Unlike Create, an unrecognized status is rejected rather than coerced to
// the default: an update is an explicit edit, and silently rewriting a typo
// to "completed" would lose what the editor meant.
func (h *LogHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id := logIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Log ID is required")
		return
	}

	var log activitylog.ActivityLog
	if err := json.NewDecoder(r.Body).Decode(&log); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(log.Location) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "location is required")
		return
	}
	if log.Status != "" && !activitylog.ValidStatus(strings.ToLower(log.Status)) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unrecognized status value")
		return
	}
	if log.Coordinates != nil && !log.Coordinates.Valid() {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "coordinates are out of range")
		return
	}

	// The path wins over any ID in the body
	log.ID = id
	log.Status = strings.ToLower(log.Status)

	if err := h.repo.Update(r.Context(), &log); err != nil {
		if errors.Is(err, activitylog.ErrLogNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Activity log not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update activity log", "error", err, "log_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodePersistenceFailed)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodePersistenceFailed, "Failed to update activity log")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(log); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode updated log response", "error", err)
	}
}

// Delete handles DELETE /logs/{id} - removes an activity log.
func (h *LogHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := logIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Log ID is required")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, activitylog.ErrLogNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Activity log not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete activity log", "error", err, "log_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete activity log")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ServeLog routes /logs/{id} requests by method.
func (h *LogHandlers) ServeLog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.Get(w, r)
	case http.MethodPut:
		h.Update(w, r)
	case http.MethodDelete:
		h.Delete(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// ServeLogs routes /logs requests by method.
func (h *LogHandlers) ServeLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}
