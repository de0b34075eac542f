package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
	"github.com/apconsolide/tale-mosaic/internal/middleware"
	"github.com/apconsolide/tale-mosaic/internal/stats"
)

// StatsHandlers serves summary statistics for the dashboard panels.
type StatsHandlers struct {
	repo activitylog.Repository
}

// NewStatsHandlers creates a new StatsHandlers instance.
func NewStatsHandlers(repo activitylog.Repository) *StatsHandlers {
	return &StatsHandlers{repo: repo}
}

// Summary handles GET /stats - returns aggregate counts over all logs.
func (h *StatsHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	logs, err := h.repo.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list logs for stats", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute statistics")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats.Summarize(logs)); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode stats response", "error", err)
	}
}
