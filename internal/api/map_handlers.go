package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
	"github.com/apconsolide/tale-mosaic/internal/geo"
	"github.com/apconsolide/tale-mosaic/internal/middleware"
)

// MapHandlers serves the location grouping and map marker endpoints. Both are
// derived views over the activity log store; nothing here is persisted.
type MapHandlers struct {
	repo activitylog.Repository
}

// NewMapHandlers creates a new MapHandlers instance.
func NewMapHandlers(repo activitylog.Repository) *MapHandlers {
	return &MapHandlers{repo: repo}
}

// GroupsResponse wraps the location group payload.
type GroupsResponse struct {
	Groups []geo.LocationGroup `json:"groups"`
}

// MarkersResponse is the full map scene for the dashboard: marker
// descriptors, heatmap points and the bounding box to fit the view to.
type MarkersResponse struct {
	Markers    []geo.Marker    `json:"markers"`
	HeatPoints []geo.HeatPoint `json:"heatPoints"`
	Bounds     *geo.Bounds     `json:"bounds,omitempty"`
}

// Groups handles GET /logs/groups - returns logs grouped by location.
func (h *MapHandlers) Groups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	logs, err := h.repo.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list logs for grouping", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to group activity logs")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(GroupsResponse{Groups: geo.GroupByLocation(logs)}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode groups response", "error", err)
	}
}

// Markers handles GET /map/markers - returns the map scene for current logs.
// The optional selected query parameter marks the matching location's marker.
func (h *MapHandlers) Markers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	logs, err := h.repo.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list logs for map", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build map markers")
		return
	}

	groups := geo.GroupByLocation(logs)
	selected := r.URL.Query().Get("selected")

	resp := MarkersResponse{
		Markers:    geo.BuildMarkers(groups, selected),
		HeatPoints: geo.BuildHeatPoints(groups),
	}
	if bounds, ok := geo.BoundsOf(groups); ok {
		resp.Bounds = &bounds
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode markers response", "error", err)
	}
}
