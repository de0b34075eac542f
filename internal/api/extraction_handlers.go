package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/apconsolide/tale-mosaic/internal/extract"
	"github.com/apconsolide/tale-mosaic/internal/middleware"
)

// ExtractionHandlers exposes extractor configuration status. The dashboard
// polls this to decide whether to show the missing-key banner.
type ExtractionHandlers struct {
	service *extract.Service
}

// NewExtractionHandlers creates a new ExtractionHandlers instance.
func NewExtractionHandlers(service *extract.Service) *ExtractionHandlers {
	return &ExtractionHandlers{service: service}
}

// Status handles GET /extraction/status.
func (h *ExtractionHandlers) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.service.Status()); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode extraction status response", "error", err)
	}
}
