package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
	"github.com/apconsolide/tale-mosaic/internal/extract"
	"github.com/apconsolide/tale-mosaic/internal/middleware"
	"github.com/apconsolide/tale-mosaic/internal/pipeline"
	"github.com/apconsolide/tale-mosaic/internal/transcription"
	"github.com/apconsolide/tale-mosaic/internal/validate"
)

// TranscriptionHandlers holds dependencies for transcription HTTP handlers.
type TranscriptionHandlers struct {
	pipeline *pipeline.Pipeline
	repo     transcription.Repository
}

// NewTranscriptionHandlers creates a new TranscriptionHandlers instance.
func NewTranscriptionHandlers(p *pipeline.Pipeline, repo transcription.Repository) *TranscriptionHandlers {
	return &TranscriptionHandlers{pipeline: p, repo: repo}
}

// SubmitRequest is the body for POST /transcriptions. Persist defaults to
// true; set it to false to preview extraction without writing anything.
type SubmitRequest struct {
	Text               string `json:"text"`
	Title              string `json:"title,omitempty"`
	PreferredExtractor string `json:"preferredExtractor,omitempty"`
	Persist            *bool  `json:"persist,omitempty"`
}

// SubmitResponse reports the outcome of a submission.
type SubmitResponse struct {
	Logs            []activitylog.ActivityLog `json:"logs"`
	FromCache       bool                      `json:"fromCache"`
	Extractor       string                    `json:"extractor"`
	Persisted       bool                      `json:"persisted"`
	SchemaMissing   bool                      `json:"schemaMissing"`
	TranscriptionID string                    `json:"transcriptionId,omitempty"`
}

// TranscriptionListResponse wraps the transcription list payload.
type TranscriptionListResponse struct {
	Transcriptions []transcription.Transcription `json:"transcriptions"`
}

// DeleteTranscriptionResponse reports what a cascade delete removed.
type DeleteTranscriptionResponse struct {
	LogsDeleted int64 `json:"logsDeleted"`
}

// transcriptionIDFromPath extracts the ID from /transcriptions/{id} paths.
func transcriptionIDFromPath(path string) string {
	id := strings.TrimPrefix(path, "/transcriptions/")
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// Submit handles POST /transcriptions - runs a transcription through
// extraction and, unless persist is false, stores the resulting logs.
func (h *TranscriptionHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	text, err := validate.TranscriptionText(req.Text)
	if err != nil {
		message := "Transcription text is required"
		if errors.Is(err, validate.ErrStringTooLong) {
			message = "Transcription text exceeds the maximum length"
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, message)
		return
	}
	title, err := validate.TranscriptionTitle(req.Title)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid transcription title")
		return
	}

	persist := true
	if req.Persist != nil {
		persist = *req.Persist
	}

	result, err := h.pipeline.Submit(r.Context(), pipeline.SubmitRequest{
		Text:               text,
		Title:              title,
		PreferredExtractor: req.PreferredExtractor,
		Persist:            persist,
	})
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := SubmitResponse{
		Logs:            result.Logs,
		FromCache:       result.FromCache,
		Extractor:       result.Extractor,
		Persisted:       result.Persisted,
		SchemaMissing:   result.SchemaMissing,
		TranscriptionID: result.TranscriptionID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode submit response", "error", err)
	}
}

// writeSubmitError maps pipeline and extraction errors onto API error codes.
func (h *TranscriptionHandlers) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyTranscription):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Transcription text is required")
	case errors.Is(err, pipeline.ErrSubmitInFlight):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeSubmitInFlight)
		WriteError(w, ctx, http.StatusConflict, ErrCodeSubmitInFlight, "A submission is already being processed")
	case errors.Is(err, extract.ErrNoResults):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNoResults)
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeNoResults, "No activity records could be extracted from the transcription")
	case errors.Is(err, extract.ErrNotConfigured):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeExtractorNotConfigured)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeExtractorNotConfigured, "Extraction API key is not configured")
	case errors.Is(err, extract.ErrUnknownExtractor):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Unknown extractor requested")
	case errors.Is(err, pipeline.ErrPersistFailed):
		slog.ErrorContext(r.Context(), "failed to persist submission", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodePersistenceFailed)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodePersistenceFailed, "Failed to save extracted logs")
	default:
		slog.ErrorContext(r.Context(), "extraction failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeExtractionUnavailable)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeExtractionUnavailable, "Extraction provider is unavailable")
	}
}

// List handles GET /transcriptions - returns all transcriptions, newest first.
func (h *TranscriptionHandlers) List(w http.ResponseWriter, r *http.Request) {
	transcriptions, err := h.repo.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list transcriptions", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list transcriptions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(TranscriptionListResponse{Transcriptions: transcriptions}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode transcription list response", "error", err)
	}
}

// Get handles GET /transcriptions/{id} - returns a single transcription.
func (h *TranscriptionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := transcriptionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Transcription ID is required")
		return
	}

	rec, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, transcription.ErrTranscriptionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Transcription not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get transcription", "error", err, "transcription_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve transcription")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode transcription response", "error", err)
	}
}

// Delete handles DELETE /transcriptions/{id} - removes a transcription and
// every log extracted from it.
func (h *TranscriptionHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := transcriptionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Transcription ID is required")
		return
	}

	result, err := h.pipeline.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, transcription.ErrTranscriptionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Transcription not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete transcription", "error", err, "transcription_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodePersistenceFailed)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodePersistenceFailed, "Failed to delete transcription")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(DeleteTranscriptionResponse{LogsDeleted: result.LogsDeleted}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode delete response", "error", err)
	}
}

// ServeTranscription routes /transcriptions/{id} requests by method.
func (h *TranscriptionHandlers) ServeTranscription(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.Get(w, r)
	case http.MethodDelete:
		h.Delete(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// ServeTranscriptions routes /transcriptions requests by method.
func (h *TranscriptionHandlers) ServeTranscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Submit(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}
