package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
	"github.com/apconsolide/tale-mosaic/internal/db"
	"github.com/apconsolide/tale-mosaic/internal/extract"
	"github.com/apconsolide/tale-mosaic/internal/transcription"
)

// Pipeline errors.
var (
	// ErrEmptyTranscription indicates the submitted text was empty after
	// trimming. The extractor is never called in this case.
	ErrEmptyTranscription = errors.New("transcription text is empty")

	// ErrSubmitInFlight indicates another submission is being processed.
	// Submissions are serialized per pipeline, mirroring the single
	// submit control in the dashboard.
	ErrSubmitInFlight = errors.New("a submission is already in progress")

	// ErrPersistFailed wraps storage failures during submission. The
	// batch insert is atomic, so no partial state is left behind.
	ErrPersistFailed = errors.New("failed to persist extracted logs")
)

// SubmitRequest describes one transcription submission.
type SubmitRequest struct {
	Text               string
	Title              string
	PreferredExtractor string
	Persist            bool
}

// SubmitResult is the outcome of a submission. Logs are always populated on
// success, even when persistence was skipped because the schema is missing.
type SubmitResult struct {
	Logs            []activitylog.ActivityLog
	FromCache       bool
	Extractor       string
	Persisted       bool
	SchemaMissing   bool
	TranscriptionID string
}

// DeleteResult reports what a cascade delete removed.
type DeleteResult struct {
	LogsDeleted int64
}

// Config wires a Pipeline's dependencies. Metrics may be nil.
type Config struct {
	Extractor      *extract.Service
	Logs           activitylog.Repository
	Transcriptions transcription.Repository
	Capability     db.Capability
	Metrics        *Metrics
	Logger         *slog.Logger
}

// Pipeline runs transcription submissions end to end and owns the cascade
// delete ordering for transcriptions.
type Pipeline struct {
	extractor      *extract.Service
	logs           activitylog.Repository
	transcriptions transcription.Repository
	capability     db.Capability
	metrics        *Metrics
	logger         *slog.Logger
	now            func() time.Time

	mu       sync.Mutex
	inFlight bool
}

// New creates a Pipeline from config.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:      cfg.Extractor,
		logs:           cfg.Logs,
		transcriptions: cfg.Transcriptions,
		capability:     cfg.Capability,
		metrics:        cfg.Metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// Capability returns the schema capability the pipeline was built with.
func (p *Pipeline) Capability() db.Capability {
	return p.capability
}

// acquire marks a submission in flight. Returns false when one already is.
func (p *Pipeline) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight {
		return false
	}
	p.inFlight = true
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.inFlight = false
	p.mu.Unlock()
}

// Submit runs one transcription through extract, normalize and persist.
//
// Empty text fails fast with ErrEmptyTranscription before any service call.
// Zero extracted records surfaces extract.ErrNoResults and persists nothing.
// When the schema is not ready the extracted logs are still returned with
// SchemaMissing set, so the caller can show them alongside setup guidance.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyTranscription
	}

	if !p.acquire() {
		return nil, ErrSubmitInFlight
	}
	defer p.release()

	if p.metrics != nil {
		p.metrics.IncSubmissions()
	}

	extracted, err := p.extractor.Extract(ctx, text, req.PreferredExtractor)
	if err != nil {
		if p.metrics != nil && !errors.Is(err, extract.ErrNoResults) {
			p.metrics.IncExtractionErrors()
		}
		return nil, err
	}

	now := p.now()
	logs := activitylog.NormalizeBatch(extracted.Logs, now)

	if p.metrics != nil {
		p.metrics.AddLogsGenerated(len(logs))
		if extracted.FromCache {
			p.metrics.IncCacheHits()
		}
	}

	result := &SubmitResult{
		Logs:      logs,
		FromCache: extracted.FromCache,
		Extractor: extracted.Extractor,
	}

	if !req.Persist {
		return result, nil
	}

	if p.capability != db.CapabilityReady {
		result.SchemaMissing = true
		p.logger.Warn("skipping persistence, schema not ready",
			slog.String("capability", p.capability.String()),
			slog.Int("logs", len(logs)))
		return result, nil
	}

	start := time.Now()
	rec := &transcription.Transcription{
		Text:          text,
		Title:         req.Title,
		LogsGenerated: len(logs),
		CreatedAt:     now,
	}
	if err := p.transcriptions.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	for i := range logs {
		tid := rec.ID
		logs[i].TranscriptionID = &tid
	}
	if err := p.logs.InsertBatch(ctx, logs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	if p.metrics != nil {
		p.metrics.ObservePersistLatency(time.Since(start).Seconds())
	}

	result.Logs = logs
	result.Persisted = true
	result.TranscriptionID = rec.ID

	p.logger.Info("transcription submitted",
		slog.String("transcription_id", rec.ID),
		slog.Int("logs", len(logs)),
		slog.Bool("from_cache", extracted.FromCache))
	return result, nil
}

// Delete removes a transcription and its logs, children first. A child
// delete failure aborts before the transcription is touched, so a retry
// can finish the job.
func (p *Pipeline) Delete(ctx context.Context, transcriptionID string) (*DeleteResult, error) {
	if _, err := p.transcriptions.GetByID(ctx, transcriptionID); err != nil {
		return nil, err
	}

	removed, err := p.logs.DeleteByTranscription(ctx, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete logs for transcription: %w", err)
	}
	if err := p.transcriptions.Delete(ctx, transcriptionID); err != nil {
		return nil, fmt.Errorf("failed to delete transcription: %w", err)
	}

	p.logger.Info("transcription deleted",
		slog.String("transcription_id", transcriptionID),
		slog.Int64("logs_deleted", removed))
	return &DeleteResult{LogsDeleted: removed}, nil
}
