// Package extract turns free-text transcriptions into structured activity
// records using an AI extraction backend, with optional result caching.
package extract

import (
	"context"
	"errors"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
)

// Extraction errors.
var (
	// ErrNotConfigured indicates the selected extractor has no credential.
	ErrNotConfigured = errors.New("extractor is not configured")

	// ErrUnknownExtractor indicates the requested extractor name is not registered.
	ErrUnknownExtractor = errors.New("unknown extractor")

	// ErrNoResults indicates the extractor found no activity records in the text.
	ErrNoResults = errors.New("no activity records found in transcription")
)

// Extractor converts a transcription into raw activity records.
type Extractor interface {
	// Extract parses text into zero or more raw activity records.
	Extract(ctx context.Context, text string) ([]activitylog.RawLog, error)

	// Configured reports whether the extractor has the credentials it
	// needs to serve requests.
	Configured() bool

	// Name identifies the extractor (e.g. "gemini").
	Name() string
}
