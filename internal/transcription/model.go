// Package transcription provides models and repositories for submitted
// free-text transcriptions and their extraction history.
package transcription

import (
	"errors"
	"time"
)

// Common errors for transcription operations.
var (
	ErrTranscriptionNotFound = errors.New("transcription not found")
)

// Transcription represents a submitted free-text transcription. LogsGenerated
// is the number of activity logs extracted from it.
type Transcription struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Title         string    `json:"title,omitempty"`
	LogsGenerated int       `json:"logsGenerated"`
	CreatedAt     time.Time `json:"createdAt"`
}
