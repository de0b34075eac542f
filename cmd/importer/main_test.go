package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
	"github.com/apconsolide/tale-mosaic/internal/db"
	"github.com/apconsolide/tale-mosaic/internal/extract"
	"github.com/apconsolide/tale-mosaic/internal/pipeline"
	"github.com/apconsolide/tale-mosaic/internal/transcription"
)

type stubExtractor struct {
	logs []activitylog.RawLog
}

func (s *stubExtractor) Extract(ctx context.Context, text string) ([]activitylog.RawLog, error) {
	return s.logs, nil
}

func (s *stubExtractor) Configured() bool { return true }
func (s *stubExtractor) Name() string     { return "gemini" }

func newTestImporter(t *testing.T, ex extract.Extractor) (*importer, *activitylog.InMemoryRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logRepo := activitylog.NewInMemoryRepository()
	p := pipeline.New(pipeline.Config{
		Extractor:      extract.NewService(nil, logger, ex),
		Logs:           logRepo,
		Transcriptions: transcription.NewInMemoryRepository(),
		Capability:     db.CapabilityReady,
		Logger:         logger,
	})
	return &importer{logs: logRepo, pipeline: p, logger: logger}, logRepo
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportRawLogs(t *testing.T) {
	imp, repo := newTestImporter(t, &stubExtractor{})

	path := writeFile(t, "logs.json", `[
		{"activityType": "Poured concrete", "location": "Dock 3", "status": "COMPLETED"},
		{"activityType": "Framing", "location": "North Yard", "status": "in-progress"}
	]`)

	n, err := imp.importFile(context.Background(), path)
	if err != nil {
		t.Fatalf("importFile() error = %v", err)
	}
	if n != 2 {
		t.Errorf("importFile() = %d logs, want 2", n)
	}

	stored, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("repo has %d logs, want 2", len(stored))
	}
	for _, log := range stored {
		if !activitylog.ValidStatus(log.Status) {
			t.Errorf("stored log has invalid status %q", log.Status)
		}
	}
}

func TestImportRawLogs_DryRun(t *testing.T) {
	imp, repo := newTestImporter(t, &stubExtractor{})
	imp.dryRun = true

	path := writeFile(t, "logs.json", `[{"activityType": "Survey", "location": "East Gate"}]`)

	n, err := imp.importFile(context.Background(), path)
	if err != nil {
		t.Fatalf("importFile() error = %v", err)
	}
	if n != 1 {
		t.Errorf("importFile() = %d logs, want 1", n)
	}

	stored, _ := repo.List(context.Background())
	if len(stored) != 0 {
		t.Errorf("dry run wrote %d logs, want 0", len(stored))
	}
}

func TestImportTranscription(t *testing.T) {
	ex := &stubExtractor{logs: []activitylog.RawLog{
		{ActivityType: "Poured concrete", Location: "Dock 3"},
	}}
	imp, repo := newTestImporter(t, ex)

	path := writeFile(t, "morning-walkthrough.txt", "Poured concrete at dock 3 this morning.")

	n, err := imp.importFile(context.Background(), path)
	if err != nil {
		t.Fatalf("importFile() error = %v", err)
	}
	if n != 1 {
		t.Errorf("importFile() = %d logs, want 1", n)
	}

	stored, _ := repo.List(context.Background())
	if len(stored) != 1 {
		t.Fatalf("repo has %d logs, want 1", len(stored))
	}
}

func TestImportFile_UnsupportedType(t *testing.T) {
	imp, _ := newTestImporter(t, &stubExtractor{})

	path := writeFile(t, "notes.csv", "a,b,c")

	if _, err := imp.importFile(context.Background(), path); err == nil {
		t.Error("importFile() with .csv returned nil error")
	}
}

func TestImportRawLogs_InvalidJSON(t *testing.T) {
	imp, _ := newTestImporter(t, &stubExtractor{})

	path := writeFile(t, "bad.json", `{not json`)

	if _, err := imp.importFile(context.Background(), path); err == nil {
		t.Error("importFile() with invalid JSON returned nil error")
	}
}
