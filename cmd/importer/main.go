// Package main is the entry point for the batch importer.
//
// The importer loads activity data from files into the database without going
// through the HTTP API. It accepts two file formats:
//
//   - .json files containing an array of raw activity records, which are
//     normalized and inserted directly
//   - .txt files containing transcription text, which are run through the
//     extraction pipeline (requires a configured Gemini API key)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
	"github.com/apconsolide/tale-mosaic/internal/config"
	"github.com/apconsolide/tale-mosaic/internal/db"
	"github.com/apconsolide/tale-mosaic/internal/extract"
	"github.com/apconsolide/tale-mosaic/internal/middleware"
	"github.com/apconsolide/tale-mosaic/internal/pipeline"
	"github.com/apconsolide/tale-mosaic/internal/transcription"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	dryRun := flag.Bool("dry-run", false, "parse and extract without writing to the database")
	flag.Parse()

	if *help || flag.NArg() == 0 {
		fmt.Println("Tale Mosaic Importer")
		fmt.Println()
		fmt.Println("Usage: importer [options] <file>...")
		fmt.Println()
		fmt.Println("Files ending in .json are imported as raw activity records.")
		fmt.Println("Files ending in .txt are submitted as transcriptions.")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, cfgErrs := config.Load(*configFile)
	if len(cfgErrs) > 0 {
		for _, err := range cfgErrs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx := context.Background()

	if cfg.DatabaseURL == "" && !*dryRun {
		logger.Error("DATABASE_URL is required for import (use -dry-run to preview)")
		os.Exit(1)
	}

	var (
		logRepo           activitylog.Repository
		transcriptionRepo transcription.Repository
		capability        db.Capability
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		capability = db.Probe(ctx, conn)
		if capability != db.CapabilityReady {
			logger.Error("database schema is not ready, run migrations first", "schema", capability.String())
			os.Exit(1)
		}
		logRepo = activitylog.NewPostgresRepository(conn, logger)
		transcriptionRepo = transcription.NewPostgresRepository(conn, logger)
	} else {
		logRepo = activitylog.NewInMemoryRepository()
		transcriptionRepo = transcription.NewInMemoryRepository()
		capability = db.CapabilityReady
	}

	gemini := extract.NewGeminiExtractor(extract.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	extractionService := extract.NewService(nil, logger, gemini)

	submitPipeline := pipeline.New(pipeline.Config{
		Extractor:      extractionService,
		Logs:           logRepo,
		Transcriptions: transcriptionRepo,
		Capability:     capability,
		Logger:         logger,
	})

	imp := &importer{
		logs:     logRepo,
		pipeline: submitPipeline,
		logger:   logger,
		dryRun:   *dryRun,
	}

	var imported, failed int
	for _, path := range flag.Args() {
		n, err := imp.importFile(ctx, path)
		if err != nil {
			logger.Error("import failed", "file", path, "error", err)
			failed++
			continue
		}
		logger.Info("imported", "file", path, "logs", n)
		imported += n
	}

	logger.Info("import complete", "logs", imported, "failed_files", failed, "dry_run", *dryRun)
	if failed > 0 {
		os.Exit(1)
	}
}

type importer struct {
	logs     activitylog.Repository
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	dryRun   bool
}

// importFile imports a single file and returns the number of logs produced.
func (imp *importer) importFile(ctx context.Context, path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return imp.importRawLogs(ctx, path)
	case ".txt":
		return imp.importTranscription(ctx, path)
	default:
		return 0, fmt.Errorf("unsupported file type %q (want .json or .txt)", filepath.Ext(path))
	}
}

// importRawLogs reads a JSON array of raw activity records, normalizes them
// and inserts the batch atomically.
func (imp *importer) importRawLogs(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var raws []activitylog.RawLog
	if err := json.Unmarshal(data, &raws); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(raws) == 0 {
		return 0, nil
	}

	logs := activitylog.NormalizeBatch(raws, time.Now().UTC())
	if imp.dryRun {
		return len(logs), nil
	}
	if err := imp.logs.InsertBatch(ctx, logs); err != nil {
		return 0, fmt.Errorf("inserting batch: %w", err)
	}
	return len(logs), nil
}

// importTranscription submits the file contents through the extraction
// pipeline. The file name, without extension, becomes the title.
func (imp *importer) importTranscription(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	result, err := imp.pipeline.Submit(ctx, pipeline.SubmitRequest{
		Text:    string(data),
		Title:   title,
		Persist: !imp.dryRun,
	})
	if err != nil {
		return 0, err
	}
	return len(result.Logs), nil
}
