package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
)

// Result is the outcome of one extraction.
type Result struct {
	Logs      []activitylog.RawLog
	FromCache bool
	Extractor string
}

// ExtractorStatus reports configuration state for one registered extractor.
type ExtractorStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// Status is the probe result for the extraction service.
type Status struct {
	APIKeyConfigured bool              `json:"apiKeyConfigured"`
	Extractors       []ExtractorStatus `json:"extractors"`
}

// Service routes extraction requests to a registered extractor, consulting an
// optional cache first. The first registered extractor is the default.
type Service struct {
	extractors  map[string]Extractor
	order       []string
	defaultName string
	cache       Cache
	logger      *slog.Logger
}

// NewService creates a Service over the given extractors. cache may be nil to
// disable caching.
func NewService(cache Cache, logger *slog.Logger, extractors ...Extractor) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		extractors: make(map[string]Extractor),
		cache:      cache,
		logger:     logger,
	}
	for _, ex := range extractors {
		if _, dup := s.extractors[ex.Name()]; dup {
			continue
		}
		s.extractors[ex.Name()] = ex
		s.order = append(s.order, ex.Name())
		if s.defaultName == "" {
			s.defaultName = ex.Name()
		}
	}
	return s
}

// Extract runs the preferred extractor (or the default when preferred is
// empty) against text. A cache hit short-circuits the extractor entirely and
// is marked FromCache. Zero extracted records is reported as ErrNoResults.
func (s *Service) Extract(ctx context.Context, text, preferred string) (*Result, error) {
	name := preferred
	if name == "" {
		name = s.defaultName
	}
	ex, ok := s.extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtractor, name)
	}
	if !ex.Configured() {
		return nil, ErrNotConfigured
	}

	key := CacheKey(ex.Name(), text)
	if s.cache != nil {
		if logs, hit := s.cache.Get(ctx, key); hit {
			s.logger.Debug("extraction served from cache",
				slog.String("extractor", ex.Name()),
				slog.Int("records", len(logs)))
			return &Result{Logs: logs, FromCache: true, Extractor: ex.Name()}, nil
		}
	}

	logs, err := ex.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNoResults
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, logs)
	}

	s.logger.Info("transcription extracted",
		slog.String("extractor", ex.Name()),
		slog.Int("records", len(logs)))
	return &Result{Logs: logs, Extractor: ex.Name()}, nil
}

// Status reports configuration state without performing an extraction.
// APIKeyConfigured reflects the default extractor.
func (s *Service) Status() Status {
	st := Status{}
	for _, name := range s.order {
		ex := s.extractors[name]
		st.Extractors = append(st.Extractors, ExtractorStatus{
			Name:       name,
			Configured: ex.Configured(),
		})
		if name == s.defaultName {
			st.APIKeyConfigured = ex.Configured()
		}
	}
	return st
}
