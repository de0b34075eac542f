package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
)

// Defaults for the Generative Language API.
const (
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// extractionInstruction is the system instruction sent with every request.
// The response MIME type is pinned to JSON so the model returns a bare array.
const extractionInstruction = `You extract structured activity records from site work transcriptions.
Given a transcription, return a JSON array of activity records. Each record has these fields:
location (required, the place where the activity happened), activityCategory, activityType,
equipment, personnel, material, measurement, status (one of completed, in-progress, planned,
delayed, cancelled), notes, and coordinates (a [longitude, latitude] array, only when the
transcription names an unambiguous real place). Use empty strings for fields the transcription
does not mention. Split distinct activities into separate records. Return only the JSON array.`

// GeminiConfig configures a GeminiExtractor.
type GeminiConfig struct {
	// APIKey authenticates against the Generative Language API.
	// An empty key leaves the extractor unconfigured.
	APIKey string

	// Model is the model identifier. Defaults to DefaultGeminiModel.
	Model string

	// BaseURL overrides the API base URL, mainly for tests.
	BaseURL string

	// HTTPClient overrides the HTTP client. Defaults to a client with a
	// 60 second timeout.
	HTTPClient *http.Client
}

// GeminiExtractor extracts activity records by calling the Generative
// Language API directly over HTTP.
type GeminiExtractor struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiExtractor creates a GeminiExtractor from config, applying defaults.
func NewGeminiExtractor(cfg GeminiConfig) *GeminiExtractor {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &GeminiExtractor{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

// Name identifies the extractor.
func (g *GeminiExtractor) Name() string { return "gemini" }

// Configured reports whether an API key is present.
func (g *GeminiExtractor) Configured() bool { return g.apiKey != "" }

// Request/response wire types for the generateContent endpoint.
type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig  `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Extract sends the transcription to the generateContent endpoint and decodes
// the returned JSON array of raw activity records.
func (g *GeminiExtractor) Extract(ctx context.Context, text string) ([]activitylog.RawLog, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: text}}},
		},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: extractionInstruction}},
		},
		GenerationConfig: &geminiGenConfig{
			ResponseMimeType: "application/json",
			Temperature:      0.2,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil && decoded.Error.Message != "" {
			return nil, fmt.Errorf("extraction API error (status %d): %s", resp.StatusCode, decoded.Error.Message)
		}
		return nil, fmt.Errorf("extraction API returned status %d", resp.StatusCode)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("extraction API returned no candidates")
	}

	raw := stripCodeFences(decoded.Candidates[0].Content.Parts[0].Text)

	var logs []activitylog.RawLog
	if err := json.Unmarshal([]byte(raw), &logs); err != nil {
		return nil, fmt.Errorf("failed to parse extracted records: %w", err)
	}
	return logs, nil
}

// stripCodeFences removes a surrounding markdown code fence. The JSON response
// MIME type usually prevents fences, but some models emit them anyway.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
