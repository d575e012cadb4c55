package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schoolwatch-hk/schoolwatch/config"
	"github.com/schoolwatch-hk/schoolwatch/internal/monitor"
)

// Provider labels tag which branch of the extraction chain produced a
// result, making the fallback decision table observable on stored rows.
type Provider string

const (
	ProviderHTTP        Provider = "http"
	ProviderHTTPError   Provider = "http_error"
	ProviderInvalidJSON Provider = "http_invalid_json"
	ProviderFallback    Provider = "fallback"
)

const (
	maxInputRunes  = 12000
	maxEvents      = 10
	maxTitleRunes  = 200
	fallbackTitle  = 80
	maxRawBodySize = 4000
)

// EventExtract is one event candidate as returned by the provider.
// Timestamps are millisecond epochs, matching the provider wire format.
type EventExtract struct {
	Title               string   `json:"title"`
	EventAt             *int64   `json:"event_at,omitempty"`
	RegistrationOpenAt  *int64   `json:"registration_open_at,omitempty"`
	RegistrationCloseAt *int64   `json:"registration_close_at,omitempty"`
	Quota               *int     `json:"quota,omitempty"`
	TargetStudentYears  []string `json:"target_student_years,omitempty"`
	TargetAdmissionYear *string  `json:"target_admission_year,omitempty"`
	Language            string   `json:"language,omitempty"`
	Confidence          *float64 `json:"confidence,omitempty"`
	ExtractionNotes     string   `json:"extraction_notes,omitempty"`
}

type Result struct {
	Provider   Provider        `json:"provider"`
	RequestID  string          `json:"request_id"`
	Events     []EventExtract  `json:"events"`
	Confidence *float64        `json:"confidence,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Service calls the configured extraction provider and degrades to a local
// heuristic whenever the provider is missing, erroring or returning garbage.
// Extraction never hard-fails the pipeline.
type Service struct {
	cfg    *config.ExtractorConfig
	client *http.Client
	cache  *redis.Client
	logger *zap.SugaredLogger
}

func NewService(cfg *config.ExtractorConfig, cache *redis.Client, logger *zap.SugaredLogger) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		cache:  cache,
		logger: logger,
	}
}

// Extract turns raw announcement text into structured event candidates.
// Results are cached by content hash: unchanged content re-extracts from
// cache instead of hitting the provider again.
func (s *Service) Extract(ctx context.Context, schoolID int64, sourceURL, contentText, contentHash string) (*Result, error) {
	inputText := truncateRunes(contentText, maxInputRunes)
	requestID := monitor.ContentHash(contentHash + sourceURL)
	cacheKey := "extract:" + requestID

	if cached := s.cacheGet(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	res := s.extract(ctx, schoolID, sourceURL, inputText, contentHash, requestID)
	s.cacheSet(ctx, cacheKey, res)
	return res, nil
}

func (s *Service) extract(ctx context.Context, schoolID int64, sourceURL, inputText, contentHash, requestID string) *Result {
	if s.cfg.BaseURL == "" || s.cfg.APIKey == "" {
		res := fallbackExtract(inputText, "fallback extractor (provider not configured)")
		res.Provider = ProviderFallback
		res.RequestID = requestID
		return res
	}

	payload := map[string]interface{}{
		"task":         "extract_school_events",
		"school_id":    schoolID,
		"source_url":   sourceURL,
		"content_hash": contentHash,
		"instructions": "Extract open-day/admissions-related events from the provided text. Return JSON only. If unknown, omit the field.",
		"text":         inputText,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		res := fallbackExtract(inputText, "fallback extractor (request marshal failed)")
		res.Provider = ProviderFallback
		res.RequestID = requestID
		return res
	}

	endpoint := strings.TrimSuffix(s.cfg.BaseURL, "/") + "/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		res := fallbackExtract(inputText, "fallback extractor (bad provider endpoint)")
		res.Provider = ProviderFallback
		res.RequestID = requestID
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	if s.cfg.Model != "" {
		req.Header.Set("X-Model", s.cfg.Model)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warnw("extraction provider unreachable", "url", sourceURL, "error", err)
		res := fallbackExtract(inputText, "fallback extractor (provider unreachable)")
		res.Provider = ProviderHTTPError
		res.RequestID = requestID
		return res
	}
	defer resp.Body.Close()

	rawText, err := io.ReadAll(resp.Body)
	if err != nil {
		res := fallbackExtract(inputText, "fallback extractor (provider read failed)")
		res.Provider = ProviderHTTPError
		res.RequestID = requestID
		return res
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warnw("extraction provider returned error", "status", resp.StatusCode, "url", sourceURL)
		res := fallbackExtract(inputText, "fallback extractor (provider error)")
		res.Provider = ProviderHTTPError
		res.RequestID = monitor.ContentHash(string(rawText))
		res.Raw = mustRawJSON(map[string]interface{}{
			"status": resp.StatusCode,
			"body":   truncateRunes(string(rawText), maxRawBodySize),
		})
		return res
	}

	var parsed providerResponse
	if err := json.Unmarshal(rawText, &parsed); err != nil {
		res := fallbackExtract(inputText, "fallback extractor (invalid provider JSON)")
		res.Provider = ProviderInvalidJSON
		res.RequestID = monitor.ContentHash(string(rawText))
		res.Raw = mustRawJSON(map[string]interface{}{
			"body": truncateRunes(string(rawText), maxRawBodySize),
		})
		return res
	}

	return &Result{
		Provider:   ProviderHTTP,
		RequestID:  requestID,
		Events:     normalizeEvents(parsed.Events, inputText),
		Confidence: parsed.Confidence,
		Raw:        json.RawMessage(rawText),
	}
}

type providerResponse struct {
	Events     []EventExtract `json:"events"`
	Confidence *float64       `json:"confidence"`
	Notes      string         `json:"notes"`
}

func normalizeEvents(events []EventExtract, inputText string) []EventExtract {
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	out := make([]EventExtract, 0, len(events))
	for _, e := range events {
		e.Title = truncateRunes(strings.TrimSpace(e.Title), maxTitleRunes)
		if e.Title == "" {
			continue
		}
		if len(e.TargetStudentYears) > 6 {
			e.TargetStudentYears = e.TargetStudentYears[:6]
		}
		switch e.Language {
		case "zh", "en", "mixed":
		default:
			e.Language = guessLanguage(inputText)
		}
		out = append(out, e)
	}
	return out
}

// fallbackExtract echoes a truncated title as a single low-confidence event
// so downstream consumers always have something to show.
func fallbackExtract(text, notes string) *Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		zero := 0.0
		return &Result{
			Events:     nil,
			Confidence: &zero,
			Raw:        mustRawJSON(map[string]string{"reason": "empty"}),
		}
	}
	low := 0.1
	title := truncateRunes(trimmed, fallbackTitle)
	return &Result{
		Events: []EventExtract{{
			Title:           title,
			Language:        guessLanguage(trimmed),
			Confidence:      &low,
			ExtractionNotes: notes,
		}},
		Confidence: &low,
		Raw:        mustRawJSON(map[string]string{"title": title}),
	}
}

func guessLanguage(text string) string {
	hasZh := false
	hasEn := false
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			hasZh = true
		} else if r < 128 && unicode.IsLetter(r) {
			hasEn = true
		}
		if hasZh && hasEn {
			return "mixed"
		}
	}
	if hasZh {
		return "zh"
	}
	return "en"
}

func (s *Service) cacheGet(ctx context.Context, key string) *Result {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		return nil
	}
	var res Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil
	}
	return &res
}

func (s *Service) cacheSet(ctx context.Context, key string, res *Result) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Debugw("failed to cache extraction result", "key", key, "error", err)
	}
}

func mustRawJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
