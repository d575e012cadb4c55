package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolwatch-hk/schoolwatch/config"
	"github.com/schoolwatch-hk/schoolwatch/internal/monitor"
)

func newTestService(cfg *config.ExtractorConfig) *Service {
	return NewService(cfg, nil, zap.NewNop().Sugar())
}

func TestExtract_FallbackWhenUnconfigured(t *testing.T) {
	svc := newTestService(&config.ExtractorConfig{})

	res, err := svc.Extract(context.Background(), 1,
		"https://example.edu.hk/news/open-day",
		"模範小學 Open Day 2026, all welcome", "abcd1234")
	require.NoError(t, err)

	assert.Equal(t, ProviderFallback, res.Provider)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "模範小學 Open Day 2026, all welcome", res.Events[0].Title)
	assert.Equal(t, "mixed", res.Events[0].Language)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.1, *res.Confidence, 1e-9)
	assert.NotEmpty(t, res.RequestID)
}

func TestExtract_FallbackTitleTruncated(t *testing.T) {
	svc := newTestService(&config.ExtractorConfig{})

	long := strings.Repeat("開放日", 100)
	res, err := svc.Extract(context.Background(), 1, "https://example.edu.hk/", long, "h")
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Len(t, []rune(res.Events[0].Title), fallbackTitle)
	assert.Equal(t, "zh", res.Events[0].Language)
}

func TestExtract_FallbackEmptyText(t *testing.T) {
	svc := newTestService(&config.ExtractorConfig{})

	res, err := svc.Extract(context.Background(), 1, "https://example.edu.hk/", "   ", "h")
	require.NoError(t, err)

	assert.Equal(t, ProviderFallback, res.Provider)
	assert.Empty(t, res.Events)
	require.NotNil(t, res.Confidence)
	assert.Zero(t, *res.Confidence)
}

func TestExtract_ProviderSuccess(t *testing.T) {
	var gotAuth, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotModel = r.Header.Get("X-Model")
		assert.Equal(t, "/extract", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"events": [
				{"title": "  Open Day 2026  ", "event_at": 1772707200000, "quota": 120, "language": "en"},
				{"title": "", "event_at": 1772707200000},
				{"title": "入學簡介會"}
			],
			"confidence": 0.85
		}`))
	}))
	defer srv.Close()

	svc := newTestService(&config.ExtractorConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "events-v2",
	})

	res, err := svc.Extract(context.Background(), 7,
		"https://example.edu.hk/news", "入學簡介會 Open Day details", "hash1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "events-v2", gotModel)
	assert.Equal(t, ProviderHTTP, res.Provider)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.85, *res.Confidence, 1e-9)

	// Empty titles are dropped, whitespace trimmed, missing language guessed
	// from the input text.
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Open Day 2026", res.Events[0].Title)
	assert.Equal(t, "en", res.Events[0].Language)
	assert.Equal(t, "入學簡介會", res.Events[1].Title)
	assert.Equal(t, "mixed", res.Events[1].Language)
}

func TestExtract_ProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestService(&config.ExtractorConfig{BaseURL: srv.URL, APIKey: "k"})

	res, err := svc.Extract(context.Background(), 1,
		"https://example.edu.hk/news", "Open day announcement", "hash1")
	require.NoError(t, err)

	assert.Equal(t, ProviderHTTPError, res.Provider)
	// Falls back to the local heuristic so the caller still gets an event.
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Open day announcement", res.Events[0].Title)
	assert.Contains(t, string(res.Raw), "upstream exploded")
	assert.Contains(t, string(res.Raw), "500")
	// Error-path request ids are derived from the raw provider body.
	assert.Equal(t, monitor.ContentHash("upstream exploded\n"), res.RequestID)
}

func TestExtract_ProviderInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer srv.Close()

	svc := newTestService(&config.ExtractorConfig{BaseURL: srv.URL, APIKey: "k"})

	res, err := svc.Extract(context.Background(), 1,
		"https://example.edu.hk/news", "Open day announcement", "hash1")
	require.NoError(t, err)

	assert.Equal(t, ProviderInvalidJSON, res.Provider)
	require.Len(t, res.Events, 1)
	assert.Contains(t, string(res.Raw), "not json")
	assert.Equal(t, monitor.ContentHash("<html>definitely not json</html>"), res.RequestID)
}

func TestExtract_ProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	svc := newTestService(&config.ExtractorConfig{BaseURL: url, APIKey: "k"})

	res, err := svc.Extract(context.Background(), 1,
		"https://example.edu.hk/news", "Open day announcement", "hash1")
	require.NoError(t, err)

	assert.Equal(t, ProviderHTTPError, res.Provider)
	require.Len(t, res.Events, 1)
}

func TestNormalizeEvents_CapsAndYears(t *testing.T) {
	events := make([]EventExtract, 0, maxEvents+3)
	for i := 0; i < maxEvents+3; i++ {
		events = append(events, EventExtract{
			Title:              "Open Day",
			Language:           "en",
			TargetStudentYears: []string{"K1", "K2", "K3", "P1", "P2", "P3", "P4"},
		})
	}

	out := normalizeEvents(events, "text")
	assert.Len(t, out, maxEvents)
	assert.Len(t, out[0].TargetStudentYears, 6)
}

func TestGuessLanguage(t *testing.T) {
	assert.Equal(t, "zh", guessLanguage("開放日通告"))
	assert.Equal(t, "en", guessLanguage("Open day notice"))
	assert.Equal(t, "mixed", guessLanguage("開放日 Open Day"))
	assert.Equal(t, "en", guessLanguage("2026-03-14"))
}
