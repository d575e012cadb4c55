package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolwatch-hk/schoolwatch/config"
)

func testFetchConfig() *config.FetchConfig {
	return &config.FetchConfig{
		PerDomainDelay:   0,
		InterSchoolDelay: 0,
		RequestTimeout:   5 * time.Second,
		ProxyBaseURL:     "https://r.jina.ai/",
		UserAgent:        "schoolwatch-test/1.0",
	}
}

func newTestPolicy(cfg *config.FetchConfig) *FetchPolicy {
	return NewFetchPolicy(cfg, zap.NewNop().Sugar())
}

func TestFetch_Direct(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	p := newTestPolicy(testFetchConfig())
	res, err := p.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "<html>hello</html>", res.Body)
	assert.Equal(t, srv.URL+"/", res.FinalURL)
	assert.Equal(t, "schoolwatch-test/1.0", gotUA)
}

func TestFetch_PerDomainThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := testFetchConfig()
	cfg.PerDomainDelay = 120 * time.Millisecond
	p := newTestPolicy(cfg)

	_, err := p.Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Fetch(context.Background(), srv.URL+"/b")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestFetch_BlockedStatusFallsBackToProxy(t *testing.T) {
	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer blocked.Close()

	var proxiedPath string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedPath = r.URL.Path
		w.Write([]byte("readable content"))
	}))
	defer proxy.Close()

	cfg := testFetchConfig()
	cfg.ProxyBaseURL = proxy.URL + "/"
	p := newTestPolicy(cfg)

	res, err := p.Fetch(context.Background(), blocked.URL+"/news")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "readable content", res.Body)
	// The proxy is always handed the https form of the original URL.
	assert.Contains(t, proxiedPath, "https://")
	assert.Contains(t, proxiedPath, "/news")
}

func TestFetch_KeepsBlockedResponseWhenProxyNoBetter(t *testing.T) {
	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("blocked page"))
	}))
	defer blocked.Close()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "proxy down", http.StatusBadGateway)
	}))
	defer proxy.Close()

	cfg := testFetchConfig()
	cfg.ProxyBaseURL = proxy.URL + "/"
	p := newTestPolicy(cfg)

	res, err := p.Fetch(context.Background(), blocked.URL+"/news")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "blocked page", res.Body)
}

func TestFetch_NetworkErrorFallsBackToProxy(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("rescued"))
	}))
	defer proxy.Close()

	cfg := testFetchConfig()
	cfg.ProxyBaseURL = proxy.URL + "/"
	p := newTestPolicy(cfg)

	res, err := p.Fetch(context.Background(), deadURL+"/news")
	require.NoError(t, err)
	assert.Equal(t, "rescued", res.Body)
}

func TestFetch_ErrorPropagatesWhenChainExhausted(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	cfg := testFetchConfig()
	cfg.ProxyBaseURL = deadURL + "/"
	p := newTestPolicy(cfg)

	_, err := p.Fetch(context.Background(), deadURL+"/news")
	assert.Error(t, err)
}

func TestLooksLikeTLSError(t *testing.T) {
	assert.True(t, looksLikeTLSError(errors.New("x509: certificate signed by unknown authority")))
	assert.True(t, looksLikeTLSError(errors.New("remote error: tls: handshake failure")))
	assert.False(t, looksLikeTLSError(errors.New("connection refused")))
	assert.False(t, looksLikeTLSError(errors.New("no such host")))
}

func TestProxyURL(t *testing.T) {
	cfg := testFetchConfig()
	p := newTestPolicy(cfg)

	assert.Equal(t, "https://r.jina.ai/https://example.edu.hk/news",
		p.proxyURL("https://example.edu.hk/news"))
	// Plain-http targets are upgraded before being handed to the proxy.
	assert.Equal(t, "https://r.jina.ai/https://example.edu.hk/news",
		p.proxyURL("http://example.edu.hk/news"))

	cfg.ProxyBaseURL = "https://r.jina.ai"
	assert.Equal(t, "https://r.jina.ai/https://example.edu.hk/",
		p.proxyURL("https://example.edu.hk/"))
}

func TestDiscoverFromSitemap_MissingSitemapSkipsProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var proxyHits int
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxyHits++
		w.Write([]byte("proxied sitemap"))
	}))
	defer proxy.Close()

	cfg := testFetchConfig()
	cfg.ProxyBaseURL = proxy.URL + "/"
	p := newTestPolicy(cfg)

	urls := DiscoverFromSitemap(context.Background(), srv.URL+"/home", p)
	assert.Empty(t, urls)
	assert.Zero(t, proxyHits)
}

func TestFetchDirect_NoFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	var proxyHits int
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxyHits++
		w.Write([]byte("proxied"))
	}))
	defer proxy.Close()

	cfg := testFetchConfig()
	cfg.ProxyBaseURL = proxy.URL + "/"
	p := newTestPolicy(cfg)

	res, err := p.FetchDirect(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Zero(t, proxyHits)
}
