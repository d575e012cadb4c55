package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/schoolwatch-hk/schoolwatch/config"
)

type FetchResult struct {
	StatusCode  int
	ContentType string
	Body        string
	FinalURL    string
}

// Fetcher is the network boundary the orchestrator and sitemap miner fetch
// through.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
}

// FetchPolicy wraps plain HTTP fetching with per-host throttling and a
// fallback chain for broken TLS and bot-blocked pages. The last-fetch map is
// per instance, so constructing one policy per run keeps throttle state
// isolated between runs.
type FetchPolicy struct {
	client    *http.Client
	headers   http.Header
	cfg       *config.FetchConfig
	logger    *zap.SugaredLogger
	mu        sync.Mutex
	lastFetch map[string]time.Time
}

func NewFetchPolicy(cfg *config.FetchConfig, logger *zap.SugaredLogger) *FetchPolicy {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
		DisableCompression:  false,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}
	headers := http.Header{
		"User-Agent":      []string{cfg.UserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": []string{"en-US,en;q=0.5,zh-HK;q=0.4"},
		"Connection":      []string{"keep-alive"},
	}
	return &FetchPolicy{
		client:    client,
		headers:   headers,
		cfg:       cfg,
		logger:    logger,
		lastFetch: make(map[string]time.Time),
	}
}

// Fetch tries the URL directly, then falls back: TLS-looking failures retry
// over plain HTTP, and every remaining failure (including blocked 4xx/5xx
// responses) retries through the readability proxy. The original error
// propagates only when the whole chain fails.
func (p *FetchPolicy) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	res, err := p.doFetch(ctx, rawURL)
	if err == nil && res.StatusCode < http.StatusBadRequest {
		return res, nil
	}

	if err != nil {
		if looksLikeTLSError(err) && strings.HasPrefix(strings.ToLower(rawURL), "https://") {
			httpURL := "http://" + rawURL[len("https://"):]
			p.logger.Debugw("retrying over plain http", "url", httpURL)
			if downgraded, derr := p.doFetch(ctx, httpURL); derr == nil {
				return downgraded, nil
			}
		}

		// The proxy does a server-side fetch+render, which works around both
		// broken certificates and some anti-bot blocks.
		p.logger.Debugw("retrying via readability proxy", "url", rawURL)
		if proxied, perr := p.doFetch(ctx, p.proxyURL(rawURL)); perr == nil {
			return proxied, nil
		}
		return nil, err
	}

	// Direct fetch answered but looks blocked; the proxy may still get real
	// content. Keep the original response if the proxy does no better, so the
	// observed status lands in the snapshot.
	if proxied, perr := p.doFetch(ctx, p.proxyURL(rawURL)); perr == nil && proxied.StatusCode < http.StatusBadRequest {
		return proxied, nil
	}
	return res, nil
}

// FetchDirect performs one throttled request with no downgrade or proxy
// fallback.
func (p *FetchPolicy) FetchDirect(ctx context.Context, rawURL string) (*FetchResult, error) {
	return p.doFetch(ctx, rawURL)
}

func (p *FetchPolicy) doFetch(ctx context.Context, target string) (*FetchResult, error) {
	p.throttle(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, vals := range p.headers {
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}

	resp, err := p.client.Do(req)
	p.recordFetch(target)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	reader, err := charset.NewReader(resp.Body, contentType)
	if err != nil {
		reader = resp.Body
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &FetchResult{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        string(body),
		FinalURL:    target,
	}, nil
}

// throttle sleeps out the remainder of the per-domain interval since the
// last fetch against the same host.
func (p *FetchPolicy) throttle(target string) {
	host := hostOf(target)
	if host == "" {
		return
	}
	p.mu.Lock()
	last, ok := p.lastFetch[host]
	p.mu.Unlock()
	if !ok {
		return
	}
	if wait := p.cfg.PerDomainDelay - time.Since(last); wait > 0 {
		time.Sleep(wait)
	}
}

func (p *FetchPolicy) recordFetch(target string) {
	host := hostOf(target)
	if host == "" {
		return
	}
	p.mu.Lock()
	p.lastFetch[host] = time.Now()
	p.mu.Unlock()
}

// proxyURL routes the https form of the URL through the readability proxy;
// the proxy endpoint itself requires valid TLS.
func (p *FetchPolicy) proxyURL(rawURL string) string {
	httpsURL := rawURL
	if strings.HasPrefix(strings.ToLower(rawURL), "http://") {
		httpsURL = "https://" + rawURL[len("http://"):]
	}
	base := p.cfg.ProxyBaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + httpsURL
}

func looksLikeTLSError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "certificate") ||
		strings.Contains(msg, "tls") ||
		strings.Contains(msg, "x509")
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Host
}
