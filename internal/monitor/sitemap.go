package monitor

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

const maxSitemapLinks = 5

var locRe = regexp.MustCompile(`(?i)<loc>([^<]+)</loc>`)

// Sitemap keywords include percent-encoded Chinese terms because sitemap
// entries usually carry escaped paths.
var sitemapKeywords = []string{
	"news",
	"announcement",
	"notices",
	"events",
	"open-day",
	"openday",
	"admission",
	"%e6%9c%80%e6%96%b0%e6%b6%88%e6%81%af", // 最新消息
	"%e9%80%9a%e5%91%8a",                   // 通告
	"%e6%b4%bb%e5%8b%95",                   // 活動
	"%e5%85%a5%e5%ad%b8",                   // 入學
	"%e9%96%8b%e6%94%be%e6%97%a5",          // 開放日
}

type directFetcher interface {
	FetchDirect(ctx context.Context, rawURL string) (*FetchResult, error)
}

// DiscoverFromSitemap mines /sitemap.xml at the root's origin for candidate
// URLs. The regex scan tolerates malformed XML; any failure yields an empty
// list rather than an error. The probe uses the fetcher's direct mode when
// available, so a missing sitemap never reaches the proxy fallback.
func DiscoverFromSitemap(ctx context.Context, rootURL string, fetcher Fetcher) []string {
	root, err := url.Parse(rootURL)
	if err != nil {
		return nil
	}
	origin := root.Scheme + "://" + root.Host

	fetch := fetcher.Fetch
	if df, ok := fetcher.(directFetcher); ok {
		fetch = df.FetchDirect
	}
	res, err := fetch(ctx, origin+"/sitemap.xml")
	if err != nil || res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil
	}

	var out []string
	for _, m := range locRe.FindAllStringSubmatch(res.Body, -1) {
		loc := strings.TrimSpace(m[1])
		if loc == "" {
			continue
		}
		locURL, err := url.Parse(loc)
		if err != nil || !sameOrigin(locURL, root) {
			continue
		}
		if !containsAnyKeyword(strings.ToLower(loc), sitemapKeywords) {
			continue
		}
		out = append(out, loc)
		if len(out) >= maxSitemapLinks {
			break
		}
	}
	return out
}
