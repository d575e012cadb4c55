package monitor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Bilingual keywords a candidate URL must carry to be worth fetching.
var linkKeywords = []string{
	"news",
	"announcement",
	"notices",
	"events",
	"open day",
	"admission",
	"最新消息",
	"通告",
	"活動",
	"入學",
	"開放日",
}

const maxCandidateLinks = 8

// The readability proxy renders pages as Markdown, so href scanning alone
// misses its links.
var markdownLinkRe = regexp.MustCompile(`\]\((https?://[^)\s]+)\)`)

var assetExtRe = regexp.MustCompile(`\.(png|jpe?g|gif|svg|webp|ico|css|js|map|woff2?|ttf|eot)(\?|$)`)

// ExtractCandidateLinks returns up to eight same-origin URLs from content
// that plausibly lead to admissions pages. Malformed markup only reduces
// recall, it never fails.
func ExtractCandidateLinks(content, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var raws []string
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			raws = append(raws, strings.TrimSpace(s.AttrOr("href", "")))
		})
	}
	for _, m := range markdownLinkRe.FindAllStringSubmatch(content, -1) {
		raws = append(raws, m[1])
	}

	seen := make(map[string]bool)
	var out []string
	for _, raw := range raws {
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "mailto:") {
			continue
		}
		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if !sameOrigin(abs, base) {
			continue
		}
		absStr := abs.String()
		if seen[absStr] || !matchesLinkKeyword(absStr) {
			continue
		}
		seen[absStr] = true
		out = append(out, absStr)
		if len(out) >= maxCandidateLinks {
			break
		}
	}
	return out
}

// IsAssetURL reports whether a candidate points at a static asset rather
// than a content page.
func IsAssetURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.Contains(lower, "/sites/default/files/") || assetExtRe.MatchString(lower)
}

// matchesLinkKeyword checks the absolute URL against the keyword list in
// both its encoded and decoded forms, since Chinese path segments are
// percent-encoded once resolved.
func matchesLinkKeyword(absStr string) bool {
	lower := strings.ToLower(absStr)
	if containsAnyKeyword(lower, linkKeywords) {
		return true
	}
	if decoded, err := url.PathUnescape(absStr); err == nil {
		return containsAnyKeyword(strings.ToLower(decoded), linkKeywords)
	}
	return false
}

func sameOrigin(u, base *url.URL) bool {
	return u.Scheme == base.Scheme && u.Host == base.Host
}

func containsAnyKeyword(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
