package monitor

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)

	ymdDateRe   = regexp.MustCompile(`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`)
	dmyDateRe   = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)
	clockRe     = regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\b`)
	copyrightRe = regexp.MustCompile(`©\s*\d{4}.*`)
)

// StripHTMLToText reduces an HTML document to its visible text. Script and
// style blocks go first so their contents never leak into the output.
func StripHTMLToText(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeForHash masks dates, clock times and copyright lines so that a
// page whose only difference is a footer timestamp hashes identically.
func NormalizeForHash(text string) string {
	text = ymdDateRe.ReplaceAllString(text, " ")
	text = dmyDateRe.ReplaceAllString(text, " ")
	text = clockRe.ReplaceAllString(text, " ")
	text = copyrightRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ContentHash fingerprints normalized page text with 32-bit FNV-1a. Collision
// odds are acceptable for change detection and the output is stable across
// runs and platforms.
func ContentHash(text string) string {
	h := fnv.New32a()
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum32())
}

// normalizeForMatch prepares page text and school names for substring
// comparison in the website validator.
func normalizeForMatch(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "&amp;", "&")
	value = spaceRe.ReplaceAllString(value, " ")
	return norm.NFC.String(strings.TrimSpace(value))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
