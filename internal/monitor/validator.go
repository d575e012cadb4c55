package monitor

import (
	"net/url"
	"regexp"
	"strings"
)

// ReviewThreshold is the confidence score below which a school's website is
// flagged for manual review.
const ReviewThreshold = 40

var primaryMarkers = []string{
	"primary", "primary school", "p1", "p2", "p3", "p4", "p5", "p6",
	"小學", "小一", "小二", "小三", "小四", "小五", "小六", "附屬小學",
}

var secondaryMarkers = []string{
	"secondary", "f1", "f2", "f3", "f4", "f5", "f6", "dse", "ibdp",
	"中學", "中一", "中二", "中三", "中四", "中五", "中六",
}

var suggestKeywords = []string{
	"open", "openday", "open-day", "開放", "開放日",
	"news", "latest", "announcement", "notice", "通告", "最新消息", "活動",
	"admission", "入學",
}

var (
	primaryPathRe   = regexp.MustCompile(`(primary|ps|p\d|小學)`)
	secondaryPathRe = regexp.MustCompile(`(secondary|college|dse|ibdp|f\d)`)
)

type ValidationInput struct {
	SchoolNameEn  string
	SchoolNameZh  string
	SchoolLevel   string
	URL           string
	PageText      string
	CandidateURLs []string
}

type ValidationResult struct {
	Confidence                int      `json:"confidence"`
	Reasons                   []string `json:"reasons"`
	SuggestedAnnouncementURLs []string `json:"suggested_announcement_urls"`
	NeedsWebsiteReview        bool     `json:"needs_website_review"`
}

// ValidateWebsite scores whether a fetched root page really belongs to the
// target school at the expected level. Scoring is deterministic and
// additive from a base of 20; see the reasons list for what fired.
func ValidateWebsite(in ValidationInput) ValidationResult {
	var reasons []string
	page := normalizeForMatch(in.PageText)
	nameEn := normalizeForMatch(in.SchoolNameEn)
	nameZh := strings.TrimSpace(in.SchoolNameZh)

	score := 20

	if nameZh != "" && strings.Contains(page, nameZh) {
		score += 40
		reasons = append(reasons, "Matched school Chinese name on page")
	} else {
		reasons = append(reasons, "Did not find school Chinese name on page")
	}

	if nameEn != "" && strings.Contains(page, nameEn) {
		score += 20
		reasons = append(reasons, "Matched school English name on page")
	} else {
		reasons = append(reasons, "Did not find school English name on page")
	}

	level := strings.ToUpper(in.SchoolLevel)
	if strings.Contains(level, "PRIMARY") {
		if containsAnyKeyword(page, primaryMarkers) {
			score += 15
			reasons = append(reasons, "Page contains primary-school markers")
		} else {
			reasons = append(reasons, "Page missing primary-school markers")
		}
		// A secondary-school match while expecting primary is a stronger
		// mismatch signal than the positive marker is a confirmation.
		if containsAnyKeyword(page, secondaryMarkers) {
			score -= 30
			reasons = append(reasons, "Page contains secondary-school markers (possible mismatch)")
		}

		if u, err := url.Parse(in.URL); err == nil {
			path := strings.ToLower(u.Path)
			if !primaryPathRe.MatchString(path) && secondaryPathRe.MatchString(path) {
				score -= 10
				reasons = append(reasons, "URL path suggests non-primary section")
			}
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var suggested []string
	for _, u := range in.CandidateURLs {
		if containsAnyKeyword(strings.ToLower(u), suggestKeywords) {
			suggested = append(suggested, u)
			if len(suggested) >= 5 {
				break
			}
		}
	}

	needsReview := score < ReviewThreshold
	if needsReview {
		reasons = append(reasons, "Low confidence: likely wrong website or wrong section")
	}

	return ValidationResult{
		Confidence:                score,
		Reasons:                   reasons,
		SuggestedAnnouncementURLs: suggested,
		NeedsWebsiteReview:        needsReview,
	}
}
