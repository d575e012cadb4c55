package monitor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolwatch-hk/schoolwatch/internal/monitor"
)

func TestValidateWebsite_StrongMatch(t *testing.T) {
	t.Parallel()

	res := monitor.ValidateWebsite(monitor.ValidationInput{
		SchoolNameEn: "St. Mary's Primary School",
		SchoolNameZh: "聖瑪利小學",
		SchoolLevel:  "PRIMARY",
		URL:          "https://example.edu.hk/",
		PageText:     "Welcome to St. Mary's Primary School 聖瑪利小學, P1 admission now open",
	})

	// 20 base + 40 zh + 20 en + 15 primary markers
	assert.Equal(t, 95, res.Confidence)
	assert.False(t, res.NeedsWebsiteReview)
	assert.Contains(t, res.Reasons, "Matched school Chinese name on page")
	assert.Contains(t, res.Reasons, "Matched school English name on page")
}

func TestValidateWebsite_NameMatchInsensitiveToCaseAndSpacing(t *testing.T) {
	t.Parallel()

	res := monitor.ValidateWebsite(monitor.ValidationInput{
		SchoolNameEn: "Faith &amp; Hope  Primary School",
		SchoolNameZh: "",
		SchoolLevel:  "PRIMARY",
		URL:          "https://example.edu.hk/",
		PageText:     "FAITH & HOPE PRIMARY SCHOOL welcome",
	})

	assert.Contains(t, res.Reasons, "Matched school English name on page")
	assert.GreaterOrEqual(t, res.Confidence, 40)
}

func TestValidateWebsite_SecondaryMarkersPenalized(t *testing.T) {
	t.Parallel()

	res := monitor.ValidateWebsite(monitor.ValidationInput{
		SchoolNameEn: "Example Primary School",
		SchoolNameZh: "模範小學",
		SchoolLevel:  "PRIMARY",
		URL:          "https://example.edu.hk/",
		PageText:     "Form F1 to F6 curriculum, DSE results, 中學 campus life",
	})

	assert.LessOrEqual(t, res.Confidence, 30)
	assert.True(t, res.NeedsWebsiteReview)
	assert.Contains(t, res.Reasons, "Page contains secondary-school markers (possible mismatch)")
	assert.Contains(t, res.Reasons, "Low confidence: likely wrong website or wrong section")
}

func TestValidateWebsite_MarkerChecksAreIndependent(t *testing.T) {
	t.Parallel()

	// Page mentions both sections, e.g. a through-train school.
	res := monitor.ValidateWebsite(monitor.ValidationInput{
		SchoolNameEn: "Example School",
		SchoolNameZh: "模範學校",
		SchoolLevel:  "PRIMARY",
		URL:          "https://example.edu.hk/",
		PageText:     "模範學校 Example School 小學部 primary section and 中學部 secondary section",
	})

	// 20 + 40 + 20 + 15 - 30
	assert.Equal(t, 65, res.Confidence)
	assert.Contains(t, res.Reasons, "Page contains primary-school markers")
	assert.Contains(t, res.Reasons, "Page contains secondary-school markers (possible mismatch)")
}

func TestValidateWebsite_PathHeuristic(t *testing.T) {
	t.Parallel()

	res := monitor.ValidateWebsite(monitor.ValidationInput{
		SchoolNameEn: "Example Primary School",
		SchoolNameZh: "模範小學",
		SchoolLevel:  "PRIMARY",
		URL:          "https://example.edu.hk/secondary/index.html",
		PageText:     "模範小學 Example Primary School primary section",
	})

	// 20 + 40 + 20 + 15 - 10 (path suggests the secondary section)
	assert.Equal(t, 85, res.Confidence)
	assert.Contains(t, res.Reasons, "URL path suggests non-primary section")
}

func TestValidateWebsite_ScoreClamped(t *testing.T) {
	t.Parallel()

	res := monitor.ValidateWebsite(monitor.ValidationInput{
		SchoolNameEn: "Example Primary School",
		SchoolNameZh: "模範小學",
		SchoolLevel:  "PRIMARY",
		URL:          "https://example.edu.hk/secondary/f1",
		PageText:     "DSE 中學 F1 F2 secondary only",
	})

	assert.GreaterOrEqual(t, res.Confidence, 0)
	assert.LessOrEqual(t, res.Confidence, 100)
	assert.True(t, res.NeedsWebsiteReview)
}

func TestValidateWebsite_SuggestedURLs(t *testing.T) {
	t.Parallel()

	candidates := []string{
		"https://example.edu.hk/news/2026",
		"https://example.edu.hk/open-day",
		"https://example.edu.hk/sports-hall",
		"https://example.edu.hk/admission",
		"https://example.edu.hk/notice/1",
		"https://example.edu.hk/latest",
		"https://example.edu.hk/announcement/2",
		"https://example.edu.hk/events/fair",
	}

	res := monitor.ValidateWebsite(monitor.ValidationInput{
		SchoolNameEn:  "Example Primary School",
		SchoolNameZh:  "模範小學",
		SchoolLevel:   "PRIMARY",
		URL:           "https://example.edu.hk/",
		PageText:      "nothing relevant",
		CandidateURLs: candidates,
	})

	assert.Len(t, res.SuggestedAnnouncementURLs, 5)
	assert.NotContains(t, res.SuggestedAnnouncementURLs, "https://example.edu.hk/sports-hall")
	assert.NotContains(t, res.SuggestedAnnouncementURLs, "https://example.edu.hk/announcement/2")
	// Suggestions are surfaced even at low confidence to aid manual fixes.
	assert.True(t, res.NeedsWebsiteReview)
}
