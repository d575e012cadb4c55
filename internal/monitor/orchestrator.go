package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/schoolwatch-hk/schoolwatch/config"
	"github.com/schoolwatch-hk/schoolwatch/models"
)

// Store is everything the orchestrator needs from durable storage.
type Store interface {
	SchoolsForMonitoring(ctx context.Context, limit int, query string) ([]models.School, error)
	CreateMonitoringRun(ctx context.Context, startedAt time.Time) (int64, error)
	FinishMonitoringRun(ctx context.Context, runID int64, finishedAt time.Time, summary *models.RunSummary) error
	InsertSnapshot(ctx context.Context, snap *models.PageSnapshot) error
	LatestSnapshotHash(ctx context.Context, schoolID int64, url string) (string, error)
	AnnouncementBySchoolAndURL(ctx context.Context, schoolID int64, url string) (*models.Announcement, error)
	UpsertAnnouncement(ctx context.Context, a *models.Announcement) error
	TouchAnnouncement(ctx context.Context, id primitive.ObjectID, lastSeenAt time.Time, change models.ChangeType) error
	PatchSchoolWebsiteCheck(ctx context.Context, schoolID int64, checkedAt time.Time, statusCode *int, fetchErr string) error
	PatchSchoolWebsiteValidation(ctx context.Context, schoolID int64, checkedAt time.Time, v *ValidationResult) error
}

type RunOptions struct {
	LimitSchools        int
	LimitPagesPerSchool int
	SchoolQuery         string
}

const announcementContentLimit = 2000

// Page-text fingerprints of proxy/edge error pages. Such fetches are noise,
// not content change, and must never spawn announcements.
var proxyErrorMarkers = []string{
	"error 524",
	"a timeout occurred",
	"upstream connect error",
	"cloudflare",
}

// Monitor drives one monitoring pass across a batch of schools. Runs within
// one process are serialized; nothing guards against a second process
// running concurrently.
type Monitor struct {
	store   Store
	fetcher Fetcher
	cfg     *config.MonitorConfig
	logger  *zap.SugaredLogger
	runMu   sync.Mutex
}

func NewMonitor(store Store, fetcher Fetcher, cfg *config.MonitorConfig, logger *zap.SugaredLogger) *Monitor {
	return &Monitor{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
	}
}

// RunOnce executes a full monitoring pass: fetch each school's root page,
// validate the site, discover candidate pages, classify content changes and
// upsert announcements. Per-school and per-page failures are counted, never
// propagated; the run row is always finalized.
func (m *Monitor) RunOnce(ctx context.Context, opts RunOptions) (*models.RunSummary, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	limitSchools := opts.LimitSchools
	if limitSchools <= 0 {
		limitSchools = m.cfg.LimitSchools
	}
	limitPages := opts.LimitPagesPerSchool
	if limitPages <= 0 {
		limitPages = m.cfg.LimitPagesPerSchool
	}

	runID, err := m.store.CreateMonitoringRun(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	summary := &models.RunSummary{RunID: runID}

	schools, err := m.store.SchoolsForMonitoring(ctx, limitSchools, opts.SchoolQuery)
	if err != nil {
		m.finishRun(ctx, runID, summary)
		return nil, err
	}

	for i := range schools {
		school := &schools[i]
		summary.SchoolsChecked++

		// Small pause between schools avoids bursts even across domains.
		time.Sleep(m.cfg.Fetch.InterSchoolDelay)

		rootURL := school.RootURL()
		if rootURL == "" {
			summary.Errors++
			continue
		}
		if summary.PagesFetched >= m.cfg.MaxPagesPerRun {
			m.logger.Infow("page budget exhausted, stopping run early",
				"run", runID, "pages_fetched", summary.PagesFetched)
			break
		}

		rootText, ok := m.checkRootPage(ctx, school, rootURL, summary)
		if !ok {
			continue
		}

		candidates := m.discoverAndValidate(ctx, school, rootURL, rootText, summary)
		m.checkCandidatePages(ctx, school, candidates, limitPages, summary)
	}

	m.finishRun(ctx, runID, summary)
	m.logger.Infow("monitoring run completed",
		"run", runID,
		"schools", summary.SchoolsChecked,
		"pages", summary.PagesFetched,
		"new", summary.ChangesNew,
		"updated", summary.ChangesUpdated,
		"unchanged", summary.ChangesNone,
		"errors", summary.Errors,
	)
	return summary, nil
}

// checkRootPage fetches and snapshots the school's root page. It returns the
// raw body and false when the school should be skipped entirely: without a
// root page there is nothing to discover links from.
func (m *Monitor) checkRootPage(ctx context.Context, school *models.School, rootURL string, summary *models.RunSummary) (string, bool) {
	res, err := m.fetcher.Fetch(ctx, rootURL)
	fetchedAt := time.Now()
	if err != nil {
		summary.Errors++
		m.logger.Warnw("root fetch failed", "school", school.NameEn, "url", rootURL, "error", err)
		m.insertSnapshot(ctx, &models.PageSnapshot{
			SchoolID:    school.ID,
			URL:         rootURL,
			FetchedAt:   fetchedAt,
			ErrorString: err.Error(),
		})
		if perr := m.store.PatchSchoolWebsiteCheck(ctx, school.ID, fetchedAt, nil, err.Error()); perr != nil {
			m.logger.Errorw("failed to patch school check", "school", school.ID, "error", perr)
		}
		return "", false
	}

	text := StripHTMLToText(res.Body)
	hash := ""
	if text != "" {
		hash = ContentHash(NormalizeForHash(text))
	}
	m.insertSnapshot(ctx, &models.PageSnapshot{
		SchoolID:    school.ID,
		URL:         rootURL,
		FetchedAt:   fetchedAt,
		StatusCode:  &res.StatusCode,
		ContentType: res.ContentType,
		ContentHash: hash,
		Text:        text,
	})
	if perr := m.store.PatchSchoolWebsiteCheck(ctx, school.ID, fetchedAt, &res.StatusCode, ""); perr != nil {
		m.logger.Errorw("failed to patch school check", "school", school.ID, "error", perr)
	}
	summary.PagesFetched++
	return res.Body, true
}

// discoverAndValidate gathers candidate URLs from the root page and sitemap,
// scores website identity and persists the validation verdict. The verdict
// is written every run, even at high confidence, so review status never goes
// stale.
func (m *Monitor) discoverAndValidate(ctx context.Context, school *models.School, rootURL, rootHTML string, summary *models.RunSummary) []string {
	candidates := ExtractCandidateLinks(rootHTML, rootURL)
	candidates = append(candidates, DiscoverFromSitemap(ctx, rootURL, m.fetcher)...)

	validation := ValidateWebsite(ValidationInput{
		SchoolNameEn:  school.NameEn,
		SchoolNameZh:  school.NameZh,
		SchoolLevel:   school.Level,
		URL:           rootURL,
		PageText:      StripHTMLToText(rootHTML),
		CandidateURLs: candidates,
	})
	if validation.NeedsWebsiteReview {
		m.logger.Infow("school website flagged for review",
			"school", school.NameEn, "confidence", validation.Confidence)
	}
	if err := m.store.PatchSchoolWebsiteValidation(ctx, school.ID, time.Now(), &validation); err != nil {
		m.logger.Errorw("failed to patch school validation", "school", school.ID, "error", err)
	}
	return candidates
}

// checkCandidatePages fetches up to limitPages-1 discovered pages, detects
// content change per URL and maintains announcement rows. Failures on one
// page never abort the school.
func (m *Monitor) checkCandidatePages(ctx context.Context, school *models.School, candidates []string, limitPages int, summary *models.RunSummary) {
	queued := 0
	for _, u := range candidates {
		if queued >= limitPages-1 {
			break
		}
		if IsAssetURL(u) {
			continue
		}
		queued++
		if summary.PagesFetched >= m.cfg.MaxPagesPerRun {
			return
		}

		res, err := m.fetcher.Fetch(ctx, u)
		if err != nil {
			summary.Errors++
			m.insertSnapshot(ctx, &models.PageSnapshot{
				SchoolID:    school.ID,
				URL:         u,
				FetchedAt:   time.Now(),
				ErrorString: err.Error(),
			})
			continue
		}

		text := StripHTMLToText(res.Body)
		hash := ""
		if text != "" {
			hash = ContentHash(NormalizeForHash(text))
		}

		prevHash, err := m.store.LatestSnapshotHash(ctx, school.ID, u)
		if err != nil {
			m.logger.Errorw("failed to read prior snapshot", "school", school.ID, "url", u, "error", err)
		}
		change := ClassifyChange(prevHash, hash)
		switch change {
		case models.ChangeNew:
			summary.ChangesNew++
		case models.ChangeUpdated:
			summary.ChangesUpdated++
		default:
			summary.ChangesNone++
		}

		m.insertSnapshot(ctx, &models.PageSnapshot{
			SchoolID:    school.ID,
			URL:         u,
			FetchedAt:   time.Now(),
			StatusCode:  &res.StatusCode,
			ContentType: res.ContentType,
			ContentHash: hash,
			Text:        text,
		})

		m.maintainAnnouncement(ctx, school, u, text, hash, res.StatusCode, change, summary)
		summary.PagesFetched++
	}
}

func (m *Monitor) maintainAnnouncement(ctx context.Context, school *models.School, u, text, hash string, statusCode int, change models.ChangeType, summary *models.RunSummary) {
	now := time.Now()
	existing, err := m.store.AnnouncementBySchoolAndURL(ctx, school.ID, u)
	if err != nil {
		m.logger.Errorw("failed to look up announcement", "school", school.ID, "url", u, "error", err)
		return
	}

	if change == models.ChangeNoChange {
		// Keep a known announcement page fresh without generating noise.
		if existing != nil {
			if err := m.store.TouchAnnouncement(ctx, existing.ID, now, models.ChangeNoChange); err != nil {
				m.logger.Errorw("failed to touch announcement", "school", school.ID, "url", u, "error", err)
			}
		}
		return
	}

	if looksLikeProxyErrorPage(statusCode, text) {
		// A differing hash on a 5xx or edge-error body is fetch noise, not a
		// real content change.
		summary.Errors++
		m.logger.Warnw("skipping announcement for proxy error page",
			"school", school.NameEn, "url", u, "status", statusCode)
		return
	}

	contentText := truncateRunes(text, announcementContentLimit)
	announcementHash := hash
	if announcementHash == "" {
		announcementHash = ContentHash(contentText)
	}

	// A page that already has an announcement row is never "new" again.
	finalChange := change
	firstSeenAt := now
	if existing != nil {
		finalChange = models.ChangeUpdated
		firstSeenAt = existing.FirstSeenAt
	}

	if err := m.store.UpsertAnnouncement(ctx, &models.Announcement{
		SchoolID:    school.ID,
		URL:         u,
		Title:       school.NameEn + " update",
		ContentText: contentText,
		ContentHash: announcementHash,
		FirstSeenAt: firstSeenAt,
		LastSeenAt:  now,
		ChangeType:  finalChange,
	}); err != nil {
		m.logger.Errorw("failed to upsert announcement", "school", school.ID, "url", u, "error", err)
	}
}

func (m *Monitor) insertSnapshot(ctx context.Context, snap *models.PageSnapshot) {
	if err := m.store.InsertSnapshot(ctx, snap); err != nil {
		m.logger.Errorw("failed to insert snapshot", "school", snap.SchoolID, "url", snap.URL, "error", err)
	}
}

func (m *Monitor) finishRun(ctx context.Context, runID int64, summary *models.RunSummary) {
	if err := m.store.FinishMonitoringRun(ctx, runID, time.Now(), summary); err != nil {
		m.logger.Errorw("failed to finalize monitoring run", "run", runID, "error", err)
	}
}

func looksLikeProxyErrorPage(statusCode int, text string) bool {
	if statusCode >= 500 {
		return true
	}
	lower := strings.ToLower(text)
	for _, marker := range proxyErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
