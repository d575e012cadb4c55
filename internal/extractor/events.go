package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/schoolwatch-hk/schoolwatch/internal/monitor"
	"github.com/schoolwatch-hk/schoolwatch/models"
)

// EventStore is what the extraction side needs from persistence.
type EventStore interface {
	AnnouncementByID(ctx context.Context, id primitive.ObjectID) (*models.Announcement, error)
	UpsertEvents(ctx context.Context, events []models.ExtractedEvent) error
}

// EventHash derives the deterministic upsert key for an extracted event.
// Identical content re-extracted later must map to the same hash.
func EventHash(schoolID int64, sourceURL, sourceContentHash, title string, eventAt *int64) string {
	at := ""
	if eventAt != nil {
		at = strconv.FormatInt(*eventAt, 10)
	}
	key := strings.Join([]string{
		strconv.FormatInt(schoolID, 10),
		sourceURL,
		sourceContentHash,
		strings.ToLower(strings.TrimSpace(title)),
		at,
	}, "|")
	return monitor.ContentHash(key)
}

// ExtractFromAnnouncement runs extraction for one announcement row and
// upserts the resulting events keyed by event hash.
func (s *Service) ExtractFromAnnouncement(ctx context.Context, store EventStore, announcementID primitive.ObjectID) (*Result, error) {
	row, err := store.AnnouncementByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("announcement %s not found", announcementID.Hex())
	}

	res, err := s.Extract(ctx, row.SchoolID, row.URL, row.ContentText, row.ContentHash)
	if err != nil {
		return nil, err
	}

	events := BuildEventRows(row.SchoolID, row.URL, row.ContentHash, res)
	if len(events) > 0 {
		if err := store.UpsertEvents(ctx, events); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// BuildEventRows maps provider events onto durable rows, filling the upsert
// key and falling back to the overall confidence where an event has none.
func BuildEventRows(schoolID int64, sourceURL, sourceContentHash string, res *Result) []models.ExtractedEvent {
	now := time.Now()
	rawJSON := rawString(res.Raw)

	events := res.Events
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}

	rows := make([]models.ExtractedEvent, 0, len(events))
	for _, e := range events {
		confidence := e.Confidence
		if confidence == nil {
			confidence = res.Confidence
		}
		row := models.ExtractedEvent{
			SchoolID:            schoolID,
			SourceURL:           sourceURL,
			SourceContentHash:   sourceContentHash,
			EventHash:           EventHash(schoolID, sourceURL, sourceContentHash, e.Title, e.EventAt),
			Title:               truncateRunes(strings.TrimSpace(e.Title), maxTitleRunes),
			EventAt:             msToTime(e.EventAt),
			RegistrationOpenAt:  msToTime(e.RegistrationOpenAt),
			RegistrationCloseAt: msToTime(e.RegistrationCloseAt),
			Quota:               e.Quota,
			TargetAdmissionYear: e.TargetAdmissionYear,
			Confidence:          confidence,
			RawExtractJSON:      rawJSON,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if len(e.TargetStudentYears) > 0 {
			years := strings.Join(e.TargetStudentYears, ",")
			row.TargetStudentYears = &years
		}
		if e.Language != "" {
			lang := e.Language
			row.Language = &lang
		}
		if e.ExtractionNotes != "" {
			notes := e.ExtractionNotes
			row.ExtractionNotes = &notes
		}
		rows = append(rows, row)
	}
	return rows
}

func msToTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

func rawString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}
