package models

import (
	"time"

	"github.com/lib/pq"
)

type School struct {
	ID         int64  `db:"id" json:"id"`
	NameEn     string `db:"name_en" json:"name_en"`
	NameZh     string `db:"name_zh" json:"name_zh"`
	Level      string `db:"level" json:"level"`
	Type       string `db:"type" json:"type"`
	DistrictEn string `db:"district_en" json:"district_en"`
	DistrictZh string `db:"district_zh" json:"district_zh"`

	GenderEn   *string  `db:"gender_en" json:"gender_en,omitempty"`
	GenderZh   *string  `db:"gender_zh" json:"gender_zh,omitempty"`
	ReligionEn *string  `db:"religion_en" json:"religion_en,omitempty"`
	ReligionZh *string  `db:"religion_zh" json:"religion_zh,omitempty"`
	AddressEn  *string  `db:"address_en" json:"address_en,omitempty"`
	AddressZh  *string  `db:"address_zh" json:"address_zh,omitempty"`
	Latitude   *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude  *float64 `db:"longitude" json:"longitude,omitempty"`

	WebsiteURL       string  `db:"website_url" json:"website_url"`
	AnnouncementsURL *string `db:"announcements_url" json:"announcements_url,omitempty"`
	SourceLastUpdate *string `db:"source_last_update" json:"source_last_update,omitempty"`

	WebsiteLastCheckedAt      *time.Time     `db:"website_last_checked_at" json:"website_last_checked_at,omitempty"`
	WebsiteLastStatusCode     *int           `db:"website_last_status_code" json:"website_last_status_code,omitempty"`
	WebsiteLastError          *string        `db:"website_last_error" json:"website_last_error,omitempty"`
	WebsiteConfidence         *int           `db:"website_confidence" json:"website_confidence,omitempty"`
	NeedsWebsiteReview        bool           `db:"needs_website_review" json:"needs_website_review"`
	WebsiteValidationReasons  pq.StringArray `db:"website_validation_reasons" json:"website_validation_reasons,omitempty"`
	SuggestedAnnouncementURLs pq.StringArray `db:"suggested_announcement_urls" json:"suggested_announcement_urls,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RootURL is the starting point of a monitoring pass for this school.
func (s *School) RootURL() string {
	if s.AnnouncementsURL != nil && *s.AnnouncementsURL != "" {
		return *s.AnnouncementsURL
	}
	return s.WebsiteURL
}
