package models

import "time"

type ExtractedEvent struct {
	ID                  int64      `db:"id" json:"id"`
	SchoolID            int64      `db:"school_id" json:"school_id"`
	SourceURL           string     `db:"source_url" json:"source_url"`
	SourceContentHash   string     `db:"source_content_hash" json:"source_content_hash"`
	EventHash           string     `db:"event_hash" json:"event_hash"`
	Title               string     `db:"title" json:"title"`
	EventAt             *time.Time `db:"event_at" json:"event_at,omitempty"`
	RegistrationOpenAt  *time.Time `db:"registration_open_at" json:"registration_open_at,omitempty"`
	RegistrationCloseAt *time.Time `db:"registration_close_at" json:"registration_close_at,omitempty"`
	Quota               *int       `db:"quota" json:"quota,omitempty"`
	TargetStudentYears  *string    `db:"target_student_years" json:"target_student_years,omitempty"`
	TargetAdmissionYear *string    `db:"target_admission_year" json:"target_admission_year,omitempty"`
	Language            *string    `db:"language" json:"language,omitempty"`
	Confidence          *float64   `db:"confidence" json:"confidence,omitempty"`
	RawExtractJSON      *string    `db:"raw_extract_json" json:"raw_extract_json,omitempty"`
	ExtractionNotes     *string    `db:"extraction_notes" json:"extraction_notes,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}
