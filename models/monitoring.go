package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChangeType string

const (
	ChangeNew      ChangeType = "NEW"
	ChangeUpdated  ChangeType = "UPDATED"
	ChangeNoChange ChangeType = "NO_CHANGE"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
)

type PageSnapshot struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	SchoolID    int64              `bson:"school_id" json:"school_id"`
	URL         string             `bson:"url" json:"url"`
	FetchedAt   time.Time          `bson:"fetched_at" json:"fetched_at"`
	StatusCode  *int               `bson:"status_code,omitempty" json:"status_code,omitempty"`
	ContentType string             `bson:"content_type,omitempty" json:"content_type,omitempty"`
	ContentHash string             `bson:"content_hash,omitempty" json:"content_hash,omitempty"`
	Text        string             `bson:"text,omitempty" json:"text,omitempty"`
	ErrorString string             `bson:"error_string,omitempty" json:"error_string,omitempty"`
}

type Announcement struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	SchoolID    int64              `bson:"school_id" json:"school_id"`
	URL         string             `bson:"url" json:"url"`
	Title       string             `bson:"title" json:"title"`
	ContentText string             `bson:"content_text" json:"content_text"`
	ContentHash string             `bson:"content_hash" json:"content_hash"`
	FirstSeenAt time.Time          `bson:"first_seen_at" json:"first_seen_at"`
	LastSeenAt  time.Time          `bson:"last_seen_at" json:"last_seen_at"`
	ChangeType  ChangeType         `bson:"change_type" json:"change_type"`
}

type MonitoringRun struct {
	ID             int64      `db:"id" json:"id"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Status         string     `db:"status" json:"status"`
	SchoolsChecked int        `db:"schools_checked" json:"schools_checked"`
	PagesFetched   int        `db:"pages_fetched" json:"pages_fetched"`
	ChangesNew     int        `db:"changes_new" json:"changes_new"`
	ChangesUpdated int        `db:"changes_updated" json:"changes_updated"`
	ChangesNone    int        `db:"changes_none" json:"changes_none"`
	Errors         int        `db:"errors" json:"errors"`
}

// RunSummary is what a completed monitoring pass reports back to its caller.
type RunSummary struct {
	RunID          int64 `json:"run_id"`
	SchoolsChecked int   `json:"schools_checked"`
	PagesFetched   int   `json:"pages_fetched"`
	ChangesNew     int   `json:"changes_new"`
	ChangesUpdated int   `json:"changes_updated"`
	ChangesNone    int   `json:"changes_none"`
	Errors         int   `json:"errors"`
}
