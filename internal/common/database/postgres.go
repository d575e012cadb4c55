package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/schoolwatch-hk/schoolwatch/config"
	"github.com/schoolwatch-hk/schoolwatch/internal/monitor"
	"github.com/schoolwatch-hk/schoolwatch/models"
)

type DB struct {
	conn *sqlx.DB
}

func NewDBConnection(cfg *config.PostgresConfig) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s ", cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)
	if cfg.SSL {
		dsn += "sslmode=require"
	} else {
		dsn += "sslmode=disable"
	}
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db connection error :%v", err)
	}
	return &DB{
		conn: conn,
	}, nil
}

// EnsureSchema creates the relational tables when missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SchoolsForMonitoring returns up to limit schools, optionally filtered by a
// name substring in either language.
func (d *DB) SchoolsForMonitoring(ctx context.Context, limit int, query string) ([]models.School, error) {
	var schools []models.School
	var err error
	if query == "" {
		err = d.conn.SelectContext(ctx, &schools, selectSchoolsForMonitoring, limit)
	} else {
		err = d.conn.SelectContext(ctx, &schools, selectSchoolsForMonitoringByName, limit, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list schools for monitoring: %w", err)
	}
	return schools, nil
}

func (d *DB) SchoolsNeedingReview(ctx context.Context, limit int) ([]models.School, error) {
	var schools []models.School
	if err := d.conn.SelectContext(ctx, &schools, selectSchoolsNeedingReview, limit); err != nil {
		return nil, fmt.Errorf("failed to list schools needing review: %w", err)
	}
	return schools, nil
}

func (d *DB) CreateMonitoringRun(ctx context.Context, startedAt time.Time) (int64, error) {
	var runID int64
	if err := d.conn.QueryRowxContext(ctx, insertMonitoringRun, startedAt, models.RunStatusRunning).Scan(&runID); err != nil {
		return 0, fmt.Errorf("failed to create monitoring run: %w", err)
	}
	return runID, nil
}

func (d *DB) FinishMonitoringRun(ctx context.Context, runID int64, finishedAt time.Time, summary *models.RunSummary) error {
	_, err := d.conn.ExecContext(ctx, finishMonitoringRun,
		runID, finishedAt, models.RunStatusCompleted,
		summary.SchoolsChecked, summary.PagesFetched,
		summary.ChangesNew, summary.ChangesUpdated, summary.ChangesNone,
		summary.Errors,
	)
	if err != nil {
		return fmt.Errorf("failed to finish monitoring run %d: %w", runID, err)
	}
	return nil
}

func (d *DB) LatestMonitoringRun(ctx context.Context) (*models.MonitoringRun, error) {
	var run models.MonitoringRun
	err := d.conn.GetContext(ctx, &run, selectLatestMonitoringRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest monitoring run: %w", err)
	}
	return &run, nil
}

func (d *DB) PatchSchoolWebsiteCheck(ctx context.Context, schoolID int64, checkedAt time.Time, statusCode *int, fetchErr string) error {
	var errCol *string
	if fetchErr != "" {
		errCol = &fetchErr
	}
	if _, err := d.conn.ExecContext(ctx, patchSchoolWebsiteCheck, schoolID, checkedAt, statusCode, errCol); err != nil {
		return fmt.Errorf("failed to patch school %d website check: %w", schoolID, err)
	}
	return nil
}

func (d *DB) PatchSchoolWebsiteValidation(ctx context.Context, schoolID int64, checkedAt time.Time, v *monitor.ValidationResult) error {
	_, err := d.conn.ExecContext(ctx, patchSchoolWebsiteValidation,
		schoolID, v.Confidence, v.NeedsWebsiteReview,
		pq.Array(v.Reasons), pq.Array(v.SuggestedAnnouncementURLs),
		checkedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to patch school %d validation: %w", schoolID, err)
	}
	return nil
}

// ReplaceSchools swaps the whole roster for a freshly imported seed snapshot
// in one transaction. The pipeline itself never creates or deletes schools.
func (d *DB) ReplaceSchools(ctx context.Context, schools []models.School) error {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin roster transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schools`); err != nil {
		return fmt.Errorf("failed to clear schools: %w", err)
	}
	for i := range schools {
		if _, err := tx.NamedExecContext(ctx, insertSchool, &schools[i]); err != nil {
			return fmt.Errorf("failed to insert school %q: %w", schools[i].NameEn, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit roster: %w", err)
	}
	return nil
}

// UpsertEvents writes extracted events keyed by event hash, so re-extraction
// of unchanged content cannot create duplicates.
func (d *DB) UpsertEvents(ctx context.Context, events []models.ExtractedEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin events transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range events {
		if _, err := tx.NamedExecContext(ctx, upsertExtractedEvent, &events[i]); err != nil {
			return fmt.Errorf("failed to upsert event %s: %w", events[i].EventHash, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}
