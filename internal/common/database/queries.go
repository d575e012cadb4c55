package database

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schools (
	id BIGSERIAL PRIMARY KEY,
	name_en TEXT NOT NULL,
	name_zh TEXT NOT NULL,
	level TEXT NOT NULL,
	type TEXT NOT NULL,
	district_en TEXT NOT NULL,
	district_zh TEXT NOT NULL,
	gender_en TEXT,
	gender_zh TEXT,
	religion_en TEXT,
	religion_zh TEXT,
	address_en TEXT,
	address_zh TEXT,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	website_url TEXT NOT NULL,
	announcements_url TEXT,
	source_last_update TEXT,
	website_last_checked_at TIMESTAMPTZ,
	website_last_status_code INT,
	website_last_error TEXT,
	website_confidence INT,
	needs_website_review BOOLEAN NOT NULL DEFAULT FALSE,
	website_validation_reasons TEXT[],
	suggested_announcement_urls TEXT[],
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS monitoring_runs (
	id BIGSERIAL PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	schools_checked INT NOT NULL DEFAULT 0,
	pages_fetched INT NOT NULL DEFAULT 0,
	changes_new INT NOT NULL DEFAULT 0,
	changes_updated INT NOT NULL DEFAULT 0,
	changes_none INT NOT NULL DEFAULT 0,
	errors INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS extracted_events (
	id BIGSERIAL PRIMARY KEY,
	school_id BIGINT NOT NULL REFERENCES schools(id),
	source_url TEXT NOT NULL,
	source_content_hash TEXT NOT NULL,
	event_hash TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	event_at TIMESTAMPTZ,
	registration_open_at TIMESTAMPTZ,
	registration_close_at TIMESTAMPTZ,
	quota INT,
	target_student_years TEXT,
	target_admission_year TEXT,
	language TEXT,
	confidence DOUBLE PRECISION,
	raw_extract_json TEXT,
	extraction_notes TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

const selectSchoolsForMonitoring = `
SELECT * FROM schools
ORDER BY id
LIMIT $1`

const selectSchoolsForMonitoringByName = `
SELECT * FROM schools
WHERE name_en ILIKE '%' || $2 || '%' OR name_zh LIKE '%' || $2 || '%'
ORDER BY id
LIMIT $1`

const selectSchoolsNeedingReview = `
SELECT * FROM schools
WHERE needs_website_review
ORDER BY website_confidence ASC NULLS FIRST
LIMIT $1`

const insertMonitoringRun = `
INSERT INTO monitoring_runs (started_at, status)
VALUES ($1, $2)
RETURNING id`

const finishMonitoringRun = `
UPDATE monitoring_runs
SET finished_at = $2, status = $3, schools_checked = $4, pages_fetched = $5,
    changes_new = $6, changes_updated = $7, changes_none = $8, errors = $9
WHERE id = $1`

const selectLatestMonitoringRun = `
SELECT * FROM monitoring_runs
ORDER BY started_at DESC
LIMIT 1`

const patchSchoolWebsiteCheck = `
UPDATE schools
SET website_last_checked_at = $2, website_last_status_code = $3,
    website_last_error = $4, updated_at = $2
WHERE id = $1`

const patchSchoolWebsiteValidation = `
UPDATE schools
SET website_confidence = $2, needs_website_review = $3,
    website_validation_reasons = $4, suggested_announcement_urls = $5,
    updated_at = $6
WHERE id = $1`

const insertSchool = `
INSERT INTO schools (
	name_en, name_zh, level, type, district_en, district_zh,
	gender_en, gender_zh, religion_en, religion_zh,
	address_en, address_zh, latitude, longitude,
	website_url, announcements_url, source_last_update,
	created_at, updated_at
) VALUES (
	:name_en, :name_zh, :level, :type, :district_en, :district_zh,
	:gender_en, :gender_zh, :religion_en, :religion_zh,
	:address_en, :address_zh, :latitude, :longitude,
	:website_url, :announcements_url, :source_last_update,
	now(), now()
)`

const upsertExtractedEvent = `
INSERT INTO extracted_events (
	school_id, source_url, source_content_hash, event_hash, title,
	event_at, registration_open_at, registration_close_at,
	quota, target_student_years, target_admission_year, language,
	confidence, raw_extract_json, extraction_notes, created_at, updated_at
) VALUES (
	:school_id, :source_url, :source_content_hash, :event_hash, :title,
	:event_at, :registration_open_at, :registration_close_at,
	:quota, :target_student_years, :target_admission_year, :language,
	:confidence, :raw_extract_json, :extraction_notes, :created_at, :updated_at
)
ON CONFLICT (event_hash) DO UPDATE SET
	title = EXCLUDED.title,
	event_at = EXCLUDED.event_at,
	registration_open_at = EXCLUDED.registration_open_at,
	registration_close_at = EXCLUDED.registration_close_at,
	quota = EXCLUDED.quota,
	target_student_years = EXCLUDED.target_student_years,
	target_admission_year = EXCLUDED.target_admission_year,
	language = EXCLUDED.language,
	confidence = EXCLUDED.confidence,
	raw_extract_json = EXCLUDED.raw_extract_json,
	extraction_notes = EXCLUDED.extraction_notes,
	updated_at = EXCLUDED.updated_at`
