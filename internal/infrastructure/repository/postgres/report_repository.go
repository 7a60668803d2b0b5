package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026081501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL,
	category TEXT NOT NULL,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	mime_type TEXT NOT NULL,
	validation_status TEXT NOT NULL,
	validation_message TEXT NOT NULL DEFAULT '',
	validation_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	extraction_status TEXT NOT NULL,
	processing_complete BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_patient ON reports(patient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS validation_results (
	id TEXT PRIMARY KEY,
	report_id TEXT NOT NULL,
	patient_id TEXT NOT NULL,
	selected_category TEXT NOT NULL,
	detected_category TEXT NOT NULL,
	is_match BOOLEAN NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	keywords_found JSONB NOT NULL DEFAULT '[]'::jsonb,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validation_results_report ON validation_results(report_id);

CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	report_id TEXT NOT NULL,
	patient_id TEXT NOT NULL,
	category TEXT NOT NULL,
	raw_text TEXT NOT NULL DEFAULT '',
	structured_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	extraction_model TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extractions_patient ON extractions(patient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	result JSONB NOT NULL DEFAULT '{}'::jsonb,
	input_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (patient_id, kind, input_hash)
);

CREATE INDEX IF NOT EXISTS idx_analyses_patient ON analyses(patient_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reports (
	id, patient_id, category, filename, storage_path, size_bytes, mime_type,
	validation_status, validation_message, validation_confidence,
	extraction_status, processing_complete, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		report.ID, report.PatientID, string(report.Category), report.Filename, report.StoragePath,
		report.SizeBytes, report.MimeType, string(report.ValidationStatus), report.ValidationMessage,
		report.ValidationConfidence, string(report.ExtractionStatus), report.ProcessingComplete, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

const reportColumns = `
id, patient_id, category, filename, storage_path, size_bytes, mime_type,
validation_status, validation_message, validation_confidence,
extraction_status, processing_complete, created_at`

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+reportColumns+` FROM reports WHERE id = $1`, id)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrReportNotFound, "get report", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return report, nil
}

func (r *ReportRepository) ListByPatient(ctx context.Context, patientID string) ([]domain.Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+reportColumns+` FROM reports WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []domain.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var report domain.Report
	var category, validationStatus, extractionStatus string

	err := row.Scan(
		&report.ID, &report.PatientID, &category, &report.Filename, &report.StoragePath,
		&report.SizeBytes, &report.MimeType, &validationStatus, &report.ValidationMessage,
		&report.ValidationConfidence, &extractionStatus, &report.ProcessingComplete, &report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	report.Category = domain.Category(category)
	report.ValidationStatus = domain.ValidationStatus(validationStatus)
	report.ExtractionStatus = domain.ExtractionStatus(extractionStatus)
	return &report, nil
}

func (r *ReportRepository) UpdateValidation(ctx context.Context, id string, status domain.ValidationStatus, message string, confidence float64) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE reports
SET validation_status = $2, validation_message = $3, validation_confidence = $4
WHERE id = $1
`, id, string(status), message, confidence)
	if err != nil {
		return fmt.Errorf("update validation: %w", err)
	}
	return requireRowAffected(result, "update validation", id)
}

func (r *ReportRepository) UpdateExtraction(ctx context.Context, id string, status domain.ExtractionStatus, processingComplete bool) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE reports
SET extraction_status = $2, processing_complete = $3
WHERE id = $1
`, id, string(status), processingComplete)
	if err != nil {
		return fmt.Errorf("update extraction: %w", err)
	}
	return requireRowAffected(result, "update extraction", id)
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return requireRowAffected(result, "delete report", id)
}

func (r *ReportRepository) SaveValidationAudit(ctx context.Context, audit *domain.ValidationAudit) error {
	keywordsJSON, err := json.Marshal(audit.KeywordsFound)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO validation_results (
	id, report_id, patient_id, selected_category, detected_category,
	is_match, confidence, keywords_found, notes, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		audit.ID, audit.ReportID, audit.PatientID, string(audit.SelectedCategory), string(audit.DetectedCategory),
		audit.IsMatch, audit.Confidence, keywordsJSON, audit.Notes, audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert validation result: %w", err)
	}
	return nil
}

func requireRowAffected(result sql.Result, operation, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrReportNotFound, operation, fmt.Errorf("id %s", id))
	}
	return nil
}
