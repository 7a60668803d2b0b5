package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

// uniqueViolation is the Postgres error code raised when the dedup key
// constraint on analyses fires.
const uniqueViolation = "23505"

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	resultJSON, err := json.Marshal(analysis.Result)
	if err != nil {
		return fmt.Errorf("marshal analysis result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analyses (id, patient_id, kind, result, input_hash, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`,
		analysis.ID, analysis.PatientID, string(analysis.Kind), resultJSON, analysis.InputHash, analysis.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.WrapError(domain.ErrDuplicateAnalysis, "insert analysis", err)
		}
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) FindByDedupKey(ctx context.Context, patientID string, kind domain.AnalysisKind, key string) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, patient_id, kind, result, input_hash, created_at
FROM analyses
WHERE patient_id = $1 AND kind = $2 AND input_hash = $3
`, patientID, string(kind), key)

	analysis, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	return analysis, nil
}

func (r *AnalysisRepository) ListByPatient(ctx context.Context, patientID string) ([]domain.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, patient_id, kind, result, input_hash, created_at
FROM analyses
WHERE patient_id = $1
ORDER BY created_at DESC
`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	analyses := []domain.Analysis{}
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, *analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return analyses, nil
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var analysis domain.Analysis
	var kind string
	var resultRaw []byte

	err := row.Scan(&analysis.ID, &analysis.PatientID, &kind, &resultRaw, &analysis.InputHash, &analysis.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resultRaw, &analysis.Result); err != nil {
		return nil, fmt.Errorf("unmarshal analysis result: %w", err)
	}
	analysis.Kind = domain.AnalysisKind(kind)
	return &analysis, nil
}
