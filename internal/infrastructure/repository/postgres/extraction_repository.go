package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

type ExtractionRepository struct {
	db *sql.DB
}

func NewExtractionRepository(db *sql.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

func (r *ExtractionRepository) Create(ctx context.Context, extraction *domain.Extraction) error {
	structuredJSON, err := json.Marshal(extraction.Structured)
	if err != nil {
		return fmt.Errorf("marshal structured data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO extractions (
	id, report_id, patient_id, category, raw_text, structured_data, extraction_model, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		extraction.ID, extraction.ReportID, extraction.PatientID, string(extraction.Category),
		extraction.RawText, structuredJSON, extraction.Model, extraction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

func (r *ExtractionRepository) ListByPatient(ctx context.Context, patientID string) ([]domain.Extraction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, report_id, patient_id, category, raw_text, structured_data, extraction_model, created_at
FROM extractions
WHERE patient_id = $1
ORDER BY created_at DESC
`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}
	defer rows.Close()

	extractions := []domain.Extraction{}
	for rows.Next() {
		var extraction domain.Extraction
		var category string
		var structuredRaw []byte

		err := rows.Scan(
			&extraction.ID, &extraction.ReportID, &extraction.PatientID, &category,
			&extraction.RawText, &structuredRaw, &extraction.Model, &extraction.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan extraction: %w", err)
		}
		if err := json.Unmarshal(structuredRaw, &extraction.Structured); err != nil {
			return nil, fmt.Errorf("unmarshal structured data: %w", err)
		}
		extraction.Category = domain.Category(category)
		extractions = append(extractions, extraction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extractions: %w", err)
	}
	return extractions, nil
}
