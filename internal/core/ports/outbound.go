package ports

import (
	"context"
	"io"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

// ReportRepository persists and reads document record state.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	ListByPatient(ctx context.Context, patientID string) ([]domain.Report, error)
	UpdateValidation(ctx context.Context, id string, status domain.ValidationStatus, message string, confidence float64) error
	UpdateExtraction(ctx context.Context, id string, status domain.ExtractionStatus, processingComplete bool) error
	Delete(ctx context.Context, id string) error
	SaveValidationAudit(ctx context.Context, audit *domain.ValidationAudit) error
}

// ExtractionRepository persists append-only structured extraction rows.
type ExtractionRepository interface {
	Create(ctx context.Context, extraction *domain.Extraction) error
	ListByPatient(ctx context.Context, patientID string) ([]domain.Extraction, error)
}

// AnalysisRepository persists analysis records stamped with their dedup key.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *domain.Analysis) error
	FindByDedupKey(ctx context.Context, patientID string, kind domain.AnalysisKind, key string) (*domain.Analysis, error)
	ListByPatient(ctx context.Context, patientID string) ([]domain.Analysis, error)
}

// ObjectStorage stores uploaded document blobs.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DocumentTextSource produces the classifier's input text from raw upload
// bytes (PDF plain text where possible, filename otherwise).
type DocumentTextSource interface {
	Text(content []byte, mimeType, filename string) string
}

// CategoryClassifier validates a declared category against document content.
type CategoryClassifier interface {
	Classify(ctx context.Context, text string, declared domain.Category, filename string) (domain.Classification, error)
}

// StructuredExtractor converts raw document bytes into text plus a
// structured medical payload.
type StructuredExtractor interface {
	Extract(ctx context.Context, content []byte, mimeType string, category domain.Category) (domain.ExtractionResult, error)
}

// AnalysisEngine runs one structured analysis over a patient's extraction
// history.
type AnalysisEngine interface {
	Analyze(ctx context.Context, patientID string, kind domain.AnalysisKind, history []domain.Extraction) (domain.AnalysisResult, error)
}

// MessageQueue publishes/consumes report lifecycle events.
type MessageQueue interface {
	PublishReportProcessed(ctx context.Context, event domain.ReportProcessedEvent) error
	SubscribeReportProcessed(ctx context.Context, handler func(context.Context, domain.ReportProcessedEvent) error) error
}
