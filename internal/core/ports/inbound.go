package ports

import (
	"context"
	"io"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

// IngestRequest carries one document upload into the orchestrator.
type IngestRequest struct {
	PatientID string
	Category  domain.Category
	Filename  string
	MimeType  string
	SizeBytes int64
	Body      io.Reader
	// SkipValidation is the caller's "upload anyway" override: the
	// classifier is never invoked and the upload never rolls back.
	SkipValidation bool
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Ingest(ctx context.Context, req IngestRequest) (*domain.IngestResult, error)
}

// AnalysisOutcome reports whether an analysis ran or was suppressed by the
// dedup window.
type AnalysisOutcome struct {
	Skipped  bool             `json:"skipped"`
	Analysis *domain.Analysis `json:"analysis,omitempty"`
}

// AnalysisRequester is the inbound contract for the dedup-guarded analysis
// trigger.
type AnalysisRequester interface {
	RequestAnalysis(ctx context.Context, patientID string, kind domain.AnalysisKind) (*AnalysisOutcome, error)
}

// ReportReader is the inbound read model for record status polling.
type ReportReader interface {
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	ListByPatient(ctx context.Context, patientID string) ([]domain.Report, error)
}
