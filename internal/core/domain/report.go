package domain

import "time"

// ValidationStatus tracks the category-validation side of a report's
// lifecycle. It is independent from ExtractionStatus.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationValidated ValidationStatus = "validated"
	ValidationMismatch  ValidationStatus = "mismatch"
	ValidationError     ValidationStatus = "error"
)

// ExtractionStatus tracks the structured-extraction side of a report's
// lifecycle.
type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionError      ExtractionStatus = "error"
)

// Report is one uploaded clinical document awaiting or having completed
// processing. Callers polling a report observe status progression while the
// ingestion pipeline runs; there is no single atomic commit for the whole
// pipeline.
type Report struct {
	ID                   string           `json:"id"`
	PatientID            string           `json:"patient_id"`
	Category             Category         `json:"category"`
	Filename             string           `json:"filename"`
	StoragePath          string           `json:"storage_path"`
	SizeBytes            int64            `json:"size_bytes"`
	MimeType             string           `json:"mime_type"`
	ValidationStatus     ValidationStatus `json:"validation_status"`
	ValidationMessage    string           `json:"validation_message,omitempty"`
	ValidationConfidence float64          `json:"validation_confidence"`
	ExtractionStatus     ExtractionStatus `json:"extraction_status"`
	ProcessingComplete   bool             `json:"processing_complete"`
	CreatedAt            time.Time        `json:"created_at"`
}

// IngestStatus is the terminal outcome of one ingestion attempt.
type IngestStatus string

const (
	// IngestCompleted: stored, validated (or validation skipped) and
	// extraction persisted.
	IngestCompleted IngestStatus = "completed"
	// IngestRejected: decisive category mismatch; record and blob were
	// rolled back.
	IngestRejected IngestStatus = "rejected"
	// IngestExtractionFailed: the report exists and is validated, but the
	// extraction step failed. The record is kept in extraction status
	// "error".
	IngestExtractionFailed IngestStatus = "extraction_error"
)

// MismatchDetails surfaces a decisive category mismatch to the caller so the
// user can change the category or force the upload.
type MismatchDetails struct {
	DetectedCategory Category `json:"detected_category"`
	Confidence       float64  `json:"confidence"`
	Notes            string   `json:"notes"`
}

// IngestResult is what one call to the ingestion orchestrator produces.
// Report is nil only for the rejected (rolled back) outcome.
type IngestResult struct {
	Status   IngestStatus     `json:"status"`
	Report   *Report          `json:"report,omitempty"`
	Mismatch *MismatchDetails `json:"mismatch,omitempty"`
}

// ReportProcessedEvent is published after a report finishes extraction.
type ReportProcessedEvent struct {
	ReportID    string    `json:"report_id"`
	PatientID   string    `json:"patient_id"`
	PublishedAt time.Time `json:"published_at"`
}
