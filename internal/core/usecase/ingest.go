package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/clinical-ingest/internal/core/domain"
	"github.com/medvault/clinical-ingest/internal/core/ports"
)

const (
	// DefaultMaxUploadBytes caps uploads at 50 MB.
	DefaultMaxUploadBytes = 50 << 20

	// mismatchRollbackThreshold: a mismatch below this confidence is decisive
	// and triggers the compensating rollback. At or above it, the record is
	// kept in the mismatch-but-accepted state.
	mismatchRollbackThreshold = 0.5
)

var allowedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
}

// IngestDocumentUseCase drives the upload pipeline:
// store blob -> create record -> validate category -> rollback or continue ->
// structured extraction -> persist. Each step's side effects are visible to
// callers polling the record; there is no single atomic commit.
type IngestDocumentUseCase struct {
	reports     ports.ReportRepository
	extractions ports.ExtractionRepository
	storage     ports.ObjectStorage
	textSource  ports.DocumentTextSource
	classifier  ports.CategoryClassifier
	extractor   ports.StructuredExtractor
	queue       ports.MessageQueue

	maxUploadBytes int64
}

func NewIngestDocumentUseCase(
	reports ports.ReportRepository,
	extractions ports.ExtractionRepository,
	storage ports.ObjectStorage,
	textSource ports.DocumentTextSource,
	classifier ports.CategoryClassifier,
	extractor ports.StructuredExtractor,
	queue ports.MessageQueue,
	maxUploadBytes int64,
) *IngestDocumentUseCase {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &IngestDocumentUseCase{
		reports:        reports,
		extractions:    extractions,
		storage:        storage,
		textSource:     textSource,
		classifier:     classifier,
		extractor:      extractor,
		queue:          queue,
		maxUploadBytes: maxUploadBytes,
	}
}

func (uc *IngestDocumentUseCase) Ingest(ctx context.Context, req ports.IngestRequest) (*domain.IngestResult, error) {
	if err := validateIngestRequest(req); err != nil {
		return nil, err
	}

	content, err := uc.readBody(req.Body)
	if err != nil {
		return nil, err
	}

	report, err := uc.store(ctx, req, content)
	if err != nil {
		return nil, err
	}

	if !req.SkipValidation {
		rejected, err := uc.validateCategory(ctx, report, content)
		if err != nil {
			return nil, err
		}
		if rejected != nil {
			return rejected, nil
		}
	}

	return uc.extract(ctx, report, content)
}

func validateIngestRequest(req ports.IngestRequest) error {
	if strings.TrimSpace(req.PatientID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "ingest document", errors.New("patient id is required"))
	}
	if !req.Category.Known() {
		return domain.WrapError(domain.ErrInvalidInput, "ingest document", fmt.Errorf("unknown category %q", req.Category))
	}
	if _, ok := allowedMimeTypes[req.MimeType]; !ok {
		return domain.WrapError(domain.ErrInvalidInput, "ingest document", fmt.Errorf("unsupported mime type %q", req.MimeType))
	}
	if req.Body == nil {
		return domain.WrapError(domain.ErrInvalidInput, "ingest document", errors.New("empty body"))
	}
	return nil
}

func (uc *IngestDocumentUseCase) readBody(body io.Reader) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(body, uc.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(content)) > uc.maxUploadBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest document",
			fmt.Errorf("file exceeds %d bytes", uc.maxUploadBytes))
	}
	if len(content) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest document", errors.New("empty body"))
	}
	return content, nil
}

// store persists the blob first, then the provisional record. A storage
// failure is fatal for the attempt and leaves no record behind.
func (uc *IngestDocumentUseCase) store(ctx context.Context, req ports.IngestRequest, content []byte) (*domain.Report, error) {
	storageKey := fmt.Sprintf("%s/%s%s", req.PatientID, uuid.NewString(), storageExt(req.Filename))

	if err := uc.storage.Put(ctx, storageKey, bytes.NewReader(content), req.MimeType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	report := &domain.Report{
		ID:                 uuid.NewString(),
		PatientID:          req.PatientID,
		Category:           req.Category,
		Filename:           req.Filename,
		StoragePath:        storageKey,
		SizeBytes:          int64(len(content)),
		MimeType:           req.MimeType,
		ValidationStatus:   domain.ValidationPending,
		ExtractionStatus:   domain.ExtractionPending,
		ProcessingComplete: false,
		CreatedAt:          time.Now().UTC(),
	}

	if err := uc.reports.Create(ctx, report); err != nil {
		if delErr := uc.storage.Delete(ctx, storageKey); delErr != nil {
			slog.Warn("orphaned_object", "storage_path", storageKey, "error", delErr)
		}
		return nil, fmt.Errorf("create report record: %w", err)
	}
	return report, nil
}

// validateCategory runs the classifier and applies the rollback policy.
// A non-nil result means the upload was rejected and rolled back. A nil,nil
// return means the pipeline continues to extraction.
func (uc *IngestDocumentUseCase) validateCategory(ctx context.Context, report *domain.Report, content []byte) (*domain.IngestResult, error) {
	text := uc.textSource.Text(content, report.MimeType, report.Filename)

	cls, err := uc.classifier.Classify(ctx, text, report.Category, report.Filename)
	if err != nil {
		// Validation is advisory: category hygiene must not block an upload.
		slog.Warn("category_validation_skipped",
			"report_id", report.ID,
			"patient_id", report.PatientID,
			"error", err,
		)
		return nil, nil
	}

	if !cls.IsMatch && cls.Confidence < mismatchRollbackThreshold {
		return uc.rollback(ctx, report, cls)
	}

	status := domain.ValidationValidated
	if !cls.IsMatch {
		// Mismatch above the threshold: kept, flagged, not rolled back.
		status = domain.ValidationMismatch
	}
	if err := uc.reports.UpdateValidation(ctx, report.ID, status, cls.Notes, cls.Confidence); err != nil {
		return nil, fmt.Errorf("persist validation result: %w", err)
	}
	report.ValidationStatus = status
	report.ValidationMessage = cls.Notes
	report.ValidationConfidence = cls.Confidence

	audit := &domain.ValidationAudit{
		ID:               uuid.NewString(),
		ReportID:         report.ID,
		PatientID:        report.PatientID,
		SelectedCategory: report.Category,
		DetectedCategory: cls.DetectedCategory,
		IsMatch:          cls.IsMatch,
		Confidence:       cls.Confidence,
		KeywordsFound:    cls.KeywordsFound,
		Notes:            cls.Notes,
		CreatedAt:        time.Now().UTC(),
	}
	if err := uc.reports.SaveValidationAudit(ctx, audit); err != nil {
		slog.Warn("validation_audit_not_saved", "report_id", report.ID, "error", err)
	}
	return nil, nil
}

// rollback is the compensating transaction for a decisive mismatch: the
// record delete is authoritative and must succeed; the blob delete is best
// effort and a failure only leaves an orphaned object behind.
func (uc *IngestDocumentUseCase) rollback(ctx context.Context, report *domain.Report, cls domain.Classification) (*domain.IngestResult, error) {
	if err := uc.reports.Delete(ctx, report.ID); err != nil {
		return nil, fmt.Errorf("rollback report record: %w", err)
	}
	if err := uc.storage.Delete(ctx, report.StoragePath); err != nil {
		slog.Warn("orphaned_object", "storage_path", report.StoragePath, "error", err)
	}

	slog.Info("upload_rejected_category_mismatch",
		"report_id", report.ID,
		"patient_id", report.PatientID,
		"selected_category", report.Category,
		"detected_category", cls.DetectedCategory,
		"confidence", cls.Confidence,
	)

	return &domain.IngestResult{
		Status: domain.IngestRejected,
		Mismatch: &domain.MismatchDetails{
			DetectedCategory: cls.DetectedCategory,
			Confidence:       cls.Confidence,
			Notes:            cls.Notes,
		},
	}, nil
}

func (uc *IngestDocumentUseCase) extract(ctx context.Context, report *domain.Report, content []byte) (*domain.IngestResult, error) {
	if err := uc.reports.UpdateExtraction(ctx, report.ID, domain.ExtractionProcessing, false); err != nil {
		return nil, fmt.Errorf("set extraction status=processing: %w", err)
	}
	report.ExtractionStatus = domain.ExtractionProcessing

	result, err := uc.extractor.Extract(ctx, content, report.MimeType, report.Category)
	if err != nil {
		// A failed extraction still represents a legitimately uploaded,
		// validated document: mark it, keep it.
		slog.Error("structured_extraction_failed", "report_id", report.ID, "error", err)
		uc.markExtractionError(ctx, report)
		return &domain.IngestResult{Status: domain.IngestExtractionFailed, Report: report}, nil
	}

	extraction := &domain.Extraction{
		ID:         uuid.NewString(),
		ReportID:   report.ID,
		PatientID:  report.PatientID,
		Category:   report.Category,
		RawText:    result.RawText,
		Structured: result.Structured,
		Model:      result.Model,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.extractions.Create(ctx, extraction); err != nil {
		slog.Error("extraction_not_persisted", "report_id", report.ID, "error", err)
		uc.markExtractionError(ctx, report)
		return &domain.IngestResult{Status: domain.IngestExtractionFailed, Report: report}, nil
	}

	if err := uc.reports.UpdateExtraction(ctx, report.ID, domain.ExtractionCompleted, true); err != nil {
		return nil, fmt.Errorf("set extraction status=completed: %w", err)
	}
	report.ExtractionStatus = domain.ExtractionCompleted
	report.ProcessingComplete = true

	if uc.queue != nil {
		event := domain.ReportProcessedEvent{
			ReportID:    report.ID,
			PatientID:   report.PatientID,
			PublishedAt: time.Now().UTC(),
		}
		if err := uc.queue.PublishReportProcessed(ctx, event); err != nil {
			slog.Warn("report_processed_event_not_published", "report_id", report.ID, "error", err)
		}
	}

	return &domain.IngestResult{Status: domain.IngestCompleted, Report: report}, nil
}

func (uc *IngestDocumentUseCase) markExtractionError(ctx context.Context, report *domain.Report) {
	if err := uc.reports.UpdateExtraction(ctx, report.ID, domain.ExtractionError, false); err != nil {
		slog.Error("set extraction status=error failed", "report_id", report.ID, "error", err)
	}
	report.ExtractionStatus = domain.ExtractionError
}

func storageExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "." {
		return ""
	}
	return ext
}
