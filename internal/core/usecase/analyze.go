package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/clinical-ingest/internal/core/domain"
	"github.com/medvault/clinical-ingest/internal/core/ports"
)

// RequestAnalysisUseCase gates the expensive AI analysis behind a coarse
// dedup window: repeated requests for the same patient and kind within one
// time bucket short-circuit to the already persisted record.
type RequestAnalysisUseCase struct {
	analyses    ports.AnalysisRepository
	extractions ports.ExtractionRepository
	engine      ports.AnalysisEngine

	window time.Duration
	now    func() time.Time
}

func NewRequestAnalysisUseCase(
	analyses ports.AnalysisRepository,
	extractions ports.ExtractionRepository,
	engine ports.AnalysisEngine,
	window time.Duration,
) *RequestAnalysisUseCase {
	if window <= 0 {
		window = domain.DefaultDedupWindow
	}
	return &RequestAnalysisUseCase{
		analyses:    analyses,
		extractions: extractions,
		engine:      engine,
		window:      window,
		now:         time.Now,
	}
}

func (uc *RequestAnalysisUseCase) RequestAnalysis(ctx context.Context, patientID string, kind domain.AnalysisKind) (*ports.AnalysisOutcome, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "request analysis", errors.New("patient id is required"))
	}
	if !kind.Known() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "request analysis", fmt.Errorf("unknown analysis kind %q", kind))
	}

	key := domain.AnalysisDedupKey(patientID, kind, uc.now(), uc.window)

	existing, err := uc.analyses.FindByDedupKey(ctx, patientID, kind, key)
	if err != nil {
		return nil, fmt.Errorf("look up dedup key: %w", err)
	}
	if existing != nil {
		slog.Info("analysis_request_deduplicated", "patient_id", patientID, "kind", kind)
		return &ports.AnalysisOutcome{Skipped: true, Analysis: existing}, nil
	}

	history, err := uc.extractions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load extraction history: %w", err)
	}

	result, err := uc.engine.Analyze(ctx, patientID, kind, history)
	if err != nil {
		return nil, fmt.Errorf("run %s analysis: %w", kind, err)
	}

	analysis := &domain.Analysis{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Kind:      kind,
		Result:    result,
		InputHash: key,
		CreatedAt: uc.now().UTC(),
	}
	if err := uc.analyses.Create(ctx, analysis); err != nil {
		// Lost the same-window race: the unique constraint on the dedup key
		// guarantees a single row, so report "skipped" instead of failing.
		if domain.IsKind(err, domain.ErrDuplicateAnalysis) {
			winner, findErr := uc.analyses.FindByDedupKey(ctx, patientID, kind, key)
			if findErr != nil || winner == nil {
				return &ports.AnalysisOutcome{Skipped: true}, nil
			}
			return &ports.AnalysisOutcome{Skipped: true, Analysis: winner}, nil
		}
		return nil, fmt.Errorf("persist analysis: %w", err)
	}

	return &ports.AnalysisOutcome{Skipped: false, Analysis: analysis}, nil
}
