package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

type analysisRepoFake struct {
	rows map[string]*domain.Analysis

	createErr error
	findErr   error
	creates   int
}

func newAnalysisRepoFake() *analysisRepoFake {
	return &analysisRepoFake{rows: map[string]*domain.Analysis{}}
}

func (f *analysisRepoFake) Create(_ context.Context, analysis *domain.Analysis) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rows[analysis.InputHash]; ok {
		return domain.WrapError(domain.ErrDuplicateAnalysis, "create analysis", errors.New("duplicate key"))
	}
	copyAnalysis := *analysis
	f.rows[analysis.InputHash] = &copyAnalysis
	return nil
}

func (f *analysisRepoFake) FindByDedupKey(_ context.Context, _ string, _ domain.AnalysisKind, key string) (*domain.Analysis, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.rows[key], nil
}

func (f *analysisRepoFake) ListByPatient(context.Context, string) ([]domain.Analysis, error) {
	return nil, errors.New("not implemented")
}

type extractionHistoryFake struct {
	history []domain.Extraction
	err     error
}

func (f *extractionHistoryFake) Create(context.Context, *domain.Extraction) error {
	return errors.New("not implemented")
}

func (f *extractionHistoryFake) ListByPatient(context.Context, string) ([]domain.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

type engineFake struct {
	result domain.AnalysisResult
	err    error
	calls  int
}

func (f *engineFake) Analyze(_ context.Context, _ string, _ domain.AnalysisKind, _ []domain.Extraction) (domain.AnalysisResult, error) {
	f.calls++
	if f.err != nil {
		return domain.AnalysisResult{}, f.err
	}
	return f.result, nil
}

func newAnalysisUseCase(repo *analysisRepoFake, engine *engineFake) *RequestAnalysisUseCase {
	uc := NewRequestAnalysisUseCase(repo, &extractionHistoryFake{
		history: []domain.Extraction{{ID: "e1", PatientID: "patient-1"}},
	}, engine, time.Minute)
	// Pin the clock inside one dedup bucket.
	fixed := time.Date(2026, 3, 14, 10, 30, 5, 0, time.UTC)
	uc.now = func() time.Time { return fixed }
	return uc
}

func TestRequestAnalysisPersistsResult(t *testing.T) {
	repo := newAnalysisRepoFake()
	engine := &engineFake{result: domain.AnalysisResult{RiskLevel: "High", RiskScore: 80, ModelVersion: "gateway-v1"}}
	uc := newAnalysisUseCase(repo, engine)

	outcome, err := uc.RequestAnalysis(context.Background(), "patient-1", domain.AnalysisRisk)
	if err != nil {
		t.Fatalf("RequestAnalysis() error = %v", err)
	}
	if outcome.Skipped {
		t.Fatalf("first request must not be skipped")
	}
	if outcome.Analysis == nil || outcome.Analysis.Result.RiskLevel != "High" {
		t.Fatalf("expected persisted engine result, got %+v", outcome.Analysis)
	}
	if outcome.Analysis.InputHash == "" {
		t.Fatalf("expected dedup key stamped on the record")
	}
}

func TestRequestAnalysisDedupesWithinWindow(t *testing.T) {
	repo := newAnalysisRepoFake()
	engine := &engineFake{result: domain.PlaceholderAnalysisResult()}
	uc := newAnalysisUseCase(repo, engine)

	first, err := uc.RequestAnalysis(context.Background(), "patient-1", domain.AnalysisRisk)
	if err != nil {
		t.Fatalf("first request error = %v", err)
	}
	second, err := uc.RequestAnalysis(context.Background(), "patient-1", domain.AnalysisRisk)
	if err != nil {
		t.Fatalf("second request error = %v", err)
	}
	if !second.Skipped {
		t.Fatalf("second request in the same window must be skipped")
	}
	if second.Analysis == nil || second.Analysis.ID != first.Analysis.ID {
		t.Fatalf("skip must return the already persisted record")
	}
	if engine.calls != 1 {
		t.Fatalf("engine must run once, ran %d times", engine.calls)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected exactly one persisted analysis, got %d", len(repo.rows))
	}
}

func TestRequestAnalysisDifferentKindsAreIndependent(t *testing.T) {
	repo := newAnalysisRepoFake()
	engine := &engineFake{result: domain.PlaceholderAnalysisResult()}
	uc := newAnalysisUseCase(repo, engine)

	if _, err := uc.RequestAnalysis(context.Background(), "patient-1", domain.AnalysisRisk); err != nil {
		t.Fatalf("risk request error = %v", err)
	}
	outcome, err := uc.RequestAnalysis(context.Background(), "patient-1", domain.AnalysisProcedure)
	if err != nil {
		t.Fatalf("procedure request error = %v", err)
	}
	if outcome.Skipped {
		t.Fatalf("a different kind must not be deduplicated")
	}
	if len(repo.rows) != 2 {
		t.Fatalf("expected two persisted analyses, got %d", len(repo.rows))
	}
}

func TestRequestAnalysisDuplicateKeyRaceReportsSkipped(t *testing.T) {
	repo := newAnalysisRepoFake()
	engine := &engineFake{result: domain.PlaceholderAnalysisResult()}
	uc := newAnalysisUseCase(repo, engine)

	// Simulate a rival request committing between the lookup and the insert:
	// the insert hits the unique constraint even though the first lookup saw
	// nothing.
	repo.createErr = domain.WrapError(domain.ErrDuplicateAnalysis, "create analysis", errors.New("duplicate key"))
	key := domain.AnalysisDedupKey("patient-1", domain.AnalysisRisk, uc.now(), time.Minute)
	rival := &domain.Analysis{ID: "rival", PatientID: "patient-1", Kind: domain.AnalysisRisk, InputHash: key}

	outcome, err := uc.RequestAnalysis(context.Background(), "patient-1", domain.AnalysisRisk)
	if err != nil {
		t.Fatalf("RequestAnalysis() error = %v", err)
	}
	if !outcome.Skipped {
		t.Fatalf("losing the insert race must report skipped")
	}

	// With the winner's row visible, the skip outcome carries it.
	repo.rows[key] = rival
	outcome, err = uc.RequestAnalysis(context.Background(), "patient-1", domain.AnalysisRisk)
	if err != nil {
		t.Fatalf("RequestAnalysis() error = %v", err)
	}
	if !outcome.Skipped || outcome.Analysis == nil || outcome.Analysis.ID != "rival" {
		t.Fatalf("expected the winner's record, got %+v", outcome.Analysis)
	}
}

func TestRequestAnalysisEngineFailurePropagates(t *testing.T) {
	repo := newAnalysisRepoFake()
	engine := &engineFake{err: errors.New("gateway unavailable")}
	uc := newAnalysisUseCase(repo, engine)

	_, err := uc.RequestAnalysis(context.Background(), "patient-1", domain.AnalysisRisk)
	if err == nil {
		t.Fatalf("expected engine error to propagate")
	}
	if len(repo.rows) != 0 {
		t.Fatalf("no record may be persisted after an engine failure")
	}
}

func TestRequestAnalysisRejectsBadInput(t *testing.T) {
	repo := newAnalysisRepoFake()
	uc := newAnalysisUseCase(repo, &engineFake{})

	if _, err := uc.RequestAnalysis(context.Background(), "", domain.AnalysisRisk); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty patient, got %v", err)
	}
	if _, err := uc.RequestAnalysis(context.Background(), "patient-1", "astrology"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
}
