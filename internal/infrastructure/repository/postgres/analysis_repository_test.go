package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

func newAnalysisRepoWithMock(t *testing.T) (*AnalysisRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &AnalysisRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateMapsUniqueViolationToDuplicateAnalysis(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO analyses").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "analyses_patient_id_kind_input_hash_key"})

	err := repo.Create(context.Background(), &domain.Analysis{
		ID:        "a1",
		PatientID: "patient-1",
		Kind:      domain.AnalysisRisk,
		Result:    domain.PlaceholderAnalysisResult(),
		InputHash: "abc",
		CreatedAt: time.Now().UTC(),
	})
	if !domain.IsKind(err, domain.ErrDuplicateAnalysis) {
		t.Fatalf("expected ErrDuplicateAnalysis, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByDedupKeyReturnsNilWhenAbsent(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, patient_id, kind, result, input_hash, created_at").
		WithArgs("patient-1", "risk", "abc").
		WillReturnError(sql.ErrNoRows)

	analysis, err := repo.FindByDedupKey(context.Background(), "patient-1", domain.AnalysisRisk, "abc")
	if err != nil {
		t.Fatalf("FindByDedupKey() error = %v", err)
	}
	if analysis != nil {
		t.Fatalf("expected nil for missing key, got %+v", analysis)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByDedupKeyUnmarshalsResult(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	createdAt := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "patient_id", "kind", "result", "input_hash", "created_at"}).
		AddRow("a1", "patient-1", "risk", []byte(`{"risk_level":"Low","risk_score":20}`), "abc", createdAt)
	mock.ExpectQuery("SELECT id, patient_id, kind, result, input_hash, created_at").
		WithArgs("patient-1", "risk", "abc").
		WillReturnRows(rows)

	analysis, err := repo.FindByDedupKey(context.Background(), "patient-1", domain.AnalysisRisk, "abc")
	if err != nil {
		t.Fatalf("FindByDedupKey() error = %v", err)
	}
	if analysis == nil || analysis.Result.RiskLevel != "Low" || analysis.Kind != domain.AnalysisRisk {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
