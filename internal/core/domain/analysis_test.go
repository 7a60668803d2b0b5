package domain

import (
	"testing"
	"time"
)

func TestAnalysisDedupKeyStableWithinBucket(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 30, 5, 0, time.UTC)

	k1 := AnalysisDedupKey("patient-1", AnalysisRisk, base, time.Minute)
	k2 := AnalysisDedupKey("patient-1", AnalysisRisk, base.Add(40*time.Second), time.Minute)
	if k1 != k2 {
		t.Fatalf("expected identical keys within one bucket")
	}

	k3 := AnalysisDedupKey("patient-1", AnalysisRisk, base.Add(2*time.Minute), time.Minute)
	if k1 == k3 {
		t.Fatalf("expected different keys across buckets")
	}
}

func TestAnalysisDedupKeySeparatesPatientAndKind(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 30, 5, 0, time.UTC)

	base := AnalysisDedupKey("patient-1", AnalysisRisk, at, time.Minute)
	if base == AnalysisDedupKey("patient-2", AnalysisRisk, at, time.Minute) {
		t.Fatalf("expected patient id to change the key")
	}
	if base == AnalysisDedupKey("patient-1", AnalysisProcedure, at, time.Minute) {
		t.Fatalf("expected analysis kind to change the key")
	}
}

func TestPlaceholderAnalysisResultShape(t *testing.T) {
	r := PlaceholderAnalysisResult()
	if r.RiskLevel != "Low" || r.RiskScore != 20 {
		t.Fatalf("unexpected placeholder risk: %s/%d", r.RiskLevel, r.RiskScore)
	}
	if r.ContributingFactors == nil || r.RecommendedProcedures == nil {
		t.Fatalf("placeholder must carry non-nil collections")
	}
	if len(r.Recommendations) == 0 {
		t.Fatalf("placeholder must carry default recommendations")
	}
}

func TestDegradedStructuredDataShape(t *testing.T) {
	d := DegradedStructuredData()
	if d.Summary != "Extraction completed" {
		t.Fatalf("unexpected summary %q", d.Summary)
	}
	if d.LabValues == nil || d.Findings == nil || d.Recommendations == nil {
		t.Fatalf("degraded payload must carry non-nil collections")
	}
}
