package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AnalysisKind selects which structured analysis the AI collaborator runs.
type AnalysisKind string

const (
	AnalysisRisk      AnalysisKind = "risk"
	AnalysisProcedure AnalysisKind = "procedure"
)

func (k AnalysisKind) Known() bool {
	return k == AnalysisRisk || k == AnalysisProcedure
}

// DefaultDedupWindow is the time bucket used to suppress duplicate analysis
// triggers.
const DefaultDedupWindow = time.Minute

// AnalysisDedupKey computes the coarse idempotency key for one analysis
// request: same patient, same kind, same fixed-width time bucket yield the
// same key. It is a duplicate-suppression filter, not a lock.
func AnalysisDedupKey(patientID string, kind AnalysisKind, at time.Time, window time.Duration) string {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	bucket := at.Unix() / int64(window/time.Second)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", patientID, kind, bucket)))
	return hex.EncodeToString(sum[:])
}

type ContributingFactor struct {
	Risk    string   `json:"risk"`
	Factors []string `json:"factors"`
}

type RecommendedProcedure struct {
	Name               string `json:"name"`
	Code               string `json:"code"`
	Priority           string `json:"priority"`
	Rationale          string `json:"rationale"`
	EstimatedFrequency string `json:"estimated_frequency"`
}

// AnalysisResult is the AI collaborator's parsed analysis payload. JSON tags
// match the response schema the engine prompts for.
type AnalysisResult struct {
	RiskLevel             string                        `json:"risk_level"`
	RiskScore             int                           `json:"risk_score"`
	PredictionCategory    string                        `json:"prediction_category"`
	Confidence            float64                       `json:"confidence_score"`
	ContributingFactors   map[string]ContributingFactor `json:"contributing_factors"`
	RecommendedProcedures []RecommendedProcedure        `json:"recommended_procedures"`
	Recommendations       []string                      `json:"recommendations"`
	ModelVersion          string                        `json:"model_version"`
}

func (r *AnalysisResult) Normalize() {
	if r.ContributingFactors == nil {
		r.ContributingFactors = map[string]ContributingFactor{}
	}
	if r.RecommendedProcedures == nil {
		r.RecommendedProcedures = []RecommendedProcedure{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
}

// PlaceholderAnalysisResult is stored when the AI response carried no
// parseable JSON.
func PlaceholderAnalysisResult() AnalysisResult {
	r := AnalysisResult{
		RiskLevel:       "Low",
		RiskScore:       20,
		Confidence:      0.5,
		ModelVersion:    "ml-v1.0-placeholder",
		Recommendations: []string{"Consult with specialist", "Regular monitoring recommended"},
	}
	r.Normalize()
	return r
}

// Analysis is a persisted analysis record stamped with its dedup key.
type Analysis struct {
	ID        string         `json:"id"`
	PatientID string         `json:"patient_id"`
	Kind      AnalysisKind   `json:"kind"`
	Result    AnalysisResult `json:"result"`
	InputHash string         `json:"input_hash"`
	CreatedAt time.Time      `json:"created_at"`
}
