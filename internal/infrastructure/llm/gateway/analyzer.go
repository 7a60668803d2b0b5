package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

const (
	analyzeTemperature = 0.2
	analyzeMaxTokens   = 2000
)

// Analyzer runs risk and procedure analyses over a patient's extraction
// history. An unparseable response stores the placeholder result rather than
// failing the request.
type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Analyze(ctx context.Context, patientID string, kind domain.AnalysisKind, history []domain.Extraction) (domain.AnalysisResult, error) {
	req := chatRequest{
		Model: a.client.analyzeModel,
		Messages: []chatMessage{
			{Role: "user", Content: buildAnalysisPrompt(kind, history)},
		},
		Temperature: analyzeTemperature,
		MaxTokens:   analyzeMaxTokens,
	}

	respText, err := a.client.complete(ctx, "analyze", req)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("run %s analysis: %w", kind, err)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(firstJSONObject(respText)), &result); err != nil {
		slog.Warn("analysis_response_not_json", "patient_id", patientID, "kind", kind, "error", err)
		return domain.PlaceholderAnalysisResult(), nil
	}

	result.Normalize()
	if result.ModelVersion == "" {
		result.ModelVersion = a.client.analyzeModel
	}
	return result, nil
}
