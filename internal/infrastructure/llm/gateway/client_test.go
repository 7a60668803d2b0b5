package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

func chatResponse(content string) string {
	encoded, _ := json.Marshal(content)
	return fmt.Sprintf(`{"choices":[{"message":{"content":%s}}]}`, encoded)
}

func newTestClient(serverURL string) *Client {
	return New(Config{
		BaseURL:       serverURL,
		APIKey:        "test-key",
		ClassifyModel: "classify-model",
		ExtractModel:  "extract-model",
		AnalyzeModel:  "analyze-model",
	})
}

func TestClassifierParsesGatewayVerdict(t *testing.T) {
	var capturedAuth string
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		capturedAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(chatResponse(`{"detected_category":"X-Ray","is_match":false,"confidence":0.85,"keywords_found":["radiograph"],"validation_notes":"chest film"}`)))
	}))
	defer server.Close()

	classifier := NewClassifier(newTestClient(server.URL), nil)
	cls, err := classifier.Classify(context.Background(), "radiograph of the chest", domain.CategoryBloodTest, "scan.pdf")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.IsMatch || cls.DetectedCategory != domain.CategoryXRay {
		t.Fatalf("unexpected verdict: %+v", cls)
	}
	if capturedAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", capturedAuth)
	}
	if capturedBody["model"] != "classify-model" {
		t.Fatalf("expected classify model, got %v", capturedBody["model"])
	}
	prompt := extractPromptText(t, capturedBody)
	if !strings.Contains(prompt, "scan.pdf") || !strings.Contains(prompt, "Blood Test Report") {
		t.Fatalf("prompt missing filename or declared category: %s", prompt)
	}
}

func TestClassifierStripsCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatResponse("```json\n{\"detected_category\":\"ECG Report\",\"is_match\":true,\"confidence\":0.9,\"keywords_found\":[],\"validation_notes\":\"ok\"}\n```")))
	}))
	defer server.Close()

	classifier := NewClassifier(newTestClient(server.URL), nil)
	cls, err := classifier.Classify(context.Background(), "ecg", domain.CategoryECG, "ecg.pdf")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !cls.IsMatch || cls.DetectedCategory != domain.CategoryECG {
		t.Fatalf("unexpected verdict: %+v", cls)
	}
}

func TestClassifierFallsBackToKeywordsOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	classifier := NewClassifier(newTestClient(server.URL), nil)
	cls, err := classifier.Classify(context.Background(), "hemoglobin creatinine CBC platelet count", domain.CategoryBloodTest, "cbc.pdf")
	if err != nil {
		t.Fatalf("fallback must not surface the transport error, got %v", err)
	}
	if !cls.IsMatch {
		t.Fatalf("expected keyword fallback to match, got %+v", cls)
	}
	if cls.Notes != "Keywords matched" {
		t.Fatalf("expected keyword fallback notes, got %q", cls.Notes)
	}
}

func TestClassifierFallsBackToKeywordsOnProseResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatResponse("I believe this is a blood test but I cannot be sure.")))
	}))
	defer server.Close()

	classifier := NewClassifier(newTestClient(server.URL), nil)
	cls, err := classifier.Classify(context.Background(), "no recognizable terms here", domain.CategoryPrescription, "note.pdf")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.IsMatch {
		t.Fatalf("expected keyword fallback with no hits, got %+v", cls)
	}
	if cls.Confidence != 0.5 {
		t.Fatalf("expected base fallback confidence, got %f", cls.Confidence)
	}
}

func TestClassifierReportsAuthFailureAsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	classifier := NewClassifier(newTestClient(server.URL), nil)
	_, err := classifier.Classify(context.Background(), "text", domain.CategoryOther, "doc.pdf")
	if !domain.IsKind(err, domain.ErrClassifierUnavailable) {
		t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
	}
}

func TestExtractorSendsDataURLAndParses(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(chatResponse(`{"raw_text":"Hemoglobin 13.5 g/dL","structured_data":{"summary":"CBC within range","lab_values":[{"name":"Hemoglobin","value":"13.5","unit":"g/dL","reference_range":"12-16","status":"normal"}]}}`)))
	}))
	defer server.Close()

	extractor := NewExtractor(newTestClient(server.URL))
	result, err := extractor.Extract(context.Background(), []byte("%PDF-1.4"), "application/pdf", domain.CategoryBloodTest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Degraded {
		t.Fatalf("expected parsed result")
	}
	if len(result.Structured.LabValues) != 1 || result.Structured.LabValues[0].Name != "Hemoglobin" {
		t.Fatalf("unexpected lab values: %+v", result.Structured.LabValues)
	}
	if result.Structured.Findings == nil {
		t.Fatalf("expected normalized slices")
	}

	raw, _ := json.Marshal(capturedBody)
	if !strings.Contains(string(raw), "data:application/pdf;base64,") {
		t.Fatalf("expected data url in request, got %s", raw)
	}
}

func TestExtractorDegradesOnProseResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatResponse("The document shows a routine blood panel.")))
	}))
	defer server.Close()

	extractor := NewExtractor(newTestClient(server.URL))
	result, err := extractor.Extract(context.Background(), []byte("%PDF-1.4"), "application/pdf", domain.CategoryBloodTest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !result.Degraded {
		t.Fatalf("expected degraded result")
	}
	if result.RawText != "The document shows a routine blood panel." {
		t.Fatalf("expected raw response preserved, got %q", result.RawText)
	}
	if result.Structured.Summary != "Extraction completed" {
		t.Fatalf("expected placeholder structured payload, got %+v", result.Structured)
	}
}

func TestExtractorSurfacesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "context length exceeded", http.StatusBadRequest)
	}))
	defer server.Close()

	extractor := NewExtractor(newTestClient(server.URL))
	_, err := extractor.Extract(context.Background(), []byte("%PDF-1.4"), "application/pdf", domain.CategoryMRI)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "context length exceeded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestAnalyzerParsesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatResponse(`{"risk_level":"High","risk_score":78,"prediction_category":"cardiovascular","confidence_score":0.8,"recommendations":["Schedule cardiology consult"],"model_version":"clinical-v2"}`)))
	}))
	defer server.Close()

	analyzer := NewAnalyzer(newTestClient(server.URL))
	result, err := analyzer.Analyze(context.Background(), "patient-1", domain.AnalysisRisk, nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.RiskLevel != "High" || result.RiskScore != 78 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.ContributingFactors == nil || result.RecommendedProcedures == nil {
		t.Fatalf("expected normalized collections")
	}
}

func TestAnalyzerStoresPlaceholderOnProseResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatResponse("Unable to produce a structured assessment.")))
	}))
	defer server.Close()

	analyzer := NewAnalyzer(newTestClient(server.URL))
	result, err := analyzer.Analyze(context.Background(), "patient-1", domain.AnalysisRisk, nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.ModelVersion != "ml-v1.0-placeholder" {
		t.Fatalf("expected placeholder, got %+v", result)
	}
}

func TestAnalyzerIncludesHistoryInPrompt(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(chatResponse(`{"risk_level":"Low","risk_score":10}`)))
	}))
	defer server.Close()

	history := []domain.Extraction{{
		Category:   domain.CategoryBloodTest,
		Structured: domain.StructuredData{Summary: "elevated cholesterol"},
	}}

	analyzer := NewAnalyzer(newTestClient(server.URL))
	if _, err := analyzer.Analyze(context.Background(), "patient-1", domain.AnalysisProcedure, history); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	prompt := extractPromptText(t, capturedBody)
	if !strings.Contains(prompt, "elevated cholesterol") {
		t.Fatalf("expected history in prompt, got %s", prompt)
	}
	if !strings.Contains(prompt, "recommend follow-up procedures") {
		t.Fatalf("expected procedure prompt, got %s", prompt)
	}
}

func extractPromptText(t *testing.T, body map[string]any) string {
	t.Helper()
	messages, ok := body["messages"].([]any)
	if !ok || len(messages) == 0 {
		t.Fatalf("no messages in request body: %v", body)
	}
	first, ok := messages[0].(map[string]any)
	if !ok {
		t.Fatalf("unexpected message shape: %v", messages[0])
	}
	switch content := first["content"].(type) {
	case string:
		return content
	case []any:
		var builder strings.Builder
		for _, part := range content {
			if m, ok := part.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					builder.WriteString(text)
				}
			}
		}
		return builder.String()
	default:
		t.Fatalf("unexpected content shape: %T", content)
		return ""
	}
}
