package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

const classificationSnippetLimit = 2000

func buildClassificationPrompt(text string, declared domain.Category, filename string) string {
	snippet := text
	if len(snippet) > classificationSnippetLimit {
		snippet = snippet[:classificationSnippetLimit]
	}

	var categories strings.Builder
	for _, category := range domain.KnownCategories() {
		categories.WriteString("- ")
		categories.WriteString(string(category))
		categories.WriteString("\n")
	}

	return fmt.Sprintf(`You are a medical document classifier.
The user selected the category %q for an uploaded document named %q.
Decide which of these categories the document actually belongs to:
%s
Return a strict JSON object with exactly these keys:
detected_category (one of the categories above), is_match (boolean, true when the detected category equals the selected one), confidence (number from 0 to 1), keywords_found (array of strings), validation_notes (string).
No markdown, no extra keys.

Document content:
%s`, declared, filename, categories.String(), snippet)
}

func buildExtractionPrompt(category domain.Category) string {
	return fmt.Sprintf(`You are a medical data extraction assistant.
Extract all medically relevant information from this %s document.
Return a strict JSON object with exactly these keys:
raw_text (string, the full readable text of the document),
structured_data (object with keys: document_date, patient_name, doctor_name, facility, lab_values, diagnoses, medications, measurements, findings, recommendations, summary).
lab_values is an array of objects with keys name, value, unit, reference_range, status (normal|high|low|critical).
medications is an array of objects with keys name, dosage, frequency, duration.
measurements is an array of objects with keys name, value, unit.
diagnoses, findings and recommendations are arrays of strings.
Use empty strings and empty arrays for anything the document does not contain.
No markdown, no extra keys.`, category)
}

func buildAnalysisPrompt(kind domain.AnalysisKind, history []domain.Extraction) string {
	historyJSON, err := json.Marshal(extractionDigest(history))
	if err != nil {
		historyJSON = []byte("[]")
	}

	switch kind {
	case domain.AnalysisProcedure:
		return fmt.Sprintf(`You are a clinical decision support assistant.
Based on the patient's medical history below, recommend follow-up procedures.
Return a strict JSON object with exactly these keys:
risk_level (Low|Moderate|High), risk_score (integer 0-100), prediction_category (string), confidence_score (number from 0 to 1), contributing_factors (object mapping risk area to {risk, factors}), recommended_procedures (array of {name, code, priority, rationale, estimated_frequency}), recommendations (array of strings), model_version (string).
No markdown, no extra keys.

Medical history:
%s`, historyJSON)
	default:
		return fmt.Sprintf(`You are a clinical risk assessment assistant.
Based on the patient's medical history below, assess overall health risk.
Return a strict JSON object with exactly these keys:
risk_level (Low|Moderate|High), risk_score (integer 0-100), prediction_category (string), confidence_score (number from 0 to 1), contributing_factors (object mapping risk area to {risk, factors}), recommended_procedures (array, may be empty), recommendations (array of strings), model_version (string).
No markdown, no extra keys.

Medical history:
%s`, historyJSON)
	}
}

// extractionDigest keeps the prompt bounded: structured payloads only, no
// raw document text.
func extractionDigest(history []domain.Extraction) []map[string]any {
	digest := make([]map[string]any, 0, len(history))
	for _, extraction := range history {
		digest = append(digest, map[string]any{
			"category":        extraction.Category,
			"created_at":      extraction.CreatedAt,
			"structured_data": extraction.Structured,
		})
	}
	return digest
}
