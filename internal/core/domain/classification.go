package domain

import "time"

// Classification is the category classifier's verdict on one document.
// JSON tags follow the exact shape the AI collaborator is prompted for.
type Classification struct {
	DetectedCategory Category `json:"detected_category"`
	IsMatch          bool     `json:"is_match"`
	Confidence       float64  `json:"confidence"`
	KeywordsFound    []string `json:"keywords_found"`
	Notes            string   `json:"validation_notes"`
}

// ValidationAudit is the persisted audit row for one classifier run, keyed
// by report and patient.
type ValidationAudit struct {
	ID               string    `json:"id"`
	ReportID         string    `json:"report_id"`
	PatientID        string    `json:"patient_id"`
	SelectedCategory Category  `json:"selected_category"`
	DetectedCategory Category  `json:"detected_category"`
	IsMatch          bool      `json:"is_match"`
	Confidence       float64   `json:"confidence"`
	KeywordsFound    []string  `json:"keywords_found"`
	Notes            string    `json:"validation_notes"`
	CreatedAt        time.Time `json:"created_at"`
}
