package domain

import "time"

type LabValueStatus string

const (
	LabValueNormal   LabValueStatus = "normal"
	LabValueHigh     LabValueStatus = "high"
	LabValueLow      LabValueStatus = "low"
	LabValueCritical LabValueStatus = "critical"
)

type LabValue struct {
	Name           string         `json:"name"`
	Value          string         `json:"value"`
	Unit           string         `json:"unit"`
	ReferenceRange string         `json:"reference_range"`
	Status         LabValueStatus `json:"status"`
}

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

type Measurement struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// StructuredData is the schematized medical payload extracted from a
// document. Field values are whatever the AI collaborator returned; this
// package performs no scoring or normalization beyond nil-slice cleanup.
type StructuredData struct {
	DocumentDate    string        `json:"document_date"`
	PatientName     string        `json:"patient_name"`
	DoctorName      string        `json:"doctor_name"`
	Facility        string        `json:"facility"`
	LabValues       []LabValue    `json:"lab_values"`
	Diagnoses       []string      `json:"diagnoses"`
	Medications     []Medication  `json:"medications"`
	Measurements    []Measurement `json:"measurements"`
	Findings        []string      `json:"findings"`
	Recommendations []string      `json:"recommendations"`
	Summary         string        `json:"summary"`
}

// Normalize replaces nil slices so persisted JSON always carries arrays.
func (d *StructuredData) Normalize() {
	if d.LabValues == nil {
		d.LabValues = []LabValue{}
	}
	if d.Diagnoses == nil {
		d.Diagnoses = []string{}
	}
	if d.Medications == nil {
		d.Medications = []Medication{}
	}
	if d.Measurements == nil {
		d.Measurements = []Measurement{}
	}
	if d.Findings == nil {
		d.Findings = []string{}
	}
	if d.Recommendations == nil {
		d.Recommendations = []string{}
	}
}

// DegradedStructuredData is the empty-but-valid payload persisted when the
// AI response carried no parseable JSON. Extraction still completes in that
// case.
func DegradedStructuredData() StructuredData {
	d := StructuredData{Summary: "Extraction completed"}
	d.Normalize()
	return d
}

// ExtractionResult is what one extractor invocation yields before it is
// persisted.
type ExtractionResult struct {
	RawText    string
	Structured StructuredData
	// Degraded marks a result whose structured payload is the placeholder
	// because the response was not parseable JSON.
	Degraded bool
	Model    string
}

// Extraction is a persisted, versioned extraction row. Rows are append-only;
// a patient accumulates extractions over time.
type Extraction struct {
	ID         string         `json:"id"`
	ReportID   string         `json:"report_id"`
	PatientID  string         `json:"patient_id"`
	Category   Category       `json:"category"`
	RawText    string         `json:"raw_text"`
	Structured StructuredData `json:"structured_data"`
	Model      string         `json:"extraction_model"`
	CreatedAt  time.Time      `json:"created_at"`
}
