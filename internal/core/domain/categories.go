package domain

import (
	"math"
	"strings"
)

// Category is the closed set of document categories a doctor can declare.
type Category string

const (
	CategoryBloodTest        Category = "Blood Test Report"
	CategoryXRay             Category = "X-Ray"
	CategoryMRI              Category = "MRI Scan"
	CategoryECG              Category = "ECG Report"
	CategoryPrescription     Category = "Prescription"
	CategoryDischargeSummary Category = "Discharge Summary"
	CategoryOther            Category = "Other"
)

func KnownCategories() []Category {
	return []Category{
		CategoryBloodTest,
		CategoryXRay,
		CategoryMRI,
		CategoryECG,
		CategoryPrescription,
		CategoryDischargeSummary,
		CategoryOther,
	}
}

func (c Category) Known() bool {
	for _, known := range KnownCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// KeywordTable maps a category to the terms the keyword fallback matcher
// looks for. Tables are built once at startup and treated as immutable.
type KeywordTable map[Category][]string

// DefaultKeywordTable returns the built-in per-category keyword lists.
func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		CategoryBloodTest: {
			"hemoglobin", "WBC", "RBC", "platelet", "glucose", "creatinine",
			"cholesterol", "triglyceride", "ALT", "AST", "CBC",
			"complete blood count", "blood test", "serum", "plasma",
			"hematocrit", "neutrophil", "lymphocyte", "mg/dL", "g/dL",
			"mEq/L", "mmol/L", "U/L",
		},
		CategoryXRay: {
			"X-ray", "radiograph", "chest", "bone", "fracture", "opacity",
			"density", "AP view", "lateral view", "radiology", "impression",
			"kVp", "mAs", "cardiomegaly", "pneumonia", "consolidation",
			"effusion", "pneumothorax",
		},
		CategoryMRI: {
			"MRI", "magnetic resonance", "T1", "T2", "FLAIR", "gadolinium",
			"lesion", "signal intensity", "axial", "coronal", "sagittal",
			"hyperintense", "hypointense", "enhancement", "atrophy",
			"herniation",
		},
		CategoryECG: {
			"ECG", "EKG", "electrocardiogram", "heart rate", "rhythm",
			"sinus", "QRS", "PR interval", "QT interval", "ST segment",
			"T wave", "P wave", "atrial", "ventricular", "bpm", "arrhythmia",
			"fibrillation", "flutter",
		},
		CategoryPrescription: {
			"prescription", "Rx", "prescribed", "dosage", "mg", "tablet",
			"capsule", "syrup", "injection", "twice daily", "once daily",
			"after meals", "before meals", "physician", "signature",
			"refill", "dispense", "sig",
		},
		CategoryDischargeSummary: {
			"discharge", "admitted", "diagnosis", "treatment", "hospital",
			"discharge date", "admission date", "follow-up",
			"procedure performed", "chief complaint", "clinical notes",
			"medications on discharge", "condition on discharge",
		},
		CategoryOther: {},
	}
}

// MatchKeywords is the classifier's offline fallback: it counts case
// insensitive keyword hits for the declared category and scales the count
// into a confidence. More than two hits counts as a match.
func MatchKeywords(table KeywordTable, text string, declared Category) Classification {
	lower := strings.ToLower(text)

	var found []string
	for _, keyword := range table[declared] {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			found = append(found, keyword)
		}
	}
	if found == nil {
		found = []string{}
	}

	isMatch := len(found) > 2
	notes := "Insufficient matching keywords"
	if isMatch {
		notes = "Keywords matched"
	}

	return Classification{
		DetectedCategory: declared,
		IsMatch:          isMatch,
		Confidence:       math.Min(0.5+0.05*float64(len(found)), 0.95),
		KeywordsFound:    found,
		Notes:            notes,
	}
}
