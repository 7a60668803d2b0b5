package domain

import (
	"math"
	"testing"
)

func TestMatchKeywordsBloodTestReport(t *testing.T) {
	table := DefaultKeywordTable()
	text := "CBC panel: hemoglobin 13.5 g/dL, creatinine 0.9 mg/dL within range"

	cls := MatchKeywords(table, text, CategoryBloodTest)
	if !cls.IsMatch {
		t.Fatalf("expected match, keywords found: %v", cls.KeywordsFound)
	}
	if cls.Confidence < 0.65 {
		t.Fatalf("expected confidence >= 0.65, got %f", cls.Confidence)
	}
	if cls.DetectedCategory != CategoryBloodTest {
		t.Fatalf("fallback must report the declared category, got %s", cls.DetectedCategory)
	}
	if cls.Notes != "Keywords matched" {
		t.Fatalf("unexpected notes %q", cls.Notes)
	}
}

func TestMatchKeywordsNoHits(t *testing.T) {
	table := DefaultKeywordTable()

	cls := MatchKeywords(table, "vacation photo of a beach", CategoryPrescription)
	if cls.IsMatch {
		t.Fatalf("expected no match")
	}
	if math.Abs(cls.Confidence-0.5) > 1e-9 {
		t.Fatalf("expected base confidence 0.5, got %f", cls.Confidence)
	}
	if len(cls.KeywordsFound) != 0 {
		t.Fatalf("expected empty keyword list, got %v", cls.KeywordsFound)
	}
	if cls.KeywordsFound == nil {
		t.Fatalf("keyword list must be non-nil")
	}
	if cls.Notes != "Insufficient matching keywords" {
		t.Fatalf("unexpected notes %q", cls.Notes)
	}
}

func TestMatchKeywordsConfidenceIsCapped(t *testing.T) {
	table := KeywordTable{CategoryOther: {"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}}

	cls := MatchKeywords(table, "abcdefghijkl", CategoryOther)
	if cls.Confidence > 0.95 {
		t.Fatalf("expected confidence capped at 0.95, got %f", cls.Confidence)
	}
}

func TestMatchKeywordsIsCaseInsensitive(t *testing.T) {
	table := DefaultKeywordTable()

	cls := MatchKeywords(table, "ecg shows SINUS rhythm at 72 BPM", CategoryECG)
	if len(cls.KeywordsFound) < 3 {
		t.Fatalf("expected case-insensitive hits, got %v", cls.KeywordsFound)
	}
}

func TestCategoryKnown(t *testing.T) {
	if !CategoryBloodTest.Known() {
		t.Fatalf("expected known category")
	}
	if Category("Grocery List").Known() {
		t.Fatalf("expected unknown category")
	}
}
