package risk

import (
	"errors"
	"testing"
)

func TestDecodeAnalysis_FullPayload(t *testing.T) {
	payload := `{
		"summary": "Short lease review",
		"fullText": "The Tenant shall pay rent.",
		"documentLanguage": "en",
		"highlightedText": [
			{"id": 7, "text": "shall pay rent", "riskLevel": "HIGH", "explanation": "e", "recommendation": "r"}
		]
	}`

	result, err := DecodeAnalysis([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeAnalysis failed: %v", err)
	}

	if result.Summary != "Short lease review" {
		t.Errorf("Expected summary, got %q", result.Summary)
	}
	if !result.HasFullText() || result.Text() != "The Tenant shall pay rent." {
		t.Errorf("Expected full text, got %q", result.Text())
	}
	if result.DocumentLanguage != "en" {
		t.Errorf("Expected language en, got %q", result.DocumentLanguage)
	}
	if len(result.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(result.Records))
	}

	record := result.Records[0]
	if record.ID != 7 || record.Level != LevelHigh || record.Text != "shall pay rent" {
		t.Errorf("Unexpected record: %+v", record)
	}
}

func TestDecodeAnalysis_FieldDefaults(t *testing.T) {
	payload := `{
		"summary": "s",
		"highlightedText": [
			{"text": "first excerpt"},
			{"id": "12", "text": 42, "riskLevel": "catastrophic", "explanation": null},
			{"id": -3, "riskLevel": "low", "recommendation": ["x"]},
			"not an object",
			{"id": 2.5, "text": "   "}
		]
	}`

	result, err := DecodeAnalysis([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeAnalysis failed: %v", err)
	}
	if result.HasFullText() {
		t.Error("Expected missing full text")
	}
	if len(result.Records) != 5 {
		t.Fatalf("Expected 5 records, got %d", len(result.Records))
	}

	tests := []struct {
		index          int
		id             int
		text           string
		level          Level
		explanation    string
		recommendation string
	}{
		{0, 1, "first excerpt", LevelMedium, PlaceholderExplanation, PlaceholderRecommendation},
		{1, 12, PlaceholderText, LevelMedium, PlaceholderExplanation, PlaceholderRecommendation},
		{2, 3, PlaceholderText, LevelLow, PlaceholderExplanation, PlaceholderRecommendation},
		{3, 4, PlaceholderText, LevelMedium, PlaceholderExplanation, PlaceholderRecommendation},
		{4, 5, PlaceholderText, LevelMedium, PlaceholderExplanation, PlaceholderRecommendation},
	}

	for _, tt := range tests {
		record := result.Records[tt.index]
		if record.ID != tt.id {
			t.Errorf("Record %d: expected id %d, got %d", tt.index, tt.id, record.ID)
		}
		if record.Text != tt.text {
			t.Errorf("Record %d: expected text %q, got %q", tt.index, tt.text, record.Text)
		}
		if record.Level != tt.level {
			t.Errorf("Record %d: expected level %s, got %s", tt.index, tt.level, record.Level)
		}
		if record.Explanation != tt.explanation {
			t.Errorf("Record %d: expected explanation %q, got %q", tt.index, tt.explanation, record.Explanation)
		}
		if record.Recommendation != tt.recommendation {
			t.Errorf("Record %d: expected recommendation %q, got %q", tt.index, tt.recommendation, record.Recommendation)
		}
	}
}

func TestDecodeAnalysis_NonArrayRisks(t *testing.T) {
	result, err := DecodeAnalysis([]byte(`{"summary": "s", "fullText": "abc", "highlightedText": {"id": 1}}`))
	if err != nil {
		t.Fatalf("DecodeAnalysis failed: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("Expected no records, got %d", len(result.Records))
	}
	if result.Text() != "abc" {
		t.Errorf("Expected full text kept, got %q", result.Text())
	}
}

func TestDecodeAnalysis_NullAndEmptyFullText(t *testing.T) {
	for _, payload := range []string{
		`{"fullText": null, "highlightedText": []}`,
		`{"fullText": "", "highlightedText": []}`,
		`{"fullText": 12, "highlightedText": []}`,
	} {
		result, err := DecodeAnalysis([]byte(payload))
		if err != nil {
			t.Fatalf("DecodeAnalysis(%s) failed: %v", payload, err)
		}
		if result.HasFullText() {
			t.Errorf("Expected no full text for %s", payload)
		}
	}
}

func TestDecodeAnalysis_Malformed(t *testing.T) {
	for _, payload := range []string{"", "[]", "null", `"text"`, "{broken"} {
		if _, err := DecodeAnalysis([]byte(payload)); !errors.Is(err, ErrMalformedAnalysis) {
			t.Errorf("DecodeAnalysis(%q): expected ErrMalformedAnalysis, got %v", payload, err)
		}
	}
}

func TestDecodeAnalysis_DefaultIDsAvoidExplicitOnes(t *testing.T) {
	payload := `{
		"summary": "s",
		"highlightedText": [
			{"id": 2, "text": "first"},
			{"text": "second"},
			{"id": 3, "text": "third"},
			{"text": "fourth"},
			{"id": "x", "text": "fifth"}
		]
	}`

	result, err := DecodeAnalysis([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeAnalysis failed: %v", err)
	}

	expected := []int{2, 4, 3, 5, 6}
	seen := make(map[int]bool)
	for i, record := range result.Records {
		if record.ID != expected[i] {
			t.Errorf("Record %d: expected id %d, got %d", i, expected[i], record.ID)
		}
		if seen[record.ID] {
			t.Errorf("Duplicate id %d", record.ID)
		}
		seen[record.ID] = true
	}
}
