package risk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Placeholders used when an extractor entry omits a field or sends the wrong type.
const (
	PlaceholderText           = "No text provided"
	PlaceholderExplanation    = "No explanation provided"
	PlaceholderRecommendation = "No recommendation provided"
)

// ErrMalformedAnalysis is returned when the payload is not a JSON object at all.
var ErrMalformedAnalysis = errors.New("malformed analysis payload")

type rawAnalysis struct {
	Summary          json.RawMessage `json:"summary"`
	FullText         json.RawMessage `json:"fullText"`
	DocumentLanguage json.RawMessage `json:"documentLanguage"`
	HighlightedText  json.RawMessage `json:"highlightedText"`
}

// DecodeAnalysis parses an extractor payload. Individual risk entries are
// repaired field by field rather than rejected, so one bad entry never costs
// the rest of the result.
func DecodeAnalysis(data []byte) (*AnalysisResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedAnalysis)
	}

	var raw rawAnalysis
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}

	result := &AnalysisResult{
		Summary:          stringOr(raw.Summary, ""),
		DocumentLanguage: stringOr(raw.DocumentLanguage, ""),
	}
	if fullText, ok := asString(raw.FullText); ok {
		result.FullText = &fullText
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw.HighlightedText, &entries); err != nil {
		// Not an array (or absent): no risks, but the rest of the payload stands.
		entries = nil
	}

	result.Records = make([]Record, 0, len(entries))
	used := make(map[int]bool, len(entries))
	var missingID []int
	for index, entry := range entries {
		record, explicit := decodeRecord(entry, index+1)
		if explicit {
			used[record.ID] = true
		} else {
			missingID = append(missingID, index)
		}
		result.Records = append(result.Records, record)
	}

	// Positional ids give way to explicit ones so every id stays unique.
	for _, index := range missingID {
		id := result.Records[index].ID
		for used[id] {
			id++
		}
		used[id] = true
		result.Records[index].ID = id
	}

	return result, nil
}

// decodeRecord applies field-level defaulting to one risk entry and reports
// whether the entry carried a usable id.
func decodeRecord(entry json.RawMessage, position int) (Record, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		fields = nil
	}

	record := Record{
		ID:             position,
		Text:           PlaceholderText,
		Level:          LevelMedium,
		Explanation:    PlaceholderExplanation,
		Recommendation: PlaceholderRecommendation,
	}

	id, explicit := asPositiveInt(fields["id"])
	if explicit {
		record.ID = id
	}
	if text, ok := asString(fields["text"]); ok && strings.TrimSpace(text) != "" {
		record.Text = text
	}
	if level, ok := asString(fields["riskLevel"]); ok {
		record.Level = ParseLevel(level)
	}
	if explanation, ok := asString(fields["explanation"]); ok && explanation != "" {
		record.Explanation = explanation
	}
	if recommendation, ok := asString(fields["recommendation"]); ok && recommendation != "" {
		record.Recommendation = recommendation
	}

	return record, explicit
}

func asString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func stringOr(raw json.RawMessage, def string) string {
	if s, ok := asString(raw); ok {
		return s
	}
	return def
}

// asPositiveInt accepts integral JSON numbers and numeric strings.
func asPositiveInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		s, ok := asString(raw)
		if !ok {
			return 0, false
		}
		number = json.Number(strings.TrimSpace(s))
	}

	value, err := strconv.ParseFloat(number.String(), 64)
	if err != nil || value < 1 || value != math.Trunc(value) || value > math.MaxInt32 {
		return 0, false
	}
	return int(value), true
}
