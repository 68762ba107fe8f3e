// Package risk defines the risk records produced by the upstream extractor and
// the analysis payload that carries them alongside the document text.
package risk

import (
	"strings"
	"unicode/utf8"
)

// Level indicates how severe an identified risk is.
type Level string

const (
	// LevelHigh marks a risk that needs attention before signing.
	LevelHigh Level = "high"
	// LevelMedium marks a risk worth negotiating.
	LevelMedium Level = "medium"
	// LevelLow marks a minor or informational risk.
	LevelLow Level = "low"
)

// DefaultMinExcerptLength is the shortest trimmed excerpt that takes part in alignment.
const DefaultMinExcerptLength = 3

// ParseLevel converts a level string, case-insensitively. Unknown and empty
// values default to LevelMedium.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return LevelHigh
	case "low":
		return LevelLow
	default:
		return LevelMedium
	}
}

// Valid reports whether the level is one of the three known levels.
func (l Level) Valid() bool {
	return l == LevelHigh || l == LevelMedium || l == LevelLow
}

// Record is one identified risk in a document.
type Record struct {
	ID             int    `json:"id"`
	Text           string `json:"text"`
	Level          Level  `json:"riskLevel"`
	Explanation    string `json:"explanation"`
	Recommendation string `json:"recommendation"`
}

// Alignable reports whether the record's trimmed excerpt is long enough to be
// located in the document. Shorter excerpts stay in the side list only.
func (r Record) Alignable(minLen int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(r.Text)) >= minLen
}

// AnalysisResult is the immutable output of the risk extractor for one document.
type AnalysisResult struct {
	Summary          string   `json:"summary"`
	FullText         *string  `json:"fullText,omitempty"`
	DocumentLanguage string   `json:"documentLanguage,omitempty"`
	Records          []Record `json:"highlightedText"`
}

// HasFullText reports whether the document text is available for alignment.
func (a *AnalysisResult) HasFullText() bool {
	return a != nil && a.FullText != nil && *a.FullText != ""
}

// Text returns the document text, or "" when it is missing.
func (a *AnalysisResult) Text() string {
	if a == nil || a.FullText == nil {
		return ""
	}
	return *a.FullText
}

// RecordByID returns the record with the given id.
func (a *AnalysisResult) RecordByID(id int) (Record, bool) {
	if a == nil {
		return Record{}, false
	}
	for _, record := range a.Records {
		if record.ID == id {
			return record, true
		}
	}
	return Record{}, false
}

// CountByLevel returns how many records fall into each level.
func CountByLevel(records []Record) map[Level]int {
	counts := map[Level]int{LevelHigh: 0, LevelMedium: 0, LevelLow: 0}
	for _, record := range records {
		counts[record.Level]++
	}
	return counts
}
