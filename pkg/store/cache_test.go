package store

import (
	"testing"
	"time"

	"github.com/coolbeans/clausemark/pkg/align"
	"github.com/coolbeans/clausemark/pkg/risk"
)

func buildTestAnalysis(text string, excerpts ...string) *risk.AnalysisResult {
	result := &risk.AnalysisResult{FullText: &text}
	for i, excerpt := range excerpts {
		result.Records = append(result.Records, risk.Record{ID: i + 1, Text: excerpt, Level: risk.LevelHigh})
	}
	return result
}

func TestSegmentCache_SetAndGet(t *testing.T) {
	cache := NewSegmentCache(time.Minute)
	result := buildTestAnalysis("rent is due monthly", "rent is due")
	alignment := align.Align(result.Text(), result.Records)

	cache.PutAlignment("lease", result, alignment)

	got, ok := cache.GetAlignment("lease", result)
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if got != alignment {
		t.Error("Expected the stored alignment back")
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", cache.Len())
	}
}

func TestSegmentCache_ChangedAnalysisMisses(t *testing.T) {
	cache := NewSegmentCache(time.Minute)
	original := buildTestAnalysis("rent is due monthly", "rent is due")
	cache.PutAlignment("lease", original, align.Align(original.Text(), original.Records))

	changed := buildTestAnalysis("rent is due monthly", "due monthly")
	if _, ok := cache.GetAlignment("lease", changed); ok {
		t.Error("Expected a miss for a changed risk list")
	}
	if _, ok := cache.GetAlignment("other", original); ok {
		t.Error("Expected a miss for a different document id")
	}
}

func TestSegmentCache_Expiry(t *testing.T) {
	cache := NewSegmentCache(time.Minute)
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	result := buildTestAnalysis("rent is due monthly", "rent is due")
	cache.PutAlignment("lease", result, align.Align(result.Text(), result.Records))

	current = current.Add(2 * time.Minute)
	if _, ok := cache.GetAlignment("lease", result); ok {
		t.Error("Expected expired entry to miss")
	}
	if cache.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, got %d entries", cache.Len())
	}
}

func TestSegmentCache_Invalidate(t *testing.T) {
	cache := NewSegmentCache(0)
	first := buildTestAnalysis("alpha beta", "alpha")
	second := buildTestAnalysis("alpha beta", "beta")
	cache.PutAlignment("doc", first, align.Align(first.Text(), first.Records))
	cache.PutAlignment("doc", second, align.Align(second.Text(), second.Records))
	cache.PutAlignment("doc2", first, align.Align(first.Text(), first.Records))

	cache.Invalidate("doc")

	if cache.Len() != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", cache.Len())
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a := buildTestAnalysis("text body", "text")
	b := buildTestAnalysis("text body", "text")
	c := buildTestAnalysis("text body!", "text")

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("Expected equal fingerprints for equal analyses")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("Expected different fingerprints for different text")
	}
}
