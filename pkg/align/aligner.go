// Package align maps risk excerpts returned by the extractor back onto the
// document text. The result is a lossless partition of the document into
// plain and risk-highlighted segments.
package align

import (
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/coolbeans/clausemark/pkg/risk"
)

const (
	// DefaultPrefixLength is the number of excerpt runes the fuzzy prefix strategy uses.
	DefaultPrefixLength = 20

	// DefaultRecoveryWindow is how many runes around an approximate match the
	// raw span recovery searches in each direction.
	DefaultRecoveryWindow = 10
)

// Segment is one piece of the document partition.
type Segment struct {
	// Text is the verbatim document substring [Start, End).
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`

	// RiskID is 0 for plain text.
	RiskID   int        `json:"riskId,omitempty"`
	Level    risk.Level `json:"riskLevel,omitempty"`
	Strategy string     `json:"strategy,omitempty"`
}

// IsPlain reports whether the segment is not claimed by any risk.
func (s Segment) IsPlain() bool {
	return s.RiskID == 0
}

// Match records where a risk landed and which strategy found it.
type Match struct {
	RiskID   int    `json:"riskId"`
	Strategy string `json:"strategy"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// Alignment is the outcome of aligning one document against its risk list.
type Alignment struct {
	Segments []Segment `json:"segments"`
	Matched  []Match   `json:"matched"`

	// Unmatched holds ids that no strategy could locate, in processing order.
	Unmatched []int `json:"unmatched"`

	// Skipped holds ids whose excerpt is too short to align.
	Skipped []int `json:"skipped"`
}

// IsMatched reports whether the risk id claimed a segment.
func (a *Alignment) IsMatched(id int) bool {
	for _, match := range a.Matched {
		if match.RiskID == id {
			return true
		}
	}
	return false
}

// StrategyFor returns the strategy that matched id, or "" when unmatched.
func (a *Alignment) StrategyFor(id int) string {
	for _, match := range a.Matched {
		if match.RiskID == id {
			return match.Strategy
		}
	}
	return ""
}

// Aligner computes document partitions. It holds no per-document state and
// is safe for concurrent use.
type Aligner struct {
	minExcerptLen  int
	prefixLen      int
	recoveryWindow int
	strategies     []Strategy
	logger         *zap.Logger
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithMinExcerptLength sets the shortest trimmed excerpt that is aligned.
func WithMinExcerptLength(n int) Option {
	return func(a *Aligner) {
		if n > 0 {
			a.minExcerptLen = n
		}
	}
}

// WithPrefixLength sets the rune count used by the fuzzy prefix strategy.
func WithPrefixLength(n int) Option {
	return func(a *Aligner) {
		if n > 0 {
			a.prefixLen = n
		}
	}
}

// WithRecoveryWindow sets the raw span recovery radius in runes.
func WithRecoveryWindow(n int) Option {
	return func(a *Aligner) {
		if n >= 0 {
			a.recoveryWindow = n
		}
	}
}

// WithStrategies replaces the matching cascade.
func WithStrategies(strategies ...Strategy) Option {
	return func(a *Aligner) {
		a.strategies = strategies
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aligner) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Aligner with the default cascade.
func New(opts ...Option) *Aligner {
	aligner := &Aligner{
		minExcerptLen:  risk.DefaultMinExcerptLength,
		prefixLen:      DefaultPrefixLength,
		recoveryWindow: DefaultRecoveryWindow,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(aligner)
	}
	if aligner.strategies == nil {
		aligner.strategies = DefaultStrategies(aligner.prefixLen)
	}
	return aligner
}

// Strategies returns the cascade in the order it is tried.
func (a *Aligner) Strategies() []Strategy {
	return append([]Strategy(nil), a.strategies...)
}

// Align partitions fullText. Records are processed longest excerpt first;
// each claims at most one region, inside a single still-plain segment, and a
// claimed region is never split again.
func (a *Aligner) Align(fullText string, records []risk.Record) *Alignment {
	alignment := &Alignment{
		Segments:  []Segment{{Text: fullText, Start: 0, End: len(fullText)}},
		Matched:   make([]Match, 0),
		Unmatched: make([]int, 0),
		Skipped:   make([]int, 0),
	}

	ordered := make([]risk.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return utf8.RuneCountInString(ordered[i].Text) > utf8.RuneCountInString(ordered[j].Text)
	})

	for _, record := range ordered {
		// Id 0 is reserved for plain text.
		if record.ID <= 0 || !record.Alignable(a.minExcerptLen) {
			alignment.Skipped = append(alignment.Skipped, record.ID)
			continue
		}

		if fullText == "" {
			alignment.Unmatched = append(alignment.Unmatched, record.ID)
			continue
		}

		match, ok := a.claim(alignment, record)
		if !ok {
			alignment.Unmatched = append(alignment.Unmatched, record.ID)
			a.logger.Debug("risk excerpt not found in document",
				zap.Int("risk_id", record.ID),
				zap.Int("excerpt_len", utf8.RuneCountInString(record.Text)))
			continue
		}
		alignment.Matched = append(alignment.Matched, match)
	}

	a.logger.Debug("document aligned",
		zap.Int("segments", len(alignment.Segments)),
		zap.Int("matched", len(alignment.Matched)),
		zap.Int("unmatched", len(alignment.Unmatched)),
		zap.Int("skipped", len(alignment.Skipped)))

	return alignment
}

// claim finds the first plain segment where some strategy locates the
// record's excerpt and splits that segment in place.
func (a *Aligner) claim(alignment *Alignment, record risk.Record) (Match, bool) {
	for index, segment := range alignment.Segments {
		if !segment.IsPlain() {
			continue
		}

		for _, strategy := range a.strategies {
			start, end, ok := strategy.Find(segment.Text, record.Text, a.recoveryWindow)
			if !ok {
				continue
			}

			pieces := split(segment, start, end, record, strategy.Name)
			alignment.Segments = splice(alignment.Segments, index, pieces)
			return Match{
				RiskID:   record.ID,
				Strategy: strategy.Name,
				Start:    segment.Start + start,
				End:      segment.Start + end,
			}, true
		}
	}
	return Match{}, false
}

// split cuts a plain segment into prefix, match and suffix. Empty prefix and
// suffix pieces are dropped.
func split(segment Segment, start, end int, record risk.Record, strategy string) []Segment {
	pieces := make([]Segment, 0, 3)
	if start > 0 {
		pieces = append(pieces, Segment{
			Text:  segment.Text[:start],
			Start: segment.Start,
			End:   segment.Start + start,
		})
	}
	level := record.Level
	if !level.Valid() {
		level = risk.LevelMedium
	}
	pieces = append(pieces, Segment{
		Text:     segment.Text[start:end],
		Start:    segment.Start + start,
		End:      segment.Start + end,
		RiskID:   record.ID,
		Level:    level,
		Strategy: strategy,
	})
	if end < len(segment.Text) {
		pieces = append(pieces, Segment{
			Text:  segment.Text[end:],
			Start: segment.Start + end,
			End:   segment.End,
		})
	}
	return pieces
}

func splice(segments []Segment, index int, pieces []Segment) []Segment {
	out := make([]Segment, 0, len(segments)+len(pieces)-1)
	out = append(out, segments[:index]...)
	out = append(out, pieces...)
	return append(out, segments[index+1:]...)
}

// Align partitions fullText with a default Aligner.
func Align(fullText string, records []risk.Record) *Alignment {
	return New().Align(fullText, records)
}
