// Package textnorm provides the text transformations used to compare risk
// excerpts against document text: case folding, Unicode normalization with
// diacritic stripping, whitespace collapsing and punctuation removal.
//
// Every transformation produces a Projection, which remembers where each
// projected byte came from in the raw input so that a match found in
// transformed space can be mapped back onto the untouched source text.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Mode selects the transformation steps applied by Project.
type Mode int

const (
	// ModeFold lower-cases each rune and changes nothing else.
	ModeFold Mode = iota
	// ModeNormalize decomposes to NFD, drops combining marks, collapses
	// whitespace runs into one space and lower-cases.
	ModeNormalize
	// ModeClean is ModeNormalize plus removal of common punctuation.
	ModeClean
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeFold:
		return "fold"
	case ModeNormalize:
		return "normalize"
	case ModeClean:
		return "clean"
	default:
		return "unknown"
	}
}

// Projection is a transformed view of a raw string.
type Projection struct {
	// Text is the transformed string that searches run against.
	Text string

	// rawStart and rawEnd hold, for each byte of Text, the raw byte range of
	// the source rune that produced it.
	rawStart []int
	rawEnd   []int
}

// Len returns the byte length of the projected text.
func (p *Projection) Len() int {
	return len(p.Text)
}

// RawStart returns the raw byte offset behind projected byte i.
func (p *Projection) RawStart(i int) int {
	if len(p.rawStart) == 0 {
		return 0
	}
	if i >= len(p.rawStart) {
		return p.rawEnd[len(p.rawEnd)-1]
	}
	return p.rawStart[i]
}

// RawSpan maps the projected byte range [i, j) to a raw byte range [start, end).
// The result always falls on raw rune boundaries. An empty or out of range
// request returns ok == false.
func (p *Projection) RawSpan(i, j int) (start, end int, ok bool) {
	if i < 0 || j > len(p.Text) || i >= j {
		return 0, 0, false
	}
	return p.rawStart[i], p.rawEnd[j-1], true
}

// punctuation is the set ModeClean removes.
var punctuation = map[rune]bool{
	'.': true, ',': true, ';': true, ':': true, '!': true, '?': true,
	'-': true, '"': true, '\'': true,
	'‘': true, '’': true, '“': true, '”': true,
}

// IsStrippedPunctuation reports whether ModeClean removes r.
func IsStrippedPunctuation(r rune) bool {
	return punctuation[r]
}

// Project transforms raw according to mode.
func Project(raw string, mode Mode) *Projection {
	builder := projectionBuilder{
		mode: mode,
		out:  make([]byte, 0, len(raw)),
	}
	builder.rawStart = make([]int, 0, len(raw))
	builder.rawEnd = make([]int, 0, len(raw))

	for offset := 0; offset < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[offset:])
		builder.consume(r, offset, offset+size)
		offset += size
	}

	return &Projection{
		Text:     string(builder.out),
		rawStart: builder.rawStart,
		rawEnd:   builder.rawEnd,
	}
}

type projectionBuilder struct {
	mode     Mode
	out      []byte
	rawStart []int
	rawEnd   []int

	// lastRune is the index in out where the most recently emitted rune begins.
	lastRune  int
	started   bool
	lastSpace bool
}

func (b *projectionBuilder) consume(r rune, start, end int) {
	if b.mode == ModeFold {
		b.emit(unicode.ToLower(r), start, end)
		return
	}

	var parts string
	if r < utf8.RuneSelf {
		parts = string(r)
	} else {
		parts = norm.NFD.String(string(r))
	}

	for _, part := range parts {
		switch {
		case unicode.Is(unicode.Mn, part):
			// A stand-alone combining mark belongs to the preceding base rune.
			b.extendLast(end)
		case b.mode == ModeClean && punctuation[part]:
			continue
		case unicode.IsSpace(part):
			if b.lastSpace {
				b.extendLast(end)
				continue
			}
			b.emit(' ', start, end)
			b.lastSpace = true
		default:
			b.emit(unicode.ToLower(part), start, end)
			b.lastSpace = false
		}
	}
}

func (b *projectionBuilder) emit(r rune, start, end int) {
	b.lastRune = len(b.out)
	b.started = true
	b.out = utf8.AppendRune(b.out, r)
	for len(b.rawStart) < len(b.out) {
		b.rawStart = append(b.rawStart, start)
		b.rawEnd = append(b.rawEnd, end)
	}
}

func (b *projectionBuilder) extendLast(end int) {
	if !b.started {
		return
	}
	for i := b.lastRune; i < len(b.rawEnd); i++ {
		if b.rawEnd[i] < end {
			b.rawEnd[i] = end
		}
	}
}

// FoldString returns the trimmed, lower-cased form of s.
func FoldString(s string) string {
	return strings.TrimSpace(Project(s, ModeFold).Text)
}

// NormalizeString returns the trimmed ModeNormalize form of s.
func NormalizeString(s string) string {
	return strings.TrimSpace(Project(s, ModeNormalize).Text)
}

// CleanString returns the trimmed ModeClean form of s.
func CleanString(s string) string {
	return strings.TrimSpace(Project(s, ModeClean).Text)
}

// ProjectString returns the trimmed projected form of s for the given mode.
func ProjectString(s string, mode Mode) string {
	return strings.TrimSpace(Project(s, mode).Text)
}

// Prefix returns the first n runes of s, or s itself when it is shorter.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// IsCombiningMark reports whether r is a nonspacing combining mark.
func IsCombiningMark(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
