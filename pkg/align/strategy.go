package align

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coolbeans/clausemark/pkg/textnorm"
)

// Strategy names, in cascade order.
const (
	StrategyExact       = "exact"
	StrategyNormalized  = "normalized"
	StrategyCleaned     = "cleaned"
	StrategyFuzzyPrefix = "fuzzy_prefix"
)

// Strategy is one step of the matching cascade. It projects the segment text
// and the excerpt into the same comparison space and searches there.
type Strategy struct {
	// Name identifies the strategy in alignment reports.
	Name string

	// Mode is the projection both texts are compared in.
	Mode textnorm.Mode

	// Needle derives the search string from a trimmed excerpt.
	Needle func(excerpt string) string

	// Recover enables sliding-window recovery of the raw span. When false the
	// span comes straight from the projection's offset map.
	Recover bool

	// WholeWords extends a span that ends inside a word to the end of that word.
	WholeWords bool
}

// DefaultStrategies returns the four-step cascade: exact, normalized,
// cleaned, then a prefix match on the first prefixLen runes.
func DefaultStrategies(prefixLen int) []Strategy {
	return []Strategy{
		{
			Name:   StrategyExact,
			Mode:   textnorm.ModeFold,
			Needle: textnorm.FoldString,
		},
		{
			Name:    StrategyNormalized,
			Mode:    textnorm.ModeNormalize,
			Needle:  textnorm.NormalizeString,
			Recover: true,
		},
		{
			Name:    StrategyCleaned,
			Mode:    textnorm.ModeClean,
			Needle:  textnorm.CleanString,
			Recover: true,
		},
		{
			Name: StrategyFuzzyPrefix,
			Mode: textnorm.ModeNormalize,
			Needle: func(excerpt string) string {
				return strings.TrimSpace(textnorm.Prefix(textnorm.NormalizeString(excerpt), prefixLen))
			},
			WholeWords: true,
		},
	}
}

// Find locates excerpt inside text and returns the raw byte range of the
// match. The range is always a substring of text on rune boundaries.
func (s Strategy) Find(text, excerpt string, window int) (start, end int, ok bool) {
	excerpt = strings.TrimSpace(excerpt)
	needle := s.Needle(excerpt)
	if needle == "" || text == "" {
		return 0, 0, false
	}

	projection := textnorm.Project(text, s.Mode)
	index := strings.Index(projection.Text, needle)
	if index < 0 {
		return 0, 0, false
	}

	if s.Recover {
		originalLen := utf8.RuneCountInString(excerpt)
		if start, end, ok := recoverSpan(text, projection.RawStart(index), needle, originalLen, window, s.Mode); ok {
			return start, absorbMarks(text, end), true
		}
	}

	start, end, ok = projection.RawSpan(index, index+len(needle))
	if !ok {
		return 0, 0, false
	}
	end = absorbMarks(text, end)
	if s.WholeWords {
		end = extendToWordEnd(text, end)
	}
	return start, end, true
}

// recoverSpan slides a window of originalLen runes across the raw text
// around approx and returns the first candidate whose projection equals
// needle. Only the bytes inside the window are decoded.
func recoverSpan(text string, approx int, needle string, originalLen, window int, mode textnorm.Mode) (int, int, bool) {
	if originalLen <= 0 {
		return 0, 0, false
	}

	low := approx
	for i := 0; i < window && low > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:low])
		low -= size
	}
	high := approx
	for i := utf8.RuneCountInString(needle) + window; i > 0 && high < len(text); i-- {
		_, size := utf8.DecodeRuneInString(text[high:])
		high += size
	}

	offsets := runeOffsets(text[low:high])
	for first := 0; first+originalLen < len(offsets); first++ {
		candidateStart, candidateEnd := low+offsets[first], low+offsets[first+originalLen]
		candidate := text[candidateStart:candidateEnd]
		if lead, _ := utf8.DecodeRuneInString(candidate); textnorm.IsCombiningMark(lead) {
			continue
		}
		if textnorm.Project(candidate, mode).Text == needle {
			return candidateStart, candidateEnd, true
		}
	}

	return 0, 0, false
}

// runeOffsets returns the byte offset of every rune in s plus len(s).
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}

// absorbMarks extends end over combining marks so a highlight never separates
// a base letter from its accent.
func absorbMarks(text string, end int) int {
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if !textnorm.IsCombiningMark(r) {
			break
		}
		end += size
	}
	return end
}

// extendToWordEnd moves end past the rest of a word it falls inside.
func extendToWordEnd(text string, end int) int {
	if end <= 0 || end >= len(text) {
		return end
	}
	if before, _ := utf8.DecodeLastRuneInString(text[:end]); !isWordRune(before) {
		return end
	}
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(r) {
			break
		}
		end += size
	}
	return end
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || textnorm.IsCombiningMark(r)
}
