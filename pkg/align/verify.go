package align

import (
	"errors"
	"fmt"
)

// ErrPartitionBroken reports a segment list that does not reproduce the document.
var ErrPartitionBroken = errors.New("segment partition does not reproduce document text")

// Verify checks that segments are contiguous, cover fullText exactly once and
// carry verbatim document text. A non-nil error is a programming error in
// the aligner, never a data-quality problem.
func Verify(fullText string, segments []Segment) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrPartitionBroken)
	}

	offset := 0
	for index, segment := range segments {
		if segment.Start != offset {
			return fmt.Errorf("%w: segment %d starts at %d, expected %d", ErrPartitionBroken, index, segment.Start, offset)
		}
		if segment.End < segment.Start || segment.End > len(fullText) {
			return fmt.Errorf("%w: segment %d has invalid range [%d,%d)", ErrPartitionBroken, index, segment.Start, segment.End)
		}
		if fullText[segment.Start:segment.End] != segment.Text {
			return fmt.Errorf("%w: segment %d text differs from document at [%d,%d)", ErrPartitionBroken, index, segment.Start, segment.End)
		}
		if segment.IsPlain() != (segment.Level == "") {
			return fmt.Errorf("%w: segment %d has risk id %d with level %q", ErrPartitionBroken, index, segment.RiskID, segment.Level)
		}
		if segment.Text == "" && len(segments) > 1 {
			return fmt.Errorf("%w: segment %d is empty", ErrPartitionBroken, index)
		}
		offset = segment.End
	}

	if offset != len(fullText) {
		return fmt.Errorf("%w: segments end at %d, document length is %d", ErrPartitionBroken, offset, len(fullText))
	}
	return nil
}
