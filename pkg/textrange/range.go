// ABOUTME: Character-offset ranges over pane content
// ABOUTME: Inclusive overlap test shared by the resolver and data-quality checks

package textrange

import (
	"encoding/json"
	"fmt"
)

// Range is a pair of character offsets into one pane's content.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether a and b share at least one offset. Both ends
// are inclusive, so ranges that only touch at a boundary overlap.
// Malformed ranges (Start > End) are accepted and simply match less.
func Overlaps(a, b Range) bool {
	return a.Start <= b.End && a.End >= b.Start
}

// Overlaps is the method form of the package-level Overlaps.
func (r Range) Overlaps(other Range) bool {
	return Overlaps(r, other)
}

// Valid reports whether the range is non-negative and ordered.
func (r Range) Valid() bool {
	return r.Start >= 0 && r.Start <= r.End
}

// Len returns the number of offsets covered, counting both ends.
// Invalid ranges have length 0.
func (r Range) Len() int {
	if r.Start > r.End {
		return 0
	}
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// UnmarshalJSON accepts both {start,end} and the {startPosition,endPosition}
// spelling used by older corpus exports.
func (r *Range) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start         *int `json:"start"`
		End           *int `json:"end"`
		StartPosition *int `json:"startPosition"`
		EndPosition   *int `json:"endPosition"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Start != nil:
		r.Start = *raw.Start
	case raw.StartPosition != nil:
		r.Start = *raw.StartPosition
	default:
		return fmt.Errorf("range: missing start offset")
	}

	switch {
	case raw.End != nil:
		r.End = *raw.End
	case raw.EndPosition != nil:
		r.End = *raw.EndPosition
	default:
		return fmt.Errorf("range: missing end offset")
	}

	return nil
}
