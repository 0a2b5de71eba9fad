package verse

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is the sentinel every RecordParseError unwraps to.
var ErrMalformedRecord = errors.New("verse: malformed record")

// snippetRunes bounds the raw text kept on a parse error.
const snippetRunes = 80

// RecordParseError reports a corpus line that could not be decoded.
type RecordParseError struct {
	LineIndex int
	Snippet   string
	Err       error
}

func (e *RecordParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verse: line %d: %v (%q)", e.LineIndex, e.Err, e.Snippet)
	}
	return fmt.Sprintf("verse: line %d malformed (%q)", e.LineIndex, e.Snippet)
}

func (e *RecordParseError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func (e *RecordParseError) Unwrap() error {
	return e.Err
}

// Snippet truncates raw to a short diagnostic excerpt.
func Snippet(raw string) string {
	n := 0
	for i := range raw {
		if n == snippetRunes {
			return raw[:i] + "…"
		}
		n++
	}
	return raw
}
