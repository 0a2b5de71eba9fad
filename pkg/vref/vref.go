// ABOUTME: Scripture reference grammar ("GEN 1:1", "1CO 13:4-7")
// ABOUTME: Parses references into book, chapter and verse with a canonical form

package vref

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ErrInvalidReference is returned for strings that are not references.
var ErrInvalidReference = errors.New("vref: invalid reference")

// Reference is a single verse or an inclusive verse span within a chapter.
type Reference struct {
	Book     string `parser:"@Book"`
	Chapter  int    `parser:"@Int ':'"`
	Verse    int    `parser:"@Int"`
	EndVerse int    `parser:"( '-' @Int )?"`
}

var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Book", Pattern: `[1-4][A-Za-z]{2}|[A-Za-z]{3}`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[Reference](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// Parse reads a reference such as "GEN 1:1" or "jhn 3:16-18".
func Parse(s string) (Reference, error) {
	ref, err := refParser.ParseString("", strings.TrimSpace(s))
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %q: %v", ErrInvalidReference, s, err)
	}

	ref.Book = strings.ToUpper(ref.Book)
	if ref.Chapter < 1 || ref.Verse < 1 {
		return Reference{}, fmt.Errorf("%w: %q: chapter and verse start at 1", ErrInvalidReference, s)
	}
	if ref.EndVerse != 0 && ref.EndVerse < ref.Verse {
		return Reference{}, fmt.Errorf("%w: %q: span ends before it starts", ErrInvalidReference, s)
	}
	if ref.EndVerse == ref.Verse {
		ref.EndVerse = 0
	}
	return *ref, nil
}

// Canonical returns the normalized form used as an index key.
// Parse failures fall back to the trimmed, upper-cased input.
func Canonical(s string) string {
	ref, err := Parse(s)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(s))
	}
	return ref.String()
}

// IsSpan reports whether the reference covers more than one verse.
func (r Reference) IsSpan() bool {
	return r.EndVerse > r.Verse
}

// First returns the first verse of the reference.
func (r Reference) First() Reference {
	return Reference{Book: r.Book, Chapter: r.Chapter, Verse: r.Verse}
}

func (r Reference) String() string {
	if r.IsSpan() {
		return fmt.Sprintf("%s %d:%d-%d", r.Book, r.Chapter, r.Verse, r.EndVerse)
	}
	return fmt.Sprintf("%s %d:%d", r.Book, r.Chapter, r.Verse)
}
