// ABOUTME: Verse record data model for aligned corpora
// ABOUTME: Defines panes, tokens, named entities and pane keys

package verse

import "github.com/nainya/versealign/pkg/textrange"

// PaneKey names one of the three language panes of a record.
type PaneKey string

const (
	PaneSource    PaneKey = "source"    // original-language text ("macula")
	PaneReference PaneKey = "reference" // reference translation ("bsb")
	PaneTarget    PaneKey = "target"    // target-language translation
)

// PaneKeys lists the panes in display order.
var PaneKeys = []PaneKey{PaneReference, PaneSource, PaneTarget}

// Valid reports whether k is one of the known pane keys.
func (k PaneKey) Valid() bool {
	switch k {
	case PaneSource, PaneReference, PaneTarget:
		return true
	}
	return false
}

// Record is one parsed corpus line. Records are immutable once parsed.
type Record struct {
	Vref      string `json:"vref"`
	Reference Pane   `json:"bsb"`
	Source    Pane   `json:"macula"`
	Target    Pane   `json:"target"`
	Alt       string `json:"alt,omitempty"` // free-text gloss
	Units     []Unit `json:"alignment"`
}

// Pane returns the pane addressed by key, or nil for an unknown key.
func (r *Record) Pane(key PaneKey) *Pane {
	switch key {
	case PaneSource:
		return &r.Source
	case PaneReference:
		return &r.Reference
	case PaneTarget:
		return &r.Target
	}
	return nil
}

// Unit returns the alignment unit at i.
func (r *Record) Unit(i int) (*Unit, bool) {
	if i < 0 || i >= len(r.Units) {
		return nil, false
	}
	return &r.Units[i], true
}

// Pane is one language rendering of a verse.
type Pane struct {
	Vref     string        `json:"vref"`
	Content  string        `json:"content"`
	Tokens   []Token       `json:"token_ids,omitempty"`
	Entities []NamedEntity `json:"ner,omitempty"`
}

// HasTokens reports whether the pane carries word-level tokens.
func (p *Pane) HasTokens() bool {
	return len(p.Tokens) > 0
}

// Token is a word-level unit of a pane with its offsets into Content.
type Token struct {
	ID    string          `json:"id"`
	Text  string          `json:"text"`
	Range textrange.Range `json:"range"`
}

// NamedEntity is a display annotation; the resolver ignores it.
type NamedEntity struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}
