// ABOUTME: Corpus line parsing and record normalization
// ABOUTME: Decodes one JSON line into a Record and reports data-quality issues

package verse

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParseLine decodes one corpus line. index is the line's position in the
// concatenated corpus and is echoed back in a *RecordParseError.
func ParseLine(index int, raw string) (*Record, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &RecordParseError{LineIndex: index, Snippet: "", Err: fmt.Errorf("empty line")}
	}

	var rec Record
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return nil, &RecordParseError{LineIndex: index, Snippet: Snippet(trimmed), Err: err}
	}

	rec.normalize()
	return &rec, nil
}

// UnmarshalJSON accepts either "alignment" or "alignments" for the unit list.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		Alignments []Unit `json:"alignments"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = Record(aux.plain)
	if len(r.Units) == 0 && len(aux.Alignments) > 0 {
		r.Units = aux.Alignments
	}
	return nil
}

// normalize puts all display strings in NFC so offsets and substring
// matches agree regardless of the producer's normalization form.
func (r *Record) normalize() {
	r.Vref = strings.TrimSpace(r.Vref)
	r.Alt = norm.NFC.String(r.Alt)

	for _, key := range PaneKeys {
		p := r.Pane(key)
		p.Content = norm.NFC.String(p.Content)
		for i := range p.Tokens {
			p.Tokens[i].Text = norm.NFC.String(p.Tokens[i].Text)
		}
		for i := range p.Entities {
			p.Entities[i].Name = norm.NFC.String(p.Entities[i].Name)
		}
	}

	for i := range r.Units {
		for j := range r.Units[i].Slots {
			s := &r.Units[i].Slots[j]
			if s.Phrase != nil {
				s.Phrase.OriginalText = norm.NFC.String(s.Phrase.OriginalText)
			} else {
				s.Pseudo = norm.NFC.String(s.Pseudo)
			}
		}
	}
}

// Issues returns data-quality warnings for the record. None of them make
// the record unusable.
func (r *Record) Issues() []string {
	var issues []string

	for _, key := range PaneKeys {
		p := r.Pane(key)
		if p.Vref != "" && r.Vref != "" && p.Vref != r.Vref {
			issues = append(issues, fmt.Sprintf("%s pane vref %q differs from record vref %q", key, p.Vref, r.Vref))
		}

		prevStart := -1
		for _, tok := range p.Tokens {
			if !tok.Range.Valid() {
				issues = append(issues, fmt.Sprintf("%s token %s has invalid range %v", key, tok.ID, tok.Range))
			}
			if tok.Range.Start < prevStart {
				issues = append(issues, fmt.Sprintf("%s token %s starts before its predecessor", key, tok.ID))
			}
			prevStart = tok.Range.Start
		}
	}

	for i, u := range r.Units {
		for _, s := range u.Slots {
			if s.Phrase == nil {
				continue
			}
			for _, rg := range s.Phrase.Ranges {
				if !rg.Valid() {
					issues = append(issues, fmt.Sprintf("unit %d slot %q has invalid range %v", i, s.Name, rg))
				}
			}
		}
	}

	return issues
}

// ExtractVref pulls only the reference out of a raw line without decoding
// panes or alignments.
func ExtractVref(raw string) (string, bool) {
	var head struct {
		Vref string `json:"vref"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil || head.Vref == "" {
		return "", false
	}
	return strings.TrimSpace(head.Vref), true
}
