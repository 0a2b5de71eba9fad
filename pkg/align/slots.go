// ABOUTME: Pane-to-slot mapping for alignment units
// ABOUTME: Corpora label the same phrase slot differently; this resolves the label per pane

package align

import (
	"fmt"

	"github.com/nainya/versealign/pkg/verse"
)

// SlotMap lists, per pane, the slot names that carry that pane's ranges.
// Names are tried in order; the first one a unit populates wins.
type SlotMap map[verse.PaneKey][]string

// DefaultSlotMap matches the labels used by the published corpora.
func DefaultSlotMap() SlotMap {
	return SlotMap{
		verse.PaneSource:    {"Macula phrase", "Hebrew phrase", "Greek phrase"},
		verse.PaneReference: {"English phrase"},
		verse.PaneTarget:    {"Target phrase"},
	}
}

// Merge returns a copy of m with panes from override replacing m's.
func (m SlotMap) Merge(override SlotMap) SlotMap {
	out := make(SlotMap, len(m)+len(override))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range override {
		if len(v) > 0 {
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}

// Validate checks that every key is a known pane.
func (m SlotMap) Validate() error {
	for k, names := range m {
		if !k.Valid() {
			return fmt.Errorf("slot map: unknown pane %q", k)
		}
		for _, n := range names {
			if n == "" {
				return fmt.Errorf("slot map: empty slot name for pane %q", k)
			}
		}
	}
	return nil
}

// PhraseFor returns the phrase the unit carries for pane, and the slot
// name it was found under.
func (m SlotMap) PhraseFor(unit *verse.Unit, pane verse.PaneKey) (*verse.Phrase, string, bool) {
	for _, name := range m[pane] {
		if p, ok := unit.Phrase(name); ok {
			return p, name, true
		}
	}
	return nil, "", false
}
