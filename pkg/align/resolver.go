// ABOUTME: Alignment resolution from phrase units to word tokens
// ABOUTME: Range-overlap matching and highlight term extraction

package align

import (
	"sort"

	"github.com/nainya/versealign/pkg/textrange"
	"github.com/nainya/versealign/pkg/verse"
)

// TokenSet is an unordered set of token ids.
type TokenSet map[string]struct{}

// Has reports membership.
func (s TokenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids.
func (s TokenSet) Len() int {
	return len(s)
}

// Equal reports set equality.
func (s TokenSet) Equal(other TokenSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Ordered returns the ids in the pane's token order. Ids not present in
// the pane are appended sorted.
func (s TokenSet) Ordered(pane *verse.Pane) []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]bool, len(s))
	if pane != nil {
		for _, tok := range pane.Tokens {
			if s.Has(tok.ID) && !seen[tok.ID] {
				out = append(out, tok.ID)
				seen[tok.ID] = true
			}
		}
	}

	var rest []string
	for id := range s {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Resolver resolves alignment units against panes using a slot mapping.
// It holds no state beyond the mapping and is safe for concurrent use.
//
// Phrase ranges and token ranges are compared as if they were offsets into
// the same string. That holds for the source pane because its tokens and
// the source phrase ranges come from the same annotation pass; for other
// panes it is an approximation the corpus format has always relied on.
type Resolver struct {
	slots SlotMap
}

// NewResolver creates a resolver. A nil map uses DefaultSlotMap.
func NewResolver(slots SlotMap) *Resolver {
	if slots == nil {
		slots = DefaultSlotMap()
	}
	return &Resolver{slots: slots}
}

// Slots returns the resolver's mapping.
func (r *Resolver) Slots() SlotMap {
	return r.slots
}

// ResolveTokenMatches returns the ids of tokens in the given pane whose
// ranges overlap any range of the unit's phrase for that pane. A missing
// phrase, unknown pane or token-less pane yields an empty set.
func (r *Resolver) ResolveTokenMatches(rec *verse.Record, unit *verse.Unit, pane verse.PaneKey) TokenSet {
	matches := TokenSet{}
	if rec == nil || unit == nil {
		return matches
	}

	target := rec.Pane(pane)
	if target == nil || !target.HasTokens() {
		return matches
	}

	phrase, _, ok := r.slots.PhraseFor(unit, pane)
	if !ok {
		return matches
	}

	for _, pr := range phrase.Ranges {
		for _, tok := range target.Tokens {
			if textrange.Overlaps(tok.Range, pr) {
				matches[tok.ID] = struct{}{}
			}
		}
	}
	return matches
}

// ResolveAllPanes resolves the unit against every pane that has tokens.
func (r *Resolver) ResolveAllPanes(rec *verse.Record, unit *verse.Unit) map[verse.PaneKey]TokenSet {
	out := make(map[verse.PaneKey]TokenSet, len(verse.PaneKeys))
	for _, key := range verse.PaneKeys {
		if set := r.ResolveTokenMatches(rec, unit, key); set.Len() > 0 {
			out[key] = set
		}
	}
	return out
}

// ResolveHighlightStrings returns the literal text of every phrase slot, in
// slot order, for highlighting across all panes at once. Empty texts and
// pseudo-phrases are skipped.
func ResolveHighlightStrings(unit *verse.Unit) []string {
	if unit == nil {
		return nil
	}

	var terms []string
	for _, s := range unit.Slots {
		if s.Phrase == nil || s.Phrase.OriginalText == "" {
			continue
		}
		terms = append(terms, s.Phrase.OriginalText)
	}
	return terms
}
