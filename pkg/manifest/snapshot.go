package manifest

import (
	"golang.org/x/text/unicode/norm"
)

// Snapshot is a read-only view of a parsed manifest.
type Snapshot struct {
	entries []Entry
	byID    map[string]int
	byTag   map[string][]int
}

// NewSnapshot indexes entries by id and tag. The first entry wins on a
// duplicate id.
func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{
		entries: entries,
		byID:    make(map[string]int, len(entries)),
		byTag:   make(map[string][]int),
	}
	for i, e := range entries {
		if _, dup := s.byID[e.ID]; !dup && e.ID != "" {
			s.byID[e.ID] = i
		}
		for _, t := range e.Tags {
			t = norm.NFC.String(t)
			s.byTag[t] = append(s.byTag[t], i)
		}
	}
	return s
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns a copy of all entries in manifest order.
func (s *Snapshot) Entries() []Entry {
	if s == nil {
		return nil
	}
	return append([]Entry(nil), s.entries...)
}

// ByID returns the entry with the given id.
func (s *Snapshot) ByID(id string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// ByTag returns entries carrying tag, in manifest order.
func (s *Snapshot) ByTag(tag string) []Entry {
	if s == nil {
		return nil
	}
	idx := s.byTag[norm.NFC.String(tag)]
	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.entries[i])
	}
	return out
}

// ForTokens returns entries tagged with any of terms, typically token
// lemmas or surface forms. Each entry appears once, in manifest order.
func (s *Snapshot) ForTokens(terms ...string) []Entry {
	if s == nil {
		return nil
	}
	hit := make(map[int]bool)
	for _, term := range terms {
		for _, i := range s.byTag[norm.NFC.String(term)] {
			hit[i] = true
		}
	}

	out := make([]Entry, 0, len(hit))
	for i := range s.entries {
		if hit[i] {
			out = append(out, s.entries[i])
		}
	}
	return out
}
