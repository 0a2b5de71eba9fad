// ABOUTME: Immutable line-indexed view of a loaded corpus
// ABOUTME: Folded substring search, memoized record parsing and reference index

package corpus

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/nainya/versealign/pkg/verse"
	"github.com/nainya/versealign/pkg/vref"
)

// Snapshot is the concatenated line sequence of one corpus load. Line
// content never changes, so parsed records are memoized per line.
type Snapshot struct {
	CorpusID string
	Digest   string // blake3 of the shard bytes, hex
	LoadedAt time.Time

	lines  []string
	folded []string

	mu     sync.Mutex
	parsed map[int]parsedLine

	refOnce  sync.Once
	refIndex map[string]int
}

type parsedLine struct {
	rec *verse.Record
	err error
}

// NewSnapshot builds a snapshot over already-split, non-empty lines.
func NewSnapshot(corpusID string, lines []string, digest string) *Snapshot {
	folded := make([]string, len(lines))
	for i, line := range lines {
		folded[i] = foldCase(line)
	}

	return &Snapshot{
		CorpusID: corpusID,
		Digest:   digest,
		LoadedAt: time.Now(),
		lines:    lines,
		folded:   folded,
		parsed:   make(map[int]parsedLine),
	}
}

func foldCase(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// Len returns the number of lines.
func (s *Snapshot) Len() int {
	return len(s.lines)
}

// Lines returns a copy of the raw lines.
func (s *Snapshot) Lines() []string {
	return append([]string(nil), s.lines...)
}

// Line returns the raw line at i.
func (s *Snapshot) Line(i int) (string, error) {
	if i < 0 || i >= len(s.lines) {
		return "", fmt.Errorf("%w: %d (corpus %s has %d lines)", ErrIndexOutOfRange, i, s.CorpusID, len(s.lines))
	}
	return s.lines[i], nil
}

// Search returns up to limit line indices, ascending, whose raw text
// contains query case-insensitively. The whole serialized line is matched,
// so a query may hit any field. limit <= 0 means no limit.
func (s *Snapshot) Search(query string, limit int) []int {
	q := foldCase(query)

	var found []int
	for i, line := range s.folded {
		if limit > 0 && len(found) >= limit {
			break
		}
		if strings.Contains(line, q) {
			found = append(found, i)
		}
	}
	return found
}

// Record parses the line at i, at most once per snapshot.
func (s *Snapshot) Record(i int) (*verse.Record, error) {
	raw, err := s.Line(i)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	p, ok := s.parsed[i]
	s.mu.Unlock()
	if ok {
		return p.rec, p.err
	}

	rec, err := verse.ParseLine(i, raw)

	s.mu.Lock()
	s.parsed[i] = parsedLine{rec: rec, err: err}
	s.mu.Unlock()

	return rec, err
}

// IndexOfReference returns the first line whose vref matches ref. The
// reference index is built on first use from the lines' vref fields only.
func (s *Snapshot) IndexOfReference(ref string) (int, bool) {
	s.refOnce.Do(s.buildRefIndex)
	i, ok := s.refIndex[vref.Canonical(ref)]
	return i, ok
}

func (s *Snapshot) buildRefIndex() {
	s.refIndex = make(map[string]int, len(s.lines))
	for i, line := range s.lines {
		v, ok := verse.ExtractVref(line)
		if !ok {
			continue
		}
		key := vref.Canonical(v)
		if _, dup := s.refIndex[key]; !dup {
			s.refIndex[key] = i
		}
	}
}

// splitLines splits shard text into lines, stripping CR and dropping
// blank lines.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func hexDigest(sum []byte) string {
	return hex.EncodeToString(sum)
}
