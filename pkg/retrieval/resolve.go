package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/nainya/versealign/pkg/align"
	"github.com/nainya/versealign/pkg/verse"
)

// ErrUnknownUnit is returned when a unit index is outside a record's units.
var ErrUnknownUnit = errors.New("retrieval: alignment unit not found")

// Resolution is the selection outcome for one alignment unit of a record.
type Resolution struct {
	LineIndex  int                              `json:"line"`
	Vref       string                           `json:"vref"`
	UnitIndex  int                              `json:"unit"`
	Tokens     map[verse.PaneKey][]string       `json:"tokens"`
	Highlights []string                         `json:"highlights"`
	Matches    map[verse.PaneKey]align.TokenSet `json:"-"`
}

// Resolve fetches the record at line and resolves its unit against the
// requested panes, using the corpus's slot configuration. No panes means
// every pane.
func (s *Service) Resolve(ctx context.Context, corpusID string, line, unit int, panes ...verse.PaneKey) (*Resolution, error) {
	corp, err := s.index.Corpus(corpusID)
	if err != nil {
		return nil, err
	}
	snap, err := s.index.Snapshot(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	rec, err := snap.Record(line)
	if err != nil {
		return nil, err
	}
	u, ok := rec.Unit(unit)
	if !ok {
		return nil, fmt.Errorf("%w: %s unit %d of %d", ErrUnknownUnit, rec.Vref, unit, len(rec.Units))
	}

	if len(panes) == 0 {
		panes = verse.PaneKeys
	}

	r := corp.Resolver()
	res := &Resolution{
		LineIndex:  line,
		Vref:       rec.Vref,
		UnitIndex:  unit,
		Tokens:     make(map[verse.PaneKey][]string, len(panes)),
		Matches:    make(map[verse.PaneKey]align.TokenSet, len(panes)),
		Highlights: align.ResolveHighlightStrings(u),
	}
	for _, pane := range panes {
		set := r.ResolveTokenMatches(rec, u, pane)
		s.metrics.RecordResolution(string(pane), set.Len())
		res.Matches[pane] = set
		res.Tokens[pane] = set.Ordered(rec.Pane(pane))
	}
	return res, nil
}
