// ABOUTME: Verse retrieval over the corpus index
// ABOUTME: Two-phase search-then-fetch with per-line failure isolation

package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/nainya/versealign/internal/logger"
	"github.com/nainya/versealign/internal/metrics"
	"github.com/nainya/versealign/pkg/corpus"
	"github.com/nainya/versealign/pkg/verse"
	"github.com/nainya/versealign/pkg/vref"
)

// DefaultLimit caps search results when the caller passes no limit.
const DefaultLimit = 10

// Skipped describes a requested line left out of a fetch result.
type Skipped struct {
	LineIndex int    `json:"line"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

// FetchResult is the outcome of a batch fetch. Records keep request order.
type FetchResult struct {
	Records []*verse.Record `json:"records"`
	Indices []int           `json:"indices"` // line index of each record
	Skipped []Skipped       `json:"skipped,omitempty"`
}

// Service answers search and fetch requests for configured corpora.
type Service struct {
	index   *corpus.Index
	limit   int
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Options configures a Service.
type Options struct {
	DefaultLimit int
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
}

// NewService creates a retrieval service over idx.
func NewService(idx *corpus.Index, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	return &Service{
		index:   idx,
		limit:   opts.DefaultLimit,
		log:     logger.OrGlobal(opts.Logger),
		metrics: opts.Metrics,
	}
}

// Index returns the underlying corpus index.
func (s *Service) Index() *corpus.Index {
	return s.index
}

// FindIndicesBySearchString returns up to limit line indices, ascending,
// whose raw line contains query case-insensitively. limit <= 0 uses the
// service default.
func (s *Service) FindIndicesBySearchString(ctx context.Context, corpusID, query string, limit int) ([]int, error) {
	if limit <= 0 {
		limit = s.limit
	}

	snap, err := s.index.Snapshot(ctx, corpusID)
	if err != nil {
		s.log.CorpusLogger(corpusID).Error("Search failed").Err(err).Send()
		return nil, err
	}

	found := snap.Search(query, limit)
	s.metrics.RecordSearch(len(found))
	s.log.CorpusLogger(corpusID).Debug("Search completed").
		Str("query", query).
		Int("limit", limit).
		Int("results", len(found)).
		Send()

	return found, nil
}

// FetchByIndices parses the requested lines. Lines that are malformed or
// out of range are logged and reported in Skipped; the rest are returned.
func (s *Service) FetchByIndices(ctx context.Context, corpusID string, indices []int) (*FetchResult, error) {
	snap, err := s.index.Snapshot(ctx, corpusID)
	if err != nil {
		s.log.CorpusLogger(corpusID).Error("Fetch failed").Err(err).Send()
		return nil, err
	}
	return s.fetch(snap, indices), nil
}

func (s *Service) fetch(snap *corpus.Snapshot, indices []int) *FetchResult {
	log := s.log.CorpusLogger(snap.CorpusID)
	res := &FetchResult{
		Records: make([]*verse.Record, 0, len(indices)),
		Indices: make([]int, 0, len(indices)),
	}

	for _, i := range indices {
		rec, err := snap.Record(i)
		if err != nil {
			skip := Skipped{LineIndex: i, Reason: "parse", Err: err}
			snippet := ""
			var perr *verse.RecordParseError
			switch {
			case errors.As(err, &perr):
				snippet = perr.Snippet
			case errors.Is(err, corpus.ErrIndexOutOfRange):
				skip.Reason = "out_of_range"
			}
			log.LogRecordSkipped(i, snippet, err)
			s.metrics.RecordSkipped(snap.CorpusID, skip.Reason)
			res.Skipped = append(res.Skipped, skip)
			continue
		}

		for _, issue := range rec.Issues() {
			log.Debug("Data quality issue").Int("line", i).Str("vref", rec.Vref).Str("issue", issue).Send()
		}
		res.Records = append(res.Records, rec)
		res.Indices = append(res.Indices, i)
	}

	return res
}

// FetchSiblingWindow fetches [center-radius, center+radius] clipped to the
// corpus bounds.
func (s *Service) FetchSiblingWindow(ctx context.Context, corpusID string, center, radius int) (*FetchResult, error) {
	snap, err := s.index.Snapshot(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	if center < 0 || center >= snap.Len() {
		return nil, fmt.Errorf("%w: %d", corpus.ErrIndexOutOfRange, center)
	}
	return s.fetch(snap, window(center, radius, snap.Len())), nil
}

func window(center, radius, n int) []int {
	if radius < 0 {
		radius = 0
	}
	lo, hi := center-radius, center+radius
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}

	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// ReferenceWindow is a reference lookup result with its surrounding lines.
type ReferenceWindow struct {
	Center int `json:"center"`
	*FetchResult
}

// ErrReferenceNotFound is returned when neither the reference index nor a
// substring search finds the reference.
var ErrReferenceNotFound = errors.New("retrieval: reference not found")

// FetchReferenceWindow finds the line for ref and returns it with radius
// neighbors on each side. Structured lookup is tried first; references the
// index cannot place fall back to a substring search for ref.
func (s *Service) FetchReferenceWindow(ctx context.Context, corpusID, ref string, radius int) (*ReferenceWindow, error) {
	snap, err := s.index.Snapshot(ctx, corpusID)
	if err != nil {
		return nil, err
	}

	key := ref
	if parsed, perr := vref.Parse(ref); perr == nil {
		key = parsed.First().String()
	}

	center, ok := snap.IndexOfReference(key)
	if !ok {
		hits := snap.Search(ref, 1)
		if len(hits) == 0 {
			return nil, fmt.Errorf("%w: %q in %s", ErrReferenceNotFound, ref, corpusID)
		}
		center = hits[0]
	}

	return &ReferenceWindow{
		Center:      center,
		FetchResult: s.fetch(snap, window(center, radius, snap.Len())),
	}, nil
}
