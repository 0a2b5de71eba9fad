// ABOUTME: Tests for search-then-fetch retrieval
// ABOUTME: Covers limits, parse-skip isolation, windows and stale sessions

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nainya/versealign/internal/logger"
	"github.com/nainya/versealign/internal/metrics"
	"github.com/nainya/versealign/pkg/corpus"
	"github.com/nainya/versealign/pkg/verse"
)

func line(vref, content string) string {
	return fmt.Sprintf(`{"vref":%q,"bsb":{"content":%q},"macula":{"content":""},"target":{"content":""}}`, vref, content)
}

const alignedLine = `{"vref":"GEN 1:1","bsb":{"content":"In the beginning"},` +
	`"macula":{"content":"AB CD","token_ids":[{"id":"t1","text":"A","range":{"start":0,"end":1}},{"id":"t2","text":"C","range":{"start":3,"end":4}}]},` +
	`"target":{"content":"Bipo","token_ids":[{"id":"x1","text":"Bipo","range":{"start":0,"end":3}}]},` +
	`"alignment":[{"English phrase":{"original-text-value":"In the beginning","ranges":[{"start":0,"end":15}]},` +
	`"Macula phrase":{"original-text-value":"AB","ranges":[{"start":0,"end":1}]},` +
	`"Target phrase":{"original-text-value":"Bipo","ranges":[{"start":0,"end":3}]}}]}`

type fixture struct {
	svc     *Service
	index   *corpus.Index
	metrics *metrics.Metrics
	cfg     corpus.Config
	loader  corpus.MapLoader
}

func newFixture(t *testing.T, shards map[string][]string) *fixture {
	t.Helper()

	cfg := corpus.Config{}
	loader := corpus.MapLoader{}
	for id, parts := range shards {
		c := corpus.Corpus{ID: id}
		for i, body := range parts {
			loc := fmt.Sprintf("%s/data-chunk-%d.jsonl", id, i)
			c.Shards = append(c.Shards, loc)
			loader[loc] = body
		}
		cfg[id] = c
	}

	f := &fixture{cfg: cfg, loader: loader}
	f.rebuild(loader)
	return f
}

// rebuild replaces the fixture's index and service with ones fetching
// through loader.
func (f *fixture) rebuild(loader corpus.Loader) {
	f.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	f.index = corpus.NewIndex(f.cfg, loader, corpus.Options{Logger: logger.Nop(), Metrics: f.metrics})
	f.svc = NewService(f.index, Options{Logger: logger.Nop(), Metrics: f.metrics})
}

func joinLines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestSearchAcrossShardsLimitOne(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"tok-pisin": {
			joinLines(line("MAT 1:1", "a"), line("MAT 1:2", "b")),
			joinLines(line("EXO 1:1", "c"), alignedLine),
			joinLines(line("REV 22:21", "d")),
		},
	})
	ctx := context.Background()

	got, err := f.svc.FindIndicesBySearchString(ctx, "tok-pisin", "GEN 1:1", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("Expected [3], got %v", got)
	}

	res, err := f.svc.FetchByIndices(ctx, "tok-pisin", got)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].Vref != "GEN 1:1" {
		t.Errorf("Expected GEN 1:1 record, got %+v", res.Records)
	}
}

func TestSearchLimitAndOrder(t *testing.T) {
	var lines []string
	for v := 1; v <= 25; v++ {
		lines = append(lines, line(fmt.Sprintf("PSA 119:%d", v), "Blessed are they"))
	}
	f := newFixture(t, map[string][]string{"spanish": {joinLines(lines...)}})
	ctx := context.Background()

	def, err := f.svc.FindIndicesBySearchString(ctx, "spanish", "blessed", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(def) != DefaultLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultLimit, len(def))
	}
	for i := 1; i < len(def); i++ {
		if def[i] <= def[i-1] {
			t.Fatalf("Indices not ascending: %v", def)
		}
	}

	for _, limit := range []int{1, 3, 25, 100} {
		got, _ := f.svc.FindIndicesBySearchString(ctx, "spanish", "BLESSED", limit)
		want := limit
		if want > 25 {
			want = 25
		}
		if len(got) != want {
			t.Errorf("limit=%d: expected %d results, got %d", limit, want, len(got))
		}
	}

	if got := testutil.ToFloat64(f.metrics.SearchQueriesTotal); got != 5 {
		t.Errorf("Expected 5 recorded searches, got %v", got)
	}
}

func TestSearchNoMatches(t *testing.T) {
	f := newFixture(t, map[string][]string{"french": {joinLines(line("GEN 1:1", "Au commencement"))}})

	got, err := f.svc.FindIndicesBySearchString(context.Background(), "french", "nowhere", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no matches, got %v", got)
	}
}

func TestSearchUnknownCorpus(t *testing.T) {
	f := newFixture(t, map[string][]string{"french": {joinLines(line("GEN 1:1", "x"))}})

	_, err := f.svc.FindIndicesBySearchString(context.Background(), "klingon", "x", 1)
	if !errors.Is(err, corpus.ErrUnknownCorpus) {
		t.Errorf("Expected ErrUnknownCorpus, got %v", err)
	}
}

func TestFetchSkipsMalformedLines(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"tok-pisin": {joinLines(line("GEN 1:1", "a"), `{"vref":"GEN 1:2", broken`, line("GEN 1:3", "c"))},
	})

	res, err := f.svc.FetchByIndices(context.Background(), "tok-pisin", []int{0, 1, 2, 9})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0].Vref != "GEN 1:1" || res.Records[1].Vref != "GEN 1:3" {
		t.Errorf("Unexpected record order: %s, %s", res.Records[0].Vref, res.Records[1].Vref)
	}
	if res.Indices[0] != 0 || res.Indices[1] != 2 {
		t.Errorf("Unexpected indices: %v", res.Indices)
	}

	if len(res.Skipped) != 2 {
		t.Fatalf("Expected 2 skipped lines, got %+v", res.Skipped)
	}
	if res.Skipped[0].LineIndex != 1 || !errors.Is(res.Skipped[0].Err, verse.ErrMalformedRecord) {
		t.Errorf("Expected malformed skip at 1, got %+v", res.Skipped[0])
	}
	if res.Skipped[1].Reason != "out_of_range" {
		t.Errorf("Expected out_of_range skip, got %+v", res.Skipped[1])
	}
	if got := testutil.ToFloat64(f.metrics.RecordsSkippedTotal.WithLabelValues("tok-pisin", "parse")); got != 1 {
		t.Errorf("Expected 1 parse skip recorded, got %v", got)
	}
}

func TestFetchEmptyIndices(t *testing.T) {
	f := newFixture(t, map[string][]string{"french": {joinLines(line("GEN 1:1", "x"))}})

	res, err := f.svc.FetchByIndices(context.Background(), "french", nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(res.Records) != 0 || len(res.Skipped) != 0 {
		t.Errorf("Expected empty result, got %+v", res)
	}
}

func TestFetchSiblingWindowClips(t *testing.T) {
	var lines []string
	for v := 1; v <= 6; v++ {
		lines = append(lines, line(fmt.Sprintf("JHN 1:%d", v), "word"))
	}
	f := newFixture(t, map[string][]string{"spanish": {joinLines(lines...)}})
	ctx := context.Background()

	res, err := f.svc.FetchSiblingWindow(ctx, "spanish", 1, 2)
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if len(res.Indices) != 4 || res.Indices[0] != 0 || res.Indices[3] != 3 {
		t.Errorf("Expected [0..3], got %v", res.Indices)
	}

	res, _ = f.svc.FetchSiblingWindow(ctx, "spanish", 5, 3)
	if len(res.Indices) != 4 || res.Indices[3] != 5 {
		t.Errorf("Expected [2..5], got %v", res.Indices)
	}

	if _, err := f.svc.FetchSiblingWindow(ctx, "spanish", 6, 1); !errors.Is(err, corpus.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestFetchReferenceWindow(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"french": {joinLines(line("GEN 1:1", "a"), line("GEN 1:2", "b"), line("GEN 1:3", "c"), line("GEN 1:4", "d"))},
	})
	ctx := context.Background()

	w, err := f.svc.FetchReferenceWindow(ctx, "french", "gen 1:3", 1)
	if err != nil {
		t.Fatalf("Reference window failed: %v", err)
	}
	if w.Center != 2 || len(w.Records) != 3 {
		t.Errorf("Expected center 2 with 3 records, got %d / %d", w.Center, len(w.Records))
	}

	w, err = f.svc.FetchReferenceWindow(ctx, "french", "GEN 1:2-4", 0)
	if err != nil {
		t.Fatalf("Span lookup failed: %v", err)
	}
	if w.Center != 1 {
		t.Errorf("Expected span to center on its first verse, got %d", w.Center)
	}

	if _, err := f.svc.FetchReferenceWindow(ctx, "french", "EXO 3:14", 1); !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("Expected ErrReferenceNotFound, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t, map[string][]string{"tok-pisin": {joinLines(line("MAT 1:1", "x"), alignedLine)}})
	ctx := context.Background()

	res, err := f.svc.Resolve(ctx, "tok-pisin", 1, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := res.Tokens[verse.PaneSource]; len(got) != 1 || got[0] != "t1" {
		t.Errorf("Expected source [t1], got %v", got)
	}
	if got := res.Tokens[verse.PaneTarget]; len(got) != 1 || got[0] != "x1" {
		t.Errorf("Expected target [x1], got %v", got)
	}
	if got := res.Tokens[verse.PaneReference]; len(got) != 0 {
		t.Errorf("Expected no reference tokens, got %v", got)
	}
	if len(res.Highlights) != 3 || res.Highlights[0] != "In the beginning" {
		t.Errorf("Unexpected highlights: %v", res.Highlights)
	}

	if _, err := f.svc.Resolve(ctx, "tok-pisin", 1, 4); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("Expected ErrUnknownUnit, got %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.ResolutionsTotal.WithLabelValues("reference", "empty")); got != 1 {
		t.Errorf("Expected 1 empty reference resolution, got %v", got)
	}
}
