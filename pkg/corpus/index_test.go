// ABOUTME: Tests for corpus loading and snapshot access
// ABOUTME: Verifies shard ordering, all-or-nothing loads, caching and search

package corpus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nainya/versealign/internal/logger"
	"github.com/nainya/versealign/internal/metrics"
)

func line(vref, content string) string {
	return fmt.Sprintf(`{"vref":%q,"bsb":{"content":%q},"macula":{"content":""},"target":{"content":""}}`, vref, content)
}

func threeShardFixture() (Config, MapLoader) {
	cfg := Config{
		"tok-pisin": {
			ID:     "tok-pisin",
			Label:  "Tok Pisin",
			Shards: []string{"tp/aa.jsonl", "tp/ab.jsonl", "tp/ac.jsonl"},
		},
	}
	loader := MapLoader{
		"tp/aa.jsonl": line("MAT 1:1", "The book of the genealogy") + "\n" + line("MAT 1:2", "Abraham was the father") + "\n",
		"tp/ab.jsonl": "\n" + line("GEN 1:1", "In the beginning") + "\r\n" + line("GEN 1:2", "The earth was formless") + "\n\n",
		"tp/ac.jsonl": line("REV 22:21", "The grace of the Lord Jesus"),
	}
	return cfg, loader
}

func newTestIndex(cfg Config, loader Loader, opts Options) *Index {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return NewIndex(cfg, loader, opts)
}

func TestLoadCorpusConcatenatesInShardOrder(t *testing.T) {
	cfg, loader := threeShardFixture()
	idx := newTestIndex(cfg, loader, Options{})

	lines, err := idx.LoadCorpus(context.Background(), "tok-pisin")
	if err != nil {
		t.Fatalf("LoadCorpus failed: %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("Expected 5 non-empty lines, got %d", len(lines))
	}

	want := []string{"MAT 1:1", "MAT 1:2", "GEN 1:1", "GEN 1:2", "REV 22:21"}
	snap, _ := idx.Snapshot(context.Background(), "tok-pisin")
	for i, v := range want {
		rec, err := snap.Record(i)
		if err != nil {
			t.Fatalf("Record(%d) failed: %v", i, err)
		}
		if rec.Vref != v {
			t.Errorf("Line %d: expected %s, got %s", i, v, rec.Vref)
		}
	}
}

func TestLoadCorpusAllOrNothing(t *testing.T) {
	cfg, loader := threeShardFixture()
	delete(loader, "tp/ac.jsonl")
	idx := newTestIndex(cfg, loader, Options{})

	lines, err := idx.LoadCorpus(context.Background(), "tok-pisin")
	if err == nil {
		t.Fatal("Expected load error for missing shard")
	}
	if lines != nil {
		t.Errorf("Expected no partial lines, got %d", len(lines))
	}

	var lerr *CorpusLoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("Expected *CorpusLoadError, got %T", err)
	}
	if lerr.Shard != "tp/ac.jsonl" || lerr.CorpusID != "tok-pisin" {
		t.Errorf("Unexpected error fields: %+v", lerr)
	}
	if idx.Cached("tok-pisin") {
		t.Errorf("Failed load must not be cached")
	}
}

func TestLoadCorpusUnknown(t *testing.T) {
	cfg, loader := threeShardFixture()
	idx := newTestIndex(cfg, loader, Options{})

	_, err := idx.LoadCorpus(context.Background(), "klingon")
	if !errors.Is(err, ErrUnknownCorpus) {
		t.Errorf("Expected ErrUnknownCorpus, got %v", err)
	}
	var lerr *CorpusLoadError
	if !errors.As(err, &lerr) {
		t.Errorf("Expected unknown corpus to surface as *CorpusLoadError")
	}
}

func TestShardTimeout(t *testing.T) {
	cfg, _ := threeShardFixture()
	slow := LoaderFunc(func(ctx context.Context, locator string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	idx := newTestIndex(cfg, slow, Options{ShardTimeout: 20 * time.Millisecond})

	_, err := idx.LoadCorpus(context.Background(), "tok-pisin")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestSnapshotCaching(t *testing.T) {
	cfg, loader := threeShardFixture()
	var fetches int32
	counting := LoaderFunc(func(ctx context.Context, locator string) ([]byte, error) {
		atomic.AddInt32(&fetches, 1)
		return loader.Fetch(ctx, locator)
	})

	m := metrics.NewMetrics(prometheus.NewRegistry())
	idx := newTestIndex(cfg, counting, Options{Metrics: m})
	ctx := context.Background()

	first, err := idx.Snapshot(ctx, "tok-pisin")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	second, err := idx.Snapshot(ctx, "tok-pisin")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected cached snapshot to be reused")
	}
	if n := atomic.LoadInt32(&fetches); n != 3 {
		t.Errorf("Expected 3 shard fetches, got %d", n)
	}
	if hits := testutil.ToFloat64(m.CorpusCacheHits); hits != 1 {
		t.Errorf("Expected 1 cache hit, got %v", hits)
	}

	idx.Invalidate("tok-pisin")
	third, err := idx.Snapshot(ctx, "tok-pisin")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if third == first {
		t.Errorf("Expected a fresh snapshot after invalidation")
	}
	if third.Digest != first.Digest {
		t.Errorf("Digest should be stable for identical shards")
	}
}

func TestCachingDisabled(t *testing.T) {
	cfg, loader := threeShardFixture()
	idx := newTestIndex(cfg, loader, Options{CacheTTL: -1})

	a, _ := idx.Snapshot(context.Background(), "tok-pisin")
	b, _ := idx.Snapshot(context.Background(), "tok-pisin")
	if a == b {
		t.Errorf("Expected a new snapshot per call with caching disabled")
	}
}

func TestSelectEvictsPrevious(t *testing.T) {
	cfg, loader := threeShardFixture()
	cfg["spanish"] = Corpus{ID: "spanish", Shards: []string{"es/aa.jsonl"}}
	loader["es/aa.jsonl"] = line("GEN 1:1", "En el principio")
	idx := newTestIndex(cfg, loader, Options{})
	ctx := context.Background()

	if _, err := idx.Select("tok-pisin"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if _, err := idx.Snapshot(ctx, "tok-pisin"); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	prev, err := idx.Select("spanish")
	if err != nil || prev != "tok-pisin" {
		t.Fatalf("Expected previous selection tok-pisin, got %q (%v)", prev, err)
	}
	if idx.Cached("tok-pisin") {
		t.Errorf("Expected previous corpus to be evicted")
	}
	if idx.Selected() != "spanish" {
		t.Errorf("Expected spanish selected, got %s", idx.Selected())
	}
	if _, err := idx.Select("klingon"); !errors.Is(err, ErrUnknownCorpus) {
		t.Errorf("Expected ErrUnknownCorpus, got %v", err)
	}
}

// gatedLoader blocks every fetch until release is closed, failing early
// only if the fetch context ends first.
func gatedLoader(loader MapLoader, started chan<- struct{}, release <-chan struct{}, fetches *int32) LoaderFunc {
	return func(ctx context.Context, locator string) ([]byte, error) {
		atomic.AddInt32(fetches, 1)
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return loader.Fetch(ctx, locator)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestSnapshotSharedLoadSurvivesCancelledCaller(t *testing.T) {
	cfg, loader := threeShardFixture()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var fetches int32
	idx := newTestIndex(cfg, gatedLoader(loader, started, release, &fetches), Options{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := idx.Snapshot(ctxA, "tok-pisin")
		errA <- err
	}()
	<-started

	type result struct {
		snap *Snapshot
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		snap, err := idx.Snapshot(context.Background(), "tok-pisin")
		resB <- result{snap, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected cancelled caller to get context.Canceled, got %v", err)
	}

	close(release)
	got := <-resB
	if got.err != nil {
		t.Fatalf("Joined caller failed after another caller cancelled: %v", got.err)
	}
	if got.snap.Len() != 5 {
		t.Errorf("Expected 5 lines, got %d", got.snap.Len())
	}
	if n := atomic.LoadInt32(&fetches); n != 3 {
		t.Errorf("Expected one shared load of 3 shards, got %d fetches", n)
	}
	if !idx.Cached("tok-pisin") {
		t.Errorf("Expected completed shared load to be cached")
	}
}

func TestInvalidateDuringLoadSkipsCaching(t *testing.T) {
	cfg, loader := threeShardFixture()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var fetches int32
	idx := newTestIndex(cfg, gatedLoader(loader, started, release, &fetches), Options{})

	done := make(chan error, 1)
	go func() {
		_, err := idx.Snapshot(context.Background(), "tok-pisin")
		done <- err
	}()
	<-started

	idx.Invalidate("tok-pisin")
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("In-flight caller should still get its snapshot: %v", err)
	}
	if idx.Cached("tok-pisin") {
		t.Errorf("Snapshot evicted during its load must not be cached")
	}

	if _, err := idx.Snapshot(context.Background(), "tok-pisin"); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !idx.Cached("tok-pisin") {
		t.Errorf("Expected reload to be cached")
	}
	if n := atomic.LoadInt32(&fetches); n != 6 {
		t.Errorf("Expected 6 fetches across two loads, got %d", n)
	}
}

func TestReleaseEvictsOnlyWhenUnheld(t *testing.T) {
	cfg, loader := threeShardFixture()
	idx := newTestIndex(cfg, loader, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := idx.Retain("tok-pisin"); err != nil {
			t.Fatalf("Retain failed: %v", err)
		}
	}
	if _, err := idx.Snapshot(ctx, "tok-pisin"); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	idx.Release("tok-pisin")
	if !idx.Cached("tok-pisin") {
		t.Errorf("Corpus still held once should stay cached")
	}
	if n := idx.Holders("tok-pisin"); n != 1 {
		t.Errorf("Expected 1 holder, got %d", n)
	}

	idx.Release("tok-pisin")
	if idx.Cached("tok-pisin") {
		t.Errorf("Expected eviction after the last release")
	}
	idx.Release("tok-pisin")
	if n := idx.Holders("tok-pisin"); n != 0 {
		t.Errorf("Release of an unheld corpus should be a no-op, got %d holders", n)
	}

	if err := idx.Retain("klingon"); !errors.Is(err, ErrUnknownCorpus) {
		t.Errorf("Expected ErrUnknownCorpus, got %v", err)
	}
}

func TestSnapshotSearch(t *testing.T) {
	cfg, loader := threeShardFixture()
	idx := newTestIndex(cfg, loader, Options{})
	snap, err := idx.Snapshot(context.Background(), "tok-pisin")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if got := snap.Search("gen 1:1", 1); len(got) != 1 || got[0] != 2 {
		t.Errorf("Expected [2], got %v", got)
	}
	if got := snap.Search("THE", 2); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Expected first two matches [0 1], got %v", got)
	}
	if got := snap.Search("the", 0); len(got) != 5 {
		t.Errorf("Expected 5 unlimited matches, got %v", got)
	}
	if got := snap.Search("nowhere", 10); len(got) != 0 {
		t.Errorf("Expected no matches, got %v", got)
	}
}

func TestSnapshotRecordMemoAndBounds(t *testing.T) {
	snap := NewSnapshot("x", []string{line("GEN 1:1", "a"), `{"vref":`}, "")

	a, err := snap.Record(0)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	b, _ := snap.Record(0)
	if a != b {
		t.Errorf("Expected memoized record")
	}

	if _, err := snap.Record(1); err == nil {
		t.Errorf("Expected parse error for malformed line")
	}
	if _, err := snap.Record(5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := snap.Line(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange for negative index, got %v", err)
	}
}

func TestIndexOfReference(t *testing.T) {
	lines := []string{
		line("GEN 1:1", "first"),
		`not json`,
		line("gen 1:2", "second"),
		line("GEN 1:1", "duplicate"),
	}
	snap := NewSnapshot("x", lines, "")

	if i, ok := snap.IndexOfReference("GEN 1:1"); !ok || i != 0 {
		t.Errorf("Expected first occurrence at 0, got %d (%v)", i, ok)
	}
	if i, ok := snap.IndexOfReference("GEN 1:2"); !ok || i != 2 {
		t.Errorf("Expected canonical match at 2, got %d (%v)", i, ok)
	}
	if _, ok := snap.IndexOfReference("EXO 1:1"); ok {
		t.Errorf("Expected no match for EXO 1:1")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{"empty": {ID: "empty"}}
	if err := cfg.Validate(); !errors.Is(err, ErrNoShards) {
		t.Errorf("Expected ErrNoShards, got %v", err)
	}
	cfg, _ = threeShardFixture()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
