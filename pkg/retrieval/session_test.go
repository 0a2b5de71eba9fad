package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nainya/versealign/pkg/corpus"
)

func TestSessionSupersedesOlderRequest(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"spanish":   {joinLines(line("GEN 1:1", "En el principio"))},
		"tok-pisin": {joinLines(line("GEN 1:1", "Bipo bipo tru"))},
	})
	s := NewSession(f.svc)
	ctx := context.Background()

	oldCtx, old := s.Begin(ctx, "spanish", "principio")
	_, cur := s.Begin(ctx, "tok-pisin", "bipo")

	if s.Current(old) {
		t.Errorf("Older ticket should be stale")
	}
	if !s.Current(cur) {
		t.Errorf("Newest ticket should be current")
	}
	if oldCtx.Err() == nil {
		t.Errorf("Older request context should be cancelled")
	}
	if s.Held() != "tok-pisin" {
		t.Errorf("Expected session to hold tok-pisin, got %q", s.Held())
	}
	if n := f.index.Holders("spanish"); n != 0 {
		t.Errorf("Expected spanish released, got %d holders", n)
	}
	if old.ID == cur.ID {
		t.Errorf("Tickets should have distinct ids")
	}
}

func TestSessionSameCorpusNewQuery(t *testing.T) {
	f := newFixture(t, map[string][]string{"spanish": {joinLines(line("GEN 1:1", "x"))}})
	s := NewSession(f.svc)

	_, first := s.Begin(context.Background(), "spanish", "a")
	_, second := s.Begin(context.Background(), "spanish", "ab")
	if s.Current(first) || !s.Current(second) {
		t.Errorf("Only the latest query should be current")
	}
}

func TestSessionSearch(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"spanish": {joinLines(line("GEN 1:1", "En el principio"), line("GEN 1:2", "La tierra"))},
	})
	s := NewSession(f.svc)

	res, err := s.Search(context.Background(), "spanish", "tierra", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].Vref != "GEN 1:2" {
		t.Errorf("Expected GEN 1:2, got %+v", res.Records)
	}
}

func TestSessionSearchCancelledParent(t *testing.T) {
	f := newFixture(t, map[string][]string{"spanish": {joinLines(line("GEN 1:1", "x"))}})
	s := NewSession(f.svc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, "spanish", "x", 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// gate makes the fixture's loader block until open is called.
type gate struct {
	started chan struct{}
	release chan struct{}
	fetches int32
	once    sync.Once
}

func gateFixture(t *testing.T, f *fixture) *gate {
	t.Helper()
	g := &gate{started: make(chan struct{}, 1), release: make(chan struct{})}
	inner := f.loader
	loader := corpus.LoaderFunc(func(ctx context.Context, locator string) ([]byte, error) {
		atomic.AddInt32(&g.fetches, 1)
		select {
		case g.started <- struct{}{}:
		default:
		}
		select {
		case <-g.release:
			return inner.Fetch(ctx, locator)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	f.rebuild(loader)
	return g
}

func (g *gate) open() {
	g.once.Do(func() { close(g.release) })
}

func TestSessionSupersededDuringSharedLoad(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"spanish": {joinLines(line("GEN 1:1", "En el principio"), line("GEN 1:2", "La tierra"))},
	})
	g := gateFixture(t, f)
	defer g.open()
	s := NewSession(f.svc)
	ctx := context.Background()

	errOld := make(chan error, 1)
	go func() {
		_, err := s.Search(ctx, "spanish", "principio", 5)
		errOld <- err
	}()
	<-g.started

	type result struct {
		res *FetchResult
		err error
	}
	newest := make(chan result, 1)
	go func() {
		res, err := s.Search(ctx, "spanish", "tierra", 5)
		newest <- result{res, err}
	}()

	if err := <-errOld; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Expected older request to be superseded, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	g.open()

	got := <-newest
	if got.err != nil {
		t.Fatalf("Newest request failed after the older one was cancelled: %v", got.err)
	}
	if len(got.res.Records) != 1 || got.res.Records[0].Vref != "GEN 1:2" {
		t.Errorf("Expected GEN 1:2, got %+v", got.res.Records)
	}
	if n := atomic.LoadInt32(&g.fetches); n != 1 {
		t.Errorf("Expected a single shared shard fetch, got %d", n)
	}
}

func TestConcurrentSessionsShareOneLoad(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"spanish": {joinLines(line("GEN 1:1", "En el principio")), joinLines(line("GEN 1:2", "La tierra"))},
	})
	g := gateFixture(t, f)
	defer g.open()
	ctx := context.Background()

	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSession(f.svc)
			defer s.Close()
			res, err := s.Search(ctx, "spanish", "tierra", 5)
			if err == nil && len(res.Records) != 1 {
				err = errors.New("expected one record")
			}
			errs <- err
		}()
	}
	<-g.started
	time.Sleep(20 * time.Millisecond)
	g.open()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent search failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&g.fetches); n != 2 {
		t.Errorf("Expected one load of 2 shards, got %d fetches", n)
	}
}

func TestSessionCorpusSwitchKeepsOtherSessionsCorpus(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"spanish":   {joinLines(line("GEN 1:1", "En el principio"))},
		"tok-pisin": {joinLines(line("GEN 1:1", "Bipo bipo tru"))},
	})
	a := NewSession(f.svc)
	b := NewSession(f.svc)
	ctx := context.Background()

	if _, err := a.Search(ctx, "tok-pisin", "bipo", 5); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if _, err := b.Search(ctx, "tok-pisin", "bipo", 5); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if _, err := b.Search(ctx, "spanish", "principio", 5); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if !f.index.Cached("tok-pisin") {
		t.Errorf("Switching one session must not evict a corpus another session holds")
	}
	if n := f.index.Holders("tok-pisin"); n != 1 {
		t.Errorf("Expected 1 holder of tok-pisin, got %d", n)
	}

	a.Close()
	if f.index.Cached("tok-pisin") {
		t.Errorf("Expected tok-pisin evicted once its last session closed")
	}
	if a.Held() != "" {
		t.Errorf("Closed session should hold nothing, got %q", a.Held())
	}
	if !f.index.Cached("spanish") {
		t.Errorf("Expected spanish to stay cached for session b")
	}
}
