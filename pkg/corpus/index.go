// ABOUTME: Corpus index over sharded JSON-lines sources
// ABOUTME: Concurrent all-or-nothing shard loading with a snapshot cache

package corpus

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nainya/versealign/internal/logger"
	"github.com/nainya/versealign/internal/metrics"
)

const (
	// DefaultShardTimeout bounds a single shard fetch
	DefaultShardTimeout = 10 * time.Second

	// DefaultCacheTTL is how long a snapshot stays cached
	DefaultCacheTTL = 30 * time.Minute
)

// Options configures an Index.
type Options struct {
	ShardTimeout time.Duration // per-shard fetch bound; 0 uses DefaultShardTimeout
	CacheTTL     time.Duration // 0 uses DefaultCacheTTL, negative disables caching
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
}

// Index presents each configured corpus as one ordered line sequence.
// It is safe for concurrent use.
type Index struct {
	config  Config
	loader  Loader
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics

	cache   *gocache.Cache // nil when caching is disabled
	cacheOn bool
	loads   singleflight.Group

	mu       sync.Mutex
	selected string
	holders  map[string]int    // retained selections per corpus
	gens     map[string]uint64 // bumped on every eviction
}

// NewIndex creates an index over cfg, fetching shards through loader.
func NewIndex(cfg Config, loader Loader, opts Options) *Index {
	if opts.ShardTimeout <= 0 {
		opts.ShardTimeout = DefaultShardTimeout
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}

	idx := &Index{
		config:  cfg,
		loader:  loader,
		timeout: opts.ShardTimeout,
		log:     logger.OrGlobal(opts.Logger),
		metrics: opts.Metrics,
		holders: make(map[string]int),
		gens:    make(map[string]uint64),
	}
	if opts.CacheTTL > 0 {
		idx.cache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
		idx.cacheOn = true
	}
	return idx
}

// Config returns the corpus configuration.
func (idx *Index) Config() Config {
	return idx.config
}

// Corpus returns the configuration of one corpus.
func (idx *Index) Corpus(id string) (Corpus, error) {
	return idx.config.Lookup(id)
}

// LoadCorpus returns the concatenated, non-empty lines of every shard of
// the corpus in shard order.
func (idx *Index) LoadCorpus(ctx context.Context, corpusID string) ([]string, error) {
	snap, err := idx.Snapshot(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	return snap.Lines(), nil
}

// Snapshot returns the cached snapshot of a corpus, loading it if needed.
// Concurrent callers for the same corpus share one load.
func (idx *Index) Snapshot(ctx context.Context, corpusID string) (*Snapshot, error) {
	corp, err := idx.config.Lookup(corpusID)
	if err != nil {
		return nil, &CorpusLoadError{CorpusID: corpusID, Err: err}
	}

	if idx.cacheOn {
		if v, ok := idx.cache.Get(corpusID); ok {
			idx.metrics.RecordCacheLookup(true)
			return v.(*Snapshot), nil
		}
		idx.metrics.RecordCacheLookup(false)
	}

	// The shared load outlives any single caller; each caller stops
	// waiting on its own context below.
	loadCtx := context.WithoutCancel(ctx)
	ch := idx.loads.DoChan(corpusID, func() (interface{}, error) {
		gen := idx.generation(corpusID)
		snap, err := idx.load(loadCtx, corp)
		if err != nil {
			return nil, err
		}
		idx.store(corpusID, gen, snap)
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, &CorpusLoadError{CorpusID: corpusID, Err: ctx.Err()}
	}
}

func (idx *Index) load(ctx context.Context, corp Corpus) (*Snapshot, error) {
	log := idx.log.CorpusLogger(corp.ID)
	start := time.Now()

	if len(corp.Shards) == 0 {
		err := &CorpusLoadError{CorpusID: corp.ID, Err: ErrNoShards}
		idx.metrics.RecordCorpusLoad(corp.ID, 0, err)
		return nil, err
	}

	blobs := make([][]byte, len(corp.Shards))
	eg, egCtx := errgroup.WithContext(ctx)

	for i, shard := range corp.Shards {
		i, shard := i, shard
		eg.Go(func() error {
			shardCtx, cancel := context.WithTimeout(egCtx, idx.timeout)
			defer cancel()

			fetchStart := time.Now()
			data, err := idx.loader.Fetch(shardCtx, shard)
			elapsed := time.Since(fetchStart)

			idx.metrics.RecordShardFetch(corp.ID, elapsed, err)
			log.LogShardFetch(shard, len(data), elapsed, err)
			if err != nil {
				return &CorpusLoadError{CorpusID: corp.ID, Shard: shard, Err: err}
			}

			blobs[i] = data
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		idx.metrics.RecordCorpusLoad(corp.ID, 0, err)
		log.LogCorpusLoad(len(corp.Shards), 0, 0, time.Since(start), err)
		return nil, err
	}

	hasher := blake3.New()
	var lines []string
	size := 0
	for _, data := range blobs {
		hasher.Write(data)
		hasher.Write([]byte{'\n'})
		size += len(data)
		lines = append(lines, splitLines(string(data))...)
	}

	snap := NewSnapshot(corp.ID, lines, hexDigest(hasher.Sum(nil)))
	idx.metrics.RecordCorpusLoad(corp.ID, len(lines), nil)
	log.LogCorpusLoad(len(corp.Shards), len(lines), size, time.Since(start), nil)

	return snap, nil
}

func (idx *Index) generation(corpusID string) uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.gens[corpusID]
}

// store caches snap unless the corpus was evicted after its load began.
func (idx *Index) store(corpusID string, gen uint64, snap *Snapshot) {
	if !idx.cacheOn {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.gens[corpusID] != gen {
		idx.log.CorpusLogger(corpusID).Debug("Discarding snapshot evicted during load").Send()
		return
	}
	idx.cache.Set(corpusID, snap, gocache.DefaultExpiration)
}

// Invalidate drops the cached snapshot of a corpus. A load already in
// flight still answers its callers but is not cached.
func (idx *Index) Invalidate(corpusID string) {
	idx.mu.Lock()
	idx.gens[corpusID]++
	if idx.cacheOn {
		idx.cache.Delete(corpusID)
	}
	idx.mu.Unlock()
	idx.loads.Forget(corpusID)
}

// Retain records one more holder of corpusID's selection.
func (idx *Index) Retain(corpusID string) error {
	if _, err := idx.config.Lookup(corpusID); err != nil {
		return err
	}
	idx.mu.Lock()
	idx.holders[corpusID]++
	idx.mu.Unlock()
	return nil
}

// Release drops one holder of corpusID. The snapshot is evicted once no
// holder remains.
func (idx *Index) Release(corpusID string) {
	idx.mu.Lock()
	n := idx.holders[corpusID]
	if n == 0 {
		idx.mu.Unlock()
		return
	}
	if n == 1 {
		delete(idx.holders, corpusID)
	} else {
		idx.holders[corpusID] = n - 1
	}
	idx.mu.Unlock()

	if n == 1 {
		idx.Invalidate(corpusID)
		idx.log.CorpusLogger(corpusID).Debug("Corpus released").Send()
	}
}

// Holders returns how many selections currently retain corpusID.
func (idx *Index) Holders(corpusID string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.holders[corpusID]
}

// Select makes corpusID the index-wide selection, retaining it and
// releasing the previous one. It returns the previous selection.
func (idx *Index) Select(corpusID string) (string, error) {
	if err := idx.Retain(corpusID); err != nil {
		return "", err
	}

	idx.mu.Lock()
	prev := idx.selected
	idx.selected = corpusID
	idx.mu.Unlock()

	if prev != "" {
		idx.Release(prev)
	}
	return prev, nil
}

// Selected returns the active corpus id, if any.
func (idx *Index) Selected() string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.selected
}

// Cached reports whether a snapshot of corpusID is in the cache.
func (idx *Index) Cached(corpusID string) bool {
	if !idx.cacheOn {
		return false
	}
	_, ok := idx.cache.Get(corpusID)
	return ok
}

// String describes the index for logs.
func (idx *Index) String() string {
	return fmt.Sprintf("corpus.Index(%d corpora)", len(idx.config))
}
