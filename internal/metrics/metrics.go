// Package metrics provides Prometheus metrics for versealign
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for versealign. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Corpus loading
	ShardFetchesTotal   *prometheus.CounterVec
	ShardFetchDuration  *prometheus.HistogramVec
	CorpusLoadsTotal    *prometheus.CounterVec
	CorpusCacheHits     prometheus.Counter
	CorpusCacheMisses   prometheus.Counter
	CorpusLinesLoaded   *prometheus.GaugeVec
	RecordsSkippedTotal *prometheus.CounterVec

	// Retrieval and resolution
	SearchQueriesTotal prometheus.Counter
	SearchResultsTotal prometheus.Counter
	ResolutionsTotal   *prometheus.CounterVec

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// uses the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versealign_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "versealign_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "versealign_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.ShardFetchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versealign_shard_fetches_total",
			Help: "Total number of shard fetches",
		},
		[]string{"corpus", "status"},
	)

	m.ShardFetchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "versealign_shard_fetch_duration_seconds",
			Help:    "Duration of shard fetches in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"corpus"},
	)

	m.CorpusLoadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versealign_corpus_loads_total",
			Help: "Total number of corpus loads",
		},
		[]string{"corpus", "status"},
	)

	m.CorpusCacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "versealign_corpus_cache_hits_total",
			Help: "Corpus lookups served from the snapshot cache",
		},
	)

	m.CorpusCacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "versealign_corpus_cache_misses_total",
			Help: "Corpus lookups that required loading shards",
		},
	)

	m.CorpusLinesLoaded = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "versealign_corpus_lines",
			Help: "Number of lines in the most recent snapshot of a corpus",
		},
		[]string{"corpus"},
	)

	m.RecordsSkippedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versealign_records_skipped_total",
			Help: "Corpus lines left out of fetch results",
		},
		[]string{"corpus", "reason"},
	)

	m.SearchQueriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "versealign_search_queries_total",
			Help: "Total number of search queries",
		},
	)

	m.SearchResultsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "versealign_search_results_total",
			Help: "Total number of search results returned",
		},
	)

	m.ResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versealign_resolutions_total",
			Help: "Alignment resolutions by pane and outcome",
		},
		[]string{"pane", "outcome"},
	)

	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "versealign_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge until stop is closed
func (m *Metrics) RunUptime(stop <-chan struct{}) {
	if m == nil {
		return
	}
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		case <-stop:
			return
		}
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordShardFetch records one shard fetch
func (m *Metrics) RecordShardFetch(corpus string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ShardFetchesTotal.WithLabelValues(corpus, statusLabel(err)).Inc()
	m.ShardFetchDuration.WithLabelValues(corpus).Observe(duration.Seconds())
}

// RecordCorpusLoad records a corpus load and its resulting line count
func (m *Metrics) RecordCorpusLoad(corpus string, lines int, err error) {
	if m == nil {
		return
	}
	m.CorpusLoadsTotal.WithLabelValues(corpus, statusLabel(err)).Inc()
	if err == nil {
		m.CorpusLinesLoaded.WithLabelValues(corpus).Set(float64(lines))
	}
}

// RecordCacheLookup records a snapshot cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CorpusCacheHits.Inc()
		return
	}
	m.CorpusCacheMisses.Inc()
}

// RecordSkipped records a line left out of a fetch result
func (m *Metrics) RecordSkipped(corpus, reason string) {
	if m == nil {
		return
	}
	m.RecordsSkippedTotal.WithLabelValues(corpus, reason).Inc()
}

// RecordSearch records a search query and its result count
func (m *Metrics) RecordSearch(results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.Inc()
	m.SearchResultsTotal.Add(float64(results))
}

// RecordResolution records one alignment resolution
func (m *Metrics) RecordResolution(pane string, matches int) {
	if m == nil {
		return
	}
	outcome := "matched"
	if matches == 0 {
		outcome = "empty"
	}
	m.ResolutionsTotal.WithLabelValues(pane, outcome).Inc()
}
