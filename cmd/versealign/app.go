package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nainya/versealign/internal/config"
	"github.com/nainya/versealign/internal/logger"
	"github.com/nainya/versealign/internal/metrics"
	"github.com/nainya/versealign/pkg/corpus"
	"github.com/nainya/versealign/pkg/loader"
	"github.com/nainya/versealign/pkg/manifest"
	"github.com/nainya/versealign/pkg/retrieval"
)

// app holds what every command needs.
type app struct {
	cfg *config.Config
	log *logger.Logger
}

func (a *app) loader() corpus.Loader {
	if a.cfg.BaseURL != "" {
		return loader.NewHTTP(a.cfg.BaseURL, a.cfg.ShardTimeout.Std(), a.cfg.RequestsPerSecond)
	}
	return loader.NewDir(a.cfg.DataRoot)
}

// service wires loader, index and retrieval. reg may be nil for one-shot
// commands that export no metrics.
func (a *app) service(reg prometheus.Registerer) (*retrieval.Service, *metrics.Metrics) {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.NewMetrics(reg)
	}

	idx := corpus.NewIndex(a.cfg.CorpusConfig(), a.loader(), corpus.Options{
		ShardTimeout: a.cfg.ShardTimeout.Std(),
		CacheTTL:     a.cfg.CacheTTL.Std(),
		Logger:       a.log,
		Metrics:      m,
	})
	svc := retrieval.NewService(idx, retrieval.Options{
		DefaultLimit: a.cfg.SearchLimit,
		Logger:       a.log,
		Metrics:      m,
	})
	return svc, m
}

// manifest loads the configured manifest through the shard loader. An
// unset manifest yields nil.
func (a *app) manifest(ctx context.Context) (*manifest.Snapshot, error) {
	if a.cfg.Manifest == "" {
		return nil, nil
	}
	data, err := a.loader().Fetch(ctx, a.cfg.Manifest)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", a.cfg.Manifest, err)
	}
	res, err := manifest.Parse(bytes.NewReader(data), a.cfg.Manifest, a.log)
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

func (a *app) corpusOrDefault(id string) string {
	if id != "" {
		return id
	}
	return a.cfg.DefaultCorpus
}
