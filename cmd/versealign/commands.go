package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nainya/versealign/internal/logger"
	"github.com/nainya/versealign/internal/server"
	"github.com/nainya/versealign/pkg/align"
	"github.com/nainya/versealign/pkg/corpus"
	"github.com/nainya/versealign/pkg/verse"
)

// preload selects and loads corpusID in the background. ready reports
// true once the load has completed and stays true after later evictions;
// done is closed when the attempt finishes either way.
func preload(ctx context.Context, idx *corpus.Index, corpusID string, log *logger.Logger) (ready func() bool, done <-chan struct{}) {
	var loaded atomic.Bool
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		if _, err := idx.Select(corpusID); err != nil {
			log.Error("Preload failed").Err(err).Send()
			return
		}
		if _, err := idx.Snapshot(ctx, corpusID); err != nil {
			log.Error("Preload failed").Str("corpus", corpusID).Err(err).Send()
			return
		}
		loaded.Store(true)
	}()
	return loaded.Load, finished
}

// ServeCmd runs the gRPC service and the observability endpoints
type ServeCmd struct {
	Port        int  `name:"port" short:"p" help:"gRPC port (overrides config)"`
	MetricsPort int  `name:"metrics-port" help:"Observability HTTP port (overrides config)"`
	Preload     bool `name:"preload" help:"Load the default corpus before accepting requests"`
}

func (c *ServeCmd) Run(a *app) error {
	port := a.cfg.GrpcPort
	if c.Port != 0 {
		port = c.Port
	}
	metricsPort := a.cfg.MetricsPort
	if c.MetricsPort != 0 {
		metricsPort = c.MetricsPort
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc, m := a.service(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	media, err := a.manifest(ctx)
	if err != nil {
		return err
	}

	a.log.LogServerStart(port, len(a.cfg.Corpora))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := server.NewServer(svc, server.Options{Media: media, Logger: a.log, Metrics: m})
	grpcServer, _ := server.NewGRPCServer(srv)

	var ready func() bool
	if c.Preload && a.cfg.DefaultCorpus != "" {
		ready, _ = preload(ctx, svc.Index(), a.cfg.DefaultCorpus, a.log)
	}

	obs := server.NewObservabilityServer(metricsPort, reg, ready, a.log)
	go func() {
		if err := obs.Start(); err != nil {
			a.log.Error("Observability server stopped").Err(err).Send()
		}
	}()

	uptimeStop := make(chan struct{})
	go m.RunUptime(uptimeStop)

	go func() {
		<-ctx.Done()
		a.log.LogServerShutdown()
		close(uptimeStop)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
	}()

	a.log.LogServerReady(port)
	return grpcServer.Serve(lis)
}

// SearchCmd prints verses containing a query string
type SearchCmd struct {
	Corpus string   `name:"corpus" short:"C" help:"Corpus id (default from config)"`
	Limit  int      `name:"limit" short:"n" help:"Maximum results"`
	JSON   bool     `name:"json" help:"Print records as JSON lines"`
	Query  []string `arg:"" required:"" help:"Search text"`
}

func (c *SearchCmd) Run(a *app) error {
	svc, _ := a.service(nil)
	ctx := context.Background()
	id := a.corpusOrDefault(c.Corpus)

	indices, err := svc.FindIndicesBySearchString(ctx, id, strings.Join(c.Query, " "), c.Limit)
	if err != nil {
		return err
	}
	res, err := svc.FetchByIndices(ctx, id, indices)
	if err != nil {
		return err
	}

	for i, rec := range res.Records {
		if err := printRecord(res.Indices[i], rec, c.JSON); err != nil {
			return err
		}
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(os.Stderr, "%d line(s) skipped\n", len(res.Skipped))
	}
	return nil
}

// ShowCmd prints a verse by reference with its neighbors
type ShowCmd struct {
	Corpus    string   `name:"corpus" short:"C" help:"Corpus id (default from config)"`
	Radius    int      `name:"radius" short:"r" default:"0" help:"Neighbor lines on each side"`
	JSON      bool     `name:"json" help:"Print records as JSON lines"`
	Reference []string `arg:"" required:"" help:"Verse reference, e.g. GEN 1:1"`
}

func (c *ShowCmd) Run(a *app) error {
	svc, _ := a.service(nil)
	w, err := svc.FetchReferenceWindow(context.Background(), a.corpusOrDefault(c.Corpus), strings.Join(c.Reference, " "), c.Radius)
	if err != nil {
		return err
	}
	for i, rec := range w.Records {
		if err := printRecord(w.Indices[i], rec, c.JSON); err != nil {
			return err
		}
	}
	return nil
}

// ResolveCmd resolves one alignment unit of a verse
type ResolveCmd struct {
	Corpus    string   `name:"corpus" short:"C" help:"Corpus id (default from config)"`
	Unit      int      `name:"unit" short:"u" default:"0" help:"Alignment unit index"`
	Panes     []string `name:"pane" help:"Panes to resolve (source, reference, target)"`
	Reference []string `arg:"" required:"" help:"Verse reference, e.g. GEN 1:1"`
}

func (c *ResolveCmd) Run(a *app) error {
	svc, _ := a.service(nil)
	ctx := context.Background()
	id := a.corpusOrDefault(c.Corpus)

	w, err := svc.FetchReferenceWindow(ctx, id, strings.Join(c.Reference, " "), 0)
	if err != nil {
		return err
	}

	panes := make([]verse.PaneKey, 0, len(c.Panes))
	for _, p := range c.Panes {
		key := verse.PaneKey(p)
		if !key.Valid() {
			return fmt.Errorf("unknown pane %q", p)
		}
		panes = append(panes, key)
	}

	res, err := svc.Resolve(ctx, id, w.Center, c.Unit, panes...)
	if err != nil {
		return err
	}

	fmt.Printf("%s unit %d\n", res.Vref, res.UnitIndex)
	for _, key := range verse.PaneKeys {
		ids, ok := res.Tokens[key]
		if !ok {
			continue
		}
		fmt.Printf("  %-9s %s\n", key, strings.Join(ids, " "))
	}
	fmt.Printf("  highlight %s\n", strings.Join(res.Highlights, " | "))
	return nil
}

// MediaCmd looks up manifest entries by id or tag
type MediaCmd struct {
	ID   string   `name:"id" help:"Manifest entry id"`
	Tags []string `arg:"" optional:"" help:"Tags to match, e.g. a lemma"`
}

func (c *MediaCmd) Run(a *app) error {
	snap, err := a.manifest(context.Background())
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no manifest configured")
	}

	enc := json.NewEncoder(os.Stdout)
	if c.ID != "" {
		e, ok := snap.ByID(c.ID)
		if !ok {
			return fmt.Errorf("no media entry %q", c.ID)
		}
		return enc.Encode(e)
	}
	for _, e := range snap.ForTokens(c.Tags...) {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func printRecord(line int, rec *verse.Record, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(rec)
	}

	fmt.Printf("[%d] %s\n", line, rec.Vref)
	for _, key := range verse.PaneKeys {
		if p := rec.Pane(key); p != nil && p.Content != "" {
			fmt.Printf("  %-9s %s\n", key, p.Content)
		}
	}
	for i := range rec.Units {
		if terms := align.ResolveHighlightStrings(&rec.Units[i]); len(terms) > 0 {
			fmt.Printf("  unit %-4d %s\n", i, strings.Join(terms, " | "))
		}
	}
	return nil
}
