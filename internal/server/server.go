// Package server implements the gRPC Alignment service
package server

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nainya/versealign/internal/logger"
	"github.com/nainya/versealign/internal/metrics"
	"github.com/nainya/versealign/pkg/corpus"
	"github.com/nainya/versealign/pkg/manifest"
	"github.com/nainya/versealign/pkg/retrieval"
	"github.com/nainya/versealign/pkg/verse"
	"github.com/nainya/versealign/pkg/vref"
)

// SessionTTL is how long an idle search session is remembered.
const SessionTTL = 15 * time.Minute

// Server implements AlignmentServer over a retrieval service
type Server struct {
	UnimplementedAlignmentServer

	svc      *retrieval.Service
	media    *manifest.Snapshot
	sessions *gocache.Cache
	log      *logger.Logger
	metrics  *metrics.Metrics

	startTime time.Time
}

// Options configures a Server.
type Options struct {
	Media   *manifest.Snapshot
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// NewServer creates a gRPC server instance. A nil manifest serves no media.
func NewServer(svc *retrieval.Service, opts Options) *Server {
	sessions := gocache.New(SessionTTL, 2*SessionTTL)
	sessions.OnEvicted(func(_ string, v interface{}) {
		v.(*retrieval.Session).Close()
	})

	return &Server{
		svc:       svc,
		media:     opts.Media,
		sessions:  sessions,
		log:       logger.OrGlobal(opts.Logger),
		metrics:   opts.Metrics,
		startTime: time.Now(),
	}
}

// Uptime returns time since the server was created
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// ========== Corpus Operations ==========

func (s *Server) ListCorpora(ctx context.Context, req *ListCorporaRequest) (*ListCorporaResponse, error) {
	idx := s.svc.Index()
	cfg := idx.Config()

	resp := &ListCorporaResponse{Selected: idx.Selected()}
	for _, id := range cfg.IDs() {
		c := cfg[id]
		resp.Corpora = append(resp.Corpora, CorpusInfo{
			ID:     id,
			Label:  c.Label,
			Shards: len(c.Shards),
			Loaded: idx.Cached(id),
		})
	}
	return resp, nil
}

// ========== Retrieval Operations ==========

func (s *Server) session(id string) *retrieval.Session {
	if v, ok := s.sessions.Get(id); ok {
		s.sessions.SetDefault(id, v)
		return v.(*retrieval.Session)
	}
	sess := retrieval.NewSession(s.svc)
	if err := s.sessions.Add(id, sess, gocache.DefaultExpiration); err != nil {
		// Lost a race with a concurrent request for the same session
		if v, ok := s.sessions.Get(id); ok {
			return v.(*retrieval.Session)
		}
	}
	return sess
}

func (s *Server) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if req.Corpus == "" {
		return nil, status.Error(codes.InvalidArgument, "corpus is required")
	}
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	if req.SessionID != "" {
		res, err := s.session(req.SessionID).Search(ctx, req.Corpus, req.Query, req.Limit)
		if err != nil {
			return nil, toStatus(err)
		}
		resp := &SearchResponse{Indices: res.Indices, Skipped: skippedLines(res.Skipped)}
		if req.Fetch {
			resp.Records = res.Records
		}
		return resp, nil
	}

	indices, err := s.svc.FindIndicesBySearchString(ctx, req.Corpus, req.Query, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &SearchResponse{Indices: indices}
	if !req.Fetch {
		return resp, nil
	}

	res, err := s.svc.FetchByIndices(ctx, req.Corpus, indices)
	if err != nil {
		return nil, toStatus(err)
	}
	resp.Records = res.Records
	resp.Skipped = skippedLines(res.Skipped)
	return resp, nil
}

func (s *Server) FetchVerses(ctx context.Context, req *FetchVersesRequest) (*FetchVersesResponse, error) {
	if req.Corpus == "" {
		return nil, status.Error(codes.InvalidArgument, "corpus is required")
	}

	res, err := s.svc.FetchByIndices(ctx, req.Corpus, req.Indices)
	if err != nil {
		return nil, toStatus(err)
	}
	return &FetchVersesResponse{
		Indices: res.Indices,
		Records: res.Records,
		Skipped: skippedLines(res.Skipped),
	}, nil
}

func (s *Server) FetchWindow(ctx context.Context, req *FetchWindowRequest) (*WindowResponse, error) {
	if req.Corpus == "" {
		return nil, status.Error(codes.InvalidArgument, "corpus is required")
	}
	if req.Radius < 0 {
		return nil, status.Error(codes.InvalidArgument, "radius must not be negative")
	}

	res, err := s.svc.FetchSiblingWindow(ctx, req.Corpus, req.Center, req.Radius)
	if err != nil {
		return nil, toStatus(err)
	}
	return &WindowResponse{
		Center:  req.Center,
		Indices: res.Indices,
		Records: res.Records,
		Skipped: skippedLines(res.Skipped),
	}, nil
}

func (s *Server) LookupReference(ctx context.Context, req *LookupReferenceRequest) (*WindowResponse, error) {
	if req.Corpus == "" || req.Reference == "" {
		return nil, status.Error(codes.InvalidArgument, "corpus and reference are required")
	}
	if req.Radius < 0 {
		return nil, status.Error(codes.InvalidArgument, "radius must not be negative")
	}

	w, err := s.svc.FetchReferenceWindow(ctx, req.Corpus, req.Reference, req.Radius)
	if err != nil {
		return nil, toStatus(err)
	}
	return &WindowResponse{
		Center:  w.Center,
		Indices: w.Indices,
		Records: w.Records,
		Skipped: skippedLines(w.Skipped),
	}, nil
}

// ========== Resolution Operations ==========

func (s *Server) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	if req.Corpus == "" {
		return nil, status.Error(codes.InvalidArgument, "corpus is required")
	}

	panes := make([]verse.PaneKey, 0, len(req.Panes))
	for _, p := range req.Panes {
		key := verse.PaneKey(p)
		if !key.Valid() {
			return nil, status.Errorf(codes.InvalidArgument, "unknown pane %q", p)
		}
		panes = append(panes, key)
	}

	res, err := s.svc.Resolve(ctx, req.Corpus, req.Line, req.Unit, panes...)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &ResolveResponse{
		Vref:       res.Vref,
		Tokens:     make(map[string][]string, len(res.Tokens)),
		Highlights: res.Highlights,
	}
	for pane, ids := range res.Tokens {
		resp.Tokens[string(pane)] = ids
	}
	return resp, nil
}

// LookupMedia finds manifest entries by id, by explicit tags, or by the
// text of the source tokens an alignment unit selects.
func (s *Server) LookupMedia(ctx context.Context, req *LookupMediaRequest) (*LookupMediaResponse, error) {
	if s.media == nil {
		return &LookupMediaResponse{}, nil
	}

	if req.ID != "" {
		e, ok := s.media.ByID(req.ID)
		if !ok {
			return nil, status.Errorf(codes.NotFound, "no media entry %q", req.ID)
		}
		return &LookupMediaResponse{Entries: []manifest.Entry{e}}, nil
	}

	terms := append([]string(nil), req.Tags...)
	if req.Corpus != "" {
		res, err := s.svc.Resolve(ctx, req.Corpus, req.Line, req.Unit, verse.PaneSource)
		if err != nil {
			return nil, toStatus(err)
		}
		snap, err := s.svc.Index().Snapshot(ctx, req.Corpus)
		if err != nil {
			return nil, toStatus(err)
		}
		rec, err := snap.Record(req.Line)
		if err != nil {
			return nil, toStatus(err)
		}
		matched := res.Matches[verse.PaneSource]
		for _, tok := range rec.Source.Tokens {
			if matched.Has(tok.ID) {
				terms = append(terms, tok.Text)
			}
		}
	}
	if len(terms) == 0 {
		return nil, status.Error(codes.InvalidArgument, "one of id, tags or corpus is required")
	}

	return &LookupMediaResponse{Entries: s.media.ForTokens(terms...)}, nil
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	var lerr *corpus.CorpusLoadError
	switch {
	case errors.Is(err, corpus.ErrUnknownCorpus):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, retrieval.ErrSuperseded):
		return status.Error(codes.Aborted, err.Error())
	case errors.As(err, &lerr):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, vref.ErrInvalidReference):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, corpus.ErrIndexOutOfRange),
		errors.Is(err, retrieval.ErrUnknownUnit),
		errors.Is(err, retrieval.ErrReferenceNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, verse.ErrMalformedRecord):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
