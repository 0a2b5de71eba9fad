package retrieval

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSuperseded is returned for a response whose request was replaced by
// a newer one before it completed.
var ErrSuperseded = errors.New("retrieval: request superseded")

// Ticket tags one request issued through a Session.
type Ticket struct {
	ID         string
	Generation uint64
	CorpusID   string
	Query      string
}

// Session tracks the latest request of one interactive client, so that a
// slow response to an older search or corpus selection is discarded
// instead of overwriting newer state.
type Session struct {
	ID  string
	svc *Service

	mu       sync.Mutex
	gen      uint64
	corpusID string
	held     string // corpus this session retains in the index
	cancel   context.CancelFunc
}

// NewSession starts a session bound to svc.
func NewSession(svc *Service) *Session {
	return &Session{ID: uuid.NewString(), svc: svc}
}

// Begin registers a new request and cancels the previous in-flight one.
// Switching corpus releases this session's hold on the previous corpus,
// which is evicted once no other session holds it.
func (s *Session) Begin(ctx context.Context, corpusID, query string) (context.Context, Ticket) {
	reqCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.corpusID = corpusID
	s.cancel = cancel
	t := Ticket{ID: uuid.NewString(), Generation: s.gen, CorpusID: corpusID, Query: query}
	if corpusID != s.held {
		s.switchHold(corpusID)
	}
	s.mu.Unlock()

	return reqCtx, t
}

// switchHold moves the session's index hold to corpusID. Caller holds s.mu.
func (s *Session) switchHold(corpusID string) {
	if err := s.svc.index.Retain(corpusID); err != nil {
		s.svc.log.Debug("Corpus selection rejected").Str("corpus", corpusID).Err(err).Send()
		return
	}
	if s.held != "" {
		s.svc.index.Release(s.held)
	}
	s.held = corpusID
}

// Close cancels any in-flight request and releases the session's corpus.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.held != "" {
		s.svc.index.Release(s.held)
		s.held = ""
	}
}

// Held returns the corpus the session currently retains.
func (s *Session) Held() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Current reports whether t is still the latest request.
func (s *Session) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Generation == s.gen && t.CorpusID == s.corpusID
}

// End releases the request's context if t is still current.
func (s *Session) End(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Generation == s.gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Search runs the search-then-fetch flow of an interactive search box.
// It returns ErrSuperseded if a newer request began meanwhile.
func (s *Session) Search(ctx context.Context, corpusID, query string, limit int) (*FetchResult, error) {
	reqCtx, t := s.Begin(ctx, corpusID, query)
	defer s.End(t)

	indices, err := s.svc.FindIndicesBySearchString(reqCtx, corpusID, query, limit)
	if err != nil {
		if !s.Current(t) {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	res, err := s.svc.FetchByIndices(reqCtx, corpusID, indices)
	if !s.Current(t) {
		return nil, ErrSuperseded
	}
	return res, err
}
