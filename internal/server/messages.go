package server

import (
	"github.com/nainya/versealign/pkg/manifest"
	"github.com/nainya/versealign/pkg/retrieval"
	"github.com/nainya/versealign/pkg/verse"
)

// ListCorporaRequest has no fields.
type ListCorporaRequest struct{}

// CorpusInfo describes one configured corpus.
type CorpusInfo struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Shards int    `json:"shards"`
	Loaded bool   `json:"loaded"`
}

type ListCorporaResponse struct {
	Corpora  []CorpusInfo `json:"corpora"`
	Selected string       `json:"selected,omitempty"`
}

// SearchRequest runs a substring search. With Fetch set the matching
// records are returned too. Requests sharing a SessionID supersede each
// other: a response overtaken by a newer request fails with Aborted.
type SearchRequest struct {
	Corpus    string `json:"corpus"`
	Query     string `json:"query"`
	Limit     int    `json:"limit,omitempty"`
	Fetch     bool   `json:"fetch,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type SearchResponse struct {
	Indices []int           `json:"indices"`
	Records []*verse.Record `json:"records,omitempty"`
	Skipped []SkippedLine   `json:"skipped,omitempty"`
}

// SkippedLine reports a line that could not be returned.
type SkippedLine struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

type FetchVersesRequest struct {
	Corpus  string `json:"corpus"`
	Indices []int  `json:"indices"`
}

type FetchVersesResponse struct {
	Indices []int           `json:"indices"`
	Records []*verse.Record `json:"records"`
	Skipped []SkippedLine   `json:"skipped,omitempty"`
}

type FetchWindowRequest struct {
	Corpus string `json:"corpus"`
	Center int    `json:"center"`
	Radius int    `json:"radius"`
}

type LookupReferenceRequest struct {
	Corpus    string `json:"corpus"`
	Reference string `json:"reference"`
	Radius    int    `json:"radius"`
}

// WindowResponse is a run of neighboring lines around Center.
type WindowResponse struct {
	Center  int             `json:"center"`
	Indices []int           `json:"indices"`
	Records []*verse.Record `json:"records"`
	Skipped []SkippedLine   `json:"skipped,omitempty"`
}

type ResolveRequest struct {
	Corpus string   `json:"corpus"`
	Line   int      `json:"line"`
	Unit   int      `json:"unit"`
	Panes  []string `json:"panes,omitempty"`
}

type ResolveResponse struct {
	Vref       string              `json:"vref"`
	Tokens     map[string][]string `json:"tokens"`
	Highlights []string            `json:"highlights"`
}

// LookupMediaRequest selects manifest entries by id, by tag, or by the
// source tokens an alignment unit resolves to.
type LookupMediaRequest struct {
	ID     string   `json:"id,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Corpus string   `json:"corpus,omitempty"`
	Line   int      `json:"line,omitempty"`
	Unit   int      `json:"unit,omitempty"`
}

type LookupMediaResponse struct {
	Entries []manifest.Entry `json:"entries"`
}

func skippedLines(in []retrieval.Skipped) []SkippedLine {
	if len(in) == 0 {
		return nil
	}
	out := make([]SkippedLine, len(in))
	for i, s := range in {
		out[i] = SkippedLine{Line: s.LineIndex, Reason: s.Reason}
		if s.Err != nil {
			out[i].Error = s.Err.Error()
		}
	}
	return out
}
