// ABOUTME: Multimedia manifest parsing and lookup
// ABOUTME: Tab-separated rows normalized into an immutable snapshot

package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nainya/versealign/internal/logger"
)

// TagSeparator delimits values in the Tags column.
const TagSeparator = "; "

// Column names recognized in the header row.
const (
	ColID           = "Id"
	ColFileName     = "FileName"
	ColCopyright    = "Copyright"
	ColTitle        = "Title"
	ColSubject      = "Subject"
	ColDescription  = "Description"
	ColTags         = "Tags"
	ColThematicLink = "ThematicLink"
	ColAuthors      = "Authors"
	ColURL          = "URL"
	ColUpdatedURL   = "updatedURL"
)

// ErrEmptyManifest is returned when the input has no header row.
var ErrEmptyManifest = errors.New("manifest: no header row")

// ManifestParseError reports a row with fewer fields than the header.
// The row is kept with the missing fields left empty.
type ManifestParseError struct {
	Row     int
	Missing []string
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("manifest row %d: missing columns %s", e.Row, strings.Join(e.Missing, ", "))
}

// Entry is one multimedia item.
type Entry struct {
	ID           string   `json:"id"`
	FileName     string   `json:"fileName"`
	Copyright    string   `json:"copyright,omitempty"`
	Title        string   `json:"title"`
	Subject      string   `json:"subject,omitempty"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags,omitempty"`
	ThematicLink string   `json:"thematicLink,omitempty"`
	Authors      string   `json:"authors,omitempty"`
	URL          string   `json:"url,omitempty"`
	ResolvedURL  string   `json:"resolvedUrl,omitempty"`
}

// HasTag reports whether the entry carries tag, compared after NFC.
func (e *Entry) HasTag(tag string) bool {
	tag = norm.NFC.String(tag)
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Result is the outcome of Parse: the snapshot plus the recovered row
// problems.
type Result struct {
	Snapshot *Snapshot
	Warnings []*ManifestParseError
}

// Parse reads a tab-separated manifest. Short rows are logged and kept.
func Parse(r io.Reader, source string, log *logger.Logger) (*Result, error) {
	mlog := logger.OrGlobal(log).ManifestLogger(source)

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyManifest
	}
	if err != nil {
		return nil, fmt.Errorf("manifest header: %w", err)
	}
	for i := range header {
		header[i] = cleanField(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	res := &Result{}
	var entries []Entry
	row := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("manifest row %d: %w", row, err)
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}

		values := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				values[name] = cleanField(fields[i])
			}
		}
		if len(fields) < len(header) {
			perr := &ManifestParseError{Row: row, Missing: append([]string(nil), header[len(fields):]...)}
			mlog.Warn("Manifest row missing columns").Int("row", row).Strs("missing", perr.Missing).Send()
			res.Warnings = append(res.Warnings, perr)
		}

		entries = append(entries, newEntry(values))
	}

	res.Snapshot = NewSnapshot(entries)
	mlog.Info("Manifest loaded").Int("entries", len(entries)).Int("warnings", len(res.Warnings)).Send()
	return res, nil
}

func cleanField(s string) string {
	return norm.NFC.String(strings.TrimSuffix(s, "\r"))
}

func newEntry(v map[string]string) Entry {
	e := Entry{
		ID:           v[ColID],
		FileName:     v[ColFileName],
		Copyright:    v[ColCopyright],
		Title:        v[ColTitle],
		Subject:      v[ColSubject],
		Description:  v[ColDescription],
		Tags:         splitTags(v[ColTags]),
		ThematicLink: v[ColThematicLink],
		Authors:      v[ColAuthors],
		URL:          v[ColURL],
	}
	e.ResolvedURL = v[ColUpdatedURL]
	if e.ResolvedURL == "" {
		e.ResolvedURL = ResolveCommonsURL(e.URL)
	}
	return e
}

// splitTags splits the Tags column into a sorted set.
func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	seen := make(map[string]bool)
	var tags []string
	for _, t := range strings.Split(s, TagSeparator) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
