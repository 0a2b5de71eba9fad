package corpus

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCorpus indicates a corpus id missing from the configuration
	ErrUnknownCorpus = errors.New("corpus: unknown corpus")

	// ErrIndexOutOfRange indicates a line index outside the snapshot
	ErrIndexOutOfRange = errors.New("corpus: line index out of range")

	// ErrNoShards indicates a corpus configured without shards
	ErrNoShards = errors.New("corpus: no shards configured")
)

// CorpusLoadError reports a failed corpus load. Loading is all-or-nothing,
// so no lines are available when this is returned.
type CorpusLoadError struct {
	CorpusID string
	Shard    string // empty when the failure is not tied to one shard
	Err      error
}

func (e *CorpusLoadError) Error() string {
	if e.Shard != "" {
		return fmt.Sprintf("corpus %s: loading shard %s: %v", e.CorpusID, e.Shard, e.Err)
	}
	return fmt.Sprintf("corpus %s: %v", e.CorpusID, e.Err)
}

func (e *CorpusLoadError) Unwrap() error {
	return e.Err
}
