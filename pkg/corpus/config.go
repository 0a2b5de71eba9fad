// ABOUTME: Corpus configuration as data
// ABOUTME: Maps corpus ids to ordered shard locators and slot labels

package corpus

import (
	"fmt"
	"sort"

	"github.com/nainya/versealign/pkg/align"
)

// Corpus describes one selectable corpus.
type Corpus struct {
	ID     string
	Label  string
	Shards []string      // ordered locators, resolved by the Loader
	Slots  align.SlotMap // pane key to phrase slot labels
}

// Config is the set of known corpora keyed by id.
type Config map[string]Corpus

// Lookup returns the corpus with the given id.
func (c Config) Lookup(id string) (Corpus, error) {
	corp, ok := c[id]
	if !ok {
		return Corpus{}, fmt.Errorf("%w: %q", ErrUnknownCorpus, id)
	}
	return corp, nil
}

// IDs returns corpus ids in sorted order.
func (c Config) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks each corpus has shards and a usable slot map.
func (c Config) Validate() error {
	for _, id := range c.IDs() {
		corp := c[id]
		if len(corp.Shards) == 0 {
			return fmt.Errorf("corpus %s: %w", id, ErrNoShards)
		}
		if err := corp.Slots.Validate(); err != nil {
			return fmt.Errorf("corpus %s: %w", id, err)
		}
	}
	return nil
}

// Resolver returns an alignment resolver using the corpus slot labels,
// filled in from the defaults where the corpus leaves a pane unset.
func (c Corpus) Resolver() *align.Resolver {
	return align.NewResolver(align.DefaultSlotMap().Merge(c.Slots))
}
