package corpus

import "context"

// Loader fetches the raw bytes of one shard. Implementations live outside
// the core (see pkg/loader); the index never performs I/O itself.
type Loader interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, locator string) ([]byte, error)

// Fetch calls f.
func (f LoaderFunc) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

// MapLoader serves shards from memory, keyed by locator.
type MapLoader map[string]string

// Fetch returns the stored shard or an error for unknown locators.
func (m MapLoader) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := m[locator]
	if !ok {
		return nil, &shardNotFoundError{locator: locator}
	}
	return []byte(text), nil
}

type shardNotFoundError struct {
	locator string
}

func (e *shardNotFoundError) Error() string {
	return "shard not found: " + e.locator
}
