// ABOUTME: Shard loaders for local directories and static HTTP hosts
// ABOUTME: Both transparently decompress .xz shards

package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"golang.org/x/time/rate"
)

// ErrOutsideRoot is returned for locators that escape the loader root.
var ErrOutsideRoot = errors.New("loader: locator escapes root")

// maxShardBytes bounds a single shard read.
const maxShardBytes = 512 << 20

// Dir reads shards from a directory. Locators are slash-separated paths
// relative to Root.
type Dir struct {
	Root string
}

// NewDir creates a directory loader.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Fetch reads one shard file.
func (d *Dir) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel := filepath.FromSlash(strings.TrimPrefix(locator, "/"))
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, locator)
	}

	f, err := os.Open(filepath.Join(d.Root, rel))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readShard(locator, f)
}

// HTTP fetches shards from a static file host.
type HTTP struct {
	BaseURL string
	Client  *http.Client
	Limiter *rate.Limiter // nil means unlimited
}

// NewHTTP creates an HTTP loader. requestsPerSecond <= 0 disables rate
// limiting.
func NewHTTP(baseURL string, timeout time.Duration, requestsPerSecond float64) *HTTP {
	h := &HTTP{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
	if requestsPerSecond > 0 {
		h.Limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 3)
	}
	return h
}

// Fetch downloads one shard.
func (h *HTTP) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if h.Limiter != nil {
		if err := h.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target, err := url.JoinPath(h.BaseURL, locator)
	if err != nil {
		return nil, fmt.Errorf("invalid shard locator %q: %w", locator, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", target, resp.StatusCode)
	}

	return readShard(locator, resp.Body)
}

func readShard(locator string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxShardBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxShardBytes {
		return nil, fmt.Errorf("shard %s exceeds %d bytes", locator, maxShardBytes)
	}

	if !strings.HasSuffix(locator, ".xz") {
		return data, nil
	}

	xr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("shard %s: %w", locator, err)
	}
	out, err := io.ReadAll(io.LimitReader(xr, maxShardBytes+1))
	if err != nil {
		return nil, fmt.Errorf("shard %s: %w", locator, err)
	}
	if len(out) > maxShardBytes {
		return nil, fmt.Errorf("shard %s exceeds %d bytes decompressed", locator, maxShardBytes)
	}
	return out, nil
}
