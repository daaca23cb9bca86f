package certificate

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Asset slot names.
const (
	AssetLogo      = "logo"
	AssetSignature = "signature"
)

const builtinPrefix = "builtin:"

// maxAssetBytes caps a single downloaded or read asset.
const maxAssetBytes = 10 << 20

// AssetLoader fetches and decodes certificate images from files, http(s) URLs
// or the built-in defaults.
type AssetLoader struct {
	client  *http.Client
	timeout time.Duration
}

// NewAssetLoader builds a loader; each load is bounded by timeout.
func NewAssetLoader(client *http.Client, timeout time.Duration) *AssetLoader {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AssetLoader{client: client, timeout: timeout}
}

// LoadAll loads every slot concurrently and returns only once all of them
// decoded. The first failure cancels the remaining loads.
func (l *AssetLoader) LoadAll(ctx context.Context, sources map[string]string) (map[string]image.Image, error) {
	var mu sync.Mutex
	out := make(map[string]image.Image, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for slot, source := range sources {
		slot, source := slot, source
		g.Go(func() error {
			img, err := l.Load(gctx, slot, source)
			if err != nil {
				return fmt.Errorf("load %s asset: %w", slot, err)
			}
			mu.Lock()
			out[slot] = img
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Load fetches a single asset. An empty source selects the built-in image for slot.
func (l *AssetLoader) Load(ctx context.Context, slot, source string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	switch {
	case source == "":
		return builtinAsset(slot)
	case strings.HasPrefix(source, builtinPrefix):
		return builtinAsset(strings.TrimPrefix(source, builtinPrefix))
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		raw, err := l.fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		return decode(raw)
	default:
		raw, err := readFile(ctx, strings.TrimPrefix(source, "file://"))
		if err != nil {
			return nil, err
		}
		return decode(raw)
	}
}

func (l *AssetLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		f, err := os.Open(path)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer f.Close() //nolint:errcheck
		data, err := readLimited(f)
		done <- result{data: data, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxAssetBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAssetBytes {
		return nil, fmt.Errorf("asset larger than %d bytes", maxAssetBytes)
	}
	return data, nil
}

func decode(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
