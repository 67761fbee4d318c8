package denoloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxModuleSize bounds a single remote module download
const maxModuleSize = 32 * 1024 * 1024

// Module is a downloaded remote module
type Module struct {
	URL         string // URL after redirects
	ContentType string
	Contents    []byte
}

// Fetcher downloads remote modules and keeps recently used ones in memory.
// It is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	cache   *lru.Cache[string, *Module]
	limiter *rate.Limiter // nil means unlimited
}

// NewFetcher creates a fetcher holding at most cacheSize modules
func NewFetcher(timeout time.Duration, cacheSize int) (*Fetcher, error) {
	cache, err := lru.New[string, *Module](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create module cache: %w", err)
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  cache,
	}, nil
}

// WithRateLimit caps network requests at perSecond with the given burst.
// Cache hits are never limited. A non-positive perSecond removes the limit.
func (f *Fetcher) WithRateLimit(perSecond float64, burst int) *Fetcher {
	if perSecond <= 0 {
		f.limiter = nil
		return f
	}
	if burst < 1 {
		burst = 1
	}
	f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return f
}

// Fetch returns the module at rawURL, from the cache when possible
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Module, error) {
	if m, ok := f.cache.Get(rawURL); ok {
		return m, nil
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	// deno.land and esm.sh serve TypeScript source to this accept header
	req.Header.Set("Accept", "application/typescript, application/javascript;q=0.9, */*;q=0.1")
	req.Header.Set("User-Agent", "denohooks")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxModuleSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if len(body) > maxModuleSize {
		return nil, fmt.Errorf("module %s exceeds %d bytes", rawURL, maxModuleSize)
	}

	m := &Module{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Contents:    body,
	}
	f.cache.Add(rawURL, m)
	if m.URL != rawURL {
		f.cache.Add(m.URL, m)
	}
	return m, nil
}

// Peek returns a cached module without fetching
func (f *Fetcher) Peek(rawURL string) (*Module, bool) {
	return f.cache.Peek(rawURL)
}
