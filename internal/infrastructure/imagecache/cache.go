// Package imagecache keeps local copies of product images so the catalog
// can be browsed offline. Files are named by a UUIDv5 of their URL and an
// index in the key-value store maps each URL to its file.
package imagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrDownloadFailed means the image could not be fetched
var ErrDownloadFailed = errors.New("imagecache: download failed")

// Entry is one index record
type Entry struct {
	LocalPath string    `json:"localPath"`
	CachedAt  time.Time `json:"cachedAt"`
	Size      int64     `json:"size"`
}

// Config holds the cache settings
type Config struct {
	Dir           string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxBytes      int64
}

// ConfigFrom builds a cache Config from the application config
func ConfigFrom(ic config.ImagesConfig) Config {
	return Config{
		Dir:           ic.Dir,
		RatePerSecond: ic.RatePerSecond,
		Burst:         ic.Burst,
		Timeout:       ic.Timeout,
		MaxBytes:      ic.MaxBytes,
	}
}

// PrefetchResult counts the outcome of PrefetchAll
type PrefetchResult struct {
	Success int
	Failed  int
}

// ProgressFunc is called after each prefetched URL
type ProgressFunc func(done, total int)

// Stats describes the cache contents
type Stats struct {
	Files int
	Bytes int64
}

// Cache is a file-system image cache
type Cache struct {
	cfg        Config
	kv         shared.KeyValueStore
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time

	// guards the index read-modify-write
	mu sync.Mutex
}

// Option configures a Cache
type Option func(*Cache)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Cache) {
		c.httpClient = hc
	}
}

// WithClock replaces the clock used for CachedAt
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates the cache directory if needed and returns a Cache
func New(cfg Config, kv shared.KeyValueStore, logger *zap.Logger, opts ...Option) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("imagecache: directory is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagecache: failed to create directory %s: %w", cfg.Dir, err)
	}

	c := &Cache{
		cfg:        cfg,
		kv:         kv,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		logger:     logger.Named("imagecache"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EnsureCached returns the local path of the image, downloading it first
// when the index has no entry or the file has gone missing.
func (c *Cache) EnsureCached(ctx context.Context, rawURL string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}

	if entry, ok, err := c.lookup(ctx, rawURL); err != nil {
		return "", err
	} else if ok && fileExists(entry.LocalPath) {
		return entry.LocalPath, nil
	}

	entry, err := c.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if err := c.record(ctx, map[string]Entry{rawURL: entry}); err != nil {
		return "", err
	}
	return entry.LocalPath, nil
}

// Resolve returns the cached local path of the image, or the URL itself
// when it is not cached.
func (c *Cache) Resolve(ctx context.Context, rawURL string) string {
	entry, ok, err := c.lookup(ctx, rawURL)
	if err != nil {
		c.logger.Warn("Failed to read image index", zap.Error(err))
		return rawURL
	}
	if ok && fileExists(entry.LocalPath) {
		return entry.LocalPath
	}
	return rawURL
}

// PrefetchAll caches every URL, throttled by the configured rate. Failures
// are counted and logged but never stop the run. Duplicate and empty URLs
// are skipped. A cancelled context counts the remaining URLs as failed.
//
// The index is read once and written once at the end, also when the run is
// cancelled, so entries for files already downloaded are not lost.
func (c *Cache) PrefetchAll(ctx context.Context, urls []string, progress ProgressFunc) PrefetchResult {
	unique := dedupe(urls)
	total := len(unique)
	var res PrefetchResult

	index, err := c.loadIndex(ctx)
	if err != nil {
		c.logger.Warn("Image prefetch aborted", zap.Error(err))
		res.Failed = total
		return res
	}

	added := make(map[string]Entry)
	for i, u := range unique {
		if entry, ok := index[u]; ok && fileExists(entry.LocalPath) {
			res.Success++
		} else if err := c.limiter.Wait(ctx); err != nil {
			res.Failed += total - i
			c.logger.Warn("Image prefetch interrupted", zap.Error(err), zap.Int("remaining", total-i))
			break
		} else if entry, err := c.fetch(ctx, u); err != nil {
			res.Failed++
			c.logger.Warn("Failed to cache image", zap.String("url", u), zap.Error(err))
		} else {
			added[u] = entry
			res.Success++
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	if len(added) > 0 {
		if err := c.record(context.WithoutCancel(ctx), added); err != nil {
			// the files stay on disk; the next run downloads them again
			c.logger.Warn("Failed to save image index", zap.Error(err), zap.Int("entries", len(added)))
			res.Success -= len(added)
			res.Failed += len(added)
		}
	}

	c.logger.Info("Image prefetch finished",
		zap.Int("success", res.Success),
		zap.Int("failed", res.Failed),
	)
	return res
}

// Clear deletes every cached file and the index
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.cfg.Dir); err != nil {
		return fmt.Errorf("imagecache: failed to remove %s: %w", c.cfg.Dir, err)
	}
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("imagecache: failed to recreate %s: %w", c.cfg.Dir, err)
	}
	if err := c.kv.Delete(ctx, shared.KeyImageCacheIndex); err != nil {
		return fmt.Errorf("imagecache: failed to clear index: %w", err)
	}
	return nil
}

// Size reports the indexed files that still exist and their total size
func (c *Cache) Size(ctx context.Context) (Stats, error) {
	index, err := c.loadIndex(ctx)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, entry := range index {
		info, err := os.Stat(entry.LocalPath)
		if err != nil {
			continue
		}
		stats.Files++
		stats.Bytes += info.Size()
	}
	return stats, nil
}

// FileName returns the deterministic cache file name for a URL: a UUIDv5 of
// the URL plus the extension of its path.
func FileName(rawURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL)).String() + extensionOf(rawURL)
}

func (c *Cache) download(ctx context.Context, rawURL, localPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.cfg.Dir, ".download-*")
	if err != nil {
		return 0, fmt.Errorf("imagecache: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, c.cfg.MaxBytes+1))
	closeErr := tmp.Close()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("imagecache: failed to write temp file: %w", closeErr)
	}
	if n > c.cfg.MaxBytes {
		return 0, fmt.Errorf("%w: image exceeds %d bytes", ErrDownloadFailed, c.cfg.MaxBytes)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: empty body", ErrDownloadFailed)
	}

	if err := os.Rename(tmpName, localPath); err != nil {
		return 0, fmt.Errorf("imagecache: failed to store %s: %w", localPath, err)
	}
	return n, nil
}

func (c *Cache) lookup(ctx context.Context, rawURL string) (Entry, bool, error) {
	index, err := c.loadIndex(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := index[rawURL]
	return entry, ok, nil
}

// fetch downloads one image to its deterministic path and returns the
// index entry for it. The index itself is not touched.
func (c *Cache) fetch(ctx context.Context, rawURL string) (Entry, error) {
	if err := validateURL(rawURL); err != nil {
		return Entry{}, err
	}
	localPath := filepath.Join(c.cfg.Dir, FileName(rawURL))
	size, err := c.download(ctx, rawURL, localPath)
	if err != nil {
		return Entry{}, err
	}
	c.logger.Debug("Image cached", zap.String("url", rawURL), zap.String("path", localPath), zap.Int64("bytes", size))
	return Entry{LocalPath: localPath, CachedAt: c.now().UTC(), Size: size}, nil
}

// record merges entries into the stored index with a single write
func (c *Cache) record(ctx context.Context, entries map[string]Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.loadIndex(ctx)
	if err != nil {
		return err
	}
	for u, entry := range entries {
		index[u] = entry
	}
	if err := c.kv.SetJSON(ctx, shared.KeyImageCacheIndex, index); err != nil {
		return fmt.Errorf("imagecache: failed to save index: %w", err)
	}
	return nil
}

// loadIndex reads the index; an index that exists but does not decode is
// treated as empty
func (c *Cache) loadIndex(ctx context.Context) (map[string]Entry, error) {
	index := make(map[string]Entry)
	found, err := c.kv.GetJSON(ctx, shared.KeyImageCacheIndex, &index)
	if err != nil {
		if found {
			c.logger.Warn("Discarding unreadable image index", zap.Error(err))
			return make(map[string]Entry), nil
		}
		return nil, fmt.Errorf("imagecache: failed to read index: %w", err)
	}
	return index, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("not an image URL: %q", rawURL))
	}
	return nil
}

// defaultExtension is used for URLs whose path has no usable extension
const defaultExtension = ".jpg"

// extensionOf returns the lowercased extension of the URL path. Extensions
// that are not short and alphanumeric cannot be used in a file name and
// fall back to defaultExtension.
func extensionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultExtension
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if len(ext) < 2 || len(ext) > 11 {
		return defaultExtension
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExtension
		}
	}
	return ext
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
