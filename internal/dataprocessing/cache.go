package dataprocessing

import (
	"container/list"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"pangandash/pkg/contracts/domain"
)

// Fingerprint identifies file content.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CachedLoader memoizes another loader by file identity. Identical uploads
// arriving together are parsed once. Callers always get their own copy of the
// table, so normalizing it does not touch the cached one.
type CachedLoader struct {
	next     TableLoader
	capacity int
	logger   *slog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
	hits    int64
	misses  int64
}

type cacheEntry struct {
	key   string
	table *domain.Table
}

// NewCachedLoader wraps next with an LRU of at most capacity tables.
func NewCachedLoader(next TableLoader, capacity int, logger *slog.Logger) *CachedLoader {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &CachedLoader{
		next:     next,
		capacity: capacity,
		logger:   logger.With(slog.String("component", "loader_cache")),
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Load returns a cached table when the same bytes were loaded with the same options.
func (c *CachedLoader) Load(ctx context.Context, kind domain.TableKind, src Source, opts LoadOptions) (*domain.Table, error) {
	key := cacheKey(kind, src, opts)

	if t, ok := c.get(key); ok {
		c.logger.DebugContext(ctx, "loader cache hit", slog.String("file", src.Filename))
		return withName(t.Clone(), src.Filename), nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		t, err := c.next.Load(ctx, kind, src, opts)
		if err != nil {
			return nil, err
		}
		c.put(key, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "loader cache miss",
		slog.String("file", src.Filename),
		slog.Bool("shared", shared))

	return withName(v.(*domain.Table).Clone(), src.Filename), nil
}

// Stats returns hit and miss counts.
func (c *CachedLoader) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached tables.
func (c *CachedLoader) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedLoader) get(key string) (*domain.Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).table, true
}

func (c *CachedLoader) put(key string, t *domain.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).table = t
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, table: t})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func cacheKey(kind domain.TableKind, src Source, opts LoadOptions) string {
	format, _ := DetectFormat(src.Filename, src.MIMEType)
	return fmt.Sprintf("%s|%s|%s|%d|%s|%s",
		Fingerprint(src.Data), kind, format, opts.HeaderRow, opts.Sheet, opts.FallbackEncoding)
}

func withName(t *domain.Table, name string) *domain.Table {
	t.Name = name
	return t
}
