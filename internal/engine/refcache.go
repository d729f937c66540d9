package engine

import (
	"context"
	"sync"
	"time"
)

// CachedReferenceReader keeps fetched reference documents in memory so a
// chat turn does not wait on the network. Entries older than the TTL are
// fetched again; if that fails the stale copy is served.
type CachedReferenceReader struct {
	next ReferenceReader
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedReference
}

type cachedReference struct {
	ref       *Reference
	fetchedAt time.Time
}

// NewCachedReferenceReader wraps next with a cache of the given TTL.
func NewCachedReferenceReader(next ReferenceReader, ttl time.Duration) *CachedReferenceReader {
	return &CachedReferenceReader{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedReference),
	}
}

// Read returns the cached document when fresh, otherwise fetches it.
func (c *CachedReferenceReader) Read(ctx context.Context, url string) (*Reference, error) {
	c.mu.RLock()
	entry, ok := c.entries[url]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.ref, nil
	}

	ref, err := c.fetch(ctx, url)
	if err != nil {
		if ok {
			return entry.ref, nil
		}
		return nil, err
	}
	return ref, nil
}

// Refresh fetches url regardless of the cached copy's age.
func (c *CachedReferenceReader) Refresh(ctx context.Context, url string) error {
	_, err := c.fetch(ctx, url)
	return err
}

func (c *CachedReferenceReader) fetch(ctx context.Context, url string) (*Reference, error) {
	ref, err := c.next.Read(ctx, url)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[url] = cachedReference{ref: ref, fetchedAt: c.now()}
	c.mu.Unlock()
	return ref, nil
}
