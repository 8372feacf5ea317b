// Package assets keeps reference-counted handles to loaded resources.
package assets

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/logging"
)

// Resource is an opaque loaded asset.
type Resource = any

// Provider loads and releases resources by key.
type Provider interface {
	// Load fetches the resource for key. It may block.
	Load(ctx context.Context, key string) (Resource, error)
	// Release frees a resource previously returned by Load.
	Release(key string, res Resource)
}

// Handle is one caller's reference to a loaded resource.
type Handle struct {
	Key      string
	Resource Resource
}

type entry struct {
	res  Resource
	refs int
}

// flight is a load in progress. Every caller waiting on it owns one reference once it lands.
// The load runs under a context of its own that ends only when every waiter has left.
type flight struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
	landed  bool
	res     Resource
	err     error
}

// Cache maps keys to loaded resources with a reference count per key.
// Concurrent acquires of a key that is still loading join the same provider call.
type Cache struct {
	provider Provider
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	pending map[string]*flight
}

// NewCache constructs an empty cache backed by provider.
func NewCache(provider Provider, logger *slog.Logger) *Cache {
	return &Cache{
		provider: provider,
		logger:   logging.OrDiscard(logger),
		entries:  make(map[string]*entry),
		pending:  make(map[string]*flight),
	}
}

// Acquire returns a handle for key, loading the resource on the first reference.
// Each successful Acquire must be balanced by one Release. A cancelled ctx only abandons this
// caller's wait; the load continues for every other caller waiting on it.
func (c *Cache) Acquire(ctx context.Context, key string) (Handle, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.refs++
		c.mu.Unlock()
		return Handle{Key: key, Resource: e.res}, nil
	}
	f, ok := c.pending[key]
	if !ok {
		loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{done: make(chan struct{}), cancel: cancel}
		c.pending[key] = f
		go c.load(loadCtx, key, f)
	}
	f.waiters++
	c.mu.Unlock()

	select {
	case <-f.done:
		if f.err != nil {
			return Handle{}, f.err
		}
		return Handle{Key: key, Resource: f.res}, nil
	case <-ctx.Done():
		c.leave(key, f)
		return Handle{}, ctx.Err()
	}
}

// leave withdraws one waiter from f. The last waiter to leave cancels the load and forgets the
// flight so that a later Acquire starts afresh.
func (c *Cache) leave(key string, f *flight) {
	c.mu.Lock()
	if !f.landed {
		f.waiters--
		if f.waiters == 0 {
			delete(c.pending, key)
			f.cancel()
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	// The flight landed while we were leaving; give back the reference it counted for us.
	if f.err == nil {
		c.Release(key)
	}
}

func (c *Cache) load(ctx context.Context, key string, f *flight) {
	defer f.cancel()
	res, err := c.provider.Load(ctx, key)

	c.mu.Lock()
	if c.pending[key] == f {
		delete(c.pending, key)
	}
	f.landed = true
	refs := f.waiters
	switch {
	case err != nil:
		f.err = faults.NewLoadError("asset", key, err)
	case refs > 0:
		f.res = res
		c.entries[key] = &entry{res: res, refs: refs}
	}
	c.mu.Unlock()
	close(f.done)

	switch {
	case err != nil:
		c.logger.Warn("asset load failed", "key", key, "error", err)
	case refs == 0:
		c.provider.Release(key, res)
		c.logger.Debug("asset load abandoned", "key", key)
	default:
		c.logger.Debug("asset loaded", "key", key, "refs", refs)
	}
}

// Release drops one reference to key. The last reference frees the resource.
// Releasing a key that is not held is a no-op.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		c.mu.Unlock()
		return
	}
	delete(c.entries, key)
	c.mu.Unlock()

	c.provider.Release(key, e.res)
	c.logger.Debug("asset released", "key", key)
}

// RefCount returns the number of outstanding references to key.
func (c *Cache) RefCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.refs
	}
	return 0
}

// IsLoaded reports whether key is resident.
func (c *Cache) IsLoaded(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Keys lists resident keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
