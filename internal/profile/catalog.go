package profile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/logging"
)

// Loader fetches a profile that is not cached yet, typically from a per-profile file.
// It returns an error wrapping fs.ErrNotExist or faults.ErrKeyNotFound when the key is unknown.
type Loader func(ctx context.Context, key string) (*Profile, error)

// Catalog resolves profiles by key. Profiles declared inline are registered with Put;
// missing keys fall back to the Loader, and concurrent lookups of the same key share one load.
type Catalog struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	loader   Loader
	group    singleflight.Group
	logger   *slog.Logger
}

// NewCatalog constructs a catalog. loader may be nil when every profile is registered up front.
func NewCatalog(loader Loader, logger *slog.Logger) *Catalog {
	return &Catalog{
		profiles: make(map[string]*Profile),
		loader:   loader,
		logger:   logging.OrDiscard(logger),
	}
}

// Put validates and registers a profile, replacing any previous profile with the same key.
func (c *Catalog) Put(p Profile) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.profiles[p.Key] = p.Clone()
	c.mu.Unlock()
	return nil
}

// Lookup returns a copy of the profile for key.
func (c *Catalog) Lookup(ctx context.Context, key string) (*Profile, error) {
	c.mu.RLock()
	p, ok := c.profiles[key]
	c.mu.RUnlock()
	if ok {
		return p.Clone(), nil
	}
	if c.loader == nil {
		return nil, faults.KeyNotFound("profile", key)
	}

	// The load outlives a cancelled caller so that other callers sharing it still get a result.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(loadCtx, key)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		c.logger.Debug("profile loaded", "profile", key, "shared", r.Shared)
		return r.Val.(*Profile).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Catalog) load(ctx context.Context, key string) (*Profile, error) {
	loaded, err := c.loader(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", faults.KeyNotFound("profile", key), err)
		}
		return nil, err
	}
	loaded.Normalize()
	if loaded.Key != key {
		return nil, fmt.Errorf("profile file for %q declares key %q", key, loaded.Key)
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.profiles[key] = loaded
	c.mu.Unlock()
	return loaded, nil
}

// Keys returns the keys of every cached profile in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.profiles))
	for k := range c.profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Replace swaps the registered profiles for a new set, dropping every lazily loaded profile.
// It is used when the manifest is reloaded between transitions.
func (c *Catalog) Replace(profiles []Profile) error {
	next := make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		p.Normalize()
		if err := p.Validate(); err != nil {
			return err
		}
		next[p.Key] = p.Clone()
	}
	c.mu.Lock()
	c.profiles = next
	c.mu.Unlock()
	return nil
}
