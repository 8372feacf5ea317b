package assets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codex-k8s/loadctl/internal/logging"
	"github.com/codex-k8s/loadctl/internal/profile"
	"github.com/codex-k8s/loadctl/internal/progress"
	"github.com/codex-k8s/loadctl/internal/stringsutil"
)

// PreloadProcessName is the pipeline process name of the Preloader.
const PreloadProcessName = "Preload"

// Preloader keeps the profile's preload keys resident in the cache.
type Preloader struct {
	cache  *Cache
	limit  int
	logger *slog.Logger

	mu   sync.Mutex
	held []string
}

// NewPreloader constructs a Preloader that runs at most limit acquires at once.
// A limit below one means one.
func NewPreloader(cache *Cache, limit int, logger *slog.Logger) *Preloader {
	return &Preloader{
		cache:  cache,
		limit:  max(1, limit),
		logger: logging.OrDiscard(logger),
	}
}

// ProcessName implements progress.Unit.
func (p *Preloader) ProcessName() string { return PreloadProcessName }

// InitializeForProfile releases keys the profile no longer lists, then acquires the missing ones.
func (p *Preloader) InitializeForProfile(ctx context.Context, prof *profile.Profile, r progress.Reporter) error {
	var desired []string
	if prof != nil {
		desired = prof.PreloadKeys
	}
	toRemove, toAdd := stringsutil.Diff(p.Held(), desired)
	p.logger.Debug("preload diff", "release", toRemove, "acquire", toAdd)

	r.DeclareSubprocesses(2)

	r.DeclareSubprocessSteps(len(toRemove))
	for _, key := range toRemove {
		p.cache.Release(key)
		p.forget(key)
		r.DeclareStep("released " + key)
	}

	r.DeclareSubprocessSteps(len(toAdd))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for _, key := range toAdd {
		g.Go(func() error {
			if _, err := p.cache.Acquire(gctx, key); err != nil {
				return fmt.Errorf("preload %s: %w", key, err)
			}
			p.remember(key)
			r.DeclareStep("loaded " + key)
			return nil
		})
	}
	return g.Wait()
}

// Held returns the keys the Preloader currently owns, sorted.
func (p *Preloader) Held() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]string(nil), p.held...)
	sort.Strings(out)
	return out
}

// ReleaseAll gives back every held key.
func (p *Preloader) ReleaseAll() {
	p.mu.Lock()
	held := p.held
	p.held = nil
	p.mu.Unlock()
	for _, key := range held {
		p.cache.Release(key)
	}
}

func (p *Preloader) remember(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held = append(p.held, key)
}

func (p *Preloader) forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, k := range p.held {
		if k == key {
			p.held = append(p.held[:i], p.held[i+1:]...)
			return
		}
	}
}
