package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/logging"
	"github.com/codex-k8s/loadctl/internal/stringsutil"
)

// Diff lists the component names a reconciliation pass removes and adds.
type Diff struct {
	Removed []string `yaml:"removed,omitempty"`
	Added   []string `yaml:"added,omitempty"`
}

// Len is the number of operations in the diff.
func (d Diff) Len() int {
	return len(d.Removed) + len(d.Added)
}

// Reconciler owns the live components of one category.
type Reconciler struct {
	category Category
	cache    *assets.Cache
	factory  Factory
	logger   *slog.Logger

	mu    sync.Mutex
	live  map[string]Component
	order []string
}

// NewReconciler constructs an empty reconciler for category.
func NewReconciler(category Category, cache *assets.Cache, factory Factory, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		category: category,
		cache:    cache,
		factory:  factory,
		logger:   logging.OrDiscard(logger).With("category", category.Name()),
		live:     make(map[string]Component),
	}
}

// Category returns the category the reconciler serves.
func (r *Reconciler) Category() Category { return r.category }

// Plan computes the operations needed to reach desired without applying them.
func (r *Reconciler) Plan(desired []string) Diff {
	toRemove, toAdd := stringsutil.Diff(r.Keys(), stringsutil.DedupeStrings(desired))
	return Diff{Removed: toRemove, Added: toAdd}
}

// Reconcile removes every live component not in desired, then instantiates the missing ones.
// step is called once per applied operation. The first failure stops the pass; the returned Diff
// lists what was applied before it.
func (r *Reconciler) Reconcile(ctx context.Context, desired []string, step func(message string)) (Diff, error) {
	plan := r.Plan(desired)
	var applied Diff

	for _, name := range plan.Removed {
		r.remove(name)
		applied.Removed = append(applied.Removed, name)
		if step != nil {
			step("removed " + NewKey(r.category, name).String())
		}
	}

	for _, name := range plan.Added {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if _, err := r.add(ctx, name); err != nil {
			return applied, err
		}
		applied.Added = append(applied.Added, name)
		if step != nil {
			step("added " + NewKey(r.category, name).String())
		}
	}
	return applied, nil
}

// Ensure makes name live outside a reconciliation pass and returns it.
func (r *Reconciler) Ensure(ctx context.Context, name string) (Component, error) {
	if c, ok := r.Get(name); ok {
		return c, nil
	}
	return r.add(ctx, name)
}

// Get returns the live component named name.
func (r *Reconciler) Get(name string) (Component, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.live[name]
	return c, ok
}

// Keys lists live component names in the order they were added.
func (r *Reconciler) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Clear removes every live component.
func (r *Reconciler) Clear() {
	for _, name := range r.Keys() {
		r.remove(name)
	}
}

func (r *Reconciler) add(ctx context.Context, name string) (Component, error) {
	key := NewKey(r.category, name)
	h, err := r.cache.Acquire(ctx, key.AssetKey())
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	c, err := r.factory(key, h)
	if err != nil {
		r.cache.Release(key.AssetKey())
		return nil, faults.NewLoadError("component", key.String(), err)
	}
	c.Deactivate(true)

	r.mu.Lock()
	r.live[name] = c
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.logger.Debug("component added", "component", key.String(), "id", c.ID())
	return c, nil
}

func (r *Reconciler) remove(name string) {
	r.mu.Lock()
	c, ok := r.live[name]
	if ok {
		delete(r.live, name)
		for i, n := range r.order {
			if n == name {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	key := NewKey(r.category, name)
	c.Deactivate(true)
	r.cache.Release(key.AssetKey())
	r.logger.Debug("component removed", "component", key.String(), "id", c.ID())
}
