package ui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/logging"
	"github.com/codex-k8s/loadctl/internal/profile"
	"github.com/codex-k8s/loadctl/internal/progress"
)

// ComponentsProcessName is the pipeline process name of the Directory.
const ComponentsProcessName = "Components"

// Directory holds one Reconciler per category and routes activation requests to live components.
type Directory struct {
	categories  []Category
	reconcilers map[Category]*Reconciler
	logger      *slog.Logger
}

// NewDirectory constructs a directory with an empty reconciler for every category.
func NewDirectory(cache *assets.Cache, factory Factory, logger *slog.Logger) *Directory {
	logger = logging.OrDiscard(logger)
	d := &Directory{
		categories:  Categories(),
		reconcilers: make(map[Category]*Reconciler),
		logger:      logger,
	}
	for _, c := range d.categories {
		d.reconcilers[c] = NewReconciler(c, cache, factory, logger)
	}
	return d
}

// ProcessName implements progress.Unit.
func (d *Directory) ProcessName() string { return ComponentsProcessName }

// InitializeForProfile reconciles every category against the profile, one subprocess per category.
func (d *Directory) InitializeForProfile(ctx context.Context, p *profile.Profile, r progress.Reporter) error {
	r.DeclareSubprocesses(len(d.categories))
	for _, c := range d.categories {
		rec := d.reconcilers[c]
		desired := c.DesiredKeys(p)
		r.DeclareSubprocessSteps(rec.Plan(desired).Len())
		if _, err := rec.Reconcile(ctx, desired, r.DeclareStep); err != nil {
			return fmt.Errorf("reconcile %s: %w", c.Name(), err)
		}
	}
	return nil
}

// Plan returns the per-category diff that InitializeForProfile would apply.
func (d *Directory) Plan(p *profile.Profile) map[string]Diff {
	out := make(map[string]Diff, len(d.categories))
	for _, c := range d.categories {
		out[c.Name()] = d.reconcilers[c].Plan(c.DesiredKeys(p))
	}
	return out
}

// Reconciler returns the reconciler for category c.
func (d *Directory) Reconciler(c Category) *Reconciler {
	return d.reconcilers[c]
}

// Activate shows the component for key. It reports false when the component is not live.
func (d *Directory) Activate(key Key, instant bool) bool {
	c, ok := d.Get(key)
	if !ok {
		d.logger.Debug("activate skipped, component not live", "component", key.String())
		return false
	}
	c.Activate(instant)
	return true
}

// Deactivate hides the component for key. It reports false when the component is not live.
func (d *Directory) Deactivate(key Key, instant bool) bool {
	c, ok := d.Get(key)
	if !ok {
		return false
	}
	c.Deactivate(instant)
	return true
}

// Ensure makes key live outside a reconciliation pass.
func (d *Directory) Ensure(ctx context.Context, key Key) (Component, error) {
	rec, ok := d.reconcilers[key.Category]
	if !ok {
		return nil, faults.KeyNotFound("component category", fmt.Sprint(key.Category))
	}
	return rec.Ensure(ctx, key.Name)
}

// Get returns the live component for key.
func (d *Directory) Get(key Key) (Component, bool) {
	rec, ok := d.reconcilers[key.Category]
	if !ok {
		return nil, false
	}
	return rec.Get(key.Name)
}

// Live lists the live component names of category c.
func (d *Directory) Live(c Category) []string {
	rec, ok := d.reconcilers[c]
	if !ok {
		return nil
	}
	return rec.Keys()
}

// Close removes every live component and releases its asset.
func (d *Directory) Close() {
	for _, c := range d.categories {
		d.reconcilers[c].Clear()
	}
}
