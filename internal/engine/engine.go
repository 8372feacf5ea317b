// Package engine orchestrates one application context transition at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/logging"
	"github.com/codex-k8s/loadctl/internal/profile"
	"github.com/codex-k8s/loadctl/internal/progress"
	"github.com/codex-k8s/loadctl/internal/scenes"
	"github.com/codex-k8s/loadctl/internal/ui"
)

// ProfileSource resolves profiles by key.
type ProfileSource interface {
	Lookup(ctx context.Context, key string) (*profile.Profile, error)
}

// Indicator is a component that can mirror a progress source.
type Indicator interface {
	ui.Component
	Bind(src progress.Source)
}

// Config wires the orchestrator to its collaborators.
type Config struct {
	// Profiles resolves profile keys.
	Profiles ProfileSource
	// Directory owns the live UI components.
	Directory *ui.Directory
	// Scenes owns the loaded scene set.
	Scenes *scenes.Set
	// Preloader, when set, is appended to the default unit list.
	Preloader *assets.Preloader
	// Units overrides the pipeline unit order. Empty means Directory, Scenes, then Preloader if set.
	Units []progress.Unit
	// Indicator is the screen component shown while a profile with a loading indicator loads.
	Indicator string
	// Logger receives orchestration logs.
	Logger *slog.Logger
}

// Orchestrator runs a progress pipeline over its units for one profile at a time.
type Orchestrator struct {
	profiles  ProfileSource
	directory *ui.Directory
	scenes    *scenes.Set
	preloader *assets.Preloader
	units     []progress.Unit
	indicator ui.Key
	logger    *slog.Logger

	busy atomic.Bool

	mu       sync.Mutex
	current  *progress.Pipeline
	profile  string
	failures []progress.UnitFailure
}

// NewOrchestrator validates cfg and constructs an Orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Profiles == nil {
		return nil, fmt.Errorf("orchestrator requires a profile source")
	}
	units := cfg.Units
	if len(units) == 0 {
		if cfg.Directory == nil || cfg.Scenes == nil {
			return nil, fmt.Errorf("orchestrator requires a component directory and a scene set")
		}
		units = []progress.Unit{cfg.Directory, cfg.Scenes}
		if cfg.Preloader != nil {
			units = append(units, cfg.Preloader)
		}
	}
	indicator := cfg.Indicator
	if indicator == "" {
		indicator = ui.DefaultIndicator
	}
	return &Orchestrator{
		profiles:  cfg.Profiles,
		directory: cfg.Directory,
		scenes:    cfg.Scenes,
		preloader: cfg.Preloader,
		units:     units,
		indicator: ui.NewKey(ui.Screen, indicator),
		logger:    logging.OrDiscard(cfg.Logger),
	}, nil
}

// LoadContext resolves profileKey and brings every unit in line with it. onFinish runs exactly once
// when the pipeline finishes, regardless of unit failures. An unknown profile is logged and returned,
// and onFinish does not run.
func (o *Orchestrator) LoadContext(ctx context.Context, profileKey string, onFinish func()) error {
	if !o.busy.CompareAndSwap(false, true) {
		return faults.InProgress("orchestrator")
	}
	defer o.busy.Store(false)

	prof, err := o.profiles.Lookup(ctx, profileKey)
	if err != nil {
		if errors.Is(err, faults.ErrKeyNotFound) {
			o.logger.Error("could not find profile", "profile", profileKey)
		}
		return fmt.Errorf("load context %q: %w", profileKey, err)
	}

	pipeline := progress.NewPipeline(onFinish, o.logger.With("profile", prof.Key), o.units...)
	if prof.UseLoadingIndicator {
		o.showIndicator(ctx, pipeline)
	}

	o.mu.Lock()
	o.current = pipeline
	o.profile = prof.Key
	o.failures = nil
	o.mu.Unlock()

	o.logger.Info("loading context", "profile", prof.Key, "units", len(o.units))
	if err := pipeline.Run(ctx, prof); err != nil {
		return fmt.Errorf("load context %q: %w", prof.Key, err)
	}

	failures := pipeline.Failures()
	o.mu.Lock()
	o.failures = failures
	o.mu.Unlock()

	if len(failures) > 0 {
		o.logger.Warn("context loaded with failures", "profile", prof.Key, "failures", len(failures))
	} else {
		o.logger.Info("context loaded", "profile", prof.Key)
	}
	return nil
}

// showIndicator makes the indicator live, shows it and binds it to the pipeline.
// Indicator problems are logged and never stop the load.
func (o *Orchestrator) showIndicator(ctx context.Context, src progress.Source) {
	if o.directory == nil {
		o.logger.Warn("loading indicator requested without a component directory")
		return
	}
	c, err := o.directory.Ensure(ctx, o.indicator)
	if err != nil {
		o.logger.Warn("loading indicator unavailable", "component", o.indicator.String(), "error", err)
		return
	}
	ind, ok := c.(Indicator)
	if !ok {
		o.logger.Warn("component cannot display progress", "component", o.indicator.String())
		return
	}
	o.directory.Activate(o.indicator, true)
	ind.Bind(src)
}

// HideIndicator deactivates the loading indicator if it is live.
func (o *Orchestrator) HideIndicator(instant bool) {
	if o.directory == nil {
		return
	}
	o.directory.Deactivate(o.indicator, instant)
}

// Busy reports whether a LoadContext call is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Current returns the pipeline of the most recent LoadContext call, or nil.
func (o *Orchestrator) Current() *progress.Pipeline {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// CurrentProfile returns the key of the most recently loaded profile.
func (o *Orchestrator) CurrentProfile() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.profile
}

// LastFailures returns the unit failures of the most recent completed LoadContext call.
func (o *Orchestrator) LastFailures() []progress.UnitFailure {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]progress.UnitFailure, len(o.failures))
	copy(out, o.failures)
	return out
}

// IndicatorKey returns the key of the loading indicator component.
func (o *Orchestrator) IndicatorKey() ui.Key {
	return o.indicator
}
