// Package app wires the loading core to the file-backed providers described by a manifest.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/config"
	"github.com/codex-k8s/loadctl/internal/engine"
	"github.com/codex-k8s/loadctl/internal/logging"
	"github.com/codex-k8s/loadctl/internal/profile"
	"github.com/codex-k8s/loadctl/internal/provider"
	"github.com/codex-k8s/loadctl/internal/scenes"
	"github.com/codex-k8s/loadctl/internal/state"
	"github.com/codex-k8s/loadctl/internal/ui"
)

// progressLogStep is the progress granularity logged at info level.
const progressLogStep = 0.25

// App owns every component of one running application.
type App struct {
	Files        *provider.FileAssets
	Runtime      *provider.SimScenes
	Cache        *assets.Cache
	Directory    *ui.Directory
	Scenes       *scenes.Set
	Preloader    *assets.Preloader
	Orchestrator *engine.Orchestrator
	States       *state.Factory
	Stack        *state.Stack
	Clock        *state.Clock

	logger  *slog.Logger
	timeout time.Duration

	mu       sync.RWMutex
	manifest *config.Manifest
	catalog  *profile.Catalog
}

// New validates m and constructs every component it describes.
func New(m *config.Manifest, logger *slog.Logger) (*App, error) {
	if err := config.Validate(m); err != nil {
		return nil, err
	}
	logger = logging.OrDiscard(logger)

	tick, err := m.Runtime.Tick()
	if err != nil {
		return nil, err
	}
	timeout, err := m.Runtime.Timeout()
	if err != nil {
		return nil, err
	}
	catalog, err := m.Catalog(logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		logger:   logger,
		timeout:  timeout,
		manifest: m,
		catalog:  catalog,
		Clock:    state.NewClock(0),
	}

	a.Files = provider.NewFileAssets(m.AssetsPath(), m.Assets, logger)
	a.Runtime = provider.NewSimScenes(sceneTimings(m), logger)
	a.Cache = assets.NewCache(a.Files, logger)

	progressLog := logging.NewProgressLog(logger, progressLogStep)
	factory := ui.IndicatorFactory(m.Runtime.Indicator, ui.SurfaceFactory(logger), progressLog.Update, logger)
	a.Directory = ui.NewDirectory(a.Cache, factory, logger)
	a.Scenes = scenes.NewSet(a.Runtime, tick, logger)
	a.Preloader = assets.NewPreloader(a.Cache, m.Runtime.PreloadConcurrency, logger)

	a.Orchestrator, err = engine.NewOrchestrator(engine.Config{
		Profiles:  a,
		Directory: a.Directory,
		Scenes:    a.Scenes,
		Preloader: a.Preloader,
		Indicator: m.Runtime.Indicator,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	a.States = state.NewFactory()
	for _, decl := range m.States {
		a.States.Register(state.ID(decl.Name), func() state.State {
			return state.NewContextState(state.ID(decl.Name), decl.Profile, a, a.Clock, func() {
				a.Orchestrator.HideIndicator(false)
			}, logger)
		})
	}
	a.Stack = state.NewStack(a.States, logger)
	return a, nil
}

func sceneTimings(m *config.Manifest) map[string]provider.SceneTiming {
	out := make(map[string]provider.SceneTiming, len(m.Scenes))
	for name, s := range m.SceneTimings() {
		out[name] = provider.SceneTiming{LoadTicks: s.LoadTicks, UnloadTicks: s.UnloadTicks}
	}
	return out
}

// Lookup resolves a profile through the current catalog.
func (a *App) Lookup(ctx context.Context, key string) (*profile.Profile, error) {
	a.mu.RLock()
	c := a.catalog
	a.mu.RUnlock()
	return c.Lookup(ctx, key)
}

// LoadContext runs the orchestrator, bounded by the manifest's load timeout. onFinish runs after the
// orchestrator has released its guard, so the callback may start the next transition.
func (a *App) LoadContext(ctx context.Context, profileKey string, onFinish func()) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	var finished atomic.Bool
	err := a.Orchestrator.LoadContext(ctx, profileKey, func() { finished.Store(true) })
	if finished.Load() && onFinish != nil {
		onFinish()
	}
	return err
}

// Manifest returns the manifest currently in effect.
func (a *App) Manifest() *config.Manifest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.manifest
}

// Start bootstraps the state stack with stateID (the manifest's initial state when empty) and waits
// until that state's context has loaded.
func (a *App) Start(ctx context.Context, stateID string) error {
	if stateID == "" {
		stateID = a.Manifest().InitialState
	}
	if stateID == "" {
		return fmt.Errorf("no state to start: manifest declares no states")
	}
	if err := a.Stack.Bootstrap(ctx, state.ID(stateID)); err != nil {
		return err
	}
	return a.waitCurrent(ctx)
}

// ChangeState replaces the current state with stateID and waits for its context to load.
func (a *App) ChangeState(ctx context.Context, stateID string) error {
	if err := a.Stack.ChangeState(ctx, state.ID(stateID)); err != nil {
		return err
	}
	return a.waitCurrent(ctx)
}

func (a *App) waitCurrent(ctx context.Context) error {
	cs, ok := a.Stack.Current().(*state.ContextState)
	if !ok {
		return nil
	}
	return cs.Wait(ctx)
}

// Reload swaps in a new manifest and re-applies the current profile. Only the difference between
// the live context and the new profile is loaded.
func (a *App) Reload(ctx context.Context, m *config.Manifest) error {
	if err := config.Validate(m); err != nil {
		return err
	}
	catalog, err := m.Catalog(a.logger)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.manifest = m
	a.catalog = catalog
	a.mu.Unlock()

	a.Files.SetMapping(m.AssetsPath(), m.Assets)
	a.Runtime.SetTimings(sceneTimings(m))

	current := a.Orchestrator.CurrentProfile()
	if current == "" {
		return nil
	}
	a.logger.Info("reloading context", "profile", current)
	return a.LoadContext(ctx, current, func() { a.Orchestrator.HideIndicator(false) })
}

// Close pops every state and releases every component and preloaded asset.
func (a *App) Close(ctx context.Context) {
	for a.Stack.Depth() > 0 {
		_ = a.Stack.PopState(ctx, false)
	}
	a.Directory.Close()
	a.Preloader.ReleaseAll()
}
