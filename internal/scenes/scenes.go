// Package scenes tracks the set of loaded scenes and drives a scene provider one operation at a time.
package scenes

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/logging"
	"github.com/codex-k8s/loadctl/internal/profile"
	"github.com/codex-k8s/loadctl/internal/progress"
	"github.com/codex-k8s/loadctl/internal/stringsutil"
)

// ProcessName is the pipeline process name of the Set.
const ProcessName = "Scenes"

// DefaultTick is the completion polling interval used when none is configured.
const DefaultTick = 10 * time.Millisecond

// Operation is an asynchronous provider operation polled once per tick.
type Operation interface {
	Done() bool
	// Err is meaningful once Done reports true.
	Err() error
}

// Provider performs scene loads and unloads.
type Provider interface {
	LoadAdditive(ctx context.Context, id string) (Operation, error)
	Unload(ctx context.Context, id string) (Operation, error)
	SetActive(id string) error
}

// Set is the ordered set of loaded scenes. At most one load or unload runs at a time across the set.
type Set struct {
	provider Provider
	tick     time.Duration
	logger   *slog.Logger

	busy atomic.Bool

	mu        sync.Mutex
	loaded    []string
	active    string
	onLoad    map[uint64]func(string)
	onUnload  map[uint64]func(string)
	listenSeq uint64
}

// NewSet constructs an empty set. A tick of zero or less uses DefaultTick.
func NewSet(provider Provider, tick time.Duration, logger *slog.Logger) *Set {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Set{
		provider: provider,
		tick:     tick,
		logger:   logging.OrDiscard(logger),
		onLoad:   make(map[uint64]func(string)),
		onUnload: make(map[uint64]func(string)),
	}
}

// ProcessName implements progress.Unit.
func (s *Set) ProcessName() string { return ProcessName }

// LoadAdditive loads id next to the scenes already loaded. Loading a loaded scene is a no-op.
func (s *Set) LoadAdditive(ctx context.Context, id string, setActive bool) error {
	if !s.busy.CompareAndSwap(false, true) {
		return faults.InProgress("scene load")
	}
	defer s.busy.Store(false)
	return s.load(ctx, id, setActive)
}

// Unload unloads id. Unloading a scene that is not loaded is a no-op.
func (s *Set) Unload(ctx context.Context, id string) error {
	if !s.busy.CompareAndSwap(false, true) {
		return faults.InProgress("scene unload")
	}
	defer s.busy.Store(false)
	return s.unload(ctx, id)
}

// SwitchTo unloads every loaded scene in turn and then loads id as the active scene.
func (s *Set) SwitchTo(ctx context.Context, id string) error {
	if !s.busy.CompareAndSwap(false, true) {
		return faults.InProgress("scene transition")
	}
	defer s.busy.Store(false)

	for _, loaded := range s.Loaded() {
		if err := s.unload(ctx, loaded); err != nil {
			return err
		}
	}
	return s.load(ctx, id, true)
}

// InitializeForProfile brings the loaded set in line with the profile's primary scene and sub-scenes.
// Extra scenes are unloaded before missing ones are loaded; each operation is one subprocess of one step.
func (s *Set) InitializeForProfile(ctx context.Context, p *profile.Profile, r progress.Reporter) error {
	if p == nil {
		return fmt.Errorf("scenes: profile is nil")
	}
	if !s.busy.CompareAndSwap(false, true) {
		return faults.InProgress("scene reconciliation")
	}
	defer s.busy.Store(false)

	toUnload, toLoad := stringsutil.Diff(s.Loaded(), p.Scenes())
	total := len(toUnload) + len(toLoad)
	if total > 0 {
		r.DeclareSubprocesses(total)
	}

	for _, id := range toUnload {
		r.DeclareSubprocessSteps(1)
		if err := s.unload(ctx, id); err != nil {
			return err
		}
		r.DeclareStep("unloaded " + id)
	}
	for _, id := range toLoad {
		r.DeclareSubprocessSteps(1)
		if err := s.load(ctx, id, id == p.PrimaryScene); err != nil {
			return err
		}
		r.DeclareStep("loaded " + id)
	}

	if s.Active() != p.PrimaryScene {
		if err := s.setActive(p.PrimaryScene); err != nil {
			return err
		}
	}
	return nil
}

// Plan returns the scenes InitializeForProfile would unload and load for p.
func (s *Set) Plan(p *profile.Profile) (toUnload, toLoad []string) {
	return stringsutil.Diff(s.Loaded(), p.Scenes())
}

// Loaded returns the loaded scenes in load order.
func (s *Set) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.loaded)
}

// IsLoaded reports whether id is loaded.
func (s *Set) IsLoaded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.loaded, id)
}

// Active returns the active scene, or "" when none is.
func (s *Set) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsBusy reports whether an operation is in flight.
func (s *Set) IsBusy() bool {
	return s.busy.Load()
}

// OnSceneLoaded registers fn for every completed load and returns a func that removes it.
func (s *Set) OnSceneLoaded(fn func(id string)) func() {
	return s.listen(s.onLoad, fn)
}

// OnSceneUnloaded registers fn for every completed unload and returns a func that removes it.
func (s *Set) OnSceneUnloaded(fn func(id string)) func() {
	return s.listen(s.onUnload, fn)
}

func (s *Set) listen(m map[uint64]func(string), fn func(string)) func() {
	s.mu.Lock()
	s.listenSeq++
	id := s.listenSeq
	m[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(m, id)
			s.mu.Unlock()
		})
	}
}

func (s *Set) emit(m map[uint64]func(string), id string) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(m))
	for k := range m {
		ids = append(ids, k)
	}
	slices.Sort(ids)
	fns := make([]func(string), 0, len(ids))
	for _, k := range ids {
		fns = append(fns, m[k])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

func (s *Set) load(ctx context.Context, id string, setActive bool) error {
	if s.IsLoaded(id) {
		return nil
	}
	s.logger.Debug("loading scene", "scene", id)

	op, err := s.provider.LoadAdditive(ctx, id)
	if err != nil {
		return faults.NewLoadError("scene", id, err)
	}
	if err := s.wait(ctx, op); err != nil {
		return err
	}
	if err := op.Err(); err != nil {
		return faults.NewLoadError("scene", id, err)
	}

	s.mu.Lock()
	s.loaded = append(s.loaded, id)
	s.mu.Unlock()

	if setActive {
		if err := s.setActive(id); err != nil {
			return err
		}
	}
	s.logger.Info("scene loaded", "scene", id)
	s.emit(s.onLoad, id)
	return nil
}

func (s *Set) unload(ctx context.Context, id string) error {
	if !s.IsLoaded(id) {
		return nil
	}
	s.logger.Debug("unloading scene", "scene", id)

	op, err := s.provider.Unload(ctx, id)
	if err != nil {
		return faults.NewLoadError("scene", id, err)
	}

	s.mu.Lock()
	if i := slices.Index(s.loaded, id); i >= 0 {
		s.loaded = slices.Delete(s.loaded, i, i+1)
	}
	if s.active == id {
		s.active = ""
	}
	s.mu.Unlock()

	if err := s.wait(ctx, op); err != nil {
		return err
	}
	if err := op.Err(); err != nil {
		return faults.NewLoadError("scene", id, err)
	}
	s.logger.Info("scene unloaded", "scene", id)
	s.emit(s.onUnload, id)
	return nil
}

func (s *Set) setActive(id string) error {
	if err := s.provider.SetActive(id); err != nil {
		return fmt.Errorf("activate scene %q: %w", id, err)
	}
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
	return nil
}

// wait polls op once per tick until it completes or ctx ends.
func (s *Set) wait(ctx context.Context, op Operation) error {
	if op.Done() {
		return nil
	}
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if op.Done() {
				return nil
			}
		}
	}
}
