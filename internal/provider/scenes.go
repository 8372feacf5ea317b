package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/codex-k8s/loadctl/internal/logging"
	"github.com/codex-k8s/loadctl/internal/scenes"
)

// SceneTiming is how many completion polls a simulated scene needs to load and unload.
type SceneTiming struct {
	LoadTicks   int
	UnloadTicks int
}

// SimScenes is a scene runtime that completes operations after a fixed number of polls.
// Only scenes it was constructed with can be loaded.
type SimScenes struct {
	timings map[string]SceneTiming
	logger  *slog.Logger

	mu     sync.Mutex
	loaded map[string]bool
	active string
}

// NewSimScenes constructs a runtime that knows the given scenes.
func NewSimScenes(timings map[string]SceneTiming, logger *slog.Logger) *SimScenes {
	t := make(map[string]SceneTiming, len(timings))
	for k, v := range timings {
		t[k] = v
	}
	return &SimScenes{
		timings: t,
		logger:  logging.OrDiscard(logger),
		loaded:  make(map[string]bool),
	}
}

// SetTimings replaces the set of known scenes. Scenes already loaded stay loaded.
func (s *SimScenes) SetTimings(timings map[string]SceneTiming) {
	t := make(map[string]SceneTiming, len(timings))
	for k, v := range timings {
		t[k] = v
	}
	s.mu.Lock()
	s.timings = t
	s.mu.Unlock()
}

// LoadAdditive starts loading id.
func (s *SimScenes) LoadAdditive(ctx context.Context, id string) (scenes.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	timing, ok := s.timings[id]
	s.mu.Unlock()
	if !ok {
		return failedOp(fmt.Errorf("scene %q is not part of the build", id)), nil
	}
	s.logger.Debug("scene load started", "scene", id, "ticks", timing.LoadTicks)
	return newCountdown(timing.LoadTicks, func() {
		s.mu.Lock()
		s.loaded[id] = true
		s.mu.Unlock()
	}), nil
}

// Unload starts unloading id.
func (s *SimScenes) Unload(ctx context.Context, id string) (scenes.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	loaded := s.loaded[id]
	timing := s.timings[id]
	s.mu.Unlock()
	if !loaded {
		return nil, fmt.Errorf("scene %q is not loaded", id)
	}
	s.logger.Debug("scene unload started", "scene", id, "ticks", timing.UnloadTicks)
	return newCountdown(timing.UnloadTicks, func() {
		s.mu.Lock()
		delete(s.loaded, id)
		if s.active == id {
			s.active = ""
		}
		s.mu.Unlock()
	}), nil
}

// SetActive marks a loaded scene as the active one.
func (s *SimScenes) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded[id] {
		return fmt.Errorf("scene %q is not loaded", id)
	}
	s.active = id
	return nil
}

// Active returns the active scene.
func (s *SimScenes) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Loaded lists the loaded scenes, sorted.
func (s *SimScenes) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.loaded))
	for id := range s.loaded {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// countdown reports not done for its first ticks polls.
type countdown struct {
	remaining atomic.Int64
	once      sync.Once
	onDone    func()
	err       error
}

func newCountdown(ticks int, onDone func()) *countdown {
	c := &countdown{onDone: onDone}
	c.remaining.Store(int64(ticks))
	return c
}

func failedOp(err error) *countdown {
	return &countdown{err: err}
}

func (c *countdown) Done() bool {
	if c.err != nil {
		return true
	}
	if c.remaining.Add(-1) >= 0 {
		return false
	}
	c.once.Do(func() {
		if c.onDone != nil {
			c.onDone()
		}
	})
	return true
}

func (c *countdown) Err() error { return c.err }
