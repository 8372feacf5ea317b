package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codex-k8s/loadctl/internal/logging"
)

// ContextLoader starts loading the application context described by a profile.
// onFinish runs once the load completes; it is not called when an error is returned.
type ContextLoader interface {
	LoadContext(ctx context.Context, profileKey string, onFinish func()) error
}

// ContextState is a state whose Enter loads an application context in the background.
// Time stays frozen until the load completes.
type ContextState struct {
	id       ID
	profile  string
	loader   ContextLoader
	clock    *Clock
	onLoaded func()
	logger   *slog.Logger

	mu      sync.Mutex
	ready   chan struct{}
	err     error
	loading bool
	wg      sync.WaitGroup
}

// NewContextState constructs a state that loads profileKey on Enter. onLoaded runs before the state
// resumes itself, typically to hide the loading indicator; it may be nil.
func NewContextState(id ID, profileKey string, loader ContextLoader, clock *Clock, onLoaded func(), logger *slog.Logger) *ContextState {
	ready := make(chan struct{})
	return &ContextState{
		id:       id,
		profile:  profileKey,
		loader:   loader,
		clock:    clock,
		onLoaded: onLoaded,
		logger:   logging.OrDiscard(logger).With("state", string(id)),
		ready:    ready,
	}
}

// ID implements State.
func (s *ContextState) ID() ID { return s.id }

// Profile returns the profile key the state loads.
func (s *ContextState) Profile() string { return s.profile }

// Enter freezes time and starts loading the context. Entering while a load is in flight only
// freezes time.
func (s *ContextState) Enter(ctx context.Context) error {
	s.clock.Pause()

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	select {
	case <-s.ready:
		s.ready = make(chan struct{})
		s.err = nil
	default:
	}
	ready := s.ready
	s.mu.Unlock()

	var once sync.Once
	complete := func(err error) {
		once.Do(func() {
			s.mu.Lock()
			s.err = err
			s.loading = false
			s.mu.Unlock()
			close(ready)
		})
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.loader.LoadContext(ctx, s.profile, func() {
			if s.onLoaded != nil {
				s.onLoaded()
			}
			s.Resume()
			s.logger.Info("context ready", "profile", s.profile)
			complete(nil)
		})
		if err != nil {
			s.logger.Error("context load failed", "profile", s.profile, "error", err)
			complete(err)
		}
	}()
	return nil
}

// Pause freezes time.
func (s *ContextState) Pause() { s.clock.Pause() }

// Resume restores normal time.
func (s *ContextState) Resume() { s.clock.Resume() }

// Exit waits for an in-flight load to return.
func (s *ContextState) Exit() {
	s.wg.Wait()
}

// Ready is closed when the most recent Enter has finished loading, successfully or not.
func (s *ContextState) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Wait blocks until the context is ready or ctx ends, and returns the load error, if any.
func (s *ContextState) Wait(ctx context.Context) error {
	select {
	case <-s.Ready():
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
