package ui

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/logging"
)

// Component is a live UI element that can be shown and hidden.
type Component interface {
	Key() Key
	// ID distinguishes instances created for the same key across reconciliation passes.
	ID() uuid.UUID
	Activate(instant bool)
	Deactivate(instant bool)
	Active() bool
}

// Factory instantiates a component from its loaded asset. Components are created inactive.
type Factory func(key Key, h assets.Handle) (Component, error)

// Surface is the plain Component: it tracks visibility and holds its asset.
type Surface struct {
	key      Key
	id       uuid.UUID
	resource assets.Resource
	logger   *slog.Logger

	mu     sync.Mutex
	active bool
}

// NewSurface creates an inactive surface for key.
func NewSurface(key Key, res assets.Resource, logger *slog.Logger) *Surface {
	return &Surface{
		key:      key,
		id:       uuid.New(),
		resource: res,
		logger:   logging.OrDiscard(logger),
	}
}

// Key implements Component.
func (s *Surface) Key() Key { return s.key }

// ID implements Component.
func (s *Surface) ID() uuid.UUID { return s.id }

// Resource returns the asset the surface was built from.
func (s *Surface) Resource() assets.Resource { return s.resource }

// Activate shows the surface. Transitions are not animated here; instant is recorded for the log only.
func (s *Surface) Activate(instant bool) {
	s.mu.Lock()
	changed := !s.active
	s.active = true
	s.mu.Unlock()
	if changed {
		s.logger.Debug("component activated", "component", s.key.String(), "instant", instant)
	}
}

// Deactivate hides the surface.
func (s *Surface) Deactivate(instant bool) {
	s.mu.Lock()
	changed := s.active
	s.active = false
	s.mu.Unlock()
	if changed {
		s.logger.Debug("component deactivated", "component", s.key.String(), "instant", instant)
	}
}

// Active reports whether the surface is shown.
func (s *Surface) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SurfaceFactory builds plain surfaces for every key.
func SurfaceFactory(logger *slog.Logger) Factory {
	return func(key Key, h assets.Handle) (Component, error) {
		return NewSurface(key, h.Resource, logger), nil
	}
}
