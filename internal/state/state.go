// Package state implements the stack of top-level application modes.
package state

import (
	"context"
	"sort"
	"sync"

	"github.com/codex-k8s/loadctl/internal/faults"
)

// ID is the stable identifier of a state kind.
type ID string

// State is one application mode on the stack.
type State interface {
	ID() ID
	// Enter runs when the state is pushed or re-entered on bootstrap.
	Enter(ctx context.Context) error
	// Pause runs when another state is pushed on top of it.
	Pause()
	// Resume runs when the state above it is popped.
	Resume()
	// Exit runs when the state is popped.
	Exit()
}

// Constructor builds a fresh state instance.
type Constructor func() State

// Factory maps state ids to constructors. Ids must be registered explicitly.
type Factory struct {
	mu    sync.RWMutex
	ctors map[ID]Constructor
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[ID]Constructor)}
}

// Register binds id to ctor, replacing any previous registration.
func (f *Factory) Register(id ID, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[id] = ctor
}

// Create builds a new state for id. An unregistered id yields a KeyNotFound error.
func (f *Factory) Create(id ID) (State, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[id]
	f.mu.RUnlock()
	if !ok {
		return nil, faults.KeyNotFound("state", string(id))
	}
	return ctor(), nil
}

// IDs lists the registered ids, sorted.
func (f *Factory) IDs() []ID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]ID, 0, len(f.ctors))
	for id := range f.ctors {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
