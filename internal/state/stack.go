package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/logging"
)

// Stack is a LIFO of states: the top one is active, the ones below it are paused.
// It is driven from a single goroutine and is not safe for concurrent use.
type Stack struct {
	factory *Factory
	logger  *slog.Logger
	states  []State
}

// NewStack constructs an empty stack that builds states through factory.
func NewStack(factory *Factory, logger *slog.Logger) *Stack {
	return &Stack{factory: factory, logger: logging.OrDiscard(logger)}
}

// PushState enters a new state for id on top of the stack.
// With pauseCurrent, pushing the id that is already on top is a no-op, and the current top is paused
// before the new state enters. If Enter fails the paused top is resumed and the error returned.
func (s *Stack) PushState(ctx context.Context, id ID, pauseCurrent bool) error {
	top := s.Current()
	if pauseCurrent && top != nil && top.ID() == id {
		return nil
	}

	next, err := s.factory.Create(id)
	if err != nil {
		return err
	}

	paused := false
	if pauseCurrent && top != nil {
		top.Pause()
		paused = true
	}
	if err := next.Enter(ctx); err != nil {
		if paused {
			top.Resume()
		}
		return fmt.Errorf("enter state %s: %w", id, err)
	}
	s.states = append(s.states, next)
	s.logger.Info("state pushed", "state", string(id), "depth", len(s.states))
	return nil
}

// PopState exits the top state. With resume, the new top is resumed.
// Popping an empty stack is a no-op unless resume is requested; resuming with nothing left
// underneath is an invariant violation.
func (s *Stack) PopState(_ context.Context, resume bool) error {
	if len(s.states) == 0 {
		if resume {
			return fmt.Errorf("pop with resume on empty state stack: %w", faults.ErrInvariantViolation)
		}
		return nil
	}

	top := s.states[len(s.states)-1]
	s.states = s.states[:len(s.states)-1]
	top.Exit()
	s.logger.Info("state popped", "state", string(top.ID()), "depth", len(s.states))

	if !resume {
		return nil
	}
	next := s.Current()
	if next == nil {
		return fmt.Errorf("no state to resume after popping %s: %w", top.ID(), faults.ErrInvariantViolation)
	}
	next.Resume()
	return nil
}

// ChangeState replaces the top state with a new state for id. Only Exit and Enter run.
func (s *Stack) ChangeState(ctx context.Context, id ID) error {
	if err := s.PopState(ctx, false); err != nil {
		return err
	}
	return s.PushState(ctx, id, false)
}

// Bootstrap pushes initial on an empty stack, or re-enters the current top otherwise.
func (s *Stack) Bootstrap(ctx context.Context, initial ID) error {
	top := s.Current()
	if top == nil {
		return s.PushState(ctx, initial, true)
	}
	if err := top.Enter(ctx); err != nil {
		return fmt.Errorf("re-enter state %s: %w", top.ID(), err)
	}
	return nil
}

// Current returns the top state, or nil when the stack is empty.
func (s *Stack) Current() State {
	if len(s.states) == 0 {
		return nil
	}
	return s.states[len(s.states)-1]
}

// Depth returns the number of states on the stack.
func (s *Stack) Depth() int {
	return len(s.states)
}

// IDs lists the state ids from bottom to top.
func (s *Stack) IDs() []ID {
	out := make([]ID, len(s.states))
	for i, st := range s.states {
		out[i] = st.ID()
	}
	return out
}
