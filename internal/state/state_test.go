package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codex-k8s/loadctl/internal/faults"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// journal records every lifecycle call across the states of one test.
type journal struct {
	events []string
}

type recordingState struct {
	id       ID
	j        *journal
	enterErr error
}

func (s *recordingState) ID() ID { return s.id }

func (s *recordingState) Enter(context.Context) error {
	s.j.events = append(s.j.events, "enter "+string(s.id))
	return s.enterErr
}

func (s *recordingState) Pause()  { s.j.events = append(s.j.events, "pause "+string(s.id)) }
func (s *recordingState) Resume() { s.j.events = append(s.j.events, "resume "+string(s.id)) }
func (s *recordingState) Exit()   { s.j.events = append(s.j.events, "exit "+string(s.id)) }

func newTestStack(j *journal, failing ...ID) *Stack {
	f := NewFactory()
	for _, id := range []ID{"Menu", "Game", "Pause", "Broken"} {
		id := id
		var enterErr error
		for _, bad := range failing {
			if bad == id {
				enterErr = errors.New("enter failed")
			}
		}
		f.Register(id, func() State { return &recordingState{id: id, j: j, enterErr: enterErr} })
	}
	return NewStack(f, nil)
}

func TestStack_PushPausesAndPopResumes(t *testing.T) {
	j := &journal{}
	s := newTestStack(j)
	ctx := context.Background()

	require.NoError(t, s.PushState(ctx, "Menu", true))
	require.NoError(t, s.PushState(ctx, "Game", true))
	assert.Equal(t, []ID{"Menu", "Game"}, s.IDs())

	require.NoError(t, s.PopState(ctx, true))
	assert.Equal(t, []string{"enter Menu", "pause Menu", "enter Game", "exit Game", "resume Menu"}, j.events)
	assert.Equal(t, ID("Menu"), s.Current().ID())
}

func TestStack_PushSameTopIsNoop(t *testing.T) {
	j := &journal{}
	s := newTestStack(j)
	ctx := context.Background()

	require.NoError(t, s.PushState(ctx, "Menu", true))
	require.NoError(t, s.PushState(ctx, "Menu", true))
	assert.Equal(t, 1, s.Depth())

	require.NoError(t, s.PushState(ctx, "Menu", false))
	assert.Equal(t, 2, s.Depth())
}

func TestStack_ChangeStateOnlyExitsAndEnters(t *testing.T) {
	j := &journal{}
	s := newTestStack(j)
	ctx := context.Background()

	require.NoError(t, s.PushState(ctx, "Menu", true))
	j.events = nil
	require.NoError(t, s.ChangeState(ctx, "Game"))

	assert.Equal(t, []string{"exit Menu", "enter Game"}, j.events)
	assert.Equal(t, []ID{"Game"}, s.IDs())
}

func TestStack_PopEmpty(t *testing.T) {
	s := newTestStack(&journal{})
	ctx := context.Background()

	require.NoError(t, s.PopState(ctx, false))
	assert.ErrorIs(t, s.PopState(ctx, true), faults.ErrInvariantViolation)
}

func TestStack_PopLastWithResumeIsInvariantViolation(t *testing.T) {
	j := &journal{}
	s := newTestStack(j)
	ctx := context.Background()

	require.NoError(t, s.PushState(ctx, "Menu", true))
	err := s.PopState(ctx, true)
	assert.ErrorIs(t, err, faults.ErrInvariantViolation)
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, []string{"enter Menu", "exit Menu"}, j.events)
}

func TestStack_UnknownStateIsKeyNotFound(t *testing.T) {
	s := newTestStack(&journal{})
	err := s.PushState(context.Background(), "Credits", true)
	assert.ErrorIs(t, err, faults.ErrKeyNotFound)
	assert.Equal(t, 0, s.Depth())
}

func TestStack_FailedEnterResumesPausedTop(t *testing.T) {
	j := &journal{}
	s := newTestStack(j, "Broken")
	ctx := context.Background()

	require.NoError(t, s.PushState(ctx, "Menu", true))
	require.Error(t, s.PushState(ctx, "Broken", true))

	assert.Equal(t, []ID{"Menu"}, s.IDs())
	assert.Equal(t, []string{"enter Menu", "pause Menu", "enter Broken", "resume Menu"}, j.events)
}

func TestStack_Bootstrap(t *testing.T) {
	j := &journal{}
	s := newTestStack(j)
	ctx := context.Background()

	require.NoError(t, s.Bootstrap(ctx, "Menu"))
	require.NoError(t, s.Bootstrap(ctx, "Game"))

	assert.Equal(t, []ID{"Menu"}, s.IDs())
	assert.Equal(t, []string{"enter Menu", "enter Menu"}, j.events)
}

func TestFactory_IDs(t *testing.T) {
	f := NewFactory()
	f.Register("b", nil)
	f.Register("a", nil)
	assert.Equal(t, []ID{"a", "b"}, f.IDs())
}

func TestClock(t *testing.T) {
	c := NewClock(0)
	assert.True(t, c.Paused())
	c.Resume()
	assert.Equal(t, 1.0, c.Scale())
	c.SetScale(-2)
	assert.True(t, c.Paused())
}

type fakeLoader struct {
	err     error
	release chan struct{}
	keys    []string
}

func (l *fakeLoader) LoadContext(_ context.Context, key string, onFinish func()) error {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return l.err
	}
	if l.release != nil {
		<-l.release
	}
	onFinish()
	return nil
}

func TestContextState_ResumesAfterLoad(t *testing.T) {
	clock := NewClock(1)
	loader := &fakeLoader{release: make(chan struct{})}
	hidden := false
	st := NewContextState("Menu", "MainMenu", loader, clock, func() { hidden = true }, nil)

	require.NoError(t, st.Enter(context.Background()))
	assert.True(t, clock.Paused())

	select {
	case <-st.Ready():
		t.Fatal("ready before the load finished")
	default:
	}

	close(loader.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, st.Wait(ctx))

	assert.True(t, hidden)
	assert.False(t, clock.Paused())
	st.Exit()
	assert.Equal(t, []string{"MainMenu"}, loader.keys)
}

func TestContextState_LoadErrorIsReported(t *testing.T) {
	clock := NewClock(1)
	st := NewContextState("Menu", "Nope", &fakeLoader{err: faults.KeyNotFound("profile", "Nope")}, clock, nil, nil)

	require.NoError(t, st.Enter(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.ErrorIs(t, st.Wait(ctx), faults.ErrKeyNotFound)
	assert.True(t, clock.Paused())
	st.Exit()
}

func TestContextState_OnStack(t *testing.T) {
	clock := NewClock(0)
	loader := &fakeLoader{}
	f := NewFactory()
	f.Register("Menu", func() State { return NewContextState("Menu", "MainMenu", loader, clock, nil, nil) })
	s := NewStack(f, nil)

	require.NoError(t, s.Bootstrap(context.Background(), "Menu"))
	cs, ok := s.Current().(*ContextState)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, cs.Wait(ctx))
	assert.Equal(t, 1.0, clock.Scale())
	require.NoError(t, s.PopState(context.Background(), false))
}
