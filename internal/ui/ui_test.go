package ui

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/profile"
	"github.com/codex-k8s/loadctl/internal/progress"
)

type memProvider struct {
	mu       sync.Mutex
	released []string
	missing  map[string]bool
}

func (m *memProvider) Load(_ context.Context, key string) (assets.Resource, error) {
	if m.missing[key] {
		return nil, errors.New("no such asset")
	}
	return []byte(key), nil
}

func (m *memProvider) Release(key string, _ assets.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, key)
}

type stepRecorder struct {
	subprocesses int
	declared     []int
	steps        []string
}

func (r *stepRecorder) DeclareSubprocesses(n int)    { r.subprocesses = n }
func (r *stepRecorder) DeclareSubprocessSteps(m int) { r.declared = append(r.declared, m) }
func (r *stepRecorder) DeclareStep(message string)   { r.steps = append(r.steps, message) }

func TestReconciler_RemovesBeforeAdding(t *testing.T) {
	prov := &memProvider{}
	cache := assets.NewCache(prov, nil)
	rec := NewReconciler(HUD, cache, SurfaceFactory(nil), nil)
	ctx := context.Background()

	_, err := rec.Reconcile(ctx, []string{"A", "B"}, nil)
	require.NoError(t, err)

	var steps []string
	diff, err := rec.Reconcile(ctx, []string{"B", "C"}, func(m string) { steps = append(steps, m) })
	require.NoError(t, err)

	assert.Equal(t, Diff{Removed: []string{"A"}, Added: []string{"C"}}, diff)
	assert.Equal(t, []string{"removed hud/A", "added hud/C"}, steps)
	assert.Equal(t, []string{"B", "C"}, rec.Keys())
	assert.Equal(t, []string{"hud/A"}, prov.released)
	assert.Equal(t, 0, cache.RefCount("hud/A"))
	assert.Equal(t, 1, cache.RefCount("hud/C"))
}

func TestReconciler_ComponentsStartInactive(t *testing.T) {
	rec := NewReconciler(Overlay, assets.NewCache(&memProvider{}, nil), SurfaceFactory(nil), nil)
	c, err := rec.Ensure(context.Background(), "Map")
	require.NoError(t, err)
	assert.False(t, c.Active())

	again, err := rec.Ensure(context.Background(), "Map")
	require.NoError(t, err)
	assert.Equal(t, c.ID(), again.ID())
}

func TestReconciler_FactoryFailureReleasesAsset(t *testing.T) {
	cache := assets.NewCache(&memProvider{}, nil)
	factory := func(key Key, h assets.Handle) (Component, error) {
		if key.Name == "Broken" {
			return nil, errors.New("bad prefab")
		}
		return NewSurface(key, h.Resource, nil), nil
	}
	rec := NewReconciler(Screen, cache, factory, nil)

	diff, err := rec.Reconcile(context.Background(), []string{"Ok", "Broken", "Never"}, nil)
	require.Error(t, err)
	assert.True(t, faults.IsLoadFailure(err))
	assert.Equal(t, []string{"Ok"}, diff.Added)
	assert.Equal(t, 0, cache.RefCount("screen/Broken"))
	assert.False(t, cache.IsLoaded("screen/Never"))
	assert.Equal(t, []string{"Ok"}, rec.Keys())
}

func TestReconciler_AcquireFailureAborts(t *testing.T) {
	cache := assets.NewCache(&memProvider{missing: map[string]bool{"hud/Gone": true}}, nil)
	rec := NewReconciler(HUD, cache, SurfaceFactory(nil), nil)

	_, err := rec.Reconcile(context.Background(), []string{"Gone", "Next"}, nil)
	require.Error(t, err)
	assert.True(t, faults.IsLoadFailure(err))
	assert.Empty(t, rec.Keys())
}

func TestDirectory_InitializeForProfile(t *testing.T) {
	cache := assets.NewCache(&memProvider{}, nil)
	dir := NewDirectory(cache, SurfaceFactory(nil), nil)

	p := &profile.Profile{
		PrimaryScene: "Town",
		HUDKeys:      []string{"Health", "Minimap"},
		OverlayKeys:  []string{"Pause"},
		ScreenKeys:   []string{"Loading"},
	}
	rep := &stepRecorder{}
	require.NoError(t, dir.InitializeForProfile(context.Background(), p, rep))

	assert.Equal(t, 3, rep.subprocesses)
	assert.Equal(t, []int{2, 1, 1}, rep.declared)
	assert.Len(t, rep.steps, 4)
	assert.Equal(t, []string{"Health", "Minimap"}, dir.Live(HUD))
	assert.Equal(t, []string{"Pause"}, dir.Live(Overlay))
	assert.Equal(t, []string{"Loading"}, dir.Live(Screen))

	next := &profile.Profile{PrimaryScene: "Dungeon", HUDKeys: []string{"Health"}}
	plan := dir.Plan(next)
	assert.Equal(t, []string{"Minimap"}, plan["hud"].Removed)
	assert.Equal(t, []string{"Pause"}, plan["overlay"].Removed)

	require.NoError(t, dir.InitializeForProfile(context.Background(), next, &stepRecorder{}))
	assert.Equal(t, []string{"Health"}, dir.Live(HUD))
	assert.Empty(t, dir.Live(Overlay))
	assert.Empty(t, dir.Live(Screen))

	dir.Close()
	assert.Empty(t, cache.Keys())
}

func TestDirectory_ActivateDeactivate(t *testing.T) {
	dir := NewDirectory(assets.NewCache(&memProvider{}, nil), SurfaceFactory(nil), nil)
	key := NewKey(HUD, "Health")

	assert.False(t, dir.Activate(key, true))

	c, err := dir.Ensure(context.Background(), key)
	require.NoError(t, err)

	assert.True(t, dir.Activate(key, false))
	assert.True(t, c.Active())
	assert.True(t, dir.Deactivate(key, true))
	assert.False(t, c.Active())
}

func TestLoadingScreen_MirrorsBoundSource(t *testing.T) {
	var sunk []float64
	factory := IndicatorFactory("", SurfaceFactory(nil), func(p float64, _ string) { sunk = append(sunk, p) }, nil)
	dir := NewDirectory(assets.NewCache(&memProvider{}, nil), factory, nil)

	c, err := dir.Ensure(context.Background(), NewKey(Screen, DefaultIndicator))
	require.NoError(t, err)
	ls, ok := c.(*LoadingScreen)
	require.True(t, ok)

	other, err := dir.Ensure(context.Background(), NewKey(Screen, "Title"))
	require.NoError(t, err)
	_, isLoading := other.(*LoadingScreen)
	assert.False(t, isLoading)

	unit := &oneStepUnit{}
	first := progress.NewPipeline(nil, nil, unit)
	second := progress.NewPipeline(nil, nil, unit)
	ls.Bind(first)
	ls.Bind(second)

	require.NoError(t, second.Run(context.Background(), nil))
	assert.Equal(t, 1.0, ls.Progress())
	assert.Equal(t, "Tick - done", ls.Message())
	assert.Equal(t, []float64{1}, sunk)

	require.NoError(t, first.Run(context.Background(), nil))
	assert.Len(t, sunk, 1)
}

type oneStepUnit struct{}

func (oneStepUnit) ProcessName() string { return "Tick" }

func (oneStepUnit) InitializeForProfile(_ context.Context, _ *profile.Profile, r progress.Reporter) error {
	r.DeclareSubprocesses(1)
	r.DeclareSubprocessSteps(1)
	r.DeclareStep("done")
	return nil
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("Overlay/Pause")
	require.NoError(t, err)
	assert.Equal(t, Overlay, k.Category)
	assert.Equal(t, "overlay/Pause", k.String())

	_, err = ParseKey("widget/Pause")
	assert.Error(t, err)
	_, err = ParseKey("hud")
	assert.Error(t, err)
}
