package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/profile"
	"github.com/codex-k8s/loadctl/internal/scenes"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileAssets_LoadThroughCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "hud", "Health"), "health-bar")
	writeFile(t, filepath.Join(root, "audio", "boss.ogg"), "ogg")

	prov := NewFileAssets(root, map[string]string{"audio/boss": "audio/boss.ogg"}, nil)
	cache := assets.NewCache(prov, nil)

	h, err := cache.Acquire(context.Background(), "hud/Health")
	require.NoError(t, err)
	a, ok := h.Resource.(*Asset)
	require.True(t, ok)
	assert.Equal(t, "health-bar", string(a.Data))

	_, err = cache.Acquire(context.Background(), "audio/boss")
	require.NoError(t, err)
	assert.Equal(t, int64(len("health-bar")+len("ogg")), prov.ResidentBytes())

	cache.Release("hud/Health")
	assert.Equal(t, int64(3), prov.ResidentBytes())
}

func TestFileAssets_MissingFileIsLoadFailure(t *testing.T) {
	cache := assets.NewCache(NewFileAssets(t.TempDir(), nil, nil), nil)
	_, err := cache.Acquire(context.Background(), "screen/Nope")
	require.Error(t, err)
	assert.True(t, faults.IsLoadFailure(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileAssets_Resolve(t *testing.T) {
	prov := NewFileAssets("/data", map[string]string{"abs": "/opt/x.bin"}, nil)
	assert.Equal(t, "/opt/x.bin", prov.Resolve("abs"))
	assert.Equal(t, filepath.Join("/data", "hud", "Map"), prov.Resolve("hud/Map"))
}

func TestSimScenes_DrivesSceneSet(t *testing.T) {
	sim := NewSimScenes(map[string]SceneTiming{
		"Town":         {LoadTicks: 2, UnloadTicks: 1},
		"TownInterior": {LoadTicks: 1},
	}, nil)
	set := scenes.NewSet(sim, time.Millisecond, nil)
	ctx := context.Background()

	p := &profile.Profile{PrimaryScene: "Town", SubScenes: []string{"TownInterior"}}
	require.NoError(t, set.InitializeForProfile(ctx, p, nopReporter{}))
	assert.Equal(t, []string{"Town", "TownInterior"}, sim.Loaded())
	assert.Equal(t, "Town", sim.Active())

	require.NoError(t, set.Unload(ctx, "Town"))
	assert.Equal(t, []string{"TownInterior"}, sim.Loaded())
	assert.Empty(t, sim.Active())
}

func TestSimScenes_UnknownSceneFails(t *testing.T) {
	sim := NewSimScenes(nil, nil)
	set := scenes.NewSet(sim, time.Millisecond, nil)

	err := set.LoadAdditive(context.Background(), "Atlantis", true)
	require.Error(t, err)
	assert.True(t, faults.IsLoadFailure(err))
	assert.Empty(t, set.Loaded())
	assert.Error(t, sim.SetActive("Atlantis"))
}

func TestCountdown(t *testing.T) {
	fired := 0
	c := newCountdown(2, func() { fired++ })
	assert.False(t, c.Done())
	assert.False(t, c.Done())
	assert.True(t, c.Done())
	assert.True(t, c.Done())
	assert.Equal(t, 1, fired)
}

type nopReporter struct{}

func (nopReporter) DeclareSubprocesses(int)    {}
func (nopReporter) DeclareSubprocessSteps(int) {}
func (nopReporter) DeclareStep(string)         {}
