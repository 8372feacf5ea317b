package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/loadctl/internal/env"
	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/profile"
)

const yamlManifest = `project: demo
envFiles:
  - .env
assetsRoot: assets
profilesDir: profiles
runtime:
  tickInterval: '{{ envOr "TICK" "5ms" }}'
states:
  - name: MainMenu
    profile: MainMenu
  - name: Town
    profile: Town
components:
  hud: [Health]
  screen: [Loading, Title]
assets:
  hud/Health: ui/health.json
scenes:
  - name: MainMenu
  - name: Town
    loadTicks: 3
  - name: TownInterior
profiles:
  - primaryScene: MainMenu
    useLoadingIndicator: true
    screenKeys: [Loading, Title]
  - primaryScene: Town
    subScenes: ['{{ default .UserVars.interior "TownInterior" }}']
    useLoadingIndicator: true
    hudKeys: [Health]
    screenKeys: [Loading]
    preloadKeys: ['{{ default .UserVars.music "audio/town" }}']
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadManifest_YAMLWithTemplates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "TICK=20ms\n")
	path := filepath.Join(dir, "loadctl.yaml")
	writeFile(t, path, yamlManifest)

	m, ctx, err := LoadManifest(path, LoadOptions{UserVars: env.Vars{"music": "audio/festival"}})
	require.NoError(t, err)

	assert.Equal(t, "demo", ctx.Project)
	assert.Equal(t, dir, m.BaseDir)
	assert.Equal(t, "yaml", m.Format)
	assert.Equal(t, "20ms", m.Runtime.TickInterval)
	tick, err := m.Runtime.Tick()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, tick)

	assert.Equal(t, DefaultIndicator, m.Runtime.Indicator)
	assert.Equal(t, DefaultPreloadConcurrency, m.Runtime.PreloadConcurrency)
	assert.Equal(t, "MainMenu", m.InitialState)

	require.Len(t, m.Profiles, 2)
	assert.Equal(t, "MainMenu", m.Profiles[0].Key)
	assert.True(t, m.Profiles[1].UseLoadingIndicator)
	assert.Equal(t, []string{"TownInterior"}, m.Profiles[1].SubScenes)
	assert.Equal(t, []string{"audio/festival"}, m.Profiles[1].PreloadKeys)

	assert.Equal(t, filepath.Join(dir, "assets"), m.AssetsPath())
	assert.Equal(t, filepath.Join(dir, "profiles"), m.ProfilesPath())
	assert.Equal(t, 3, m.SceneTimings()["Town"].LoadTicks)

	require.NoError(t, Validate(m))
}

func TestLoadManifest_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loadctl.toml")
	writeFile(t, path, `project = "demo"
initialState = "Boot"

[runtime]
preloadConcurrency = 2

[components]
screen = ["Loading"]

[[scenes]]
name = "Boot"

[[states]]
name = "Boot"
profile = "Boot"

[[profiles]]
primaryScene = "Boot"
useLoadingIndicator = true
screenKeys = ["Loading"]
`)

	m, _, err := LoadManifest(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "toml", m.Format)
	assert.Equal(t, 2, m.Runtime.PreloadConcurrency)
	require.Len(t, m.Profiles, 1)
	assert.Equal(t, "Boot", m.Profiles[0].Key)
	require.NoError(t, Validate(m))
}

func TestLoadAndRender_VarFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loadctl.yaml")
	writeFile(t, path, "project: '{{ envOr \"NAME\" \"none\" | slug }}'\n")
	vars := filepath.Join(dir, "vars.yaml")
	writeFile(t, vars, "NAME: My Game\n")

	out, _, err := LoadAndRender(path, LoadOptions{VarFiles: []string{vars}})
	require.NoError(t, err)
	assert.Equal(t, "project: 'my-game'\n", string(out))
}

func TestLoadAndRender_MissingFile(t *testing.T) {
	_, _, err := LoadAndRender(filepath.Join(t.TempDir(), "nope.yaml"), LoadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	m := &Manifest{
		InitialState: "Ghost",
		Components:   ComponentCatalog{Screen: []string{"Loading"}},
		Scenes:       []SceneSpec{{Name: "Town"}, {Name: "Town"}},
		States:       []StateSpec{{Name: "Menu", Profile: "Missing"}},
		Profiles: []profile.Profile{
			{PrimaryScene: "Town", SubScenes: []string{"Cave"}, HUDKeys: []string{"Health"}, UseLoadingIndicator: true},
			{PrimaryScene: "Town", ScreenKeys: []string{"Loading"}},
		},
	}
	m.ApplyDefaults()

	err := Validate(m)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	msg := err.Error()
	assert.Contains(t, msg, `scene "Town" declared twice`)
	assert.Contains(t, msg, `profile "Town" uses undeclared scene "Cave"`)
	assert.Contains(t, msg, `undeclared component hud/Health`)
	assert.Contains(t, msg, `does not list "Loading" in screenKeys`)
	assert.Contains(t, msg, `profile "Town" declared twice`)
	assert.Contains(t, msg, `state "Menu" refers to unknown profile "Missing"`)
	assert.Contains(t, msg, `initialState "Ghost" is not a declared state`)
}

func TestValidate_BadDuration(t *testing.T) {
	m := &Manifest{Runtime: RuntimeConfig{TickInterval: "soon"}}
	assert.Error(t, Validate(m))
}

func TestCatalog_LoadsProfilesFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "profiles", "Dungeon.yaml"), "primaryScene: Dungeon\nhudKeys: [Health]\n")
	writeFile(t, filepath.Join(dir, "profiles", "Cave.toml"), "primaryScene = \"Cave\"\n")
	writeFile(t, filepath.Join(dir, "profiles", "Bad.yaml"), "primaryScene: Nowhere\n")
	writeFile(t, filepath.Join(dir, "profiles", "notes.txt"), "ignored")

	m := &Manifest{
		BaseDir:     dir,
		ProfilesDir: "profiles",
		Components:  ComponentCatalog{HUD: []string{"Health"}},
		Scenes:      []SceneSpec{{Name: "Dungeon"}, {Name: "Cave"}, {Name: "Town"}},
		States:      []StateSpec{{Name: "Play", Profile: "Dungeon"}},
		Profiles:    []profile.Profile{{PrimaryScene: "Town"}},
	}
	m.ApplyDefaults()
	require.NoError(t, Validate(m))

	keys, err := m.ProfileKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bad", "Cave", "Dungeon", "Town"}, keys)

	catalog, err := m.Catalog(nil)
	require.NoError(t, err)
	ctx := context.Background()

	p, err := catalog.Lookup(ctx, "Dungeon")
	require.NoError(t, err)
	assert.Equal(t, []string{"Health"}, p.HUDKeys)

	p, err = catalog.Lookup(ctx, "Cave")
	require.NoError(t, err)
	assert.Equal(t, "Cave", p.PrimaryScene)

	_, err = catalog.Lookup(ctx, "Bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared scene "Nowhere"`)

	_, err = catalog.Lookup(ctx, "Atlantis")
	assert.ErrorIs(t, err, faults.ErrKeyNotFound)

	_, err = catalog.Lookup(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, faults.ErrKeyNotFound)
}

func TestFuncs(t *testing.T) {
	assert.Equal(t, "x", funcDef(" ", "x"))
	assert.Equal(t, "a", funcDef("a", "x"))
	assert.Equal(t, "my-game-1", funcSlug(" My Game_1 "))
	assert.Equal(t, "b", funcTernary(false, "a", "b"))
	assert.Equal(t, "a,b", funcJoin([]string{"a", "b"}, ","))
	assert.Equal(t, "Town", funcTrimPrefix("scene/Town", "scene/"))
	assert.Equal(t, "v", funcEnvOr(env.Vars{"K": "v"})("K", "d"))
	assert.Equal(t, "d", funcEnvOr(env.Vars{"K": ""})("K", "d"))
}
