// Package config contains the loader and strongly typed model for the loadctl manifest.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/loadctl/internal/env"
	"github.com/codex-k8s/loadctl/internal/profile"
)

// Default runtime settings applied when the manifest leaves them empty.
const (
	DefaultTickInterval       = "10ms"
	DefaultPreloadConcurrency = 4
	DefaultIndicator          = "Loading"
)

// Manifest is the declarative description of an application: its scenes, UI components, assets,
// profiles and states. It mirrors loadctl.yaml after template rendering.
type Manifest struct {
	// Project is the short project name shown in logs and templates.
	Project string `yaml:"project" toml:"project"`
	// EnvFiles lists .env files to load before rendering.
	EnvFiles []string `yaml:"envFiles,omitempty" toml:"envFiles,omitempty"`
	// AssetsRoot is the directory asset keys are resolved against.
	AssetsRoot string `yaml:"assetsRoot,omitempty" toml:"assetsRoot,omitempty"`
	// ProfilesDir holds one file per profile, loaded on first use.
	ProfilesDir string `yaml:"profilesDir,omitempty" toml:"profilesDir,omitempty"`
	// InitialState is the state pushed on bootstrap. Defaults to the first state.
	InitialState string `yaml:"initialState,omitempty" toml:"initialState,omitempty"`
	// Runtime tunes the loading core.
	Runtime RuntimeConfig `yaml:"runtime,omitempty" toml:"runtime,omitempty"`
	// States maps state ids to the profile each one loads.
	States []StateSpec `yaml:"states,omitempty" toml:"states,omitempty"`
	// Components declares every UI component by category.
	Components ComponentCatalog `yaml:"components,omitempty" toml:"components,omitempty"`
	// Assets maps asset keys to file paths relative to AssetsRoot.
	Assets map[string]string `yaml:"assets,omitempty" toml:"assets,omitempty"`
	// Scenes declares every scene of the build.
	Scenes []SceneSpec `yaml:"scenes,omitempty" toml:"scenes,omitempty"`
	// Profiles are declared inline.
	Profiles []profile.Profile `yaml:"profiles,omitempty" toml:"profiles,omitempty"`

	// BaseDir is the directory containing the manifest file.
	BaseDir string `yaml:"-" toml:"-"`
	// Format is "yaml" or "toml".
	Format string `yaml:"-" toml:"-"`
}

// RuntimeConfig tunes the loading core.
type RuntimeConfig struct {
	// TickInterval is the scene completion polling interval (duration string).
	TickInterval string `yaml:"tickInterval,omitempty" toml:"tickInterval,omitempty"`
	// PreloadConcurrency bounds concurrent preload acquires.
	PreloadConcurrency int `yaml:"preloadConcurrency,omitempty" toml:"preloadConcurrency,omitempty"`
	// Indicator is the screen component used as loading indicator.
	Indicator string `yaml:"indicator,omitempty" toml:"indicator,omitempty"`
	// LoadTimeout bounds one context load (duration string). Empty means no limit.
	LoadTimeout string `yaml:"loadTimeout,omitempty" toml:"loadTimeout,omitempty"`
}

// Tick parses TickInterval.
func (r RuntimeConfig) Tick() (time.Duration, error) {
	return parseDuration("runtime.tickInterval", r.TickInterval)
}

// Timeout parses LoadTimeout. Zero means no limit.
func (r RuntimeConfig) Timeout() (time.Duration, error) {
	return parseDuration("runtime.loadTimeout", r.LoadTimeout)
}

func parseDuration(field, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

// StateSpec binds a state id to the profile it loads on Enter.
type StateSpec struct {
	// Name is the state id.
	Name string `yaml:"name" toml:"name"`
	// Profile is the profile key loaded when the state enters.
	Profile string `yaml:"profile" toml:"profile"`
}

// ComponentCatalog declares component names per UI category.
type ComponentCatalog struct {
	HUD     []string `yaml:"hud,omitempty" toml:"hud,omitempty"`
	Overlay []string `yaml:"overlay,omitempty" toml:"overlay,omitempty"`
	Screen  []string `yaml:"screen,omitempty" toml:"screen,omitempty"`
}

// Names returns the declared names for a category tag ("hud", "overlay", "screen").
func (c ComponentCatalog) Names(category string) []string {
	switch category {
	case "hud":
		return c.HUD
	case "overlay":
		return c.Overlay
	case "screen":
		return c.Screen
	default:
		return nil
	}
}

// SceneSpec declares one scene and how long the simulated runtime takes to load and unload it.
type SceneSpec struct {
	// Name is the scene id.
	Name string `yaml:"name" toml:"name"`
	// LoadTicks is the number of polls a load takes.
	LoadTicks int `yaml:"loadTicks,omitempty" toml:"loadTicks,omitempty"`
	// UnloadTicks is the number of polls an unload takes.
	UnloadTicks int `yaml:"unloadTicks,omitempty" toml:"unloadTicks,omitempty"`
}

// State returns the state spec named name.
func (m *Manifest) State(name string) (StateSpec, bool) {
	for _, s := range m.States {
		if s.Name == name {
			return s, true
		}
	}
	return StateSpec{}, false
}

// ApplyDefaults fills runtime defaults and normalizes inline profiles.
func (m *Manifest) ApplyDefaults() {
	if strings.TrimSpace(m.Runtime.TickInterval) == "" {
		m.Runtime.TickInterval = DefaultTickInterval
	}
	if m.Runtime.PreloadConcurrency <= 0 {
		m.Runtime.PreloadConcurrency = DefaultPreloadConcurrency
	}
	if strings.TrimSpace(m.Runtime.Indicator) == "" {
		m.Runtime.Indicator = DefaultIndicator
	}
	if m.InitialState == "" && len(m.States) > 0 {
		m.InitialState = m.States[0].Name
	}
	for i := range m.Profiles {
		m.Profiles[i].Normalize()
	}
}

// LoadOptions describes parameters that influence template rendering of the manifest.
type LoadOptions struct {
	// UserVars are inline variables for template rendering.
	UserVars env.Vars
	// VarFiles lists additional var-files to load.
	VarFiles []string
}

// TemplateContext represents the data exposed to Go templates when rendering the manifest.
type TemplateContext struct {
	// Project is the project identifier.
	Project string
	// ProjectRoot is the directory containing the manifest.
	ProjectRoot string
	// Now is the timestamp captured for template rendering.
	Now time.Time
	// UserVars contains inline user variables.
	UserVars env.Vars
	// EnvMap merges OS env, envFiles, var-files and user variables.
	EnvMap env.Vars
}

// rawHeader is a minimal struct used to extract top-level fields before templating.
type rawHeader struct {
	Project  string   `yaml:"project" toml:"project"`
	EnvFiles []string `yaml:"envFiles" toml:"envFiles"`
}

// FormatOf returns "toml" for .toml paths and "yaml" otherwise.
func FormatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

func decode(format string, data []byte, v any) error {
	if format == "toml" {
		return toml.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// LoadAndRender reads the manifest, loads envFiles and user vars, and returns the rendered bytes
// together with the template context that was used.
func LoadAndRender(path string, opts LoadOptions) ([]byte, TemplateContext, error) {
	var zeroCtx TemplateContext

	if path == "" {
		return nil, zeroCtx, fmt.Errorf("config path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, zeroCtx, fmt.Errorf("resolve config path: %w", err)
	}

	rawBytes, err := os.ReadFile(absPath)
	if err != nil {
		return nil, zeroCtx, fmt.Errorf("read config %q: %w", absPath, err)
	}

	var header rawHeader
	if err := decode(FormatOf(absPath), rawBytes, &header); err != nil {
		return nil, zeroCtx, fmt.Errorf("parse top-level config fields: %w", err)
	}

	baseDir := filepath.Dir(absPath)
	osVars := env.FromOS()

	envFileVars, err := env.LoadEnvFiles(baseDir, header.EnvFiles)
	if err != nil {
		return nil, zeroCtx, err
	}

	varFileVars := make(env.Vars)
	for _, vf := range opts.VarFiles {
		if strings.TrimSpace(vf) == "" {
			continue
		}
		vp, err := env.LoadVarFile(vf)
		if err != nil {
			return nil, zeroCtx, fmt.Errorf("load var-file %q: %w", vf, err)
		}
		varFileVars = env.Merge(varFileVars, vp)
	}

	ctx := TemplateContext{
		Project:     header.Project,
		ProjectRoot: baseDir,
		Now:         time.Now().UTC(),
		UserVars:    opts.UserVars,
		EnvMap:      env.Merge(osVars, envFileVars, varFileVars, opts.UserVars),
	}

	rendered, err := RenderTemplate(filepath.Base(absPath), rawBytes, ctx)
	if err != nil {
		return nil, zeroCtx, err
	}
	return rendered, ctx, nil
}

// LoadManifest loads, templates and parses the manifest, then applies defaults.
// It does not validate; call Validate for that.
func LoadManifest(path string, opts LoadOptions) (*Manifest, TemplateContext, error) {
	rendered, ctx, err := LoadAndRender(path, opts)
	if err != nil {
		return nil, TemplateContext{}, err
	}

	format := FormatOf(path)
	var m Manifest
	if err := decode(format, rendered, &m); err != nil {
		return nil, TemplateContext{}, fmt.Errorf("parse rendered %s: %w", filepath.Base(path), err)
	}
	m.BaseDir = ctx.ProjectRoot
	m.Format = format
	m.ApplyDefaults()
	return &m, ctx, nil
}
