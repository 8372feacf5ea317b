package app

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/loadctl/internal/ui"
)

// Status is a snapshot of the running application.
type Status struct {
	Project     string              `yaml:"project,omitempty"`
	States      []string            `yaml:"states"`
	Profile     string              `yaml:"profile,omitempty"`
	Scenes      []string            `yaml:"scenes"`
	ActiveScene string              `yaml:"activeScene,omitempty"`
	Components  map[string][]string `yaml:"components,omitempty"`
	Assets      []string            `yaml:"assets,omitempty"`
	Preloaded   []string            `yaml:"preloaded,omitempty"`
	Bytes       int64               `yaml:"residentBytes"`
	Progress    float64             `yaml:"progress"`
	TimeScale   float64             `yaml:"timeScale"`
	Failures    []string            `yaml:"failures,omitempty"`
}

// Status returns a snapshot of the stack, scenes, components and assets.
func (a *App) Status() Status {
	st := Status{
		Project:     a.Manifest().Project,
		Profile:     a.Orchestrator.CurrentProfile(),
		Scenes:      a.Scenes.Loaded(),
		ActiveScene: a.Scenes.Active(),
		Components:  make(map[string][]string),
		Assets:      a.Cache.Keys(),
		Preloaded:   a.Preloader.Held(),
		Bytes:       a.Files.ResidentBytes(),
		TimeScale:   a.Clock.Scale(),
	}
	for _, id := range a.Stack.IDs() {
		st.States = append(st.States, string(id))
	}
	for _, c := range ui.Categories() {
		if live := a.Directory.Live(c); len(live) > 0 {
			st.Components[c.Name()] = live
		}
	}
	if p := a.Orchestrator.Current(); p != nil {
		st.Progress = p.Progress()
	}
	for _, f := range a.Orchestrator.LastFailures() {
		st.Failures = append(st.Failures, fmt.Sprintf("%s: %v", f.Process, f.Err))
	}
	return st
}

// YAML renders the status as a YAML document.
func (s Status) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	return buf.Bytes(), nil
}
