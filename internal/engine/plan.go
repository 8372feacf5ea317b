package engine

import (
	"bytes"
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/loadctl/internal/stringsutil"
	"github.com/codex-k8s/loadctl/internal/ui"
)

// SceneChanges lists the scene operations of a plan.
type SceneChanges struct {
	Unload []string `yaml:"unload,omitempty"`
	Load   []string `yaml:"load,omitempty"`
	Active string   `yaml:"active"`
}

// PreloadChanges lists the asset keys the preloader would release and acquire.
type PreloadChanges struct {
	Release []string `yaml:"release,omitempty"`
	Acquire []string `yaml:"acquire,omitempty"`
}

// Plan describes what LoadContext would change for one profile, without changing anything.
type Plan struct {
	Profile          string             `yaml:"profile"`
	LoadingIndicator bool               `yaml:"loadingIndicator"`
	Scenes           SceneChanges       `yaml:"scenes"`
	Components       map[string]ui.Diff `yaml:"components,omitempty"`
	Preload          PreloadChanges     `yaml:"preload"`
	Operations       int                `yaml:"operations"`
}

// Plan computes the changes LoadContext would apply for profileKey against the current state.
func (o *Orchestrator) Plan(ctx context.Context, profileKey string) (*Plan, error) {
	prof, err := o.profiles.Lookup(ctx, profileKey)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", profileKey, err)
	}

	plan := &Plan{
		Profile:          prof.Key,
		LoadingIndicator: prof.UseLoadingIndicator,
		Components:       make(map[string]ui.Diff),
	}
	plan.Scenes.Active = prof.PrimaryScene
	if o.scenes != nil {
		plan.Scenes.Unload, plan.Scenes.Load = o.scenes.Plan(prof)
	} else {
		plan.Scenes.Load = prof.Scenes()
	}
	plan.Operations += len(plan.Scenes.Unload) + len(plan.Scenes.Load)

	if o.directory != nil {
		for name, diff := range o.directory.Plan(prof) {
			if diff.Len() == 0 {
				continue
			}
			plan.Components[name] = diff
			plan.Operations += diff.Len()
		}
	}

	if o.preloader != nil {
		plan.Preload.Release, plan.Preload.Acquire = stringsutil.Diff(o.preloader.Held(), prof.PreloadKeys)
		plan.Operations += len(plan.Preload.Release) + len(plan.Preload.Acquire)
	}
	return plan, nil
}

// YAML renders the plan as a YAML document.
func (p *Plan) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return buf.Bytes(), nil
}
