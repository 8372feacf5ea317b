package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/codex-k8s/loadctl/internal/profile"
	"github.com/codex-k8s/loadctl/internal/ui"
)

// ValidationError lists every problem found in a manifest.
type ValidationError struct {
	// Problems are human-readable descriptions, one per problem.
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid manifest"
	}
	return "invalid manifest: " + strings.Join(e.Problems, "; ")
}

// Validate checks the manifest for internal consistency: unique names, declared scenes and components,
// a usable loading indicator, and states that point at existing profiles.
// Profiles stored in ProfilesDir are validated by the catalog when they are first loaded.
func Validate(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest is nil")
	}
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, err := m.Runtime.Tick(); err != nil {
		addf("%v", err)
	}
	if _, err := m.Runtime.Timeout(); err != nil {
		addf("%v", err)
	}

	scenes := make(map[string]struct{}, len(m.Scenes))
	for _, s := range m.Scenes {
		if strings.TrimSpace(s.Name) == "" {
			addf("scene without a name")
			continue
		}
		if _, dup := scenes[s.Name]; dup {
			addf("scene %q declared twice", s.Name)
		}
		scenes[s.Name] = struct{}{}
		if s.LoadTicks < 0 || s.UnloadTicks < 0 {
			addf("scene %q has negative ticks", s.Name)
		}
	}

	for _, c := range ui.Categories() {
		seen := map[string]struct{}{}
		for _, name := range m.Components.Names(c.Name()) {
			if _, dup := seen[name]; dup {
				addf("component %s/%s declared twice", c.Name(), name)
			}
			seen[name] = struct{}{}
		}
	}

	keys := make(map[string]struct{}, len(m.Profiles))
	for i := range m.Profiles {
		p := &m.Profiles[i]
		if err := p.Validate(); err != nil {
			addf("%v", err)
			continue
		}
		if _, dup := keys[p.Key]; dup {
			addf("profile %q declared twice", p.Key)
		}
		keys[p.Key] = struct{}{}
		problems = append(problems, checkProfile(m, p, scenes)...)
	}

	states := make(map[string]struct{}, len(m.States))
	for _, s := range m.States {
		if strings.TrimSpace(s.Name) == "" {
			addf("state without a name")
			continue
		}
		if _, dup := states[s.Name]; dup {
			addf("state %q declared twice", s.Name)
		}
		states[s.Name] = struct{}{}
		if _, ok := keys[s.Profile]; ok {
			continue
		}
		if m.ProfilesDir != "" {
			if _, err := FindProfileFile(m.ProfilesPath(), s.Profile); err == nil {
				continue
			}
		}
		addf("state %q refers to unknown profile %q", s.Name, s.Profile)
	}

	if m.InitialState != "" {
		if _, ok := states[m.InitialState]; !ok {
			addf("initialState %q is not a declared state", m.InitialState)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidateProfile checks a single profile against the manifest's scene and component declarations.
func ValidateProfile(m *Manifest, p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	scenes := make(map[string]struct{}, len(m.Scenes))
	for _, s := range m.Scenes {
		scenes[s.Name] = struct{}{}
	}
	if problems := checkProfile(m, p, scenes); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func checkProfile(m *Manifest, p *profile.Profile, scenes map[string]struct{}) []string {
	var problems []string
	for _, s := range p.Scenes() {
		if _, ok := scenes[s]; !ok {
			problems = append(problems, fmt.Sprintf("profile %q uses undeclared scene %q", p.Key, s))
		}
	}
	for _, c := range ui.Categories() {
		declared := m.Components.Names(c.Name())
		for _, name := range c.DesiredKeys(p) {
			if !slices.Contains(declared, name) {
				problems = append(problems, fmt.Sprintf("profile %q uses undeclared component %s/%s", p.Key, c.Name(), name))
			}
		}
	}
	if p.UseLoadingIndicator && !slices.Contains(p.ScreenKeys, m.Runtime.Indicator) {
		problems = append(problems, fmt.Sprintf("profile %q uses the loading indicator but does not list %q in screenKeys", p.Key, m.Runtime.Indicator))
	}
	return problems
}
