// Package profile defines the declarative description of one application context.
package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/codex-k8s/loadctl/internal/stringsutil"
)

// Profile describes one context transition: the scenes to have loaded, the UI components to keep live
// per category and the assets to keep pre-fetched. Profiles are treated as immutable snapshots;
// the catalog hands out clones.
type Profile struct {
	// Key identifies the profile. It defaults to PrimaryScene when empty.
	Key string `yaml:"key,omitempty" toml:"key,omitempty"`
	// PrimaryScene is loaded first and becomes the active scene.
	PrimaryScene string `yaml:"primaryScene" toml:"primaryScene"`
	// SubScenes are loaded additively after the primary scene.
	SubScenes []string `yaml:"subScenes,omitempty" toml:"subScenes,omitempty"`
	// UseLoadingIndicator shows and binds the loading indicator while the context loads.
	UseLoadingIndicator bool `yaml:"useLoadingIndicator,omitempty" toml:"useLoadingIndicator,omitempty"`
	// HUDKeys are the heads-up display components to keep live.
	HUDKeys []string `yaml:"hudKeys,omitempty" toml:"hudKeys,omitempty"`
	// OverlayKeys are the overlay components to keep live.
	OverlayKeys []string `yaml:"overlayKeys,omitempty" toml:"overlayKeys,omitempty"`
	// ScreenKeys are the full-screen components to keep live.
	ScreenKeys []string `yaml:"screenKeys,omitempty" toml:"screenKeys,omitempty"`
	// PreloadKeys are asset keys to keep pre-fetched while the context is active.
	PreloadKeys []string `yaml:"preloadKeys,omitempty" toml:"preloadKeys,omitempty"`
}

// ErrInvalidProfile is returned by Validate.
var ErrInvalidProfile = errors.New("invalid profile")

// Normalize fills the default key and trims and deduplicates every key list.
func (p *Profile) Normalize() {
	p.PrimaryScene = strings.TrimSpace(p.PrimaryScene)
	p.Key = strings.TrimSpace(p.Key)
	if p.Key == "" {
		p.Key = p.PrimaryScene
	}
	p.SubScenes = stringsutil.DedupeStrings(p.SubScenes)
	p.HUDKeys = stringsutil.DedupeStrings(p.HUDKeys)
	p.OverlayKeys = stringsutil.DedupeStrings(p.OverlayKeys)
	p.ScreenKeys = stringsutil.DedupeStrings(p.ScreenKeys)
	p.PreloadKeys = stringsutil.DedupeStrings(p.PreloadKeys)
}

// Validate checks the fields required to run a transition.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.PrimaryScene) == "" {
		return fmt.Errorf("%w %q: missing primaryScene", ErrInvalidProfile, p.Key)
	}
	if slices.Contains(p.SubScenes, p.PrimaryScene) {
		return fmt.Errorf("%w %q: primary scene %q repeated in subScenes", ErrInvalidProfile, p.Key, p.PrimaryScene)
	}
	return nil
}

// Scenes returns the desired scene set: the primary scene followed by the sub-scenes.
func (p *Profile) Scenes() []string {
	scenes := make([]string, 0, len(p.SubScenes)+1)
	scenes = append(scenes, p.PrimaryScene)
	scenes = append(scenes, p.SubScenes...)
	return stringsutil.DedupeStrings(scenes)
}

// Keys returns every component and preload key named by the profile.
func (p *Profile) Keys() []string {
	var keys []string
	keys = append(keys, p.PreloadKeys...)
	keys = append(keys, p.HUDKeys...)
	keys = append(keys, p.OverlayKeys...)
	keys = append(keys, p.ScreenKeys...)
	return keys
}

// Clone returns a deep copy so callers cannot mutate catalog state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.SubScenes = slices.Clone(p.SubScenes)
	c.HUDKeys = slices.Clone(p.HUDKeys)
	c.OverlayKeys = slices.Clone(p.OverlayKeys)
	c.ScreenKeys = slices.Clone(p.ScreenKeys)
	c.PreloadKeys = slices.Clone(p.PreloadKeys)
	return &c
}
