// Package ui keeps the live set of UI components for each category in line with a profile.
package ui

import (
	"fmt"
	"strings"

	"github.com/codex-k8s/loadctl/internal/profile"
)

// Category is one family of UI components. Each category picks its own desired keys from a profile.
type Category interface {
	// Name is the lower-case category tag used in asset keys and the manifest.
	Name() string
	// DesiredKeys returns the component names the profile wants live in this category.
	DesiredKeys(p *profile.Profile) []string

	category()
}

type hudCategory struct{}

func (hudCategory) Name() string { return "hud" }

func (hudCategory) DesiredKeys(p *profile.Profile) []string {
	if p == nil {
		return nil
	}
	return p.HUDKeys
}

func (hudCategory) category() {}

type overlayCategory struct{}

func (overlayCategory) Name() string { return "overlay" }

func (overlayCategory) DesiredKeys(p *profile.Profile) []string {
	if p == nil {
		return nil
	}
	return p.OverlayKeys
}

func (overlayCategory) category() {}

type screenCategory struct{}

func (screenCategory) Name() string { return "screen" }

func (screenCategory) DesiredKeys(p *profile.Profile) []string {
	if p == nil {
		return nil
	}
	return p.ScreenKeys
}

func (screenCategory) category() {}

var (
	// HUD holds heads-up display components.
	HUD Category = hudCategory{}
	// Overlay holds components drawn above the HUD.
	Overlay Category = overlayCategory{}
	// Screen holds full-screen components such as the loading indicator.
	Screen Category = screenCategory{}
)

// Categories returns every category in reconciliation order.
func Categories() []Category {
	return []Category{HUD, Overlay, Screen}
}

// ParseCategory resolves a category by name, case-insensitively.
func ParseCategory(name string) (Category, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, c := range Categories() {
		if c.Name() == n {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown component category %q", name)
}

// Key identifies one component within a category.
type Key struct {
	Category Category
	Name     string
}

// NewKey builds a Key.
func NewKey(c Category, name string) Key {
	return Key{Category: c, Name: name}
}

// ParseKey parses the "category/name" form produced by String.
func ParseKey(raw string) (Key, error) {
	cat, name, ok := strings.Cut(raw, "/")
	if !ok || strings.TrimSpace(name) == "" {
		return Key{}, fmt.Errorf("invalid component key %q: want category/name", raw)
	}
	c, err := ParseCategory(cat)
	if err != nil {
		return Key{}, err
	}
	return Key{Category: c, Name: strings.TrimSpace(name)}, nil
}

// String renders the key as "category/name".
func (k Key) String() string {
	if k.Category == nil {
		return k.Name
	}
	return k.Category.Name() + "/" + k.Name
}

// AssetKey is the asset cache key backing the component.
func (k Key) AssetKey() string {
	return k.String()
}
