package config

import (
	"path/filepath"
	"strings"
)

// ResolvePath returns p unchanged when absolute, otherwise joined to the manifest directory.
func (m *Manifest) ResolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return m.BaseDir
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.BaseDir, p)
}

// AssetsPath is the resolved assets root. It defaults to the manifest directory.
func (m *Manifest) AssetsPath() string {
	return m.ResolvePath(m.AssetsRoot)
}

// ProfilesPath is the resolved profiles directory, or "" when none is configured.
func (m *Manifest) ProfilesPath() string {
	if strings.TrimSpace(m.ProfilesDir) == "" {
		return ""
	}
	return m.ResolvePath(m.ProfilesDir)
}

// SceneTimings returns the declared scenes keyed by name.
func (m *Manifest) SceneTimings() map[string]SceneSpec {
	out := make(map[string]SceneSpec, len(m.Scenes))
	for _, s := range m.Scenes {
		out[s.Name] = s
	}
	return out
}
