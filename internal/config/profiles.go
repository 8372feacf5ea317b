package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codex-k8s/loadctl/internal/profile"
)

var profileExts = []string{".yaml", ".yml", ".toml"}

// FindProfileFile returns the file holding profile key in dir.
// The error wraps fs.ErrNotExist when no file matches.
func FindProfileFile(dir, key string) (string, error) {
	if strings.ContainsAny(key, `/\`) || key == "" || key == "." || key == ".." {
		return "", fmt.Errorf("invalid profile key %q: %w", key, fs.ErrNotExist)
	}
	for _, ext := range profileExts {
		p := filepath.Join(dir, key+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("profile %q in %s: %w", key, dir, fs.ErrNotExist)
}

// LoadProfileFile reads one profile from a YAML or TOML file. A profile without a key takes the
// file name (without extension) as key.
func LoadProfileFile(path string) (*profile.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %q: %w", path, err)
	}
	var p profile.Profile
	if err := decode(FormatOf(path), data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if strings.TrimSpace(p.Key) == "" {
		p.Key = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	p.Normalize()
	return &p, nil
}

// ListProfileFiles returns the profile keys stored in dir, sorted. A missing dir yields no keys.
func ListProfileFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list profiles in %s: %w", dir, err)
	}
	seen := map[string]struct{}{}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !isProfileExt(ext) {
			continue
		}
		key := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func isProfileExt(ext string) bool {
	for _, e := range profileExts {
		if e == ext {
			return true
		}
	}
	return false
}

// ProfileLoader returns a catalog loader that reads profiles from dir and checks them against m.
func ProfileLoader(m *Manifest, dir string) profile.Loader {
	return func(_ context.Context, key string) (*profile.Profile, error) {
		path, err := FindProfileFile(dir, key)
		if err != nil {
			return nil, err
		}
		p, err := LoadProfileFile(path)
		if err != nil {
			return nil, err
		}
		if err := ValidateProfile(m, p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Catalog builds a profile catalog holding the inline profiles, falling back to ProfilesDir.
func (m *Manifest) Catalog(logger *slog.Logger) (*profile.Catalog, error) {
	var loader profile.Loader
	if m.ProfilesDir != "" {
		loader = ProfileLoader(m, m.ProfilesPath())
	}
	c := profile.NewCatalog(loader, logger)
	if err := c.Replace(m.Profiles); err != nil {
		return nil, err
	}
	return c, nil
}

// ProfileKeys lists every profile key the manifest can resolve, inline and on disk, sorted.
func (m *Manifest) ProfileKeys() ([]string, error) {
	seen := map[string]struct{}{}
	var keys []string
	for _, p := range m.Profiles {
		if _, ok := seen[p.Key]; !ok {
			seen[p.Key] = struct{}{}
			keys = append(keys, p.Key)
		}
	}
	if m.ProfilesDir != "" {
		onDisk, err := ListProfileFiles(m.ProfilesPath())
		if err != nil {
			return nil, err
		}
		for _, k := range onDisk {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}
