// Package provider implements the resource and scene providers the loadctl CLI drives:
// assets read from disk and a tick-driven scene runtime.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/logging"
)

// Asset is a file loaded into memory.
type Asset struct {
	// Key is the cache key the asset was loaded for.
	Key string
	// Path is the file the bytes were read from.
	Path string
	// Data holds the file contents.
	Data []byte
	// LoadedAt is when the file was read.
	LoadedAt time.Time
}

// FileAssets loads assets from files under a root directory.
type FileAssets struct {
	root    string
	mapping map[string]string
	logger  *slog.Logger

	mu       sync.Mutex
	resident map[string]int64
}

// NewFileAssets constructs a provider rooted at root. mapping overrides the path of individual keys;
// keys without a mapping are read from root/<key>.
func NewFileAssets(root string, mapping map[string]string, logger *slog.Logger) *FileAssets {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &FileAssets{
		root:     root,
		mapping:  m,
		logger:   logging.OrDiscard(logger),
		resident: make(map[string]int64),
	}
}

// Resolve returns the file path backing key.
func (f *FileAssets) Resolve(key string) string {
	f.mu.Lock()
	root := f.root
	p, ok := f.mapping[key]
	f.mu.Unlock()
	if !ok || p == "" {
		p = filepath.FromSlash(key)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// SetMapping replaces the root and key mapping. Assets already resident keep their data.
func (f *FileAssets) SetMapping(root string, mapping map[string]string) {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	f.mu.Lock()
	f.root = root
	f.mapping = m
	f.mu.Unlock()
}

// Load reads the file for key.
func (f *FileAssets) Load(ctx context.Context, key string) (assets.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := f.Resolve(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset file: %w", err)
	}

	f.mu.Lock()
	f.resident[key] = int64(len(data))
	f.mu.Unlock()

	f.logger.Debug("asset file read", "key", key, "path", path, "bytes", len(data))
	return &Asset{Key: key, Path: path, Data: data, LoadedAt: time.Now()}, nil
}

// Release forgets the asset.
func (f *FileAssets) Release(key string, _ assets.Resource) {
	f.mu.Lock()
	delete(f.resident, key)
	f.mu.Unlock()
	f.logger.Debug("asset file released", "key", key)
}

// ResidentBytes returns the total size of the assets currently loaded.
func (f *FileAssets) ResidentBytes() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, n := range f.resident {
		total += n
	}
	return total
}
