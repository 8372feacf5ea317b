// Package watch reloads the manifest when it or the files it depends on change on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codex-k8s/loadctl/internal/logging"
)

// DefaultDebounce is how long a path must stay quiet before a change is reported.
const DefaultDebounce = 300 * time.Millisecond

// Config describes what a ManifestWatcher observes.
type Config struct {
	// ManifestPath is the manifest file.
	ManifestPath string
	// Files are additional files to observe, such as env files.
	Files []string
	// ProfilesDir is a directory of profile files; every YAML or TOML file in it is observed.
	ProfilesDir string
	// Debounce overrides DefaultDebounce.
	Debounce time.Duration
	// OnChange receives the settled paths of one batch of changes.
	OnChange func(ctx context.Context, changed []string)
	// Logger receives watcher logs.
	Logger *slog.Logger
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Batches       int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// ManifestWatcher watches the directories holding the manifest and its dependencies and reports
// debounced batches of relevant changes.
type ManifestWatcher struct {
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	dirs     []string
	profiles string
	onChange func(ctx context.Context, changed []string)
	debounce time.Duration
	pending  map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	logger   *slog.Logger
	stats    Stats
}

// NewManifestWatcher creates a watcher. Call Start to begin watching.
func NewManifestWatcher(cfg Config) (*ManifestWatcher, error) {
	if cfg.ManifestPath == "" {
		return nil, fmt.Errorf("watch: manifest path is empty")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("watch: OnChange is required")
	}
	paths, err := resolvePaths(cfg)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &ManifestWatcher{
		watcher:  w,
		files:    paths.files,
		dirs:     paths.dirs,
		profiles: paths.profiles,
		onChange: cfg.OnChange,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logging.OrDiscard(cfg.Logger),
	}, nil
}

// watchPaths are the absolute paths a watcher observes.
type watchPaths struct {
	files    map[string]struct{}
	dirs     []string
	profiles string
}

// resolvePaths makes every configured path absolute and collects the directories to watch.
func resolvePaths(cfg Config) (watchPaths, error) {
	out := watchPaths{files: make(map[string]struct{})}
	dirs := map[string]struct{}{}
	for _, f := range append([]string{cfg.ManifestPath}, cfg.Files...) {
		if strings.TrimSpace(f) == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return watchPaths{}, fmt.Errorf("resolve %q: %w", f, err)
		}
		out.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	if cfg.ProfilesDir != "" {
		abs, err := filepath.Abs(cfg.ProfilesDir)
		if err != nil {
			return watchPaths{}, fmt.Errorf("resolve %q: %w", cfg.ProfilesDir, err)
		}
		out.profiles = abs
		dirs[abs] = struct{}{}
	}
	for d := range dirs {
		out.dirs = append(out.dirs, d)
	}
	sort.Strings(out.dirs)
	return out, nil
}

// Start begins watching. It does not block; the event loop runs until ctx ends or Stop is called.
func (mw *ManifestWatcher) Start(ctx context.Context) error {
	mw.mu.Lock()
	if mw.running {
		mw.mu.Unlock()
		return nil
	}
	mw.running = true
	mw.mu.Unlock()

	for _, d := range mw.dirs {
		if err := mw.watcher.Add(d); err != nil {
			mw.logger.Warn("cannot watch directory", "dir", d, "error", err)
			continue
		}
		mw.logger.Debug("watching directory", "dir", d)
	}

	go mw.run(ctx)
	return nil
}

// Stop stops the event loop and closes the underlying watcher.
func (mw *ManifestWatcher) Stop() {
	mw.mu.Lock()
	if !mw.running {
		mw.mu.Unlock()
		_ = mw.watcher.Close()
		return
	}
	mw.running = false
	mw.mu.Unlock()

	close(mw.stopCh)
	<-mw.doneCh

	if err := mw.watcher.Close(); err != nil {
		mw.logger.Error("error closing file watcher", "error", err)
	}
}

// Stats returns a snapshot of watcher activity.
func (mw *ManifestWatcher) Stats() Stats {
	mw.mu.RLock()
	defer mw.mu.RUnlock()
	return mw.stats
}

// Dirs lists the watched directories.
func (mw *ManifestWatcher) Dirs() []string {
	return append([]string(nil), mw.dirs...)
}

func (mw *ManifestWatcher) run(ctx context.Context) {
	defer close(mw.doneCh)

	tick := mw.debounce / 4
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-mw.stopCh:
			return
		case event, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			mw.handleEvent(event)
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.logger.Error("file watcher error", "error", err)
			mw.mu.Lock()
			mw.stats.Errors++
			mw.mu.Unlock()
		case <-ticker.C:
			mw.flush(ctx)
		}
	}
}

func (mw *ManifestWatcher) relevant(path string) bool {
	if _, ok := mw.files[path]; ok {
		return true
	}
	if mw.profiles == "" || filepath.Dir(path) != mw.profiles {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

func (mw *ManifestWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(event.Name)
	if !mw.relevant(path) {
		return
	}
	mw.logger.Debug("file changed", "path", path, "op", event.Op.String())

	mw.mu.Lock()
	mw.stats.Events++
	mw.stats.LastEventPath = path
	mw.stats.LastEventTime = time.Now()
	mw.pending[path] = time.Now()
	mw.mu.Unlock()
}

// flush reports the pending paths once every one of them has been quiet for the debounce window.
func (mw *ManifestWatcher) flush(ctx context.Context) {
	mw.mu.Lock()
	if len(mw.pending) == 0 {
		mw.mu.Unlock()
		return
	}
	now := time.Now()
	for _, t := range mw.pending {
		if now.Sub(t) < mw.debounce {
			mw.mu.Unlock()
			return
		}
	}
	changed := make([]string, 0, len(mw.pending))
	for p := range mw.pending {
		changed = append(changed, p)
	}
	mw.pending = make(map[string]time.Time)
	mw.stats.Batches++
	mw.mu.Unlock()

	sort.Strings(changed)
	mw.logger.Info("manifest inputs changed", "paths", changed)
	mw.onChange(ctx, changed)
}
