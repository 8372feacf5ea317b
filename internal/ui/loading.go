package ui

import (
	"log/slog"
	"sync"

	"github.com/codex-k8s/loadctl/internal/assets"
	"github.com/codex-k8s/loadctl/internal/progress"
)

// DefaultIndicator is the screen component used as loading indicator when none is configured.
const DefaultIndicator = "Loading"

// ProgressSink receives every progress update together with the latest status message.
type ProgressSink func(progress float64, message string)

// LoadingScreen is a screen component that mirrors a progress source.
type LoadingScreen struct {
	*Surface

	binding *progress.Binding
	sink    ProgressSink

	mu       sync.Mutex
	progress float64
	message  string
}

// NewLoadingScreen creates an inactive loading screen. sink may be nil.
func NewLoadingScreen(key Key, res assets.Resource, sink ProgressSink, logger *slog.Logger) *LoadingScreen {
	ls := &LoadingScreen{
		Surface: NewSurface(key, res, logger),
		sink:    sink,
	}
	ls.binding = progress.NewBinding(ls.updateProgress, ls.updateMessage)
	return ls
}

// Bind attaches the screen to src, detaching from any previous source, and resets the display.
func (l *LoadingScreen) Bind(src progress.Source) {
	l.mu.Lock()
	l.progress = 0
	l.message = ""
	l.mu.Unlock()
	l.binding.Bind(src)
}

// Unbind detaches the screen from its source.
func (l *LoadingScreen) Unbind() {
	l.binding.Unbind()
}

// Deactivate hides the screen and stops listening.
func (l *LoadingScreen) Deactivate(instant bool) {
	l.binding.Unbind()
	l.Surface.Deactivate(instant)
}

// Progress returns the last progress value received.
func (l *LoadingScreen) Progress() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.progress
}

// Message returns the last status message received.
func (l *LoadingScreen) Message() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.message
}

func (l *LoadingScreen) updateProgress(v float64) {
	l.mu.Lock()
	l.progress = v
	msg := l.message
	l.mu.Unlock()
	if l.sink != nil {
		l.sink(v, msg)
	}
}

func (l *LoadingScreen) updateMessage(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.message = m
}

// IndicatorFactory builds a LoadingScreen for the screen key named indicator and delegates every
// other key to next.
func IndicatorFactory(indicator string, next Factory, sink ProgressSink, logger *slog.Logger) Factory {
	if indicator == "" {
		indicator = DefaultIndicator
	}
	return func(key Key, h assets.Handle) (Component, error) {
		if key.Category == Screen && key.Name == indicator {
			return NewLoadingScreen(key, h.Resource, sink, logger), nil
		}
		return next(key, h)
	}
}
