package logging

import (
	"log/slog"
	"math"
)

// ProgressLog forwards loading-indicator updates to slog.
// Progress is logged only when it crosses a new whole-step boundary so long loads stay readable.
type ProgressLog struct {
	logger *slog.Logger
	step   float64
	last   float64
}

// NewProgressLog constructs a ProgressLog that logs at most once per step (0.1 = every 10%).
func NewProgressLog(logger *slog.Logger, step float64) *ProgressLog {
	if step <= 0 || step > 1 {
		step = 0.1
	}
	return &ProgressLog{logger: OrDiscard(logger), step: step, last: -1}
}

// Update logs the message at debug level and the progress at info level when a boundary is crossed.
func (p *ProgressLog) Update(progress float64, message string) {
	if message != "" {
		p.logger.Debug("loading step", "message", message)
	}
	bucket := math.Floor(progress/p.step) * p.step
	if progress >= 1 {
		bucket = 1
	}
	if bucket <= p.last {
		return
	}
	p.last = bucket
	p.logger.Info("loading progress", "percent", int(math.Round(progress*100)))
}
