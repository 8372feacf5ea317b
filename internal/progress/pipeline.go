// Package progress runs an ordered list of initializable units and aggregates their nested
// progress into one normalized value and a running status message.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/codex-k8s/loadctl/internal/faults"
	"github.com/codex-k8s/loadctl/internal/logging"
	"github.com/codex-k8s/loadctl/internal/profile"
)

// Reporter receives a unit's progress declarations.
//
// A unit declares how many subprocesses it will run, then for every subprocess how many steps it
// has, then reports each completed step. Counts below one are treated as one.
type Reporter interface {
	DeclareSubprocesses(n int)
	DeclareSubprocessSteps(m int)
	DeclareStep(message string)
}

// Unit is anything that can bring itself in line with a profile while reporting nested progress.
type Unit interface {
	ProcessName() string
	InitializeForProfile(ctx context.Context, p *profile.Profile, r Reporter) error
}

// UnitFailure records a unit that returned an error or panicked.
type UnitFailure struct {
	Process string
	Err     error
}

// Pipeline executes units strictly in order. Each unit owns an equal share of the total weight,
// split evenly across its subprocesses and then across each subprocess's steps.
type Pipeline struct {
	units    []Unit
	onFinish func()
	logger   *slog.Logger

	running  atomic.Bool
	finished atomic.Bool
	once     sync.Once

	// emitMu serializes state updates with listener delivery so events arrive in order.
	emitMu sync.Mutex

	mu               sync.Mutex
	progress         float64
	unitWeight       float64
	subprocessWeight float64
	stepWeight       float64
	process          string
	subprocess       int
	step             int
	failures         []UnitFailure
	listeners        map[uint64]listener
	nextID           uint64
}

type listener struct {
	onProgress func(float64)
	onMessage  func(string)
}

// NewPipeline constructs a pipeline that calls onFinish exactly once when it completes.
func NewPipeline(onFinish func(), logger *slog.Logger, units ...Unit) *Pipeline {
	return &Pipeline{
		units:     units,
		onFinish:  onFinish,
		logger:    logging.OrDiscard(logger),
		listeners: make(map[uint64]listener),
	}
}

// Run executes every unit against the profile and then finishes the pipeline.
// A failing unit is logged and skipped; it never stops the units after it.
func (p *Pipeline) Run(ctx context.Context, prof *profile.Profile) error {
	if p.finished.Load() {
		return fmt.Errorf("progress: pipeline already finished")
	}
	if !p.running.CompareAndSwap(false, true) {
		return faults.InProgress("progress pipeline")
	}
	defer p.running.Store(false)

	if len(p.units) == 0 {
		p.finish()
		return nil
	}

	p.mu.Lock()
	p.progress = 0
	p.unitWeight = 1 / float64(len(p.units))
	p.mu.Unlock()

	for _, unit := range p.units {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline interrupted", "process", unit.ProcessName(), "error", err)
			break
		}
		p.beginUnit(unit.ProcessName())

		rep := &unitReporter{pipeline: p}
		err := runUnit(ctx, unit, prof, rep)
		rep.closed.Store(true)
		if err != nil {
			p.logger.Error("error during load step", "process", unit.ProcessName(), "error", err)
			p.mu.Lock()
			p.failures = append(p.failures, UnitFailure{Process: unit.ProcessName(), Err: err})
			p.mu.Unlock()
		}
	}

	p.finish()
	return nil
}

func runUnit(ctx context.Context, unit Unit, prof *profile.Profile, rep Reporter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit %s panicked: %v", unit.ProcessName(), r)
		}
	}()
	return unit.InitializeForProfile(ctx, prof, rep)
}

func (p *Pipeline) beginUnit(process string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.process = process
	p.subprocess = 0
	p.step = 0
	p.subprocessWeight = p.unitWeight
	p.stepWeight = p.unitWeight
}

// Progress returns the current normalized progress.
func (p *Pipeline) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Finished reports whether the pipeline has completed.
func (p *Pipeline) Finished() bool {
	return p.finished.Load()
}

// Failures returns the units that failed during Run.
func (p *Pipeline) Failures() []UnitFailure {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]UnitFailure, len(p.failures))
	copy(out, p.failures)
	return out
}

func (p *Pipeline) declareSubprocesses(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n = max(1, n)
	p.subprocessWeight = p.unitWeight / float64(n)
	p.stepWeight = p.subprocessWeight
}

func (p *Pipeline) declareSubprocessSteps(m int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subprocess++
	p.step = 0
	m = max(1, m)
	p.stepWeight = p.subprocessWeight / float64(m)
}

func (p *Pipeline) declareStep(message string) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	p.step++
	p.progress = clamp(p.progress + p.stepWeight)
	value := p.progress
	text := fmt.Sprintf("%s - %s", p.process, message)
	ls := p.snapshotListeners()
	p.mu.Unlock()

	for _, l := range ls {
		if l.onMessage != nil {
			l.onMessage(text)
		}
	}
	for _, l := range ls {
		if l.onProgress != nil {
			l.onProgress(value)
		}
	}
}

func (p *Pipeline) finish() {
	p.once.Do(func() {
		p.emitMu.Lock()
		p.mu.Lock()
		reached := p.progress >= 1
		p.progress = 1
		ls := p.snapshotListeners()
		p.mu.Unlock()
		p.finished.Store(true)
		// Steps that already summed to 1.0 emitted the final event; listeners never see 1.0 twice.
		if !reached {
			for _, l := range ls {
				if l.onProgress != nil {
					l.onProgress(1)
				}
			}
		}
		p.emitMu.Unlock()

		if p.onFinish != nil {
			p.onFinish()
		}
	})
}

func (p *Pipeline) snapshotListeners() []listener {
	out := make([]listener, 0, len(p.listeners))
	for _, id := range slices.Sorted(maps.Keys(p.listeners)) {
		out = append(out, p.listeners[id])
	}
	return out
}

func clamp(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// unitReporter forwards one unit's declarations until the unit returns.
// Late calls from goroutines the unit left behind are dropped.
type unitReporter struct {
	pipeline *Pipeline
	closed   atomic.Bool
}

func (r *unitReporter) DeclareSubprocesses(n int) {
	if r.closed.Load() {
		return
	}
	r.pipeline.declareSubprocesses(n)
}

func (r *unitReporter) DeclareSubprocessSteps(m int) {
	if r.closed.Load() {
		return
	}
	r.pipeline.declareSubprocessSteps(m)
}

func (r *unitReporter) DeclareStep(message string) {
	if r.closed.Load() {
		return
	}
	r.pipeline.declareStep(message)
}
