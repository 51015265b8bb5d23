package engine

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTickRate   = 60.0 // steps per second
	DefaultMaxCatchUp = 5    // max updates drained in one frame
)

// ErrInvalidTickRate is the panic value (wrapped) for a rate that is NaN,
// infinite, zero or negative.
var ErrInvalidTickRate = errors.New("tick rate must be positive and finite")

// Stats counts what the engine has dispatched since the last run started.
type Stats struct {
	Steps    uint64        // update passes over all entities
	Frames   uint64        // render passes over all renderers
	Overruns uint64        // frames whose work took at least one step
	Dropped  time.Duration // simulation time discarded by the catch-up bound
	Elapsed  time.Duration // wall time of the last run
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger used for run diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithTickRate sets the initial rate. Panics like SetTickRate.
func WithTickRate(rate float64) Option {
	return func(e *Engine) { e.SetTickRate(rate) }
}

// WithMaxCatchUp bounds how many updates a single frame may drain when the
// loop falls behind. Panics if n < 1.
func WithMaxCatchUp(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("engine: max catch-up must be at least 1, got %d", n))
	}
	return func(e *Engine) { e.maxCatchUp = n }
}

// Engine owns an ordered set of entities and drives them at a fixed step.
// All dispatch happens on the goroutine that calls Tick or Run*. Stop and
// IsRunning are safe from any goroutine.
type Engine struct {
	entities  []Entity
	renderers []Renderer

	tickRate   float64
	step       time.Duration
	maxCatchUp int

	running     atomic.Bool
	accumulator time.Duration
	lastTime    time.Time

	clock Clock
	log   *zap.Logger
	stats Stats
}

// New creates an idle engine with no entities, running at DefaultTickRate.
func New(opts ...Option) *Engine {
	e := &Engine{
		entities:   make([]Entity, 0, 16),
		tickRate:   DefaultTickRate,
		step:       stepFor(DefaultTickRate),
		maxCatchUp: DefaultMaxCatchUp,
		clock:      SystemClock{},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateTickRate reports whether rate can define a step size.
func ValidateTickRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTickRate, rate)
	}
	return nil
}

func mustValidateTickRate(rate float64) {
	if err := ValidateTickRate(rate); err != nil {
		panic(err)
	}
}

// stepFor converts a rate into a step rounded to the nanosecond, never zero.
func stepFor(rate float64) time.Duration {
	s := math.Round(float64(time.Second) / rate)
	switch {
	case s < 1:
		return 1
	case s >= math.MaxInt64:
		return math.MaxInt64
	}
	return time.Duration(s)
}

// SetTickRate sets the steps per second and redefines the fixed step.
// A NaN, infinite or non-positive rate panics and leaves the engine unchanged.
// Called during a run, the new step applies from the next frame.
func (e *Engine) SetTickRate(rate float64) {
	mustValidateTickRate(rate)
	e.tickRate = rate
	e.step = stepFor(rate)
}

func (e *Engine) TickRate() float64 { return e.tickRate }

// Step returns the fixed step derived from the tick rate.
func (e *Engine) Step() time.Duration { return e.step }

// AddEntity appends ent to the dispatch order. If ent also implements
// Renderer it is rendered in the same relative order.
func (e *Engine) AddEntity(ent Entity) {
	if ent == nil {
		panic("engine: nil entity")
	}
	e.entities = append(e.entities, ent)
	if r, ok := ent.(Renderer); ok {
		e.renderers = append(e.renderers, r)
	}
}

// Len returns the number of registered entities.
func (e *Engine) Len() int { return len(e.entities) }

// Tick runs exactly one step: every entity is updated with dt, then every
// renderer renders. It does not change the running flag.
func (e *Engine) Tick(dt time.Duration) {
	e.update(dt)
	e.render()
}

func (e *Engine) update(dt time.Duration) {
	for _, ent := range e.entities {
		ent.Update(dt)
	}
	e.stats.Steps++
}

func (e *Engine) render() {
	for _, r := range e.renderers {
		r.Render()
	}
	e.stats.Frames++
}

// RunFor runs the loop for d at the current tick rate.
func (e *Engine) RunFor(d time.Duration) {
	e.RunWithRate(d, e.tickRate)
}

// RunWithRate stores rate and runs the fixed-step loop until d of wall time
// has passed or Stop is observed.
//
// Each frame adds the measured frame time to an accumulator and drains it in
// whole steps, then renders once. The accumulator is primed with one step so
// the first frame advances the simulation. If more than maxCatchUp steps are
// pending the excess is dropped and reported in Stats.Dropped. A frame that
// finishes early sleeps out the rest of its step; a late frame does not sleep.
//
// Panics from entities propagate; the engine is left idle.
func (e *Engine) RunWithRate(d time.Duration, rate float64) {
	mustValidateTickRate(rate)
	if !e.running.CompareAndSwap(false, true) {
		panic("engine: run called while already running")
	}
	defer e.running.Store(false)

	e.tickRate = rate
	e.step = stepFor(rate)
	step := e.step
	backlog := catchUpLimit(step, e.maxCatchUp)

	start := e.clock.Now()
	e.stats = Stats{}
	e.lastTime = start
	e.accumulator = step

	e.log.Info("engine run started",
		zap.Float64("tick_rate", rate),
		zap.Duration("step", step),
		zap.Duration("duration", d),
		zap.Int("entities", len(e.entities)))
	defer func() {
		e.stats.Elapsed = e.clock.Now().Sub(start)
		e.log.Info("engine run stopped",
			zap.Uint64("steps", e.stats.Steps),
			zap.Uint64("frames", e.stats.Frames),
			zap.Uint64("overruns", e.stats.Overruns),
			zap.Duration("dropped", e.stats.Dropped),
			zap.Duration("elapsed", e.stats.Elapsed))
	}()

	for e.running.Load() && e.clock.Now().Sub(start) < d {
		if e.step != step {
			step = e.step
			backlog = catchUpLimit(step, e.maxCatchUp)
		}
		frameStart := e.clock.Now()
		e.accumulator = addSat(e.accumulator, frameStart.Sub(e.lastTime))
		e.lastTime = frameStart

		if e.accumulator > backlog {
			dropped := e.accumulator - backlog
			e.accumulator = backlog
			e.stats.Dropped += dropped
			e.log.Debug("simulation behind, dropping backlog",
				zap.Duration("dropped", dropped),
				zap.Int("max_catch_up", e.maxCatchUp))
		}

		for e.accumulator >= step {
			e.update(step)
			e.accumulator -= step
			if !e.running.Load() {
				e.accumulator %= step
				break
			}
		}
		e.render()

		if !e.running.Load() {
			break
		}
		work := e.clock.Now().Sub(frameStart)
		if work < step {
			e.clock.Sleep(step - work)
		} else {
			e.stats.Overruns++
		}
	}
}

// Stop asks a running loop to exit at the next step boundary. The current
// step always completes. Calling Stop on an idle engine does nothing.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func (e *Engine) IsRunning() bool { return e.running.Load() }

// Stats returns the counters for the current or most recent run, plus any
// steps dispatched through Tick since then.
func (e *Engine) Stats() Stats { return e.stats }

func catchUpLimit(step time.Duration, n int) time.Duration {
	if step > math.MaxInt64/time.Duration(n) {
		return math.MaxInt64
	}
	return step * time.Duration(n)
}

func addSat(a, b time.Duration) time.Duration {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
