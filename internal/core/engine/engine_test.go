package engine

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingEntity struct {
	updates atomic.Int64
	lastDt  time.Duration
}

func (c *countingEntity) Update(dt time.Duration) {
	c.updates.Add(1)
	c.lastDt = dt
}

// traceEntity appends "u:<name>" on update and "r:<name>" on render.
type traceEntity struct {
	name  string
	trace *[]string
}

func (e *traceEntity) Update(time.Duration) { *e.trace = append(*e.trace, "u:"+e.name) }
func (e *traceEntity) Render() { *e.trace = append(*e.trace, "r:"+e.name) }

// frameProbe records how many steps were dispatched before each render.
type frameProbe struct {
	pending  int
	perFrame []int
}

func (p *frameProbe) Update(time.Duration) { p.pending++ }
func (p *frameProbe) Render() {
	p.perFrame = append(p.perFrame, p.pending)
	p.pending = 0
}

func mustPanic(t *testing.T, fn func()) (v any) {
	t.Helper()
	defer func() {
		v = recover()
		if v == nil {
			t.Fatal("expected panic")
		}
	}()
	fn()
	return nil
}

func newManual() *ManualClock {
	return NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestNewDefaults(t *testing.T) {
	e := New()
	if e.TickRate() != DefaultTickRate {
		t.Errorf("tick rate = %v, want %v", e.TickRate(), DefaultTickRate)
	}
	if e.IsRunning() {
		t.Error("new engine should be idle")
	}
	if e.Len() != 0 {
		t.Errorf("Len = %d, want 0", e.Len())
	}
	if e.Step() != 16666667*time.Nanosecond {
		t.Errorf("step = %v, want 16.666667ms", e.Step())
	}
}

func TestSetTickRate(t *testing.T) {
	tests := []struct {
		rate float64
		step time.Duration
	}{
		{1, time.Second},
		{50, 20 * time.Millisecond},
		{100, 10 * time.Millisecond},
		{0.5, 2 * time.Second},
		{144, 6944444 * time.Nanosecond},
		{1e12, time.Nanosecond},
	}
	for _, tt := range tests {
		e := New()
		e.SetTickRate(tt.rate)
		if e.TickRate() != tt.rate {
			t.Errorf("SetTickRate(%v): TickRate() = %v", tt.rate, e.TickRate())
		}
		if e.Step() != tt.step {
			t.Errorf("SetTickRate(%v): Step() = %v, want %v", tt.rate, e.Step(), tt.step)
		}
	}
}

func TestInvalidTickRate(t *testing.T) {
	bad := []float64{0, -1, -0.001, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, rate := range bad {
		if err := ValidateTickRate(rate); !errors.Is(err, ErrInvalidTickRate) {
			t.Errorf("ValidateTickRate(%v) = %v, want ErrInvalidTickRate", rate, err)
		}

		e := New(WithClock(newManual()))
		e.SetTickRate(30)
		c := &countingEntity{}
		e.AddEntity(c)

		v := mustPanic(t, func() { e.SetTickRate(rate) })
		if err, ok := v.(error); !ok || !errors.Is(err, ErrInvalidTickRate) {
			t.Errorf("SetTickRate(%v) panicked with %v", rate, v)
		}
		mustPanic(t, func() { e.RunWithRate(time.Second, rate) })

		if e.TickRate() != 30 {
			t.Errorf("rate %v: tick rate changed to %v", rate, e.TickRate())
		}
		if got := c.updates.Load(); got != 0 {
			t.Errorf("rate %v: %d updates after rejected run", rate, got)
		}
		if e.IsRunning() {
			t.Errorf("rate %v: engine left running", rate)
		}
	}
}

func TestWithOptions(t *testing.T) {
	clk := newManual()
	e := New(WithClock(clk), WithTickRate(25), WithMaxCatchUp(2))
	if e.TickRate() != 25 || e.Step() != 40*time.Millisecond {
		t.Errorf("rate/step = %v/%v", e.TickRate(), e.Step())
	}
	if e.maxCatchUp != 2 {
		t.Errorf("maxCatchUp = %d", e.maxCatchUp)
	}
	mustPanic(t, func() { WithMaxCatchUp(0) })
	mustPanic(t, func() { New(WithTickRate(-5)) })
}

func TestTickUpdatesInOrder(t *testing.T) {
	var trace []string
	e := New()
	e.AddEntity(&traceEntity{name: "a", trace: &trace})
	e.AddEntity(EntityFunc(func(time.Duration) { trace = append(trace, "u:f") }))
	e.AddEntity(&traceEntity{name: "c", trace: &trace})

	e.Tick(16 * time.Millisecond)

	want := "u:a u:f u:c r:a r:c"
	if got := strings.Join(trace, " "); got != want {
		t.Errorf("trace = %q, want %q", got, want)
	}
	if e.IsRunning() {
		t.Error("Tick must not set running")
	}
}

func TestTickPassesDt(t *testing.T) {
	e := New()
	a, b := &countingEntity{}, &countingEntity{}
	e.AddEntity(a)
	e.AddEntity(b)

	e.Tick(33 * time.Millisecond)

	for i, c := range []*countingEntity{a, b} {
		if c.updates.Load() != 1 {
			t.Errorf("entity %d: updates = %d, want 1", i, c.updates.Load())
		}
		if c.lastDt != 33*time.Millisecond {
			t.Errorf("entity %d: dt = %v", i, c.lastDt)
		}
	}
}

func TestTickRepeated(t *testing.T) {
	e := New()
	c := &countingEntity{}
	e.AddEntity(c)
	for i := 0; i < 10; i++ {
		e.Tick(time.Second / 60)
	}
	if got := c.updates.Load(); got != 10 {
		t.Errorf("updates = %d, want 10", got)
	}
	if s := e.Stats(); s.Steps != 10 || s.Frames != 10 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAddEntityDuplicates(t *testing.T) {
	e := New()
	c := &countingEntity{}
	e.AddEntity(c)
	e.AddEntity(c)
	e.Tick(time.Millisecond)
	if got := c.updates.Load(); got != 2 {
		t.Errorf("updates = %d, want 2 (no de-duplication)", got)
	}
	mustPanic(t, func() { e.AddEntity(nil) })
}

func TestRunWithRateManualClock(t *testing.T) {
	clk := newManual()
	start := clk.Now()
	e := New(WithClock(clk))
	c := &countingEntity{}
	e.AddEntity(c)

	e.RunWithRate(time.Second, 50)

	if e.IsRunning() {
		t.Error("engine still running after run")
	}
	if got := c.updates.Load(); got != 50 {
		t.Errorf("updates = %d, want 50", got)
	}
	if c.lastDt != 20*time.Millisecond {
		t.Errorf("dt = %v, want fixed 20ms", c.lastDt)
	}
	if elapsed := clk.Now().Sub(start); elapsed < time.Second {
		t.Errorf("elapsed = %v, want >= 1s", elapsed)
	}
	s := e.Stats()
	if s.Steps != 50 || s.Frames != 50 || s.Overruns != 0 || s.Dropped != 0 {
		t.Errorf("stats = %+v", s)
	}
	if s.Elapsed != time.Second {
		t.Errorf("stats elapsed = %v", s.Elapsed)
	}
	if e.TickRate() != 50 {
		t.Errorf("run did not store rate: %v", e.TickRate())
	}
}

// rateSwitcher changes the engine rate on its first update.
type rateSwitcher struct {
	eng  *Engine
	rate float64
	dts  []time.Duration
}

func (r *rateSwitcher) Update(dt time.Duration) {
	if len(r.dts) == 0 {
		r.eng.SetTickRate(r.rate)
	}
	r.dts = append(r.dts, dt)
}

func TestSetTickRateDuringRun(t *testing.T) {
	clk := newManual()
	e := New(WithClock(clk))
	sw := &rateSwitcher{eng: e, rate: 100}
	e.AddEntity(sw)

	e.RunWithRate(time.Second, 50)

	// Frame 1 finishes at the old 20ms step; every later update uses 10ms.
	if len(sw.dts) != 100 {
		t.Fatalf("updates = %d, want 100", len(sw.dts))
	}
	if sw.dts[0] != 20*time.Millisecond {
		t.Errorf("first dt = %v, want 20ms", sw.dts[0])
	}
	for i, dt := range sw.dts[1:] {
		if dt != 10*time.Millisecond {
			t.Fatalf("dt[%d] = %v, want 10ms", i+1, dt)
		}
	}
	if e.TickRate() != 100 || e.Step() != 10*time.Millisecond {
		t.Errorf("rate = %v step = %v", e.TickRate(), e.Step())
	}
	if s := e.Stats(); s.Overruns != 0 || s.Dropped != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRunForUsesCurrentRate(t *testing.T) {
	clk := newManual()
	e := New(WithClock(clk), WithTickRate(100))
	c := &countingEntity{}
	e.AddEntity(c)

	e.RunFor(250 * time.Millisecond)

	if got := c.updates.Load(); got != 25 {
		t.Errorf("updates = %d, want 25", got)
	}
}

func TestRunBoundsCatchUp(t *testing.T) {
	clk := newManual()
	e := New(WithClock(clk), WithMaxCatchUp(3))
	first := true
	e.AddEntity(EntityFunc(func(time.Duration) {
		if first {
			first = false
			clk.Advance(45 * time.Millisecond)
		}
	}))
	probe := &frameProbe{}
	e.AddEntity(probe)

	e.RunWithRate(100*time.Millisecond, 100)

	want := []int{1, 3, 1, 1, 1, 1, 1}
	if len(probe.perFrame) != len(want) {
		t.Fatalf("frames = %v, want %v", probe.perFrame, want)
	}
	for i := range want {
		if probe.perFrame[i] != want[i] {
			t.Fatalf("frames = %v, want %v", probe.perFrame, want)
		}
	}
	s := e.Stats()
	if s.Steps != 9 {
		t.Errorf("steps = %d, want 9", s.Steps)
	}
	if s.Dropped != 15*time.Millisecond {
		t.Errorf("dropped = %v, want 15ms", s.Dropped)
	}
	if s.Overruns != 1 {
		t.Errorf("overruns = %d, want 1", s.Overruns)
	}
	if e.accumulator >= e.Step() {
		t.Errorf("accumulator %v not drained below step", e.accumulator)
	}
}

func TestStopFromUpdateCompletesStep(t *testing.T) {
	clk := newManual()
	e := New(WithClock(clk))
	stopper := &countingEntity{}
	after := &countingEntity{}
	e.AddEntity(EntityFunc(func(dt time.Duration) {
		stopper.Update(dt)
		if stopper.updates.Load() == 3 {
			e.Stop()
		}
	}))
	e.AddEntity(after)

	e.RunWithRate(time.Second, 50)

	if got := stopper.updates.Load(); got != 3 {
		t.Errorf("stopper updates = %d, want 3", got)
	}
	if got := after.updates.Load(); got != 3 {
		t.Errorf("second entity updates = %d, want 3 (step must complete)", got)
	}
	if e.IsRunning() {
		t.Error("engine still running")
	}
	if e.Stats().Frames != 3 {
		t.Errorf("frames = %d, want 3", e.Stats().Frames)
	}
}

func TestStopIdleIsNoop(t *testing.T) {
	e := New()
	e.Stop()
	e.Stop()
	if e.IsRunning() {
		t.Error("idle engine reports running")
	}
	c := &countingEntity{}
	e.AddEntity(c)
	e.Tick(time.Millisecond)
	if c.updates.Load() != 1 {
		t.Error("Tick after Stop should still dispatch")
	}
}

func TestRunWithRateSystemClock(t *testing.T) {
	e := New()
	c := &countingEntity{}
	e.AddEntity(c)

	duration := 50 * time.Millisecond
	start := time.Now()
	e.RunWithRate(duration, 20)
	elapsed := time.Since(start)

	if c.updates.Load() == 0 {
		t.Error("no updates during run")
	}
	if elapsed < duration {
		t.Errorf("elapsed %v < %v", elapsed, duration)
	}
	if e.IsRunning() {
		t.Error("engine still running")
	}
	if limit := int64(elapsed/e.Step()) + 1; c.updates.Load() > limit {
		t.Errorf("updates = %d, more than %d possible in %v", c.updates.Load(), limit, elapsed)
	}
}

func TestStopFromAnotherGoroutine(t *testing.T) {
	e := New(WithTickRate(200))
	e.AddEntity(&countingEntity{})

	go func() {
		for !e.IsRunning() {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		e.Stop()
	}()

	start := time.Now()
	e.RunFor(10 * time.Second)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Stop took effect after %v", elapsed)
	}
	if e.IsRunning() {
		t.Error("engine still running")
	}
}

func TestRunPanicsWhenReentered(t *testing.T) {
	clk := newManual()
	e := New(WithClock(clk))
	var inner any
	e.AddEntity(EntityFunc(func(time.Duration) {
		func() {
			defer func() { inner = recover() }()
			e.RunFor(time.Second)
		}()
		e.Stop()
	}))

	e.RunWithRate(time.Second, 50)

	if inner == nil {
		t.Fatal("nested run did not panic")
	}
	if e.IsRunning() {
		t.Error("engine still running")
	}
}

func TestEntityPanicLeavesEngineIdle(t *testing.T) {
	e := New(WithClock(newManual()))
	e.AddEntity(EntityFunc(func(time.Duration) { panic("boom") }))

	v := mustPanic(t, func() { e.RunFor(time.Second) })
	if v != "boom" {
		t.Errorf("panic value = %v", v)
	}
	if e.IsRunning() {
		t.Error("engine still running after entity panic")
	}
}

func TestZeroDurationRunsNothing(t *testing.T) {
	e := New(WithClock(newManual()))
	c := &countingEntity{}
	e.AddEntity(c)
	e.RunFor(0)
	if c.updates.Load() != 0 {
		t.Errorf("updates = %d, want 0", c.updates.Load())
	}
}
