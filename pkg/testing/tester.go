package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-drift/weave/pkg/canvas/recorder"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/engine"
	"github.com/go-drift/weave/pkg/lane"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
	"github.com/go-drift/weave/pkg/scheduler"
)

const (
	// DefaultTestWidth is the default logical width for the test surface.
	DefaultTestWidth = 800
	// DefaultTestHeight is the default logical height for the test surface.
	DefaultTestHeight = 600
)

// ErrSettleTimeout is returned when PumpAndSettle exceeds its timeout.
var ErrSettleTimeout = errors.New("PumpAndSettle timed out: scheduler did not settle")

// WidgetTester drives an engine with the recorder backend and a fake clock.
// Every pump composites the frame into a display list that stays available
// for assertions until the next pump.
type WidgetTester struct {
	engine  *engine.Engine
	backend *recorder.Backend
	clock   *FakeClock
	size    box.Size
	list    *recorder.DisplayList
	last    engine.FrameSample
}

// NewWidgetTester creates a tester with default test environment.
// Call Cleanup() when done, or use NewWidgetTesterWithT() instead.
func NewWidgetTester() *WidgetTester {
	clk := NewFakeClock()
	backend := recorder.New()
	e, err := engine.New(engine.Options{
		Backend:   backend,
		Scheduler: scheduler.Options{Now: clk.Now},
	})
	if err != nil {
		// only a nil backend fails
		panic(err)
	}
	return &WidgetTester{
		engine:  e,
		backend: backend,
		clock:   clk,
		size:    box.Size{Width: DefaultTestWidth, Height: DefaultTestHeight},
		list:    backend.NewEncoding().(*recorder.DisplayList),
	}
}

// NewWidgetTesterWithT creates a tester that cleans up via t.Cleanup().
// This is the recommended constructor for tests.
func NewWidgetTesterWithT(t *testing.T) *WidgetTester {
	tester := NewWidgetTester()
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup stops the scheduler and waits for running async tasks.
func (t *WidgetTester) Cleanup() {
	t.engine.Close()
}

// SetSize sets the logical surface size. Takes effect on the next pump.
func (t *WidgetTester) SetSize(size box.Size) {
	t.size = size
}

// Clock returns the fake clock async deadlines are computed from.
func (t *WidgetTester) Clock() *FakeClock {
	return t.clock
}

// Engine returns the engine under test.
func (t *WidgetTester) Engine() *engine.Engine {
	return t.engine
}

// PumpWidget replaces the root widget and runs one frame.
func (t *WidgetTester) PumpWidget(widget core.Widget) error {
	t.engine.SetRoot(widget)
	return t.Pump()
}

// Pump runs a single frame: scheduler tick, layout under tight surface
// constraints, paint and composite.
func (t *WidgetTester) Pump() error {
	sample, err := t.engine.DrawFrame(context.Background(), box.TightFor(t.size), t.list)
	if err != nil {
		return err
	}
	t.last = sample
	return nil
}

// PumpAndSettle runs the scheduler until no job is pending or running and
// then pumps a frame. It returns ErrSettleTimeout if that takes longer than
// timeout.
func (t *WidgetTester) PumpAndSettle(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	sample, err := t.engine.Settle(ctx, box.TightFor(t.size), t.list)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrSettleTimeout
	}
	if err != nil {
		return err
	}
	t.last = sample
	return nil
}

// RequestSyncJob schedules a sync job for the next pump.
func (t *WidgetTester) RequestSyncJob(fn func(b core.JobBuilder)) lane.JobID {
	return t.engine.RequestSyncJob(fn)
}

// CreateAsyncJob schedules an async job whose deadline is taken from the
// fake clock.
func (t *WidgetTester) CreateAsyncJob(deadline time.Duration, fn func(b core.JobBuilder)) lane.JobID {
	return t.engine.CreateAsyncJob(deadline, fn)
}

// LastFrame returns the sample of the most recent pump.
func (t *WidgetTester) LastFrame() engine.FrameSample {
	return t.last
}

// DisplayList returns the ops composited by the most recent pump.
func (t *WidgetTester) DisplayList() *recorder.DisplayList {
	return t.list
}

// RootElement returns the element of the pumped widget, or nil.
func (t *WidgetTester) RootElement() *core.ElementNode {
	children := t.engine.Tree().Root().Children()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// RootRenderObject returns the root render object of the mounted tree.
func (t *WidgetTester) RootRenderObject() *render.Object {
	return t.engine.Pipeline().Root()
}

// Find evaluates a finder against the current element tree.
func (t *WidgetTester) Find(finder Finder) FinderResult {
	root := t.RootElement()
	if root == nil {
		return FinderResult{finder: finder}
	}
	return FinderResult{
		elements: finder.Evaluate(root),
		finder:   finder,
	}
}
