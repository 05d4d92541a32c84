package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/render"
	"github.com/go-drift/weave/pkg/widgets"
)

type fixture struct {
	t        *testing.T
	sched    *Scheduler
	tree     *core.Tree
	pipeline *render.Pipeline
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	pipeline := render.NewPipeline()
	tree := core.NewTree(core.Options{Pipeline: pipeline})
	s := New(tree, opts)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return &fixture{t: t, sched: s, tree: tree, pipeline: pipeline}
}

func (f *fixture) mount(w core.Widget) {
	f.sched.RequestSyncJob(func(b core.JobBuilder) { f.tree.SetRoot(b, w) })
	f.sched.Tick()
}

func (f *fixture) settle() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(f.t, f.sched.RunUntilIdle(ctx))
}

// colors reads the committed ColorBox colors under the root, in order.
func (f *fixture) colors() []int {
	var out []int
	var walk func(o *render.Object)
	walk = func(o *render.Object) {
		if c, ok := widgets.ColorOf(o); ok {
			out = append(out, int(c))
		}
		for _, child := range o.Children() {
			walk(child)
		}
	}
	if root := f.pipeline.Root(); root != nil {
		walk(root)
	}
	return out
}

// cellHandle exposes a cell's setter and optionally gates its async builds.
type cellHandle struct {
	mu     sync.Mutex
	setter core.Setter[int]

	entered chan struct{}
	release chan struct{}
}

func gatedCell() *cellHandle {
	return &cellHandle{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (p *cellHandle) set() core.Setter[int] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setter
}

// cell renders its state as the color of a ColorBox.
type cell struct {
	P *cellHandle
	K any
}

func (c cell) Key() any { return c.K }

func (c cell) Build(ctx *core.BuildContext) (core.Widget, error) {
	v, set := core.UseState(ctx, 0)
	c.P.mu.Lock()
	c.P.setter = set
	c.P.mu.Unlock()
	if ctx.IsAsync() && c.P.release != nil {
		select {
		case c.P.entered <- struct{}{}:
		default:
		}
		<-c.P.release
	}
	return widgets.Sized(10, 10, widgets.ColorBox{Color: canvas.Color(v)}), nil
}

// steppingClock advances by step on every call.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type commitLog struct {
	mu     sync.Mutex
	events []CommitEvent
}

func (l *commitLog) record(ev CommitEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *commitLog) all() []CommitEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CommitEvent(nil), l.events...)
}
