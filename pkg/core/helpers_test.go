package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/weave/pkg/lane"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// testJob is a minimal JobBuilder.
type testJob struct {
	id    lane.JobID
	roots []*ElementContextNode
}

func (j *testJob) ID() lane.JobID { return j.id }

func (j *testJob) AddRoot(ctx *ElementContextNode) { j.roots = append(j.roots, ctx) }

type harness struct {
	t        *testing.T
	tree     *Tree
	pipeline *render.Pipeline
	seq      uint32
}

func newHarness(t *testing.T, opts Options) *harness {
	if opts.Pipeline == nil {
		opts.Pipeline = render.NewPipeline()
	}
	return &harness{t: t, tree: NewTree(opts), pipeline: opts.Pipeline}
}

func (h *harness) job(async bool) *testJob {
	h.seq++
	return &testJob{id: lane.NewJobID(1, async, h.seq)}
}

// sync describes a job with fn and runs it on the sync lane.
func (h *harness) sync(fn func(b JobBuilder)) Change {
	j := h.job(false)
	fn(j)
	h.tree.MarkRoots(lane.Sync, j.roots)
	return h.tree.RunSync(Run{Lane: lane.Sync, Jobs: []lane.JobID{j.id}, Priority: lane.JobPriority(j.id, time.Time{})})
}

func (h *harness) mount(w Widget) Change {
	return h.sync(func(b JobBuilder) { h.tree.SetRoot(b, w) })
}

// async describes a job with fn, marks it in pos and begins an attempt.
func (h *harness) async(pos lane.Pos, onCancel func(*Attempt), fn func(b JobBuilder)) *Attempt {
	j := h.job(true)
	fn(j)
	h.tree.MarkRoots(pos, j.roots)
	run := Run{Lane: pos, Jobs: []lane.JobID{j.id}, Priority: lane.JobPriority(j.id, time.Now().Add(time.Second))}
	return h.tree.BeginAsync(run, onCancel)
}

// child returns the single child of the root: the application element.
func (h *harness) app() *ElementNode {
	children := h.tree.Root().Children()
	require.Len(h.t, children, 1)
	return children[0]
}

// labelRender is a fixed-size leaf that remembers its label.
type labelRender struct {
	label string
	side  float64
}

func (r *labelRender) PerformLayout(c protocol.Constraints, _ []*render.Object) (protocol.Size, any) {
	return box.ConstraintsOf(c).Constrain(box.Size{Width: r.side, Height: r.side}), nil
}

func (r *labelRender) PerformPaint(*render.PaintContext, protocol.Size, protocol.Offset, any, []*render.Object) {
}

// leaf is a childless render widget.
type leaf struct {
	Label string
	K     any
}

func (l leaf) Key() any { return l.K }
func (l leaf) ChildWidgets() []Widget { return nil }
func (l leaf) Protocol() protocol.Protocol { return box.Protocol{} }
func (l leaf) CreateRender() render.Render { return &labelRender{label: l.Label, side: 10} }
func (l leaf) UpdateRender(r render.Render) render.Dirty {
	lr := r.(*labelRender)
	if lr.label == l.Label {
		return 0
	}
	lr.label = l.Label
	return render.DirtyPaint
}

// stackRender stacks its children vertically.
type stackRender struct{}

func (stackRender) PerformLayout(c protocol.Constraints, children []*render.Object) (protocol.Size, any) {
	bc := box.ConstraintsOf(c)
	y := 0.0
	for _, child := range children {
		s := box.SizeOf(child.Layout(bc.Loosen(), true))
		child.SetOffset(box.Offset{Y: y})
		y += s.Height
	}
	return bc.Constrain(box.Size{Width: 100, Height: y}), nil
}

func (stackRender) PerformPaint(ctx *render.PaintContext, _ protocol.Size, offset protocol.Offset, _ any, children []*render.Object) {
	ctx.PaintChildren(offset, children)
}

// stack is a render widget with children.
type stack struct {
	Kids []Widget
	K    any
}

func (s stack) Key() any { return s.K }
func (s stack) ChildWidgets() []Widget { return s.Kids }
func (s stack) Protocol() protocol.Protocol { return box.Protocol{} }
func (s stack) CreateRender() render.Render { return stackRender{} }
func (s stack) UpdateRender(render.Render) render.Dirty { return 0 }

// tracker observes a component across builds.
type tracker struct {
	builds atomic.Int32

	mu     sync.Mutex
	value  int
	setter Setter[int]
}

func (p *tracker) record(v int, s Setter[int]) {
	p.mu.Lock()
	p.value = v
	p.setter = s
	p.mu.Unlock()
}

func (p *tracker) state() (int, Setter[int]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.setter
}

// counter renders its state as a leaf label.
type counter struct {
	P *tracker
	K any
}

func (c counter) Key() any { return c.K }

func (c counter) Build(ctx *BuildContext) (Widget, error) {
	c.P.builds.Add(1)
	v, set := UseState(ctx, 0)
	c.P.record(v, set)
	return leaf{Label: fmt.Sprint(v)}, nil
}

func labelOf(t *testing.T, ro *render.Object) string {
	t.Helper()
	require.NotNil(t, ro)
	lr, ok := ro.Render().(*labelRender)
	require.True(t, ok, "render object %s is not a label", ro.Name())
	return lr.label
}

// catch runs fn and returns the recovered panic value.
func catch(fn func()) (r any) {
	defer func() { r = recover() }()
	fn()
	return nil
}
