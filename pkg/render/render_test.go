package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/canvas/recorder"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
)

// testBox sizes itself to its preferred size and stacks children
// vertically, each loosely constrained.
type testBox struct {
	preferred box.Size
	color     canvas.Color
	boundary  bool
	behavior  HitTestBehavior
	layouts   int
	paints    int
}

func (b *testBox) PerformLayout(c protocol.Constraints, children []*Object) (protocol.Size, any) {
	b.layouts++
	bc := box.ConstraintsOf(c)
	y := 0.0
	for _, child := range children {
		s := box.SizeOf(child.Layout(bc.Loosen(), true))
		child.SetOffset(box.Offset{Y: y})
		y += s.Height
	}
	return bc.Constrain(b.preferred), nil
}

func (b *testBox) PerformPaint(ctx *PaintContext, size protocol.Size, offset protocol.Offset, _ any, children []*Object) {
	b.paints++
	s := box.SizeOf(size)
	o := box.OffsetOf(offset)
	if b.color != 0 {
		ctx.FillRect(canvas.RectFromLTWH(o.X, o.Y, s.Width, s.Height), canvas.SolidBrush(b.color))
	}
	ctx.PaintChildren(offset, children)
}

func (b *testBox) IsRepaintBoundary() bool          { return b.boundary }
func (b *testBox) HitTestBehavior() HitTestBehavior { return b.behavior }

// dryBox knows its size without looking at children.
type dryBox struct {
	testBox
}

func (d *dryBox) SizedByParent() bool { return true }

func (d *dryBox) ComputeDryLayout(c protocol.Constraints) protocol.Size {
	return box.ConstraintsOf(c).Constrain(d.preferred)
}

func (d *dryBox) PerformLayoutWithSize(c protocol.Constraints, _ protocol.Size, children []*Object) any {
	d.layouts++
	for _, child := range children {
		child.Layout(box.ConstraintsOf(c).Loosen(), true)
	}
	return nil
}

type widthIntrinsic struct {
	testBox
	queries int
}

func (w *widthIntrinsic) ComputeIntrinsics(q protocol.Intrinsics, _ []*Object) float64 {
	w.queries++
	if q.(box.Intrinsic).Dimension == box.MaxWidth {
		return w.preferred.Width
	}
	return 0
}

func newBox(r Render, children ...*Object) *Object {
	o := New(box.Protocol{}, r)
	if len(children) > 0 {
		o.SetChildren(children)
	}
	return o
}

func frame(p *Pipeline, backend *recorder.Backend, c protocol.Constraints) *recorder.DisplayList {
	p.FlushLayout(c)
	p.FlushPaint(backend)
	dst := backend.NewEncoding().(*recorder.DisplayList)
	p.FlushComposite(backend, dst, true)
	return dst
}

func TestLayout_RelayoutBoundaryDetermination(t *testing.T) {
	leaf := &testBox{preferred: box.Size{Width: 10, Height: 10}}
	leafObj := newBox(leaf)
	rootObj := newBox(&testBox{preferred: box.Size{Width: 100, Height: 100}}, leafObj)

	p := NewPipeline()
	p.SetRoot(rootObj)
	p.FlushLayout(box.Loose(box.Size{Width: 200, Height: 200}))

	require.True(t, rootObj.IsRelayoutBoundary())
	require.False(t, leafObj.IsRelayoutBoundary(), "loose constraints with parentUsesSize")
	require.Equal(t, box.Size{Width: 10, Height: 10}, leafObj.Size())
	require.Equal(t, 1, leaf.layouts)

	// clean tree with identical constraints does no work
	p.FlushLayout(box.Loose(box.Size{Width: 200, Height: 200}))
	require.Equal(t, 1, leaf.layouts)

	// a non-boundary leaf propagates to the root
	leafObj.MarkNeedsLayout()
	require.True(t, rootObj.NeedsLayout())
	p.FlushLayout(box.Loose(box.Size{Width: 200, Height: 200}))
	require.Equal(t, 2, leaf.layouts)
	require.False(t, leafObj.NeedsLayout())
}

func TestLayout_TightConstraintsStopPropagation(t *testing.T) {
	inner := &testBox{preferred: box.Size{Width: 5, Height: 5}}
	innerObj := newBox(inner)
	outer := &testBox{preferred: box.Size{Width: 50, Height: 50}}
	outerObj := newBox(outer, innerObj)

	p := NewPipeline()
	p.SetRoot(outerObj)
	p.FlushLayout(box.Tight(50, 50))
	innerObj.Layout(box.Tight(5, 5), true)
	require.True(t, innerObj.IsRelayoutBoundary())

	innerObj.MarkNeedsLayout()
	require.False(t, outerObj.NeedsLayout())
	layoutsBefore := outer.layouts
	p.FlushLayout(box.Tight(50, 50))
	require.Equal(t, layoutsBefore, outer.layouts)
	require.False(t, innerObj.NeedsLayout())
}

func TestLayout_DryLayoutIsBoundary(t *testing.T) {
	childObj := newBox(&testBox{preferred: box.Size{Width: 1, Height: 1}})
	dry := &dryBox{testBox{preferred: box.Size{Width: 30, Height: 40}}}
	dryObj := newBox(dry, childObj)
	rootObj := newBox(&testBox{preferred: box.Size{Width: 100, Height: 100}}, dryObj)

	size, ok := dryObj.DryLayout(box.Loose(box.Size{Width: 20, Height: 100}))
	require.True(t, ok)
	require.Equal(t, box.Size{Width: 20, Height: 40}, size)
	require.Equal(t, 0, dry.layouts, "dry layout must not descend")

	p := NewPipeline()
	p.SetRoot(rootObj)
	p.FlushLayout(box.Loose(box.Size{Width: 100, Height: 100}))
	require.True(t, dryObj.IsRelayoutBoundary())

	childObj.MarkNeedsLayout()
	require.False(t, rootObj.NeedsLayout())
}

func TestIntrinsics_CachedUntilRelayout(t *testing.T) {
	w := &widthIntrinsic{testBox: testBox{preferred: box.Size{Width: 42}}}
	o := newBox(w)
	q := box.Intrinsic{Dimension: box.MaxWidth, Extent: box.Infinity}

	require.Equal(t, 42.0, o.Intrinsics(q))
	require.Equal(t, 42.0, o.Intrinsics(q))
	require.Equal(t, 1, w.queries)

	o.MarkNeedsLayout()
	require.Equal(t, 42.0, o.Intrinsics(q))
	require.Equal(t, 2, w.queries)
}

func TestPaint_RepaintBoundaryKeepsOwnLayer(t *testing.T) {
	leaf := &testBox{preferred: box.Size{Width: 10, Height: 10}, color: canvas.ColorRed}
	leafObj := newBox(leaf)
	boundary := &testBox{preferred: box.Size{Width: 10, Height: 10}, boundary: true}
	boundaryObj := newBox(boundary, leafObj)
	spacer := newBox(&testBox{preferred: box.Size{Width: 10, Height: 20}})
	root := &testBox{preferred: box.Size{Width: 100, Height: 100}, color: canvas.ColorBlue}
	rootObj := newBox(root, spacer, boundaryObj)

	backend := recorder.New()
	p := NewPipeline()
	p.SetRoot(rootObj)
	out := frame(p, backend, box.Loose(box.Size{Width: 100, Height: 100}))

	ops := out.Ops()
	require.Len(t, ops, 2)
	blue := ops[0].(recorder.FillRect)
	require.Equal(t, canvas.ColorBlue, blue.Brush.Color)
	red := ops[1].(recorder.FillRect)
	require.Equal(t, canvas.ColorRed, red.Brush.Color)
	require.Equal(t, canvas.Translation(0, 20), red.Transform)

	require.NotNil(t, boundaryObj.Layer())
	require.Len(t, rootObj.Layer().Children(), 1)

	// repainting the leaf touches only the boundary's layer
	leaf.color = canvas.ColorGreen
	leafObj.MarkNeedsPaint()
	require.Equal(t, 1, p.FlushPaint(backend))
	require.Equal(t, 1, root.paints)
	require.Equal(t, 2, leaf.paints)
}

func TestComposite_CacheRebuiltOnlyWhenStale(t *testing.T) {
	leaf := &testBox{preferred: box.Size{Width: 10, Height: 10}, color: canvas.ColorRed}
	leafObj := newBox(leaf)
	boundaryObj := newBox(&testBox{preferred: box.Size{Width: 10, Height: 10}, boundary: true}, leafObj)
	other := newBox(&testBox{preferred: box.Size{Width: 10, Height: 10}, boundary: true, color: canvas.ColorBlue})
	rootObj := newBox(&testBox{preferred: box.Size{Width: 100, Height: 100}}, boundaryObj, other)

	backend := recorder.New()
	p := NewPipeline()
	p.SetRoot(rootObj)
	frame(p, backend, box.Loose(box.Size{Width: 100, Height: 100}))
	require.EqualValues(t, 1, rootObj.Layer().CacheBuilds())
	require.EqualValues(t, 1, other.Layer().CacheBuilds())

	out := frame(p, backend, box.Loose(box.Size{Width: 100, Height: 100}))
	require.Equal(t, 2, out.Len())
	require.EqualValues(t, 1, rootObj.Layer().CacheBuilds())

	leafObj.MarkNeedsPaint()
	require.True(t, rootObj.Layer().Mark.NeedsComposite())
	require.False(t, other.Layer().Mark.NeedsComposite())
	frame(p, backend, box.Loose(box.Size{Width: 100, Height: 100}))
	require.EqualValues(t, 2, rootObj.Layer().CacheBuilds())
	require.EqualValues(t, 2, boundaryObj.Layer().CacheBuilds())
	require.EqualValues(t, 1, other.Layer().CacheBuilds())

	// the uncached walk produces the same output
	direct := backend.NewEncoding().(*recorder.DisplayList)
	p.FlushComposite(backend, direct, false)
	require.Equal(t, 2, direct.Len())
}

func TestLayer_ReadoptedByKey(t *testing.T) {
	first := newBox(&testBox{preferred: box.Size{Width: 10, Height: 10}, boundary: true, color: canvas.ColorRed})
	first.SetLayerKey("card")
	rootObj := newBox(&testBox{preferred: box.Size{Width: 100, Height: 100}}, first)

	backend := recorder.New()
	p := NewPipeline()
	p.SetRoot(rootObj)
	frame(p, backend, box.Loose(box.Size{Width: 100, Height: 100}))
	layer := first.Layer()
	require.NotNil(t, layer)

	first.Detach()
	require.Equal(t, 1, rootObj.Layer().Detached())

	second := newBox(&testBox{preferred: box.Size{Width: 10, Height: 10}, boundary: true, color: canvas.ColorGreen})
	second.SetLayerKey("card")
	rootObj.SetChildren([]*Object{second})
	frame(p, backend, box.Loose(box.Size{Width: 100, Height: 100}))

	require.Same(t, layer, second.Layer())
	require.Equal(t, 0, rootObj.Layer().Detached())
}

func TestHitTest_Behaviors(t *testing.T) {
	tests := []struct {
		name     string
		behavior HitTestBehavior
		point    canvas.Point
		wantStop bool
		wantHits int
	}{
		{"child hit", DeferToChild, canvas.Point{X: 5, Y: 5}, true, 2},
		{"defer without child", DeferToChild, canvas.Point{X: 50, Y: 50}, false, 0},
		{"opaque without child", Opaque, canvas.Point{X: 50, Y: 50}, true, 1},
		{"transparent without child", Transparent, canvas.Point{X: 50, Y: 50}, false, 1},
		{"outside", Opaque, canvas.Point{X: 500, Y: 500}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child := newBox(&testBox{preferred: box.Size{Width: 10, Height: 10}, behavior: Opaque})
			parent := newBox(&testBox{preferred: box.Size{Width: 100, Height: 100}, behavior: tt.behavior}, child)
			p := NewPipeline()
			p.SetRoot(parent)
			p.FlushLayout(box.Loose(box.Size{Width: 100, Height: 100}))

			result := NewHitTestResult()
			stop := parent.HitTest(result, tt.point)
			require.Equal(t, tt.wantStop, stop)
			require.Len(t, result.Entries, tt.wantHits)
		})
	}
}

func TestHitTest_LocalPositionUsesOffsets(t *testing.T) {
	first := newBox(&testBox{preferred: box.Size{Width: 10, Height: 10}, behavior: Opaque})
	second := newBox(&testBox{preferred: box.Size{Width: 10, Height: 10}, behavior: Opaque})
	root := newBox(&testBox{preferred: box.Size{Width: 100, Height: 100}}, first, second)
	p := NewPipeline()
	p.SetRoot(root)
	p.FlushLayout(box.Loose(box.Size{Width: 100, Height: 100}))

	result := p.HitTest(canvas.Point{X: 3, Y: 14})
	require.Equal(t, []*Object{second, root}, result.Targets())
	require.Equal(t, canvas.Point{X: 3, Y: 4}, result.Entries[0].Position)
}

func TestDump(t *testing.T) {
	child := newBox(&testBox{preferred: box.Size{Width: 1, Height: 1}})
	root := newBox(&testBox{preferred: box.Size{Width: 2, Height: 2}}, child)
	p := NewPipeline()
	p.SetRoot(root)
	p.FlushLayout(box.Tight(2, 2))
	dump := root.Dump()
	require.Contains(t, dump, "testBox size=Size(2, 2) relayoutBoundary repaintBoundary")
	require.Contains(t, dump, "\n  testBox size=Size(1, 1)")
}
