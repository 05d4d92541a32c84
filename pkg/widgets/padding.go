package widgets

import (
	"math"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// Padding adds empty space around its child.
//
// The child is constrained to the space left after the insets. Without a
// child Padding is an empty box of the inset size.
type Padding struct {
	Insets box.EdgeInsets
	Child  core.Widget
	K      any
}

func (p Padding) Key() any { return p.K }
func (p Padding) ChildWidgets() []core.Widget { return single(p.Child) }
func (p Padding) Protocol() protocol.Protocol { return box.Protocol{} }
func (p Padding) CreateRender() render.Render { return &renderPadding{insets: p.Insets} }

func (p Padding) UpdateRender(r render.Render) render.Dirty {
	rp := r.(*renderPadding)
	if rp.insets == p.Insets {
		return 0
	}
	rp.insets = p.Insets
	return render.DirtyLayout
}

type renderPadding struct {
	insets box.EdgeInsets
}

func (r *renderPadding) PerformLayout(c protocol.Constraints, children []*render.Object) (protocol.Size, any) {
	bc := box.ConstraintsOf(c)
	h := r.insets.Left + r.insets.Right
	v := r.insets.Top + r.insets.Bottom
	if len(children) == 0 {
		return bc.Constrain(box.Size{Width: h, Height: v}), nil
	}
	child := children[0]
	cs := box.SizeOf(child.Layout(bc.Deflate(r.insets), true))
	child.SetOffset(box.Offset{X: r.insets.Left, Y: r.insets.Top})
	return bc.Constrain(box.Size{Width: cs.Width + h, Height: cs.Height + v}), nil
}

func (r *renderPadding) PerformPaint(ctx *render.PaintContext, _ protocol.Size, offset protocol.Offset, _ any, children []*render.Object) {
	paintChildren(ctx, offset, children)
}

func (r *renderPadding) ComputeIntrinsics(q protocol.Intrinsics, children []*render.Object) float64 {
	in := q.(box.Intrinsic)
	h := r.insets.Left + r.insets.Right
	v := r.insets.Top + r.insets.Bottom
	switch in.Dimension {
	case box.MinWidth, box.MaxWidth:
		in.Extent = math.Max(0, in.Extent-v)
		return childIntrinsic(in, children) + h
	default:
		in.Extent = math.Max(0, in.Extent-h)
		return childIntrinsic(in, children) + v
	}
}
