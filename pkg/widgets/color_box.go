package widgets

import (
	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// ColorBox fills its area with Color and paints Child on top.
type ColorBox struct {
	Color canvas.Color
	Child core.Widget
	K     any
}

func (b ColorBox) Key() any { return b.K }
func (b ColorBox) ChildWidgets() []core.Widget { return single(b.Child) }
func (b ColorBox) Protocol() protocol.Protocol { return box.Protocol{} }
func (b ColorBox) CreateRender() render.Render { return &renderColorBox{color: b.Color} }

func (b ColorBox) UpdateRender(r render.Render) render.Dirty {
	rc := r.(*renderColorBox)
	if rc.color == b.Color {
		return 0
	}
	rc.color = b.Color
	return render.DirtyPaint
}

type renderColorBox struct {
	color canvas.Color
}

// Color returns the fill color.
func (r *renderColorBox) Color() canvas.Color {
	return r.color
}

func (r *renderColorBox) PerformLayout(c protocol.Constraints, children []*render.Object) (protocol.Size, any) {
	return layoutSingle(box.ConstraintsOf(c), children), nil
}

func (r *renderColorBox) PerformPaint(ctx *render.PaintContext, size protocol.Size, offset protocol.Offset, _ any, children []*render.Object) {
	o, s := box.OffsetOf(offset), box.SizeOf(size)
	ctx.FillRect(canvas.RectFromLTWH(o.X, o.Y, s.Width, s.Height), canvas.SolidBrush(r.color))
	paintChildren(ctx, offset, children)
}

func (r *renderColorBox) ComputeIntrinsics(q protocol.Intrinsics, children []*render.Object) float64 {
	return childIntrinsic(q, children)
}

// ColorOf returns the fill color of a ColorBox render object.
func ColorOf(o *render.Object) (canvas.Color, bool) {
	if o == nil {
		return 0, false
	}
	r, ok := o.Render().(*renderColorBox)
	if !ok {
		return 0, false
	}
	return r.Color(), true
}
