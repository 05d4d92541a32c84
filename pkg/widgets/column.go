package widgets

import (
	"math"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// Column lays its children out top to bottom, each at its own height.
//
// Children get the column's maximum width (tight when Stretch is set) and
// unbounded height. The column is as tall as its children plus Spacing
// between them, clamped to its constraints.
type Column struct {
	Children []core.Widget
	Spacing  float64
	Stretch  bool
	K        any
}

func (c Column) Key() any { return c.K }
func (c Column) ChildWidgets() []core.Widget { return c.Children }
func (c Column) Protocol() protocol.Protocol { return box.Protocol{} }

func (c Column) CreateRender() render.Render {
	return &renderColumn{spacing: c.Spacing, stretch: c.Stretch}
}

func (c Column) UpdateRender(r render.Render) render.Dirty {
	rc := r.(*renderColumn)
	if rc.spacing == c.Spacing && rc.stretch == c.Stretch {
		return 0
	}
	rc.spacing, rc.stretch = c.Spacing, c.Stretch
	return render.DirtyLayout
}

type renderColumn struct {
	spacing float64
	stretch bool
}

func (r *renderColumn) childConstraints(c box.Constraints) box.Constraints {
	cc := box.Constraints{MaxWidth: c.MaxWidth, MaxHeight: box.Infinity}
	if r.stretch && c.HasBoundedWidth() {
		cc.MinWidth = c.MaxWidth
	}
	return cc
}

func (r *renderColumn) PerformLayout(c protocol.Constraints, children []*render.Object) (protocol.Size, any) {
	bc := box.ConstraintsOf(c)
	cc := r.childConstraints(bc)
	var width, y float64
	for i, child := range children {
		if i > 0 {
			y += r.spacing
		}
		s := box.SizeOf(child.Layout(cc, true))
		child.SetOffset(box.Offset{Y: y})
		y += s.Height
		width = math.Max(width, s.Width)
	}
	return bc.Constrain(box.Size{Width: width, Height: y}), nil
}

func (r *renderColumn) PerformPaint(ctx *render.PaintContext, _ protocol.Size, offset protocol.Offset, _ any, children []*render.Object) {
	paintChildren(ctx, offset, children)
}

func (r *renderColumn) ComputeIntrinsics(q protocol.Intrinsics, children []*render.Object) float64 {
	in := q.(box.Intrinsic)
	var v float64
	switch in.Dimension {
	case box.MinWidth, box.MaxWidth:
		for _, child := range children {
			v = math.Max(v, child.Intrinsics(in))
		}
	default:
		for i, child := range children {
			if i > 0 {
				v += r.spacing
			}
			v += child.Intrinsics(in)
		}
	}
	return v
}
