package widgets

import (
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// ConstrainedBox lays its child out under Constraints instead of the
// constraints it receives, so a tight ConstrainedBox always has its exact
// size. The parent is responsible for any overflow.
type ConstrainedBox struct {
	Constraints box.Constraints
	Child       core.Widget
	K           any
}

func (b ConstrainedBox) Key() any { return b.K }
func (b ConstrainedBox) ChildWidgets() []core.Widget { return single(b.Child) }
func (b ConstrainedBox) Protocol() protocol.Protocol { return box.Protocol{} }

func (b ConstrainedBox) CreateRender() render.Render {
	return &renderConstrainedBox{constraints: b.Constraints}
}

func (b ConstrainedBox) UpdateRender(r render.Render) render.Dirty {
	rc := r.(*renderConstrainedBox)
	if rc.constraints == b.Constraints {
		return 0
	}
	rc.constraints = b.Constraints
	return render.DirtyLayout
}

type renderConstrainedBox struct {
	constraints box.Constraints
}

func (r *renderConstrainedBox) PerformLayout(_ protocol.Constraints, children []*render.Object) (protocol.Size, any) {
	if len(children) == 0 {
		return r.constraints.Smallest(), nil
	}
	return layoutSingle(r.constraints, children), nil
}

// SizedByParent reports whether the box's own constraints fix its size.
func (r *renderConstrainedBox) SizedByParent() bool {
	return r.constraints.IsTight()
}

func (r *renderConstrainedBox) ComputeDryLayout(protocol.Constraints) protocol.Size {
	return r.constraints.Smallest()
}

func (r *renderConstrainedBox) PerformLayoutWithSize(_ protocol.Constraints, _ protocol.Size, children []*render.Object) any {
	if len(children) > 0 {
		layoutSingle(r.constraints, children)
	}
	return nil
}

func (r *renderConstrainedBox) PerformPaint(ctx *render.PaintContext, _ protocol.Size, offset protocol.Offset, _ any, children []*render.Object) {
	paintChildren(ctx, offset, children)
}

func (r *renderConstrainedBox) ComputeIntrinsics(q protocol.Intrinsics, children []*render.Object) float64 {
	c := r.constraints
	v := childIntrinsic(q, children)
	switch q.(box.Intrinsic).Dimension {
	case box.MinWidth, box.MaxWidth:
		return clampExtent(v, c.MinWidth, c.MaxWidth)
	default:
		return clampExtent(v, c.MinHeight, c.MaxHeight)
	}
}

func clampExtent(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
