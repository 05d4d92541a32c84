package widgets

import (
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// RepaintBoundary isolates its subtree into a separate paint layer.
// This allows the subtree to be cached and reused when it doesn't change,
// which can significantly improve performance for static content next to
// frequently animating content.
//
// A keyed boundary parks its layer when it is removed, and a new boundary
// with the same key under the same parent layer adopts it.
type RepaintBoundary struct {
	Child core.Widget
	K     any
}

func (b RepaintBoundary) Key() any { return b.K }
func (b RepaintBoundary) ChildWidgets() []core.Widget { return single(b.Child) }
func (b RepaintBoundary) Protocol() protocol.Protocol { return box.Protocol{} }
func (b RepaintBoundary) CreateRender() render.Render { return renderRepaintBoundary{} }
func (b RepaintBoundary) UpdateRender(render.Render) render.Dirty { return 0 }

type renderRepaintBoundary struct{}

// IsRepaintBoundary returns true - this IS a repaint boundary.
func (renderRepaintBoundary) IsRepaintBoundary() bool { return true }

func (renderRepaintBoundary) PerformLayout(c protocol.Constraints, children []*render.Object) (protocol.Size, any) {
	bc := box.ConstraintsOf(c)
	if len(children) == 0 {
		return bc.Smallest(), nil
	}
	return layoutSingle(bc, children), nil
}

func (renderRepaintBoundary) PerformPaint(ctx *render.PaintContext, _ protocol.Size, offset protocol.Offset, _ any, children []*render.Object) {
	paintChildren(ctx, offset, children)
}

func (renderRepaintBoundary) ComputeIntrinsics(q protocol.Intrinsics, children []*render.Object) float64 {
	return childIntrinsic(q, children)
}
