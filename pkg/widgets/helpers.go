package widgets

import (
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

// ColumnOf stacks children vertically.
func ColumnOf(children ...core.Widget) Column {
	return Column{Children: children}
}

// Padded wraps child with uniform padding.
func Padded(all float64, child core.Widget) Padding {
	return Padding{Insets: box.All(all), Child: child}
}

// Sized forces child to exactly width x height.
func Sized(width, height float64, child core.Widget) ConstrainedBox {
	return ConstrainedBox{Constraints: box.Tight(width, height), Child: child}
}

func single(child core.Widget) []core.Widget {
	if child == nil {
		return nil
	}
	return []core.Widget{child}
}

// layoutSingle lays out the only child, if any, under c and sizes the
// parent to it. Without a child the parent takes the largest bounded size.
func layoutSingle(c box.Constraints, children []*render.Object) box.Size {
	if len(children) == 0 {
		return c.Biggest()
	}
	child := children[0]
	size := box.SizeOf(child.Layout(c, true))
	child.SetOffset(box.Offset{})
	return c.Constrain(size)
}

func paintChildren(ctx *render.PaintContext, offset protocol.Offset, children []*render.Object) {
	ctx.PaintChildren(offset, children)
}

// childIntrinsic forwards an intrinsic query to the only child.
func childIntrinsic(q protocol.Intrinsics, children []*render.Object) float64 {
	if len(children) == 0 {
		return 0
	}
	return children[0].Intrinsics(q)
}
