package render

import (
	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/protocol"
)

// PaintContext is handed to PerformPaint. It embeds the backend paint
// context of the layer being recorded.
type PaintContext struct {
	canvas.PaintContext

	backend canvas.Backend
	layer   *LayerNode
}

// Layer returns the layer being painted.
func (c *PaintContext) Layer() *LayerNode {
	return c.layer
}

// PaintChild paints child at offset. A repaint boundary child is painted
// into its own layer, repainting only if dirty, and referenced from the
// current layer by transform.
func (c *PaintContext) PaintChild(child *Object, offset protocol.Offset) {
	if child.IsRepaintBoundary() {
		layer := child.ensureLayer(c.layer)
		if child.NeedsPaint() || layer.Mark.NeedsPaint() {
			child.paintLayer(c.backend)
		}
		c.layer.appendChild(layer, c.Transform().Mul(child.proto.OffsetTransform(offset)))
		return
	}
	child.paint(c, offset)
}

// PaintChildren paints every child at offset plus its assigned position.
func (c *PaintContext) PaintChildren(offset protocol.Offset, children []*Object) {
	for _, child := range children {
		c.PaintChild(child, child.proto.AddOffset(offset, child.Offset()))
	}
}

func (o *Object) ensureLayer(parent *LayerNode) *LayerNode {
	if l := o.layer.Load(); l != nil {
		return l
	}
	o.mu.Lock()
	key := o.layerKey
	o.mu.Unlock()
	var l *LayerNode
	if parent != nil && key != nil {
		l = parent.adopt(key)
	}
	if l == nil {
		l = newLayer()
	} else {
		l.Mark.bits.Or(markNeedsPaint | markNeedsComposite)
	}
	if !o.layer.CompareAndSwap(nil, l) {
		return o.layer.Load()
	}
	return l
}

func (o *Object) paintLayer(backend canvas.Backend) {
	layer := o.ensureLayer(nil)
	enc := layer.beginPaint(backend)
	ctx := &PaintContext{
		PaintContext: backend.NewPaintContext(enc),
		backend:      backend,
		layer:        layer,
	}
	o.paint(ctx, o.proto.ZeroOffset())
	layer.endPaint()
}

func (o *Object) paint(ctx *PaintContext, offset protocol.Offset) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clear(flagNeedsPaint)
	if o.size == nil {
		return
	}
	o.render.PerformPaint(ctx, o.size, offset, o.memo, o.children)
}
