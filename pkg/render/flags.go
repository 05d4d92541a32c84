package render

import "sync/atomic"

const (
	flagNeedsLayout uint32 = 1 << iota
	flagNeedsPaint
	flagRelayoutBoundary
	flagRepaintBoundary
	flagDetached
)

// RenderContextNode is the lock-free identity part of a render object: its
// dirty bits and boundary determination, plus a relation-only parent link.
type RenderContextNode struct {
	flags  atomic.Uint32
	parent atomic.Pointer[Object]
	depth  atomic.Int32
}

func (n *RenderContextNode) set(bits uint32) {
	n.flags.Or(bits)
}

func (n *RenderContextNode) clear(bits uint32) {
	n.flags.And(^bits)
}

func (n *RenderContextNode) has(bits uint32) bool {
	return n.flags.Load()&bits != 0
}

// NeedsLayout reports whether the object must run layout.
func (n *RenderContextNode) NeedsLayout() bool {
	return n.has(flagNeedsLayout)
}

// NeedsPaint reports whether the object must repaint.
func (n *RenderContextNode) NeedsPaint() bool {
	return n.has(flagNeedsPaint)
}

// IsRelayoutBoundary reports the boundary status computed by the last layout.
func (n *RenderContextNode) IsRelayoutBoundary() bool {
	return n.has(flagRelayoutBoundary)
}

// IsRepaintBoundary reports whether the object owns a layer.
func (n *RenderContextNode) IsRepaintBoundary() bool {
	return n.has(flagRepaintBoundary)
}

// Parent returns the parent object, or nil for a root or detached object.
func (n *RenderContextNode) Parent() *Object {
	return n.parent.Load()
}

// Depth returns the tree depth (root = 0).
func (n *RenderContextNode) Depth() int {
	return int(n.depth.Load())
}
