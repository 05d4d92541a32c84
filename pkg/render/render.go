package render

import (
	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/protocol"
)

// Render is the protocol-specific behavior behind an Object.
type Render interface {
	// PerformLayout sizes the object and lays out its children. The returned
	// memo is handed back to paint and hit testing.
	PerformLayout(c protocol.Constraints, children []*Object) (size protocol.Size, memo any)
	// PerformPaint draws the object at offset, painting children through ctx.
	PerformPaint(ctx *PaintContext, size protocol.Size, offset protocol.Offset, memo any, children []*Object)
}

// DryLayoutRender can compute its size from constraints alone while
// SizedByParent reports true. Such objects are relayout boundaries.
type DryLayoutRender interface {
	Render
	SizedByParent() bool
	ComputeDryLayout(c protocol.Constraints) protocol.Size
	// PerformLayoutWithSize lays out children once the size is known.
	PerformLayoutWithSize(c protocol.Constraints, size protocol.Size, children []*Object) (memo any)
}

// HitTestSelfRender overrides the default point-in-shape test. position is
// in the object's local coordinates.
type HitTestSelfRender interface {
	HitTestSelf(position canvas.Point, size protocol.Size, memo any) bool
}

// HitTestChildrenRender overrides child delegation. The default visits
// children in reverse paint order and stops at the first hit.
type HitTestChildrenRender interface {
	HitTestChildren(result *HitTestResult, position canvas.Point, size protocol.Size, memo any, children []*Object) bool
}

// HitTestBehaviorRender selects the behavior when self is hit but no child is.
type HitTestBehaviorRender interface {
	HitTestBehavior() HitTestBehavior
}

// IntrinsicsRender answers intrinsic dimension queries.
type IntrinsicsRender interface {
	ComputeIntrinsics(q protocol.Intrinsics, children []*Object) float64
}

// RepaintBoundaryRender marks objects that paint into their own layer.
type RepaintBoundaryRender interface {
	IsRepaintBoundary() bool
}

// HitTestBehavior resolves a hit on self that no child claimed.
type HitTestBehavior int

const (
	// DeferToChild reports a hit only when a child is hit.
	DeferToChild HitTestBehavior = iota
	// Opaque records self and stops the search.
	Opaque
	// Transparent records self and lets the search continue behind.
	Transparent
)

func (b HitTestBehavior) String() string {
	switch b {
	case Opaque:
		return "opaque"
	case Transparent:
		return "transparent"
	default:
		return "deferToChild"
	}
}

// Dirty reports which phases a render update invalidates.
type Dirty uint8

const (
	DirtyLayout Dirty = 1 << iota
	DirtyPaint
)
