// Package protocol defines the layout contract shared by every layout
// discipline. A discipline (the box model in package box, or any other)
// supplies concrete Constraints, Size and Offset values plus a Protocol that
// knows how to place and hit-test them. Render objects only ever see the
// erased interfaces declared here.
package protocol

import "github.com/go-drift/weave/pkg/canvas"

// Constraints restrict the size a render object may choose.
type Constraints interface {
	// IsTight reports whether exactly one size satisfies the constraints.
	IsTight() bool
	// Equal reports value equality with another constraint of any protocol.
	Equal(other Constraints) bool
}

// Size is the outcome of layout.
type Size interface {
	Equal(other Size) bool
}

// Offset positions a child inside its parent.
type Offset interface {
	Equal(other Offset) bool
}

// Intrinsics is a comparable intrinsic-dimension query. Queries are used as
// cache keys, so implementations must be comparable values.
type Intrinsics interface {
	IntrinsicsQuery()
}

// Protocol describes a layout discipline.
type Protocol interface {
	// Name identifies the protocol in diagnostics.
	Name() string
	// ZeroOffset is the identity offset.
	ZeroOffset() Offset
	// AddOffset composes two offsets of this protocol.
	AddOffset(a, b Offset) Offset
	// PositionInShape reports whether position, in the parent's coordinate
	// space, lies inside a shape of size placed at offset.
	PositionInShape(position canvas.Point, offset Offset, size Size) bool
	// OffsetTransform converts an offset into a canvas transform.
	OffsetTransform(offset Offset) canvas.Transform
}
