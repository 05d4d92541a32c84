// Package box implements the box layout protocol: axis-aligned rectangles
// constrained by minimum and maximum width and height.
package box

import (
	"fmt"
	"math"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/protocol"
)

// Infinity is the unbounded extent.
var Infinity = math.Inf(1)

// Constraints bound the size of a box.
type Constraints struct {
	MinWidth  float64
	MaxWidth  float64
	MinHeight float64
	MaxHeight float64
}

// Tight returns constraints that only admit width x height.
func Tight(width, height float64) Constraints {
	return Constraints{MinWidth: width, MaxWidth: width, MinHeight: height, MaxHeight: height}
}

// TightFor returns constraints that only admit size.
func TightFor(size Size) Constraints {
	return Tight(size.Width, size.Height)
}

// Loose returns constraints admitting any size up to size.
func Loose(size Size) Constraints {
	return Constraints{MaxWidth: size.Width, MaxHeight: size.Height}
}

// Unbounded returns constraints with no upper limit.
func Unbounded() Constraints {
	return Constraints{MaxWidth: Infinity, MaxHeight: Infinity}
}

// IsTight implements protocol.Constraints.
func (c Constraints) IsTight() bool {
	return c.MinWidth >= c.MaxWidth && c.MinHeight >= c.MaxHeight
}

// Equal implements protocol.Constraints.
func (c Constraints) Equal(other protocol.Constraints) bool {
	o, ok := other.(Constraints)
	return ok && c == o
}

// HasBoundedWidth reports whether MaxWidth is finite.
func (c Constraints) HasBoundedWidth() bool {
	return !math.IsInf(c.MaxWidth, 1)
}

// HasBoundedHeight reports whether MaxHeight is finite.
func (c Constraints) HasBoundedHeight() bool {
	return !math.IsInf(c.MaxHeight, 1)
}

// Constrain clamps size into the constraints.
func (c Constraints) Constrain(size Size) Size {
	return Size{
		Width:  clamp(size.Width, c.MinWidth, c.MaxWidth),
		Height: clamp(size.Height, c.MinHeight, c.MaxHeight),
	}
}

// Enforce clamps c so that it satisfies outer.
func (c Constraints) Enforce(outer Constraints) Constraints {
	return Constraints{
		MinWidth:  clamp(c.MinWidth, outer.MinWidth, outer.MaxWidth),
		MaxWidth:  clamp(c.MaxWidth, outer.MinWidth, outer.MaxWidth),
		MinHeight: clamp(c.MinHeight, outer.MinHeight, outer.MaxHeight),
		MaxHeight: clamp(c.MaxHeight, outer.MinHeight, outer.MaxHeight),
	}
}

// Loosen drops the minimums.
func (c Constraints) Loosen() Constraints {
	return Constraints{MaxWidth: c.MaxWidth, MaxHeight: c.MaxHeight}
}

// Deflate shrinks the constraints by insets on every side.
func (c Constraints) Deflate(insets EdgeInsets) Constraints {
	h := insets.Left + insets.Right
	v := insets.Top + insets.Bottom
	minW := math.Max(0, c.MinWidth-h)
	minH := math.Max(0, c.MinHeight-v)
	return Constraints{
		MinWidth:  minW,
		MaxWidth:  math.Max(minW, c.MaxWidth-h),
		MinHeight: minH,
		MaxHeight: math.Max(minH, c.MaxHeight-v),
	}
}

// Smallest returns the smallest admissible size.
func (c Constraints) Smallest() Size {
	return Size{Width: c.MinWidth, Height: c.MinHeight}
}

// Biggest returns the largest admissible size, falling back to the minimum
// along unbounded axes.
func (c Constraints) Biggest() Size {
	w, h := c.MaxWidth, c.MaxHeight
	if math.IsInf(w, 1) {
		w = c.MinWidth
	}
	if math.IsInf(h, 1) {
		h = c.MinHeight
	}
	return Size{Width: w, Height: h}
}

func (c Constraints) String() string {
	if c.IsTight() {
		return fmt.Sprintf("BoxConstraints(tight %gx%g)", c.MinWidth, c.MinHeight)
	}
	return fmt.Sprintf("BoxConstraints(%g<=w<=%g, %g<=h<=%g)", c.MinWidth, c.MaxWidth, c.MinHeight, c.MaxHeight)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Size is a box size.
type Size struct {
	Width  float64
	Height float64
}

// Equal implements protocol.Size.
func (s Size) Equal(other protocol.Size) bool {
	o, ok := other.(Size)
	return ok && s == o
}

func (s Size) String() string {
	return fmt.Sprintf("Size(%g, %g)", s.Width, s.Height)
}

// Offset is a box position relative to the parent's origin.
type Offset struct {
	X float64
	Y float64
}

// Equal implements protocol.Offset.
func (o Offset) Equal(other protocol.Offset) bool {
	v, ok := other.(Offset)
	return ok && o == v
}

// Add returns the component-wise sum.
func (o Offset) Add(other Offset) Offset {
	return Offset{X: o.X + other.X, Y: o.Y + other.Y}
}

func (o Offset) String() string {
	return fmt.Sprintf("Offset(%g, %g)", o.X, o.Y)
}

// EdgeInsets are per-side paddings.
type EdgeInsets struct {
	Left, Top, Right, Bottom float64
}

// All returns uniform insets.
func All(v float64) EdgeInsets {
	return EdgeInsets{Left: v, Top: v, Right: v, Bottom: v}
}

// Dimension selects which intrinsic extent is queried.
type Dimension int

const (
	MinWidth Dimension = iota
	MaxWidth
	MinHeight
	MaxHeight
)

func (d Dimension) String() string {
	switch d {
	case MinWidth:
		return "minWidth"
	case MaxWidth:
		return "maxWidth"
	case MinHeight:
		return "minHeight"
	default:
		return "maxHeight"
	}
}

// Intrinsic asks for one intrinsic dimension given the extent of the other
// axis (e.g. the minimum width for a given height).
type Intrinsic struct {
	Dimension Dimension
	Extent    float64
}

// IntrinsicsQuery implements protocol.Intrinsics.
func (Intrinsic) IntrinsicsQuery() {}

// Protocol is the box protocol descriptor.
type Protocol struct{}

// Name implements protocol.Protocol.
func (Protocol) Name() string { return "box" }

// ZeroOffset implements protocol.Protocol.
func (Protocol) ZeroOffset() protocol.Offset { return Offset{} }

// AddOffset implements protocol.Protocol.
func (Protocol) AddOffset(a, b protocol.Offset) protocol.Offset {
	return OffsetOf(a).Add(OffsetOf(b))
}

// PositionInShape implements protocol.Protocol.
func (Protocol) PositionInShape(position canvas.Point, offset protocol.Offset, size protocol.Size) bool {
	o := OffsetOf(offset)
	s := SizeOf(size)
	return canvas.RectFromLTWH(o.X, o.Y, s.Width, s.Height).Contains(position)
}

// OffsetTransform implements protocol.Protocol.
func (Protocol) OffsetTransform(offset protocol.Offset) canvas.Transform {
	o := OffsetOf(offset)
	return canvas.Translation(o.X, o.Y)
}

// ConstraintsOf asserts c to box constraints. A foreign protocol panics.
func ConstraintsOf(c protocol.Constraints) Constraints {
	bc, ok := c.(Constraints)
	if !ok {
		panic(fmt.Sprintf("box: constraints of type %T", c))
	}
	return bc
}

// SizeOf asserts s to a box size. A nil size is the zero size.
func SizeOf(s protocol.Size) Size {
	if s == nil {
		return Size{}
	}
	bs, ok := s.(Size)
	if !ok {
		panic(fmt.Sprintf("box: size of type %T", s))
	}
	return bs
}

// OffsetOf asserts o to a box offset. A nil offset is the origin.
func OffsetOf(o protocol.Offset) Offset {
	if o == nil {
		return Offset{}
	}
	bo, ok := o.(Offset)
	if !ok {
		panic(fmt.Sprintf("box: offset of type %T", o))
	}
	return bo
}
