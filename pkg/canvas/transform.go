package canvas

import (
	"fmt"

	"golang.org/x/image/math/f64"
)

// Transform is a 2D affine transform. It is an f64.Aff3 in row-major order
// with an implicit bottom row of [0 0 1].
type Transform f64.Aff3

// Identity is the identity transform.
var Identity = Transform{1, 0, 0, 0, 1, 0}

// Translation returns a transform that moves points by (dx, dy).
func Translation(dx, dy float64) Transform {
	return Transform{1, 0, dx, 0, 1, dy}
}

// Scaling returns a transform that scales by (sx, sy) about the origin.
func Scaling(sx, sy float64) Transform {
	return Transform{sx, 0, 0, 0, sy, 0}
}

// Mul returns t·o: the transform that applies o first and then t.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		t[0]*o[0] + t[1]*o[3],
		t[0]*o[1] + t[1]*o[4],
		t[0]*o[2] + t[1]*o[5] + t[2],
		t[3]*o[0] + t[4]*o[3],
		t[3]*o[1] + t[4]*o[4],
		t[3]*o[2] + t[4]*o[5] + t[5],
	}
}

// Apply maps p through t.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t[0]*p.X + t[1]*p.Y + t[2],
		Y: t[3]*p.X + t[4]*p.Y + t[5],
	}
}

// ApplyRect maps the corners of r through t and returns their bounds.
func (t Transform) ApplyRect(r Rect) Rect {
	a := t.Apply(Point{X: r.Left, Y: r.Top})
	b := t.Apply(Point{X: r.Right, Y: r.Bottom})
	return Rect{
		Left:   min(a.X, b.X),
		Top:    min(a.Y, b.Y),
		Right:  max(a.X, b.X),
		Bottom: max(a.Y, b.Y),
	}
}

// Inverse returns the inverse transform. ok is false for singular transforms.
func (t Transform) Inverse() (inv Transform, ok bool) {
	det := t[0]*t[4] - t[1]*t[3]
	if floatEqual(det, 0) {
		return Transform{}, false
	}
	inv[0] = t[4] / det
	inv[1] = -t[1] / det
	inv[3] = -t[3] / det
	inv[4] = t[0] / det
	inv[2] = -(inv[0]*t[2] + inv[1]*t[5])
	inv[5] = -(inv[3]*t[2] + inv[4]*t[5])
	return inv, true
}

// Aff3 returns t as an f64.Aff3 for use with golang.org/x/image/draw.
func (t Transform) Aff3() f64.Aff3 {
	return f64.Aff3(t)
}

// IsTranslation reports whether t only translates.
func (t Transform) IsTranslation() bool {
	return floatEqual(t[0], 1) && floatEqual(t[1], 0) && floatEqual(t[3], 0) && floatEqual(t[4], 1)
}

func (t Transform) String() string {
	if t.IsTranslation() {
		return fmt.Sprintf("translate(%g, %g)", t[2], t[5])
	}
	return fmt.Sprintf("matrix(%g %g %g; %g %g %g)", t[0], t[1], t[2], t[3], t[4], t[5])
}
