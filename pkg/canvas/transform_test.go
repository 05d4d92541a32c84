package canvas

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransform_MulAppliesRightOperandFirst(t *testing.T) {
	scale := Scaling(2, 2)
	move := Translation(10, 5)

	p := Point{X: 1, Y: 1}
	got := scale.Mul(move).Apply(p)
	require.Equal(t, Point{X: 22, Y: 12}, got)

	got = move.Mul(scale).Apply(p)
	require.Equal(t, Point{X: 12, Y: 7}, got)
}

func TestTransform_Inverse(t *testing.T) {
	tr := Translation(3, 4).Mul(Scaling(2, 4))
	inv, ok := tr.Inverse()
	require.True(t, ok)

	p := Point{X: 7, Y: -2}
	back := inv.Apply(tr.Apply(p))
	require.InDelta(t, p.X, back.X, 1e-9)
	require.InDelta(t, p.Y, back.Y, 1e-9)

	_, ok = Scaling(0, 1).Inverse()
	require.False(t, ok)
}

func TestTransform_ApplyRect(t *testing.T) {
	r := RectFromLTWH(0, 0, 10, 20)
	got := Translation(5, 5).Mul(Scaling(-1, 1)).ApplyRect(r)
	require.True(t, got.ApproxEqual(Rect{Left: -5, Top: 5, Right: 5, Bottom: 25}), "got %+v", got)
}

func TestRect_ContainsAndIntersect(t *testing.T) {
	r := RectFromLTWH(0, 0, 10, 10)
	require.True(t, r.Contains(Point{X: 10, Y: 10}))
	require.False(t, r.Contains(Point{X: 10.5, Y: 1}))
	require.True(t, r.Intersect(RectFromLTWH(20, 20, 5, 5)).IsEmpty())
	require.Equal(t, RectFromLTWH(5, 5, 5, 5), r.Intersect(RectFromLTWH(5, 5, 10, 10)))
}
