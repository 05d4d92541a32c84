package box

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/weave/pkg/canvas"
)

func TestConstraints_Tightness(t *testing.T) {
	require.True(t, Tight(50, 50).IsTight())
	require.False(t, Loose(Size{Width: 50, Height: 50}).IsTight())
	require.True(t, Tight(1, 2).Equal(Tight(1, 2)))
	require.False(t, Tight(1, 2).Equal(Tight(2, 1)))
}

func TestConstraints_EnforceKeepsOuterBounds(t *testing.T) {
	inner := Tight(50, 50)
	outer := Constraints{MaxWidth: 30, MaxHeight: 100}
	require.Equal(t, Constraints{MinWidth: 30, MaxWidth: 30, MinHeight: 50, MaxHeight: 50}, inner.Enforce(outer))

	// tight inner against a looser outer survives unchanged
	require.Equal(t, inner, inner.Enforce(Unbounded()))
}

func TestConstraints_ConstrainAndDeflate(t *testing.T) {
	c := Constraints{MinWidth: 10, MaxWidth: 20, MinHeight: 10, MaxHeight: 20}
	require.Equal(t, Size{Width: 20, Height: 10}, c.Constrain(Size{Width: 100, Height: 0}))

	d := Tight(50, 50).Deflate(All(5))
	require.Equal(t, Tight(40, 40), d)

	require.Equal(t, Size{}, Unbounded().Biggest())
}

func TestProtocol_PositionInShape(t *testing.T) {
	p := Protocol{}
	size := Size{Width: 10, Height: 10}
	require.True(t, p.PositionInShape(canvas.Point{X: 15, Y: 15}, Offset{X: 10, Y: 10}, size))
	require.False(t, p.PositionInShape(canvas.Point{X: 5, Y: 5}, Offset{X: 10, Y: 10}, size))
	require.Equal(t, canvas.Translation(3, 4), p.OffsetTransform(Offset{X: 3, Y: 4}))
}
