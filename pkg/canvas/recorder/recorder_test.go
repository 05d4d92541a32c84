package recorder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/weave/pkg/canvas"
)

func TestPaintContext_RecordsTransformAndClip(t *testing.T) {
	backend := New()
	enc := backend.NewEncoding()
	ctx := backend.NewPaintContext(enc)

	ctx.PushTransform(canvas.Translation(10, 20))
	ctx.PushClipRect(canvas.RectFromLTWH(0, 0, 5, 5))
	ctx.FillRect(canvas.RectFromLTWH(0, 0, 50, 50), canvas.SolidBrush(canvas.ColorRed))
	ctx.Pop()
	ctx.Pop()
	ctx.FillCircle(canvas.Point{X: 1, Y: 1}, 3, canvas.SolidBrush(canvas.ColorBlue))

	ops := enc.(*DisplayList).Ops()
	require.Len(t, ops, 2)

	rect := ops[0].(FillRect)
	require.Equal(t, canvas.Translation(10, 20), rect.Transform)
	require.NotNil(t, rect.Clip)
	require.True(t, rect.Clip.ApproxEqual(canvas.RectFromLTWH(10, 20, 5, 5)))

	circle := ops[1].(FillCircle)
	require.Equal(t, canvas.Identity, circle.Transform)
	require.Nil(t, circle.Clip)
}

func TestBackend_CompositeFlattensWithTransform(t *testing.T) {
	backend := New()
	src := backend.NewEncoding()
	backend.NewPaintContext(src).FillRect(canvas.RectFromLTWH(0, 0, 1, 1), canvas.SolidBrush(canvas.ColorGreen))

	dst := backend.NewEncoding()
	backend.CompositeEncoding(dst, src, canvas.Translation(4, 4))
	backend.CompositeEncoding(dst, src, canvas.Identity)

	ops := dst.(*DisplayList).Ops()
	require.Len(t, ops, 2)
	require.Equal(t, canvas.Translation(4, 4), ops[0].(FillRect).Transform)
	require.Equal(t, canvas.Identity, ops[1].(FillRect).Transform)

	backend.Clear(dst)
	require.Zero(t, dst.(*DisplayList).Len())
	require.Equal(t, 1, src.(*DisplayList).Len())
}

func TestPaintContext_UnbalancedPopPanics(t *testing.T) {
	backend := New()
	ctx := backend.NewPaintContext(backend.NewEncoding())
	require.Panics(t, func() { ctx.Pop() })
}
