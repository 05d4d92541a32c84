// Package raster implements canvas.Backend on top of image.RGBA surfaces.
//
// Shapes are scan converted with golang.org/x/image/vector and encodings are
// composited with the affine transformers of golang.org/x/image/draw, so
// arbitrary canvas.Transform values are honoured.
package raster

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/go-drift/weave/pkg/canvas"
)

// circleSegments is the number of polygon edges used to approximate circles.
const circleSegments = 48

// Surface is the raster canvas.Encoding.
type Surface struct {
	img *image.RGBA
}

// Image returns the backing image.
func (s *Surface) Image() *image.RGBA {
	return s.img
}

// EncodePNG writes the surface as a PNG image.
func (s *Surface) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.img)
}

// Backend allocates fixed-size surfaces.
type Backend struct {
	width, height int
	interpolator  xdraw.Interpolator
}

// New returns a backend whose encodings are width x height pixels.
func New(width, height int) *Backend {
	return &Backend{width: width, height: height, interpolator: xdraw.BiLinear}
}

// NewEncoding implements canvas.Backend.
func (b *Backend) NewEncoding() canvas.Encoding {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, b.width, b.height))}
}

// NewPaintContext implements canvas.Backend.
func (b *Backend) NewPaintContext(enc canvas.Encoding) canvas.PaintContext {
	s := mustSurface(enc)
	return &paintContext{
		dst:        s.img,
		transforms: []canvas.Transform{canvas.Identity},
		clips:      []image.Rectangle{s.img.Bounds()},
	}
}

// CompositeEncoding implements canvas.Backend.
func (b *Backend) CompositeEncoding(dst, src canvas.Encoding, transform canvas.Transform) {
	d := mustSurface(dst).img
	s := mustSurface(src).img
	if transform.IsTranslation() && isIntegral(transform[2]) && isIntegral(transform[5]) {
		offset := image.Pt(int(transform[2]), int(transform[5]))
		xdraw.Draw(d, s.Bounds().Add(offset), s, s.Bounds().Min, xdraw.Over)
		return
	}
	b.interpolator.Transform(d, transform.Aff3(), s, s.Bounds(), xdraw.Over, nil)
}

// Clear implements canvas.Backend.
func (b *Backend) Clear(enc canvas.Encoding) {
	img := mustSurface(enc).img
	xdraw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, xdraw.Src)
}

func mustSurface(enc canvas.Encoding) *Surface {
	s, ok := enc.(*Surface)
	if !ok {
		panic(fmt.Sprintf("raster: foreign encoding %T", enc))
	}
	return s
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v)
}

type paintContext struct {
	dst        *image.RGBA
	transforms []canvas.Transform
	clips      []image.Rectangle
	stack      []bool // true for clip entries
}

func (p *paintContext) current() canvas.Transform {
	return p.transforms[len(p.transforms)-1]
}

func (p *paintContext) clip() image.Rectangle {
	return p.clips[len(p.clips)-1]
}

func (p *paintContext) FillRect(rect canvas.Rect, brush canvas.Brush) {
	p.fillPolygon(brush.Color, []canvas.Point{
		{X: rect.Left, Y: rect.Top},
		{X: rect.Right, Y: rect.Top},
		{X: rect.Right, Y: rect.Bottom},
		{X: rect.Left, Y: rect.Bottom},
	})
}

func (p *paintContext) StrokeRect(rect canvas.Rect, brush canvas.Brush) {
	w := brush.StrokeWidth
	if w <= 0 {
		w = 1
	}
	half := w / 2
	fill := canvas.SolidBrush(brush.Color)
	p.FillRect(canvas.Rect{Left: rect.Left - half, Top: rect.Top - half, Right: rect.Right + half, Bottom: rect.Top + half}, fill)
	p.FillRect(canvas.Rect{Left: rect.Left - half, Top: rect.Bottom - half, Right: rect.Right + half, Bottom: rect.Bottom + half}, fill)
	p.FillRect(canvas.Rect{Left: rect.Left - half, Top: rect.Top + half, Right: rect.Left + half, Bottom: rect.Bottom - half}, fill)
	p.FillRect(canvas.Rect{Left: rect.Right - half, Top: rect.Top + half, Right: rect.Right + half, Bottom: rect.Bottom - half}, fill)
}

func (p *paintContext) FillCircle(center canvas.Point, radius float64, brush canvas.Brush) {
	points := make([]canvas.Point, circleSegments)
	for i := range points {
		angle := 2 * math.Pi * float64(i) / circleSegments
		points[i] = canvas.Point{X: center.X + radius*math.Cos(angle), Y: center.Y + radius*math.Sin(angle)}
	}
	p.fillPolygon(brush.Color, points)
}

func (p *paintContext) fillPolygon(c canvas.Color, points []canvas.Point) {
	clip := p.clip()
	if clip.Empty() || len(points) < 3 {
		return
	}
	t := p.current()
	z := vector.NewRasterizer(clip.Dx(), clip.Dy())
	for i, pt := range points {
		dp := t.Apply(pt)
		x := float32(dp.X - float64(clip.Min.X))
		y := float32(dp.Y - float64(clip.Min.Y))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	z.Draw(p.dst, clip, image.NewUniform(c.NRGBA()), image.Point{})
}

func (p *paintContext) PushTransform(t canvas.Transform) {
	p.transforms = append(p.transforms, p.current().Mul(t))
	p.stack = append(p.stack, false)
}

func (p *paintContext) PushClipRect(rect canvas.Rect) {
	device := p.current().ApplyRect(rect)
	r := image.Rect(
		int(math.Floor(device.Left)), int(math.Floor(device.Top)),
		int(math.Ceil(device.Right)), int(math.Ceil(device.Bottom)),
	)
	p.clips = append(p.clips, r.Intersect(p.clip()))
	p.stack = append(p.stack, true)
}

func (p *paintContext) Pop() {
	if len(p.stack) == 0 {
		panic("raster: Pop without matching Push")
	}
	isClip := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if isClip {
		p.clips = p.clips[:len(p.clips)-1]
		return
	}
	p.transforms = p.transforms[:len(p.transforms)-1]
}

func (p *paintContext) Transform() canvas.Transform {
	return p.current()
}
