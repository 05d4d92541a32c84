// Package recorder implements canvas.Backend by recording paint commands into
// display lists. It is the backend used by tests and by the CLI dump output.
package recorder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-drift/weave/pkg/canvas"
)

// Op is one recorded drawing operation.
type Op interface {
	// Name returns the operation name used in dumps.
	Name() string
	transformed(t canvas.Transform) Op
}

// FillRect is a recorded canvas.PaintContext.FillRect call.
type FillRect struct {
	Rect      canvas.Rect
	Brush     canvas.Brush
	Transform canvas.Transform
	Clip      *canvas.Rect
}

// Name implements Op.
func (FillRect) Name() string { return "fillRect" }

func (o FillRect) transformed(t canvas.Transform) Op {
	o.Transform = t.Mul(o.Transform)
	o.Clip = transformClip(o.Clip, t)
	return o
}

// StrokeRect is a recorded canvas.PaintContext.StrokeRect call.
type StrokeRect struct {
	Rect      canvas.Rect
	Brush     canvas.Brush
	Transform canvas.Transform
	Clip      *canvas.Rect
}

// Name implements Op.
func (StrokeRect) Name() string { return "strokeRect" }

func (o StrokeRect) transformed(t canvas.Transform) Op {
	o.Transform = t.Mul(o.Transform)
	o.Clip = transformClip(o.Clip, t)
	return o
}

// FillCircle is a recorded canvas.PaintContext.FillCircle call.
type FillCircle struct {
	Center    canvas.Point
	Radius    float64
	Brush     canvas.Brush
	Transform canvas.Transform
	Clip      *canvas.Rect
}

// Name implements Op.
func (FillCircle) Name() string { return "fillCircle" }

func (o FillCircle) transformed(t canvas.Transform) Op {
	o.Transform = t.Mul(o.Transform)
	o.Clip = transformClip(o.Clip, t)
	return o
}

func transformClip(clip *canvas.Rect, t canvas.Transform) *canvas.Rect {
	if clip == nil {
		return nil
	}
	r := t.ApplyRect(*clip)
	return &r
}

// DisplayList is the recorder's canvas.Encoding.
type DisplayList struct {
	mu  sync.Mutex
	ops []Op
}

// Ops returns a copy of the recorded operations.
func (d *DisplayList) Ops() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := make([]Op, len(d.ops))
	copy(ops, d.ops)
	return ops
}

// Len returns the number of recorded operations.
func (d *DisplayList) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ops)
}

func (d *DisplayList) append(ops ...Op) {
	d.mu.Lock()
	d.ops = append(d.ops, ops...)
	d.mu.Unlock()
}

// String renders the display list one operation per line.
func (d *DisplayList) String() string {
	var sb strings.Builder
	for _, op := range d.Ops() {
		switch o := op.(type) {
		case FillRect:
			fmt.Fprintf(&sb, "%s %v color=%#08x %s\n", o.Name(), o.Rect, uint32(o.Brush.Color), o.Transform)
		case StrokeRect:
			fmt.Fprintf(&sb, "%s %v color=%#08x width=%g %s\n", o.Name(), o.Rect, uint32(o.Brush.Color), o.Brush.StrokeWidth, o.Transform)
		case FillCircle:
			fmt.Fprintf(&sb, "%s center=%v r=%g color=%#08x %s\n", o.Name(), o.Center, o.Radius, uint32(o.Brush.Color), o.Transform)
		default:
			fmt.Fprintf(&sb, "%s\n", op.Name())
		}
	}
	return sb.String()
}

// Backend records into DisplayList encodings.
type Backend struct{}

// New returns a recording backend.
func New() *Backend {
	return &Backend{}
}

// NewEncoding implements canvas.Backend.
func (*Backend) NewEncoding() canvas.Encoding {
	return &DisplayList{}
}

// NewPaintContext implements canvas.Backend.
func (*Backend) NewPaintContext(enc canvas.Encoding) canvas.PaintContext {
	return &paintContext{list: mustList(enc), transforms: []canvas.Transform{canvas.Identity}}
}

// CompositeEncoding implements canvas.Backend by appending src's operations
// to dst, each premultiplied by transform.
func (*Backend) CompositeEncoding(dst, src canvas.Encoding, transform canvas.Transform) {
	source := mustList(src)
	ops := source.Ops()
	for i, op := range ops {
		ops[i] = op.transformed(transform)
	}
	mustList(dst).append(ops...)
}

// Clear implements canvas.Backend.
func (*Backend) Clear(enc canvas.Encoding) {
	list := mustList(enc)
	list.mu.Lock()
	list.ops = nil
	list.mu.Unlock()
}

func mustList(enc canvas.Encoding) *DisplayList {
	list, ok := enc.(*DisplayList)
	if !ok {
		panic(fmt.Sprintf("recorder: foreign encoding %T", enc))
	}
	return list
}

type stackEntry struct {
	clip bool
}

type paintContext struct {
	list       *DisplayList
	transforms []canvas.Transform
	clips      []canvas.Rect
	stack      []stackEntry
}

func (p *paintContext) current() canvas.Transform {
	return p.transforms[len(p.transforms)-1]
}

func (p *paintContext) clip() *canvas.Rect {
	if len(p.clips) == 0 {
		return nil
	}
	c := p.clips[len(p.clips)-1]
	return &c
}

func (p *paintContext) FillRect(rect canvas.Rect, brush canvas.Brush) {
	p.list.append(FillRect{Rect: rect, Brush: brush, Transform: p.current(), Clip: p.clip()})
}

func (p *paintContext) StrokeRect(rect canvas.Rect, brush canvas.Brush) {
	p.list.append(StrokeRect{Rect: rect, Brush: brush, Transform: p.current(), Clip: p.clip()})
}

func (p *paintContext) FillCircle(center canvas.Point, radius float64, brush canvas.Brush) {
	p.list.append(FillCircle{Center: center, Radius: radius, Brush: brush, Transform: p.current(), Clip: p.clip()})
}

func (p *paintContext) PushTransform(t canvas.Transform) {
	p.transforms = append(p.transforms, p.current().Mul(t))
	p.stack = append(p.stack, stackEntry{})
}

func (p *paintContext) PushClipRect(rect canvas.Rect) {
	device := p.current().ApplyRect(rect)
	if prev := p.clip(); prev != nil {
		device = device.Intersect(*prev)
	}
	p.clips = append(p.clips, device)
	p.stack = append(p.stack, stackEntry{clip: true})
}

func (p *paintContext) Pop() {
	if len(p.stack) == 0 {
		panic("recorder: Pop without matching Push")
	}
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if top.clip {
		p.clips = p.clips[:len(p.clips)-1]
		return
	}
	p.transforms = p.transforms[:len(p.transforms)-1]
}

func (p *paintContext) Transform() canvas.Transform {
	return p.current()
}
