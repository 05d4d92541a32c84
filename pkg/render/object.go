package render

import (
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-drift/weave/pkg/protocol"
)

// Object is a node of the render tree.
type Object struct {
	RenderContextNode

	proto protocol.Protocol
	owner atomic.Pointer[Pipeline]
	layer atomic.Pointer[LayerNode]

	mu          sync.Mutex // guards the fields below
	render      Render
	children    []*Object
	constraints protocol.Constraints
	size        protocol.Size
	memo        any
	layerKey    any

	placeMu sync.Mutex
	offset  protocol.Offset

	intrMu     sync.Mutex
	intrinsics map[protocol.Intrinsics]float64
}

// New returns a detached render object that needs layout and paint.
func New(proto protocol.Protocol, r Render) *Object {
	o := &Object{proto: proto, render: r}
	o.set(flagNeedsLayout | flagNeedsPaint)
	if rb, ok := r.(RepaintBoundaryRender); ok && rb.IsRepaintBoundary() {
		o.set(flagRepaintBoundary)
	}
	return o
}

// Protocol returns the layout protocol of the object.
func (o *Object) Protocol() protocol.Protocol {
	return o.proto
}

// Render returns the behavior implementation.
func (o *Object) Render() Render {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.render
}

// Name returns the type name of the Render implementation.
func (o *Object) Name() string {
	t := reflect.TypeOf(o.Render())
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}

// Children returns a copy of the child list.
func (o *Object) Children() []*Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Object, len(o.children))
	copy(out, o.children)
	return out
}

// Size returns the size produced by the last layout, or nil.
func (o *Object) Size() protocol.Size {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.size
}

// Memo returns the layout memo produced by the last layout.
func (o *Object) Memo() any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.memo
}

// Constraints returns the constraints of the last layout, or nil.
func (o *Object) Constraints() protocol.Constraints {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.constraints
}

// Offset returns the position assigned by the parent.
func (o *Object) Offset() protocol.Offset {
	o.placeMu.Lock()
	defer o.placeMu.Unlock()
	if o.offset == nil {
		return o.proto.ZeroOffset()
	}
	return o.offset
}

// SetOffset places the object inside its parent. A changed offset repaints
// the parent, whose layer embeds the child position.
func (o *Object) SetOffset(offset protocol.Offset) {
	o.placeMu.Lock()
	changed := o.offset == nil || !o.offset.Equal(offset)
	o.offset = offset
	o.placeMu.Unlock()
	if changed {
		if p := o.Parent(); p != nil {
			p.MarkNeedsPaint()
		}
	}
}

// Layer returns the layer owned by a repaint boundary, or nil.
func (o *Object) Layer() *LayerNode {
	return o.layer.Load()
}

// SetLayerKey sets the key under which this object's layer may be re-adopted
// by a successor with the same key.
func (o *Object) SetLayerKey(key any) {
	o.mu.Lock()
	o.layerKey = key
	o.mu.Unlock()
}

// Update applies fn to the Render under the object lock and marks the
// phases fn reports as dirty.
func (o *Object) Update(fn func(Render) Dirty) {
	o.mu.Lock()
	dirty := fn(o.render)
	boundary := false
	if rb, ok := o.render.(RepaintBoundaryRender); ok {
		boundary = rb.IsRepaintBoundary()
	}
	o.mu.Unlock()
	if o.Parent() != nil {
		o.setRepaintBoundary(boundary)
	}
	if dirty&DirtyLayout != 0 {
		o.MarkNeedsLayout()
	}
	if dirty&(DirtyLayout|DirtyPaint) != 0 {
		o.MarkNeedsPaint()
	}
}

func (o *Object) setRepaintBoundary(boundary bool) {
	if boundary == o.IsRepaintBoundary() {
		return
	}
	if boundary {
		o.set(flagRepaintBoundary)
	} else {
		o.clear(flagRepaintBoundary)
		o.layer.Store(nil)
	}
	if p := o.Parent(); p != nil {
		p.MarkNeedsPaint()
	}
	o.MarkNeedsPaint()
}

// SetChildren replaces the child list, attaching new children and releasing
// the ones that are gone.
func (o *Object) SetChildren(children []*Object) {
	o.mu.Lock()
	old := o.children
	o.children = append([]*Object(nil), children...)
	o.mu.Unlock()

	keep := make(map[*Object]struct{}, len(children))
	for _, c := range children {
		keep[c] = struct{}{}
	}
	for _, c := range old {
		if _, ok := keep[c]; !ok && c.Parent() == o {
			c.parent.Store(nil)
		}
	}
	owner := o.owner.Load()
	for _, c := range children {
		c.clear(flagDetached)
		c.parent.Store(o)
		c.attach(owner, o.Depth()+1)
	}
	o.MarkNeedsLayout()
	o.MarkNeedsPaint()
}

func (o *Object) attach(owner *Pipeline, depth int) {
	o.depth.Store(int32(depth))
	o.owner.Store(owner)
	for _, c := range o.Children() {
		c.attach(owner, depth+1)
	}
}

// Detach removes the object from the render tree. A keyed layer is parked in
// the parent layer so a successor with the same key can adopt it.
func (o *Object) Detach() {
	o.set(flagDetached)
	o.parent.Store(nil)
	if l := o.layer.Load(); l != nil {
		o.mu.Lock()
		key := o.layerKey
		o.mu.Unlock()
		if pl := l.parentLayer(); pl != nil && key != nil {
			pl.park(key, l)
		}
	}
	o.attach(nil, 0)
}

// IsDetached reports whether Detach was called since the last attach.
func (o *Object) IsDetached() bool {
	return o.has(flagDetached)
}

// MarkNeedsLayout marks the object dirty and walks up to the nearest
// relayout boundary, which is scheduled with the pipeline.
func (o *Object) MarkNeedsLayout() {
	o.invalidateIntrinsics()
	if o.has(flagNeedsLayout) {
		return
	}
	o.set(flagNeedsLayout)
	owner := o.owner.Load()
	if o.IsRelayoutBoundary() {
		if owner != nil {
			owner.ScheduleLayout(o)
		}
		return
	}
	if p := o.Parent(); p != nil {
		p.MarkNeedsLayout()
		return
	}
	if owner != nil {
		owner.ScheduleLayout(o)
	}
}

// MarkNeedsPaint marks the object dirty and walks up to the nearest repaint
// boundary. Ancestor layers only learn that their composite is stale.
func (o *Object) MarkNeedsPaint() {
	o.set(flagNeedsPaint)
	owner := o.owner.Load()
	if o.IsRepaintBoundary() {
		if l := o.layer.Load(); l != nil {
			l.markNeedsPaint()
		}
		if owner != nil {
			owner.SchedulePaint(o)
		}
		return
	}
	if p := o.Parent(); p != nil {
		p.MarkNeedsPaint()
		return
	}
	if owner != nil {
		owner.SchedulePaint(o)
	}
}

// Layout lays the object out under c. parentUsesSize reports whether the
// parent's own layout depends on the result; when it does not, or when the
// constraints are tight, the object becomes a relayout boundary.
func (o *Object) Layout(c protocol.Constraints, parentUsesSize bool) protocol.Size {
	o.mu.Lock()
	defer o.mu.Unlock()

	dry, isDry := o.render.(DryLayoutRender)
	isDry = isDry && dry.SizedByParent()
	if o.Parent() == nil || c.IsTight() || !parentUsesSize || isDry {
		o.set(flagRelayoutBoundary)
	} else {
		o.clear(flagRelayoutBoundary)
	}

	if !o.NeedsLayout() && o.constraints != nil && o.constraints.Equal(c) {
		return o.size
	}

	o.constraints = c
	o.clear(flagNeedsLayout)

	var size protocol.Size
	var memo any
	if isDry {
		size = dry.ComputeDryLayout(c)
		memo = dry.PerformLayoutWithSize(c, size, o.children)
	} else {
		size, memo = o.render.PerformLayout(c, o.children)
	}
	o.size = size
	o.memo = memo
	o.MarkNeedsPaint()
	return size
}

// DryLayout returns the size the object would take under c without laying
// out children. ok is false for objects without a dry-layout path.
func (o *Object) DryLayout(c protocol.Constraints) (size protocol.Size, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	dry, isDry := o.render.(DryLayoutRender)
	if !isDry || !dry.SizedByParent() {
		return nil, false
	}
	return dry.ComputeDryLayout(c), true
}

// Intrinsics answers an intrinsic query, caching the result until the next
// MarkNeedsLayout. Objects without intrinsics report 0.
func (o *Object) Intrinsics(q protocol.Intrinsics) float64 {
	o.intrMu.Lock()
	if v, ok := o.intrinsics[q]; ok {
		o.intrMu.Unlock()
		return v
	}
	o.intrMu.Unlock()

	o.mu.Lock()
	ir, ok := o.render.(IntrinsicsRender)
	children := o.children
	o.mu.Unlock()
	if !ok {
		return 0
	}
	v := ir.ComputeIntrinsics(q, children)

	o.intrMu.Lock()
	if o.intrinsics == nil {
		o.intrinsics = make(map[protocol.Intrinsics]float64)
	}
	o.intrinsics[q] = v
	o.intrMu.Unlock()
	return v
}

func (o *Object) invalidateIntrinsics() {
	o.intrMu.Lock()
	o.intrinsics = nil
	o.intrMu.Unlock()
}

// Dump renders the subtree as indented text.
func (o *Object) Dump() string {
	var sb strings.Builder
	o.dump(&sb, 0)
	return sb.String()
}

func (o *Object) dump(sb *strings.Builder, indent int) {
	sb.WriteString(strings.Repeat("  ", indent))
	sb.WriteString(o.Name())
	if s := o.Size(); s != nil {
		sb.WriteString(" size=")
		sb.WriteString(describe(s))
	}
	if o.IsRelayoutBoundary() {
		sb.WriteString(" relayoutBoundary")
	}
	if o.IsRepaintBoundary() {
		sb.WriteString(" repaintBoundary")
	}
	if o.NeedsLayout() {
		sb.WriteString(" needsLayout")
	}
	if o.NeedsPaint() {
		sb.WriteString(" needsPaint")
	}
	sb.WriteString("\n")
	for _, c := range o.Children() {
		c.dump(sb, indent+1)
	}
}

func describe(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return reflect.TypeOf(v).String()
}
