package render

import "github.com/go-drift/weave/pkg/canvas"

// HitTestEntry is one object hit, deepest first.
type HitTestEntry struct {
	Target *Object
	// Position is the hit point in the target's local coordinates.
	Position canvas.Point
	// Transform maps the target's local space to root space.
	Transform canvas.Transform
}

// HitTestResult accumulates hits and the transform stack of the walk.
type HitTestResult struct {
	Entries    []HitTestEntry
	transforms []canvas.Transform
}

// NewHitTestResult returns an empty result rooted at the identity.
func NewHitTestResult() *HitTestResult {
	return &HitTestResult{transforms: []canvas.Transform{canvas.Identity}}
}

// Add records target hit at local position.
func (r *HitTestResult) Add(target *Object, position canvas.Point) {
	r.Entries = append(r.Entries, HitTestEntry{Target: target, Position: position, Transform: r.Transform()})
}

// Transform returns the current local-to-root transform.
func (r *HitTestResult) Transform() canvas.Transform {
	if len(r.transforms) == 0 {
		return canvas.Identity
	}
	return r.transforms[len(r.transforms)-1]
}

// PushTransform enters a child coordinate space.
func (r *HitTestResult) PushTransform(t canvas.Transform) {
	r.transforms = append(r.transforms, r.Transform().Mul(t))
}

// PopTransform leaves the current child coordinate space.
func (r *HitTestResult) PopTransform() {
	if len(r.transforms) > 1 {
		r.transforms = r.transforms[:len(r.transforms)-1]
	}
}

// Targets returns the hit objects in order.
func (r *HitTestResult) Targets() []*Object {
	out := make([]*Object, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Target
	}
	return out
}

// HitTest tests position, given in the parent's coordinate space. It
// reports whether the search should stop at this object.
func (o *Object) HitTest(result *HitTestResult, position canvas.Point) bool {
	o.mu.Lock()
	r := o.render
	size := o.size
	memo := o.memo
	children := o.children
	o.mu.Unlock()
	if size == nil {
		return false
	}

	offset := o.Offset()
	if !o.proto.PositionInShape(position, offset, size) {
		return false
	}
	toLocal := o.proto.OffsetTransform(offset)
	inv, ok := toLocal.Inverse()
	if !ok {
		return false
	}
	local := inv.Apply(position)

	result.PushTransform(toLocal)
	defer result.PopTransform()

	var childHit bool
	if hc, ok := r.(HitTestChildrenRender); ok {
		childHit = hc.HitTestChildren(result, local, size, memo, children)
	} else {
		childHit = HitTestChildren(result, local, children)
	}
	if childHit {
		result.Add(o, local)
		return true
	}

	selfHit := true
	if hs, ok := r.(HitTestSelfRender); ok {
		selfHit = hs.HitTestSelf(local, size, memo)
	}
	if !selfHit {
		return false
	}
	behavior := DeferToChild
	if hb, ok := r.(HitTestBehaviorRender); ok {
		behavior = hb.HitTestBehavior()
	}
	switch behavior {
	case Opaque:
		result.Add(o, local)
		return true
	case Transparent:
		result.Add(o, local)
		return false
	default:
		return false
	}
}

// HitTestChildren visits children in reverse paint order and stops at the
// first that claims the hit.
func HitTestChildren(result *HitTestResult, position canvas.Point, children []*Object) bool {
	for i := len(children) - 1; i >= 0; i-- {
		if children[i].HitTest(result, position) {
			return true
		}
	}
	return false
}
