package render

import (
	"slices"
	"sync"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/protocol"
)

// Pipeline tracks render objects that need layout or paint and flushes the
// frame phases in order.
//
// Layout scheduling works with relayout boundaries: MarkNeedsLayout walks up
// to the nearest boundary, marking each node on the way, and the boundary is
// scheduled here. Paint works the same way with repaint boundaries.
type Pipeline struct {
	mu              sync.Mutex
	root            *Object
	rootConstraints protocol.Constraints
	dirtyLayout     map[*Object]struct{}
	dirtyPaint      map[*Object]struct{}
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		dirtyLayout: make(map[*Object]struct{}),
		dirtyPaint:  make(map[*Object]struct{}),
	}
}

// Root returns the current root object.
func (p *Pipeline) Root() *Object {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.root
}

// SetRoot installs root. The root is always a relayout and repaint boundary.
func (p *Pipeline) SetRoot(root *Object) {
	p.mu.Lock()
	old := p.root
	p.root = root
	p.rootConstraints = nil
	p.mu.Unlock()

	if old != nil && old != root {
		old.Detach()
	}
	if root == nil {
		return
	}
	root.parent.Store(nil)
	root.clear(flagDetached)
	root.set(flagRepaintBoundary | flagRelayoutBoundary)
	root.attach(p, 0)
	p.ScheduleLayout(root)
	p.SchedulePaint(root)
}

// ScheduleLayout queues a relayout boundary.
func (p *Pipeline) ScheduleLayout(o *Object) {
	p.mu.Lock()
	p.dirtyLayout[o] = struct{}{}
	p.mu.Unlock()
}

// SchedulePaint queues a repaint boundary.
func (p *Pipeline) SchedulePaint(o *Object) {
	p.mu.Lock()
	p.dirtyPaint[o] = struct{}{}
	p.mu.Unlock()
}

// NeedsLayout reports whether any object is queued for layout.
func (p *Pipeline) NeedsLayout() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dirtyLayout) > 0
}

// NeedsPaint reports whether any object is queued for paint.
func (p *Pipeline) NeedsPaint() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dirtyPaint) > 0
}

// FlushLayout lays out from the root under c, then relays out any boundary
// still dirty, parents first.
func (p *Pipeline) FlushLayout(c protocol.Constraints) {
	p.mu.Lock()
	root := p.root
	changed := p.rootConstraints == nil || !p.rootConstraints.Equal(c)
	p.rootConstraints = c
	p.mu.Unlock()
	if root == nil {
		return
	}
	if changed || root.NeedsLayout() {
		root.Layout(c, false)
	}
	for {
		dirty := p.takeDirty(&p.dirtyLayout)
		if len(dirty) == 0 {
			return
		}
		for _, o := range dirty {
			if o.IsDetached() || !o.NeedsLayout() {
				continue
			}
			if o == root {
				root.Layout(c, false)
				continue
			}
			if cons := o.Constraints(); cons != nil {
				o.Layout(cons, false)
			}
		}
	}
}

// FlushPaint repaints dirty repaint boundaries, parents first, and returns
// how many layers were repainted.
func (p *Pipeline) FlushPaint(backend canvas.Backend) int {
	painted := 0
	for _, o := range p.takeDirty(&p.dirtyPaint) {
		if o.IsDetached() || !o.NeedsPaint() || !o.IsRepaintBoundary() {
			continue
		}
		if o.Layer() == nil && o.Parent() != nil {
			o.Parent().MarkNeedsPaint()
			continue
		}
		o.paintLayer(backend)
		painted++
	}
	// A boundary without a layer asked its parent to repaint above.
	for _, o := range p.takeDirty(&p.dirtyPaint) {
		if o.IsDetached() || !o.NeedsPaint() || !o.IsRepaintBoundary() {
			continue
		}
		o.paintLayer(backend)
		painted++
	}
	return painted
}

// FlushComposite composites the root layer into dst and drops layers that
// were parked but never re-adopted. cached selects the cached composite path.
func (p *Pipeline) FlushComposite(backend canvas.Backend, dst canvas.Encoding, cached bool) {
	root := p.Root()
	if root == nil {
		return
	}
	layer := root.Layer()
	if layer == nil {
		return
	}
	if cached {
		layer.CompositeFromCacheTo(backend, dst, canvas.Identity)
	} else {
		layer.CompositeTo(backend, dst, canvas.Identity)
	}
	layer.sweep()
}

// HitTest tests position against the tree in root coordinates.
func (p *Pipeline) HitTest(position canvas.Point) *HitTestResult {
	result := NewHitTestResult()
	if root := p.Root(); root != nil {
		root.HitTest(result, position)
	}
	return result
}

func (p *Pipeline) takeDirty(set *map[*Object]struct{}) []*Object {
	p.mu.Lock()
	dirty := make([]*Object, 0, len(*set))
	for o := range *set {
		dirty = append(dirty, o)
	}
	*set = make(map[*Object]struct{})
	p.mu.Unlock()
	slices.SortFunc(dirty, func(a, b *Object) int {
		return a.Depth() - b.Depth()
	})
	return dirty
}
