package render

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/go-drift/weave/pkg/canvas"
)

const (
	markNeedsPaint uint32 = 1 << iota
	markNeedsComposite
)

// LayerMark holds a layer's dirty bits. NeedsPaint means the layer's own
// encoding is stale; NeedsComposite means the merged output of the layer
// and its descendants is stale.
type LayerMark struct {
	bits atomic.Uint32
}

// NeedsPaint reports whether the own encoding is stale.
func (m *LayerMark) NeedsPaint() bool {
	return m.bits.Load()&markNeedsPaint != 0
}

// NeedsComposite reports whether the cached composite is stale.
func (m *LayerMark) NeedsComposite() bool {
	return m.bits.Load()&markNeedsComposite != 0
}

// ChildLayer places a child layer inside its parent.
type ChildLayer struct {
	Layer     *LayerNode
	Transform canvas.Transform
}

// LayerNode is the persistent compositing state of a repaint boundary.
type LayerNode struct {
	Mark LayerMark

	parent atomic.Pointer[LayerNode]

	mu       sync.Mutex
	encoding canvas.Encoding
	children []ChildLayer
	detached map[any]*LayerNode
	cache    canvas.Encoding

	cacheBuilds atomic.Int64
}

func newLayer() *LayerNode {
	l := &LayerNode{}
	l.Mark.bits.Store(markNeedsPaint | markNeedsComposite)
	return l
}

// Encoding returns the layer's own painted encoding.
func (l *LayerNode) Encoding() canvas.Encoding {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.encoding
}

// Children returns the structured children recorded by the last paint.
func (l *LayerNode) Children() []ChildLayer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.children)
}

// Detached returns the number of parked layers awaiting re-adoption.
func (l *LayerNode) Detached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.detached)
}

// CacheBuilds counts how many times the cached composite was rebuilt.
func (l *LayerNode) CacheBuilds() int64 {
	return l.cacheBuilds.Load()
}

func (l *LayerNode) parentLayer() *LayerNode {
	return l.parent.Load()
}

func (l *LayerNode) markNeedsPaint() {
	l.Mark.bits.Or(markNeedsPaint | markNeedsComposite)
	l.markAncestorsNeedComposite()
}

func (l *LayerNode) markAncestorsNeedComposite() {
	for p := l.parentLayer(); p != nil; p = p.parentLayer() {
		p.Mark.bits.Or(markNeedsComposite)
	}
}

// beginPaint resets the own encoding and forgets the child list; PaintChild
// appends the children again.
func (l *LayerNode) beginPaint(backend canvas.Backend) canvas.Encoding {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.encoding == nil {
		l.encoding = backend.NewEncoding()
	} else {
		backend.Clear(l.encoding)
	}
	l.children = l.children[:0]
	return l.encoding
}

func (l *LayerNode) appendChild(child *LayerNode, transform canvas.Transform) {
	child.parent.Store(l)
	l.mu.Lock()
	for key, parked := range l.detached {
		if parked == child {
			delete(l.detached, key)
		}
	}
	l.children = append(l.children, ChildLayer{Layer: child, Transform: transform})
	l.mu.Unlock()
}

func (l *LayerNode) endPaint() {
	l.Mark.bits.And(^markNeedsPaint)
	l.Mark.bits.Or(markNeedsComposite)
	l.markAncestorsNeedComposite()
}

func (l *LayerNode) park(key any, child *LayerNode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detached == nil {
		l.detached = make(map[any]*LayerNode)
	}
	l.detached[key] = child
}

// adopt removes and returns the layer parked under key, if any.
func (l *LayerNode) adopt(key any) *LayerNode {
	l.mu.Lock()
	defer l.mu.Unlock()
	child, ok := l.detached[key]
	if !ok {
		return nil
	}
	delete(l.detached, key)
	return child
}

// sweep drops every parked layer in the subtree.
func (l *LayerNode) sweep() {
	l.mu.Lock()
	l.detached = nil
	children := slices.Clone(l.children)
	l.mu.Unlock()
	for _, c := range children {
		c.Layer.sweep()
	}
}

// CompositeTo composites the layer and its descendants into dst, walking the
// whole subtree.
func (l *LayerNode) CompositeTo(backend canvas.Backend, dst canvas.Encoding, transform canvas.Transform) {
	l.mu.Lock()
	enc := l.encoding
	children := slices.Clone(l.children)
	l.mu.Unlock()
	if enc != nil {
		backend.CompositeEncoding(dst, enc, transform)
	}
	for _, c := range children {
		c.Layer.CompositeTo(backend, dst, transform.Mul(c.Transform))
	}
	l.Mark.bits.And(^markNeedsComposite)
}

// CompositeIntoCache returns the merged encoding of the subtree, rebuilding
// it only when NeedsComposite is set.
func (l *LayerNode) CompositeIntoCache(backend canvas.Backend) canvas.Encoding {
	l.mu.Lock()
	if l.cache != nil && !l.Mark.NeedsComposite() {
		cache := l.cache
		l.mu.Unlock()
		return cache
	}
	if l.cache == nil {
		l.cache = backend.NewEncoding()
	} else {
		backend.Clear(l.cache)
	}
	cache := l.cache
	enc := l.encoding
	children := slices.Clone(l.children)
	l.Mark.bits.And(^markNeedsComposite)
	l.mu.Unlock()

	if enc != nil {
		backend.CompositeEncoding(cache, enc, canvas.Identity)
	}
	for _, c := range children {
		backend.CompositeEncoding(cache, c.Layer.CompositeIntoCache(backend), c.Transform)
	}
	l.cacheBuilds.Add(1)
	return cache
}

// CompositeFromCacheTo composites the cached subtree into dst.
func (l *LayerNode) CompositeFromCacheTo(backend canvas.Backend, dst canvas.Encoding, transform canvas.Transform) {
	backend.CompositeEncoding(dst, l.CompositeIntoCache(backend), transform)
}
