package core

import (
	"sync"

	"github.com/go-drift/weave/pkg/render"
)

// ElementNode is the persistent node produced by reconciling a widget at one
// tree position. Its mainline (widget, hooks, children, render object) is
// guarded by mu and only replaced during commit.
type ElementNode struct {
	ctx    *ElementContextNode
	kind   elementKind
	parent *ElementNode

	mu       sync.Mutex
	widget   Widget
	hooks    []hookSlot
	children []*ElementNode
	ro       *render.Object
	// providerValue is the committed value of a provider element.
	providerValue any
	// suspended is set while the element has never completed a build.
	suspended bool
	// fallback is the mounted fallback subtree of a suspense element.
	fallback        *ElementNode
	showingFallback bool
	unmounted       bool
	async           asyncQueue
}

// asyncQueue holds the async attempt currently reconciling the element and
// the attempts parked behind it.
type asyncQueue struct {
	current *Attempt
	waiters []chan struct{}
}

// snapshot is a consistent read of the mainline taken under mu.
type snapshot struct {
	widget        Widget
	hooks         []hookSlot
	children      []*ElementNode
	suspended     bool
	providerValue any
	fallback      *ElementNode
}

func newElement(parent *ElementNode, w Widget) *ElementNode {
	var pctx *ElementContextNode
	if parent != nil {
		pctx = parent.ctx
	}
	e := &ElementNode{
		ctx:    newContextNode(pctx),
		kind:   kindOf(w),
		parent: parent,
		widget: w,
	}
	if e.kind == kindProvider {
		e.ctx.provide(w.(providerWidget).providedType())
	}
	return e
}

func (e *ElementNode) snapshot() snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot{
		widget:        e.widget,
		hooks:         e.hooks,
		children:      e.children,
		suspended:     e.suspended,
		providerValue: e.providerValue,
		fallback:      e.fallback,
	}
}

// Widget returns the committed widget.
func (e *ElementNode) Widget() Widget {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.widget
}

// Context returns the element's shared identity node.
func (e *ElementNode) Context() *ElementContextNode {
	return e.ctx
}

// Parent returns the parent element, or nil for the root.
func (e *ElementNode) Parent() *ElementNode {
	return e.parent
}

// Children returns the committed children. For a suspense element this is
// the primary child only.
func (e *ElementNode) Children() []*ElementNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*ElementNode, len(e.children))
	copy(out, e.children)
	return out
}

// Fallback returns the mounted fallback of a suspense element.
func (e *ElementNode) Fallback() *ElementNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fallback
}

// ShowingFallback reports whether a suspense element currently shows its
// fallback.
func (e *ElementNode) ShowingFallback() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.showingFallback
}

// IsSuspended reports whether the element suspended before its first
// successful build.
func (e *ElementNode) IsSuspended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suspended
}

// Unmounted reports whether the element left the tree.
func (e *ElementNode) Unmounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unmounted
}

// HookCount returns the number of hook slots.
func (e *ElementNode) HookCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.hooks)
}

// OwnRenderObject returns the render object owned by a render element.
func (e *ElementNode) OwnRenderObject() *render.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ro
}

// RenderObject returns the render object that represents the element in
// its parent's render children: its own for render elements, otherwise the
// one of the child it displays. Nil when nothing is displayed.
func (e *ElementNode) RenderObject() *render.Object {
	e.mu.Lock()
	kind, ro, children := e.kind, e.ro, e.children
	fallback, showing := e.fallback, e.showingFallback
	e.mu.Unlock()
	switch kind {
	case kindRender:
		return ro
	case kindSuspense:
		if showing && fallback != nil {
			return fallback.RenderObject()
		}
	}
	if len(children) == 0 {
		return nil
	}
	return children[0].RenderObject()
}

// syncRenderChildren reattaches the render objects of the element's
// children in order.
func (e *ElementNode) syncRenderChildren() {
	children := e.Children()
	e.mu.Lock()
	ro := e.ro
	e.mu.Unlock()
	if ro == nil {
		return
	}
	objects := make([]*render.Object, 0, len(children))
	for _, c := range children {
		if o := c.RenderObject(); o != nil {
			objects = append(objects, o)
		}
	}
	if sameObjects(ro.Children(), objects) {
		return
	}
	ro.SetChildren(objects)
}

func sameObjects(a, b []*render.Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameElements(a, b []*ElementNode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hasSuspended reports whether e or a descendant outside any nested
// suspense boundary is suspended.
func hasSuspended(e *ElementNode) bool {
	e.mu.Lock()
	suspended, children := e.suspended, e.children
	e.mu.Unlock()
	if suspended {
		return true
	}
	for _, c := range children {
		if c.kind == kindSuspense {
			continue
		}
		if hasSuspended(c) {
			return true
		}
	}
	return false
}

// preempt cancels the async attempt occupying e, if any.
func (e *ElementNode) preempt() {
	e.mu.Lock()
	cur := e.async.current
	e.mu.Unlock()
	if cur != nil {
		cur.Cancel()
	}
}

// releaseFrom clears a's occupation of e and wakes the parked attempts.
func (e *ElementNode) releaseFrom(a *Attempt) {
	e.mu.Lock()
	if e.async.current != a {
		e.mu.Unlock()
		return
	}
	e.async.current = nil
	waiters := e.async.waiters
	e.async.waiters = nil
	e.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// unmount tears e and its subtree down: detaches the context, cancels the
// occupying attempt, drops provider subscriptions, aborts the waker, runs
// effect cleanups and detaches the render object.
func (t *Tree) unmount(e *ElementNode) {
	e.mu.Lock()
	if e.unmounted {
		e.mu.Unlock()
		return
	}
	e.unmounted = true
	children, fallback := e.children, e.fallback
	hooks, ro := e.hooks, e.ro
	attempt := e.async.current
	e.async.current = nil
	waiters := e.async.waiters
	e.async.waiters = nil
	e.mu.Unlock()

	e.ctx.detached.Store(true)
	if attempt != nil {
		attempt.Cancel()
	}
	for _, ch := range waiters {
		close(ch)
	}
	for _, c := range children {
		t.unmount(c)
	}
	if fallback != nil {
		t.unmount(fallback)
	}
	t.wakers.abort(e.ctx)
	e.ctx.unregisterReads()
	for i := range hooks {
		if hooks[i].cleanup != nil {
			hooks[i].cleanup()
		}
	}
	if ro != nil {
		ro.Detach()
	}
	t.stats.unmounted.Add(1)
}
