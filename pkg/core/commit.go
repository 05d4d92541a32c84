package core

import (
	"fmt"

	"github.com/go-drift/weave/pkg/render"
)

// ChangeKind classifies the render-object delta of a reconciled subtree.
type ChangeKind uint8

const (
	// NoUpdate means the parent's render children are unaffected.
	NoUpdate ChangeKind = iota
	// NewRenderObject means the subtree is now represented by another
	// render object.
	NewRenderObject
	// Suspended means part of the subtree is waiting on a waker and has no
	// render object yet.
	Suspended
)

func (k ChangeKind) String() string {
	switch k {
	case NoUpdate:
		return "NoUpdate"
	case NewRenderObject:
		return "NewRenderObject"
	case Suspended:
		return "Suspended"
	default:
		return fmt.Sprintf("ChangeKind(%d)", k)
	}
}

// Change is the SubtreeRenderObjectChange reported upward by commit.
type Change struct {
	Kind   ChangeKind
	Object *render.Object
}

func (c Change) String() string {
	if c.Kind == NewRenderObject && c.Object != nil {
		return fmt.Sprintf("NewRenderObject(%s)", c.Object.Name())
	}
	return c.Kind.String()
}

// apply installs a plan into the mainline and returns the subtree's change.
// The caller holds the tree gate for writing.
func (t *Tree) apply(p *pass, pl *plan) Change {
	if pl == nil || pl.op == opSkip {
		return Change{}
	}
	node := pl.node
	if node.Unmounted() {
		return Change{}
	}
	switch pl.op {
	case opDescend:
		return t.applyDescend(p, pl)
	default:
		return t.applyBuild(p, pl)
	}
}

func (t *Tree) applyDescend(p *pass, pl *plan) Change {
	node := pl.node
	before := node.RenderObject()
	node.ctx.clearLane(p.run.Lane)
	changes := make([]Change, 0, len(pl.children))
	for _, cp := range pl.children {
		changes = append(changes, t.apply(p, cp))
	}
	if pl.fallback != nil {
		t.apply(p, pl.fallback)
	}
	return t.fold(p, node, before, changes, false)
}

func (t *Tree) applyBuild(p *pass, pl *plan) Change {
	node := pl.node
	before := node.RenderObject()
	node.ctx.consumeUpdates(p.jobs)
	node.ctx.clearLane(p.run.Lane)

	if pl.suspended != nil {
		node.mu.Lock()
		node.widget = pl.widget
		node.hooks = pl.hooks
		if pl.fresh {
			node.suspended = true
		}
		node.mu.Unlock()
		t.stats.suspensions.Add(1)
		if p.async {
			// effects declared before the build suspended
			t.runEffects(node, pl.effects)
		}
		if pl.fresh || node.IsSuspended() {
			return Change{Kind: Suspended}
		}
		return Change{}
	}

	node.mu.Lock()
	node.widget = pl.widget
	node.hooks = pl.hooks
	node.suspended = false
	if node.kind == kindProvider {
		node.providerValue = pl.providerValue
	}
	old := node.children
	node.mu.Unlock()
	if node.kind == kindProvider {
		node.ctx.setProvided(pl.providerValue)
	}
	if pl.fresh {
		t.stats.inflated.Add(1)
	} else {
		t.stats.rebuilt.Add(1)
	}

	if node.kind == kindRender {
		t.syncRender(node, pl)
	}

	changes := make([]Change, 0, len(pl.children))
	next := make([]*ElementNode, 0, len(pl.children))
	for _, cp := range pl.children {
		changes = append(changes, t.apply(p, cp))
		next = append(next, cp.node)
	}
	for _, u := range pl.unmount {
		t.unmount(u)
	}
	node.mu.Lock()
	node.children = next
	if node.kind == kindSuspense && pl.fallback == nil && node.fallback != nil && node.fallback.Unmounted() {
		node.fallback = nil
	}
	node.mu.Unlock()
	if pl.fallback != nil {
		t.apply(p, pl.fallback)
	}

	if p.async {
		t.runEffects(node, pl.effects)
	}
	return t.fold(p, node, before, changes, !sameElements(old, next))
}

// syncRender creates the render object of a render element on inflate and
// pushes the new configuration into it on rebuild.
func (t *Tree) syncRender(node *ElementNode, pl *plan) {
	rw := pl.widget.(RenderWidget)
	node.mu.Lock()
	ro := node.ro
	node.mu.Unlock()
	if ro == nil {
		ro = render.New(rw.Protocol(), rw.CreateRender())
		if k := rw.Key(); k != nil && hashableKey(k) {
			ro.SetLayerKey(k)
		}
		node.mu.Lock()
		node.ro = ro
		node.mu.Unlock()
		t.stats.renderObjects.Add(1)
		return
	}
	ro.Update(rw.UpdateRender)
}

// fold combines the children's changes into the element's own change.
func (t *Tree) fold(p *pass, node *ElementNode, before *render.Object, changes []Change, childrenChanged bool) Change {
	suspended := false
	touched := childrenChanged
	for _, c := range changes {
		if c.Kind == Suspended {
			suspended = true
		}
		if c.Kind != NoUpdate {
			touched = true
		}
	}
	switch node.kind {
	case kindRender:
		if touched {
			node.syncRenderChildren()
		}
	case kindSuspense:
		return t.resolveSuspense(p, node, before, suspended)
	}
	if suspended {
		return Change{Kind: Suspended}
	}
	if after := node.RenderObject(); after != before {
		return Change{Kind: NewRenderObject, Object: after}
	}
	return Change{}
}

// resolveSuspense shows the fallback while any element under the primary
// child is suspended and restores the primary once none is.
func (t *Tree) resolveSuspense(p *pass, node *ElementNode, before *render.Object, primarySuspended bool) Change {
	children := node.Children()
	if !primarySuspended && len(children) > 0 {
		primarySuspended = hasSuspended(children[0])
	}
	node.mu.Lock()
	showing, fallback := node.showingFallback, node.fallback
	w := node.widget
	node.mu.Unlock()

	switch {
	case primarySuspended && !showing:
		if fallback == nil {
			if fw := suspenseOf(w).Fallback; fw != nil {
				fallback = t.mountDetached(p, node, fw)
			}
		}
		node.mu.Lock()
		node.fallback = fallback
		node.showingFallback = true
		node.mu.Unlock()
	case !primarySuspended && showing:
		node.mu.Lock()
		node.fallback = nil
		node.showingFallback = false
		node.mu.Unlock()
		if fallback != nil {
			t.unmount(fallback)
		}
	}
	if after := node.RenderObject(); after != before {
		return Change{Kind: NewRenderObject, Object: after}
	}
	return Change{}
}

// mountDetached inflates w under parent with a nested sync pass and applies
// it immediately. Used for fallbacks, which appear only at commit.
func (t *Tree) mountDetached(p *pass, parent *ElementNode, w Widget) *ElementNode {
	sub := t.newPass(Run{Lane: p.run.Lane, Priority: p.run.Priority}, nil)
	e := newElement(parent, w)
	pl, err := sub.build(e, w, true, nil)
	if err != nil {
		// sync passes do not cancel
		panic(err)
	}
	t.apply(sub, pl)
	return e
}

// runEffects fires effects collected by an async build, running the
// previous cleanup of each slot first.
func (t *Tree) runEffects(node *ElementNode, effects []pendingEffect) {
	for _, eff := range effects {
		node.mu.Lock()
		if eff.slot >= len(node.hooks) {
			node.mu.Unlock()
			continue
		}
		cleanup := node.hooks[eff.slot].cleanup
		node.hooks[eff.slot].cleanup = nil
		node.mu.Unlock()
		if cleanup != nil {
			cleanup()
		}
		next := eff.run()
		node.mu.Lock()
		if eff.slot < len(node.hooks) {
			node.hooks[eff.slot].cleanup = next
		}
		node.mu.Unlock()
	}
}

// propagate carries the change of a committed async entry point up to the
// root, resyncing render parents and re-resolving suspense boundaries.
func (t *Tree) propagate(p *pass, entry *ElementNode, change Change) {
	child := entry
	for n := entry.parent; n != nil; child, n = n, n.parent {
		switch n.kind {
		case kindRender:
			if change.Kind != NoUpdate {
				n.syncRenderChildren()
			}
			if change.Kind != Suspended {
				change = Change{}
			}
		case kindSuspense:
			if child == n.Fallback() {
				if n.ShowingFallback() && change.Kind != NoUpdate {
					change = Change{Kind: NewRenderObject, Object: n.RenderObject()}
				} else {
					change = Change{}
				}
				continue
			}
			before := n.RenderObject()
			if change.Kind == NewRenderObject && !n.ShowingFallback() {
				// the primary's object already changed beneath us
				before = nil
			}
			change = t.resolveSuspense(p, n, before, change.Kind == Suspended)
		}
	}
	if change.Kind != NoUpdate {
		t.syncRoot()
	}
}

// syncRoot points the pipeline at the root element's render object.
func (t *Tree) syncRoot() {
	if t.pipeline == nil {
		return
	}
	ro := t.root.RenderObject()
	if t.pipeline.Root() != ro {
		t.pipeline.SetRoot(ro)
	}
}
