package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/lane"
	"golang.org/x/sync/errgroup"
)

type planOp uint8

const (
	// opSkip leaves the subtree untouched.
	opSkip planOp = iota
	// opDescend keeps the element and visits marked children.
	opDescend
	// opBuild rebuilds or inflates the element.
	opBuild
)

// plan is the result of the build phase for one element. Building never
// mutates the mainline; apply installs a plan.
type plan struct {
	op            planOp
	node          *ElementNode
	fresh         bool
	widget        Widget
	hooks         []hookSlot
	effects       []pendingEffect
	children      []*plan
	unmount       []*ElementNode
	suspended     *errors.SuspendedError
	providerValue any

	// fallback is the plan of a suspense element's mounted fallback.
	fallback *plan
}

// pass carries the state shared by one build phase.
type pass struct {
	tree    *Tree
	run     Run
	jobs    map[lane.JobID]struct{}
	async   bool
	attempt *Attempt
	ctx     context.Context
}

func (t *Tree) newPass(run Run, a *Attempt) *pass {
	return &pass{
		tree:    t,
		run:     run,
		jobs:    run.jobSet(),
		async:   a != nil,
		attempt: a,
		ctx:     context.Background(),
	}
}

// checkpoint is the cooperative cancellation point of async tasks.
func (p *pass) checkpoint() error {
	if !p.async {
		return nil
	}
	select {
	case <-p.attempt.abortCh:
		return ErrCancelled
	case <-p.ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}

func (p *pass) planRoot() (*plan, error) {
	root := p.tree.root
	if root.ctx.NeedsRebuild(p.run.Lane) {
		return p.build(root, root.Widget(), false, nil)
	}
	if root.ctx.DescendantLanes.Contains(p.run.Lane) {
		return p.descend(root, nil)
	}
	return &plan{op: opSkip, node: root}, nil
}

// visit plans an existing element against widget w.
func (p *pass) visit(node *ElementNode, w Widget, sc *scope) (*plan, error) {
	if WidgetsEqual(node.Widget(), w) && !node.ctx.NeedsRebuild(p.run.Lane) {
		if node.ctx.DescendantLanes.Contains(p.run.Lane) {
			return p.descend(node, sc)
		}
		return &plan{op: opSkip, node: node}, nil
	}
	return p.build(node, w, false, sc)
}

// descend keeps node and plans its marked children against their own
// widgets.
func (p *pass) descend(node *ElementNode, sc *scope) (*plan, error) {
	if err := p.checkpoint(); err != nil {
		return nil, err
	}
	snap := node.snapshot()
	pl := &plan{op: opDescend, node: node}
	if node.kind == kindProvider {
		sc = &scope{provider: node.ctx, value: snap.providerValue, parent: sc}
	}
	pl.children = make([]*plan, len(snap.children))
	err := p.forEach(len(snap.children), func(i int) error {
		c := snap.children[i]
		cp, err := p.visit(c, c.Widget(), sc)
		pl.children[i] = cp
		return err
	})
	if err != nil {
		return nil, err
	}
	if snap.fallback != nil {
		if pl.fallback, err = p.visit(snap.fallback, snap.fallback.Widget(), sc); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// build runs one element's build step and then plans its children.
func (p *pass) build(node *ElementNode, w Widget, fresh bool, sc *scope) (*plan, error) {
	if err := p.checkpoint(); err != nil {
		return nil, err
	}
	if !fresh {
		if p.async {
			if err := p.attempt.occupy(p.ctx, node); err != nil {
				return nil, err
			}
		} else {
			node.preempt()
		}
	}
	st, err := p.step(node, w, fresh, sc)
	if err != nil {
		return nil, err
	}
	if st.plan.suspended != nil {
		return st.plan, nil
	}
	if err := p.reconcileChildren(st.plan, st.oldChildren, st.childWidgets, st.scope); err != nil {
		return nil, err
	}
	if node.kind == kindSuspense {
		s := suspenseOf(w)
		if st.fallback != nil {
			if CanUpdate(st.fallback.Widget(), s.Fallback) {
				if st.plan.fallback, err = p.visit(st.fallback, s.Fallback, st.scope); err != nil {
					return nil, err
				}
			} else {
				st.plan.unmount = append(st.plan.unmount, st.fallback)
			}
		}
	}
	return st.plan, nil
}

type stepResult struct {
	plan         *plan
	oldChildren  []*ElementNode
	childWidgets []Widget
	scope        *scope
	fallback     *ElementNode
}

// step reads the element's snapshot and produces its own part of the plan.
// Builds work on cloned hook slots, so an async step never blocks a sync
// pass or a commit.
func (p *pass) step(node *ElementNode, w Widget, fresh bool, sc *scope) (stepResult, error) {
	if p.async {
		node.mu.Lock()
		lost := node.unmounted || (!fresh && node.async.current != p.attempt)
		node.mu.Unlock()
		if lost {
			return stepResult{}, ErrCancelled
		}
	}
	snap := node.snapshot()
	pl := &plan{op: opBuild, node: node, fresh: fresh, widget: w}
	res := stepResult{plan: pl, oldChildren: snap.children, scope: sc, fallback: snap.fallback}

	switch node.kind {
	case kindComponent, kindRoot:
		mode := modeRebuild
		switch {
		case fresh:
			mode = modeInflate
		case snap.suspended:
			mode = modePollInflate
		}
		cursor := newHookCursor(mode, snap.hooks, widgetName(w))
		if !fresh {
			cursor.applyUpdates(node.ctx.pendingUpdates(p.jobs))
		}
		bc := &BuildContext{tree: p.tree, node: node, widget: w, pass: p, scope: sc, hooks: cursor}
		child, err := p.callBuild(bc, w)
		pl.hooks = cursor.slots
		pl.effects = cursor.effects
		if err != nil {
			if s, ok := errors.AsSuspended(err); ok {
				pl.suspended = s
				return res, nil
			}
			be := &errors.BuildError{Widget: widgetName(w), Err: err, Timestamp: time.Now()}
			errors.ReportBuildError(be)
			panic(be)
		}
		cursor.finish()
		pl.hooks = cursor.slots
		res.childWidgets = []Widget{child}
	case kindRender:
		res.childWidgets = w.(RenderWidget).ChildWidgets()
	case kindProvider:
		pw := w.(providerWidget)
		pl.providerValue = pw.providedValue()
		if !fresh && !valuesEqual(snap.providerValue, pl.providerValue) {
			for _, r := range node.ctx.liveReaders() {
				r.markConsumer(p.run.Lane, node.ctx)
			}
		}
		res.scope = &scope{provider: node.ctx, value: pl.providerValue, parent: sc}
		res.childWidgets = []Widget{pw.providedChild()}
	case kindSuspense:
		res.childWidgets = []Widget{suspenseOf(w).Child}
	}
	return res, nil
}

// callBuild invokes the component's Build. A panic that is not one of the
// typed fatal errors is wrapped into a BuildError.
func (p *pass) callBuild(bc *BuildContext, w Widget) (child Widget, err error) {
	if bc.node.kind == kindRoot {
		app, _ := UseState[Widget](bc, nil)
		return app, nil
	}
	defer func() {
		if r := recover(); r != nil {
			if _, typed := r.(error); typed {
				panic(r)
			}
			be := &errors.BuildError{
				Widget:     widgetName(w),
				Recovered:  r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
			errors.ReportBuildError(be)
			panic(be)
		}
	}()
	return w.(ComponentWidget).Build(bc)
}

// childSlot pairs a new child widget with the element it updates, if any.
type childSlot struct {
	widget Widget
	node   *ElementNode
}

// reconcileChildren matches the new child widgets against the old
// children: keyed widgets by (type, key), unkeyed ones positionally among
// the unkeyed old children. Unmatched old children are unmounted.
func (p *pass) reconcileChildren(parent *plan, old []*ElementNode, widgets []Widget, sc *scope) error {
	keyed := make(map[any][]*ElementNode)
	// children whose keys cannot index a map, searched linearly
	var deep, unkeyed []*ElementNode
	for _, c := range old {
		switch k := c.Widget().Key(); {
		case k == nil:
			unkeyed = append(unkeyed, c)
		case hashableKey(k):
			keyed[k] = append(keyed[k], c)
		default:
			deep = append(deep, c)
		}
	}
	used := make(map[*ElementNode]bool, len(old))
	slots := make([]childSlot, 0, len(widgets))
	next := 0
	for _, w := range widgets {
		if w == nil {
			continue
		}
		slot := childSlot{widget: w}
		if k := w.Key(); k != nil {
			candidates := deep
			if hashableKey(k) {
				candidates = keyed[k]
			}
			for _, c := range candidates {
				if !used[c] && CanUpdate(c.Widget(), w) {
					slot.node = c
					break
				}
			}
		} else if next < len(unkeyed) {
			if c := unkeyed[next]; CanUpdate(c.Widget(), w) {
				slot.node = c
			}
			next++
		}
		if slot.node != nil {
			used[slot.node] = true
		}
		slots = append(slots, slot)
	}
	for _, c := range old {
		if !used[c] {
			parent.unmount = append(parent.unmount, c)
		}
	}

	parent.children = make([]*plan, len(slots))
	return p.forEach(len(slots), func(i int) error {
		s := slots[i]
		var (
			cp  *plan
			err error
		)
		if s.node != nil {
			cp, err = p.visit(s.node, s.widget, sc)
		} else {
			cp, err = p.build(newElement(parent.node, s.widget), s.widget, true, sc)
		}
		parent.children[i] = cp
		return err
	})
}

// forkPanic carries a panic out of a pool goroutine.
type forkPanic struct {
	value any
}

func (f *forkPanic) Error() string { return fmt.Sprintf("panic in child reconcile: %v", f.value) }

// forEach runs fn for 0..n-1. Sync passes fork children onto the bounded
// pool, running inline when no slot is free; async passes stay sequential.
// A panic in any branch is re-raised on the calling goroutine.
func (p *pass) forEach(n int, fn func(i int) error) error {
	sem := p.tree.workers
	if p.async || n < 2 || sem == nil {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	guarded := func(i int) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &forkPanic{value: r}
			}
		}()
		return fn(i)
	}
	var g errgroup.Group
	var inlineErr error
	for i := 0; i < n && inlineErr == nil; i++ {
		if !sem.TryAcquire(1) {
			inlineErr = guarded(i)
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			return guarded(i)
		})
	}
	err := g.Wait()
	if inlineErr != nil {
		err = inlineErr
	}
	var fp *forkPanic
	if stderrors.As(err, &fp) {
		panic(fp.value)
	}
	return err
}

// valuesEqual compares provider values.
func valuesEqual(a, b any) (equal bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if !reflect.TypeOf(a).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}
