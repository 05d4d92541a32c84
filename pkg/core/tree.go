package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/go-drift/weave/pkg/lane"
	"github.com/go-drift/weave/pkg/render"
)

// Options configures a Tree.
type Options struct {
	// Pipeline receives the root render object. Optional.
	Pipeline *render.Pipeline
	// SyncWorkers bounds the goroutines a sync pass forks onto. Zero or one
	// keeps sync passes on the calling goroutine.
	SyncWorkers int
	Logger      zerolog.Logger
}

// Stats counts element tree activity.
type Stats struct {
	Inflated      int64
	Rebuilt       int64
	Unmounted     int64
	Suspensions   int64
	Wakes         int64
	RenderObjects int64
}

type treeStats struct {
	inflated      atomic.Int64
	rebuilt       atomic.Int64
	unmounted     atomic.Int64
	suspensions   atomic.Int64
	renderObjects atomic.Int64
}

// Tree owns the element tree and runs reconciliation passes over it.
//
// A sync pass holds the gate for writing from build through apply and an
// async commit holds it for writing while it installs every entry plan, so
// neither observes the other half done. Async builds never take the gate;
// they read element snapshots and own the elements they rebuild.
type Tree struct {
	gate     sync.RWMutex
	root     *ElementNode
	pipeline *render.Pipeline
	workers  *semaphore.Weighted
	wakers   wakeRegistry
	logger   zerolog.Logger
	stats    treeStats
}

// NewTree returns an empty tree.
func NewTree(opts Options) *Tree {
	t := &Tree{
		pipeline: opts.Pipeline,
		logger:   opts.Logger.With().Str("component", "tree").Logger(),
	}
	if opts.SyncWorkers > 1 {
		t.workers = semaphore.NewWeighted(int64(opts.SyncWorkers - 1))
	}
	t.root = newElement(nil, rootWidget{})
	t.root.hooks = []hookSlot{{kind: hookState}}
	return t
}

// Root returns the root element. Its single child is the application
// widget's element.
func (t *Tree) Root() *ElementNode {
	return t.root
}

// RootContext returns the root element's context.
func (t *Tree) RootContext() *ElementContextNode {
	return t.root.ctx
}

// Pipeline returns the render pipeline the tree drives, if any.
func (t *Tree) Pipeline() *render.Pipeline {
	return t.pipeline
}

// SetRoot replaces the application widget as part of job b.
func (t *Tree) SetRoot(b JobBuilder, w Widget) {
	t.root.ctx.pushUpdate(b.ID(), hookUpdate{slot: 0, apply: func(any) any { return w }})
	b.AddRoot(t.root.ctx)
}

// SetWakeHandler installs the callback invoked once per fired waker with the
// context of the element to rebuild.
func (t *Tree) SetWakeHandler(fn func(*ElementContextNode)) {
	t.wakers.setHandler(fn)
}

func (t *Tree) newWaker(ctx *ElementContextNode) *waker {
	return t.wakers.register(ctx)
}

// PendingWakers returns the number of suspended elements waiting on a waker.
func (t *Tree) PendingWakers() int {
	return t.wakers.pending()
}

// MarkRoots marks each context as a root of lane pos. Contexts with pending
// mailbox updates are marked in their mailbox lanes.
func (t *Tree) MarkRoots(pos lane.Pos, roots []*ElementContextNode) {
	for _, ctx := range roots {
		if ctx.Detached() {
			continue
		}
		if ctx.MailboxLen() > 0 {
			ctx.MailboxLanes.Insert(pos)
			ctx.markAncestors(pos, nil)
			continue
		}
		ctx.MarkRoot(pos)
	}
}

// PurgeLane removes every mark of pos from the tree. Consumer marks do not
// reach above their provider, so the whole tree is visited.
func (t *Tree) PurgeLane(pos lane.Pos) {
	t.purge(t.root, pos)
}

func (t *Tree) purge(e *ElementNode, pos lane.Pos) {
	e.ctx.clearLane(pos)
	for _, c := range e.Children() {
		t.purge(c, pos)
	}
	if fb := e.Fallback(); fb != nil {
		t.purge(fb, pos)
	}
}

// AbortLane discards run: its marks are purged and the mailbox updates of
// its jobs are dropped, so none of them is ever applied.
func (t *Tree) AbortLane(run Run) {
	jobs := run.jobSet()
	t.Walk(func(e *ElementNode) bool {
		e.ctx.clearLane(run.Lane)
		e.ctx.consumeUpdates(jobs)
		return true
	})
}

// RunSync builds and commits every element marked for run.Lane in one pass.
// It returns the root's change.
func (t *Tree) RunSync(run Run) Change {
	t.gate.Lock()
	defer t.gate.Unlock()
	p := t.newPass(run, nil)
	pl, err := p.planRoot()
	if err != nil {
		// only async passes are cancelled
		panic(err)
	}
	change := t.apply(p, pl)
	if change.Kind != NoUpdate {
		t.syncRoot()
	}
	return change
}

// BeginAsync collects the entry points of run.Lane: the shallowest marked
// elements. Each is built with BuildEntry, possibly concurrently, and the
// results are installed together by CommitAsync. onCancel is invoked once if
// the attempt is cancelled by a sync pass, an unmount or a higher-priority
// attempt.
func (t *Tree) BeginAsync(run Run, onCancel func(*Attempt)) *Attempt {
	a := newAttempt(t, run, onCancel)
	t.gate.RLock()
	t.collectEntries(a, t.root)
	t.gate.RUnlock()
	a.sortEntries()
	return a
}

func (t *Tree) collectEntries(a *Attempt, e *ElementNode) {
	pos := a.Run.Lane
	if e.ctx.NeedsRebuild(pos) {
		a.entries = append(a.entries, e)
		return
	}
	if !e.ctx.DescendantLanes.Contains(pos) {
		return
	}
	a.path = append(a.path, e.ctx)
	for _, c := range e.Children() {
		t.collectEntries(a, c)
	}
	if fb := e.Fallback(); fb != nil {
		t.collectEntries(a, fb)
	}
}

// BuildEntry runs the build phase for one entry point of a. It returns
// ErrCancelled if the attempt was cancelled meanwhile.
func (t *Tree) BuildEntry(ctx context.Context, a *Attempt, entry *ElementNode) error {
	p := t.newPass(a.Run, a)
	p.ctx = ctx
	pl, err := p.build(entry, entry.Widget(), false, nil)
	if err != nil {
		return err
	}
	if !a.setPlan(entry, pl) {
		return ErrCancelled
	}
	return nil
}

// CommitAsync installs every entry plan of a atomically. It reports false if
// the attempt was cancelled before it could commit.
func (t *Tree) CommitAsync(a *Attempt) bool {
	t.gate.Lock()
	defer t.gate.Unlock()
	if !a.markCommitted() {
		return false
	}
	defer a.releaseAll()
	p := t.newPass(a.Run, a)
	for _, entry := range a.entries {
		pl := a.plans[entry]
		if pl == nil || entry.Unmounted() {
			continue
		}
		change := t.apply(p, pl)
		t.propagate(p, entry, change)
	}
	for _, ctx := range a.path {
		ctx.DescendantLanes.Remove(a.Run.Lane)
	}
	t.logger.Debug().
		Stringer("lane", a.Run.Lane).
		Int("entries", len(a.entries)).
		Msg("async attempt committed")
	return true
}

// Stats returns a snapshot of the tree counters.
func (t *Tree) Stats() Stats {
	return Stats{
		Inflated:      t.stats.inflated.Load(),
		Rebuilt:       t.stats.rebuilt.Load(),
		Unmounted:     t.stats.unmounted.Load(),
		Suspensions:   t.stats.suspensions.Load(),
		Wakes:         t.wakers.fired.Load(),
		RenderObjects: t.stats.renderObjects.Load(),
	}
}

// Walk visits the mounted elements depth-first, fallbacks after children.
// Returning false from fn skips the element's subtree.
func (t *Tree) Walk(fn func(*ElementNode) bool) {
	var walk func(e *ElementNode)
	walk = func(e *ElementNode) {
		if !fn(e) {
			return
		}
		for _, c := range e.Children() {
			walk(c)
		}
		if fb := e.Fallback(); fb != nil {
			walk(fb)
		}
	}
	walk(t.root)
}

// Dump returns a textual element tree for diagnostics.
func (t *Tree) Dump() string {
	var sb strings.Builder
	t.dump(&sb, t.root, 0, "")
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, e *ElementNode, indent int, label string) {
	snap := e.snapshot()
	sb.WriteString(strings.Repeat("  ", indent))
	sb.WriteString(label)
	if e.kind == kindRoot {
		sb.WriteString("<root>")
	} else {
		sb.WriteString(widgetName(snap.widget))
	}
	fmt.Fprintf(sb, " [%s", e.kind)
	if k := snap.widget.Key(); k != nil {
		fmt.Fprintf(sb, " key=%v", k)
	}
	if n := len(snap.hooks); n > 0 {
		fmt.Fprintf(sb, " hooks=%d", n)
	}
	if snap.suspended {
		sb.WriteString(" suspended")
	}
	if e.ShowingFallback() {
		sb.WriteString(" fallback")
	}
	sb.WriteString("]\n")
	for _, c := range snap.children {
		t.dump(sb, c, indent+1, "")
	}
	if snap.fallback != nil {
		t.dump(sb, snap.fallback, indent+1, "fallback: ")
	}
}
