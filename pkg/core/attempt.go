package core

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/go-drift/weave/pkg/lane"
)

// ErrCancelled is returned by BuildEntry when the attempt was cancelled or
// lost its entry point. It is not a failure.
var ErrCancelled = stderrors.New("core: attempt cancelled")

// Run describes one reconciliation pass: the lane, the jobs whose mailbox
// updates it applies, and its priority.
type Run struct {
	Lane     lane.Pos
	Jobs     []lane.JobID
	Priority lane.Priority
}

func (r Run) jobSet() map[lane.JobID]struct{} {
	set := make(map[lane.JobID]struct{}, len(r.Jobs))
	for _, id := range r.Jobs {
		set[id] = struct{}{}
	}
	return set
}

// Attempt is one async reconciliation of a lane. Its entry points are built
// independently; the results become visible only through CommitAsync.
type Attempt struct {
	Run Run

	tree     *Tree
	onCancel func(*Attempt)
	abortCh  chan struct{}

	mu        sync.Mutex
	aborted   bool
	committed bool
	nodes     []*ElementNode
	entries   []*ElementNode
	path      []*ElementContextNode
	plans     map[*ElementNode]*plan
}

func newAttempt(t *Tree, run Run, onCancel func(*Attempt)) *Attempt {
	return &Attempt{
		Run:      run,
		tree:     t,
		onCancel: onCancel,
		abortCh:  make(chan struct{}),
		plans:    make(map[*ElementNode]*plan),
	}
}

// Entries returns the elements the attempt rebuilds, shallowest first.
func (a *Attempt) Entries() []*ElementNode {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ElementNode, len(a.entries))
	copy(out, a.entries)
	return out
}

// Cancelled reports whether the attempt was cancelled.
func (a *Attempt) Cancelled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aborted
}

// Done is closed when the attempt is cancelled.
func (a *Attempt) Done() <-chan struct{} {
	return a.abortCh
}

// Cancel aborts the attempt, releases every element it occupies and
// notifies the owner. It reports false if the attempt already committed or
// was already cancelled.
func (a *Attempt) Cancel() bool {
	a.mu.Lock()
	if a.aborted || a.committed {
		a.mu.Unlock()
		return false
	}
	a.aborted = true
	close(a.abortCh)
	nodes := a.nodes
	a.nodes = nil
	a.plans = nil
	a.mu.Unlock()
	for _, e := range nodes {
		e.releaseFrom(a)
	}
	if a.onCancel != nil {
		a.onCancel(a)
	}
	return true
}

// markCommitted seals the attempt against cancellation.
func (a *Attempt) markCommitted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aborted || a.committed {
		return false
	}
	a.committed = true
	return true
}

func (a *Attempt) releaseAll() {
	a.mu.Lock()
	nodes := a.nodes
	a.nodes = nil
	a.mu.Unlock()
	for _, e := range nodes {
		e.releaseFrom(a)
	}
}

func (a *Attempt) setPlan(entry *ElementNode, pl *plan) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aborted {
		return false
	}
	a.plans[entry] = pl
	return true
}

func (a *Attempt) sortEntries() {
	sort.SliceStable(a.entries, func(i, j int) bool {
		return a.entries[i].ctx.depth < a.entries[j].ctx.depth
	})
}

// occupy makes a the reconciler of e. A higher-priority attempt preempts
// the occupant; a lower-priority one parks until the occupant releases e.
func (a *Attempt) occupy(ctx context.Context, e *ElementNode) error {
	for {
		e.mu.Lock()
		if e.unmounted {
			e.mu.Unlock()
			return ErrCancelled
		}
		cur := e.async.current
		if cur == nil || cur == a || a.Run.Priority.Before(cur.Run.Priority) {
			e.async.current = a
			e.mu.Unlock()
			if cur != nil && cur != a {
				cur.Cancel()
			}
			a.mu.Lock()
			if a.aborted {
				a.mu.Unlock()
				e.releaseFrom(a)
				return ErrCancelled
			}
			if cur != a {
				a.nodes = append(a.nodes, e)
			}
			a.mu.Unlock()
			return nil
		}
		ch := make(chan struct{})
		e.async.waiters = append(e.async.waiters, ch)
		e.mu.Unlock()
		select {
		case <-ch:
		case <-a.abortCh:
			return ErrCancelled
		case <-ctx.Done():
			return ErrCancelled
		}
	}
}
