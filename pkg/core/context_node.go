package core

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/go-drift/weave/pkg/lane"
)

var nextContextID atomic.Uint64

// ElementContextNode is the shared identity of an element. It outlives
// rebuilds and carries the lane marks, the hook-update mailbox and the map
// of providers visible to the subtree. The parent link is relation-only.
type ElementContextNode struct {
	id     uint64
	parent *ElementContextNode
	depth  int

	// SelfLanes holds lanes in which this element is a job root.
	SelfLanes lane.AtomicMask
	// MailboxLanes holds lanes with pending hook updates for this element.
	MailboxLanes lane.AtomicMask
	// ConsumerLanes holds lanes in which a provider this element reads changed.
	ConsumerLanes lane.AtomicMask
	// DescendantLanes holds lanes marked somewhere strictly below.
	DescendantLanes lane.AtomicMask

	detached atomic.Bool

	mailboxMu sync.Mutex
	mailbox   map[lane.JobID][]hookUpdate

	// providers maps a provided type to the nearest providing ancestor
	// (or self). Shared with descendants, never mutated after creation.
	providers map[reflect.Type]*ElementContextNode

	readersMu sync.Mutex
	readers   map[weak.Pointer[ElementContextNode]]struct{}
	reading   []*ElementContextNode
	provided  any
}

func newContextNode(parent *ElementContextNode) *ElementContextNode {
	n := &ElementContextNode{id: nextContextID.Add(1), parent: parent}
	if parent != nil {
		n.depth = parent.depth + 1
		n.providers = parent.providers
	}
	return n
}

// ID returns a process-unique identifier.
func (n *ElementContextNode) ID() uint64 {
	return n.id
}

// Parent returns the parent context, or nil for the root.
func (n *ElementContextNode) Parent() *ElementContextNode {
	return n.parent
}

// Depth returns the distance from the root.
func (n *ElementContextNode) Depth() int {
	return n.depth
}

// Detached reports whether the element was unmounted.
func (n *ElementContextNode) Detached() bool {
	return n.detached.Load()
}

// IsAncestorOf reports whether n is other or one of its ancestors.
func (n *ElementContextNode) IsAncestorOf(other *ElementContextNode) bool {
	for c := other; c != nil; c = c.parent {
		if c == n {
			return true
		}
	}
	return false
}

// NeedsRebuild reports whether the element must rebuild in p.
func (n *ElementContextNode) NeedsRebuild(p lane.Pos) bool {
	return n.SelfLanes.Contains(p) || n.MailboxLanes.Contains(p) || n.ConsumerLanes.Contains(p)
}

// HasWork reports whether the element or a descendant is marked for p.
func (n *ElementContextNode) HasWork(p lane.Pos) bool {
	return n.NeedsRebuild(p) || n.DescendantLanes.Contains(p)
}

// MarkRoot marks n as a job root for p and propagates the mark to every
// ancestor's descendant lanes.
func (n *ElementContextNode) MarkRoot(p lane.Pos) {
	if n.detached.Load() {
		return
	}
	n.SelfLanes.Insert(p)
	n.markAncestors(p, nil)
}

func (n *ElementContextNode) markConsumer(p lane.Pos, stop *ElementContextNode) {
	n.ConsumerLanes.Insert(p)
	n.markAncestors(p, stop)
}

// markAncestors walks up until stop (exclusive of further propagation) or
// until an ancestor already carries the mark.
func (n *ElementContextNode) markAncestors(p lane.Pos, stop *ElementContextNode) {
	for a := n.parent; a != nil; a = a.parent {
		if !a.DescendantLanes.Insert(p) {
			return
		}
		if a == stop {
			return
		}
	}
}

// clearLane removes every mark of p from n.
func (n *ElementContextNode) clearLane(p lane.Pos) {
	n.SelfLanes.Remove(p)
	n.MailboxLanes.Remove(p)
	n.ConsumerLanes.Remove(p)
	n.DescendantLanes.Remove(p)
}

// hookUpdate is one pending write into a state or reducer slot.
type hookUpdate struct {
	slot  int
	apply func(old any) any
}

func (n *ElementContextNode) pushUpdate(job lane.JobID, u hookUpdate) {
	n.mailboxMu.Lock()
	defer n.mailboxMu.Unlock()
	if n.mailbox == nil {
		n.mailbox = make(map[lane.JobID][]hookUpdate)
	}
	n.mailbox[job] = append(n.mailbox[job], u)
}

// pendingUpdates returns the updates of the given jobs in priority order
// without consuming them.
func (n *ElementContextNode) pendingUpdates(jobs map[lane.JobID]struct{}) []hookUpdate {
	n.mailboxMu.Lock()
	defer n.mailboxMu.Unlock()
	if len(n.mailbox) == 0 {
		return nil
	}
	ids := make([]lane.JobID, 0, len(n.mailbox))
	for id := range n.mailbox {
		if _, ok := jobs[id]; ok {
			ids = append(ids, id)
		}
	}
	// sync jobs first, then by sequence
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].IsSync() != ids[j].IsSync() {
			return ids[i].IsSync()
		}
		return ids[i] < ids[j]
	})
	var out []hookUpdate
	for _, id := range ids {
		out = append(out, n.mailbox[id]...)
	}
	return out
}

func (n *ElementContextNode) consumeUpdates(jobs map[lane.JobID]struct{}) {
	n.mailboxMu.Lock()
	defer n.mailboxMu.Unlock()
	for id := range jobs {
		delete(n.mailbox, id)
	}
}

// MailboxLen returns the number of jobs with pending updates.
func (n *ElementContextNode) MailboxLen() int {
	n.mailboxMu.Lock()
	defer n.mailboxMu.Unlock()
	return len(n.mailbox)
}

func (n *ElementContextNode) provide(t reflect.Type) {
	m := make(map[reflect.Type]*ElementContextNode, len(n.providers)+1)
	for k, v := range n.providers {
		m[k] = v
	}
	m[t] = n
	n.providers = m
}

func (n *ElementContextNode) provider(t reflect.Type) *ElementContextNode {
	return n.providers[t]
}

// addReader registers consumer as a reader of provider n.
func (n *ElementContextNode) addReader(consumer *ElementContextNode) {
	n.readersMu.Lock()
	if n.readers == nil {
		n.readers = make(map[weak.Pointer[ElementContextNode]]struct{})
	}
	key := weak.Make(consumer)
	_, seen := n.readers[key]
	n.readers[key] = struct{}{}
	n.readersMu.Unlock()
	if seen {
		return
	}

	consumer.readersMu.Lock()
	consumer.reading = append(consumer.reading, n)
	consumer.readersMu.Unlock()
}

func (n *ElementContextNode) removeReader(consumer *ElementContextNode) {
	n.readersMu.Lock()
	delete(n.readers, weak.Make(consumer))
	n.readersMu.Unlock()
}

func (n *ElementContextNode) setProvided(v any) {
	n.readersMu.Lock()
	n.provided = v
	n.readersMu.Unlock()
}

// committedValue returns the value provider n last committed.
func (n *ElementContextNode) committedValue() any {
	n.readersMu.Lock()
	defer n.readersMu.Unlock()
	return n.provided
}

// liveReaders returns the registered readers that are still mounted.
func (n *ElementContextNode) liveReaders() []*ElementContextNode {
	n.readersMu.Lock()
	defer n.readersMu.Unlock()
	out := make([]*ElementContextNode, 0, len(n.readers))
	for wp := range n.readers {
		c := wp.Value()
		if c == nil || c.detached.Load() {
			delete(n.readers, wp)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ReaderCount returns the number of live consumers of provider n.
func (n *ElementContextNode) ReaderCount() int {
	return len(n.liveReaders())
}

// unregisterReads removes n from every provider it consumed.
func (n *ElementContextNode) unregisterReads() {
	n.readersMu.Lock()
	reading := n.reading
	n.reading = nil
	n.readersMu.Unlock()
	for _, p := range reading {
		p.removeReader(n)
	}
}
