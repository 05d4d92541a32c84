package scheduler

import (
	"slices"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/lane"
)

// Batch groups jobs that run together in one lane.
type Batch struct {
	ID   lane.BatchID
	Jobs []*Job

	// index in the pending queue, -1 when not queued
	index int
}

// Sync reports whether the batch runs on the sync lane.
func (b *Batch) Sync() bool {
	return len(b.Jobs) > 0 && b.Jobs[0].ID.IsSync()
}

// Priority orders batches by the earliest deadline among their jobs, ties
// broken by batch id.
func (b *Batch) Priority() lane.Priority {
	p := lane.Priority{Sync: b.Sync(), ID: uint64(b.ID)}
	for i, j := range b.Jobs {
		if i == 0 || j.Deadline.Before(p.Deadline) {
			p.Deadline = j.Deadline
		}
	}
	return p
}

// JobIDs returns the identifiers of the batch's jobs.
func (b *Batch) JobIDs() []lane.JobID {
	ids := make([]lane.JobID, len(b.Jobs))
	for i, j := range b.Jobs {
		ids[i] = j.ID
	}
	return ids
}

// Roots returns the distinct roots of every job in the batch.
func (b *Batch) Roots() []*core.ElementContextNode {
	seen := make(map[*core.ElementContextNode]struct{})
	var out []*core.ElementContextNode
	for _, j := range b.Jobs {
		for _, r := range j.Roots {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func (b *Batch) run(pos lane.Pos) core.Run {
	return core.Run{Lane: pos, Jobs: b.JobIDs(), Priority: b.Priority()}
}

// overlaps reports whether any root of b is the same as, an ancestor of, or
// a descendant of a root of j.
func (b *Batch) overlaps(j *Job) bool {
	for _, bj := range b.Jobs {
		for _, r := range bj.Roots {
			for _, jr := range j.Roots {
				if related(r, jr) {
					return true
				}
			}
		}
	}
	return false
}

func related(a, b *core.ElementContextNode) bool {
	return a == b || isAncestor(a, b) || isAncestor(b, a)
}

func isAncestor(anc, n *core.ElementContextNode) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p == anc {
			return true
		}
	}
	return false
}

// BatchResult is what the Batcher decided since the previous tick.
type BatchResult struct {
	// Expired batches were merged into a newer batch and must not commit.
	Expired []*Batch
	// NewAsync batches wait for a free async lane.
	NewAsync []*Batch
	// NewSync is the batch for the sync lane, if any sync job arrived.
	NewSync *Batch
}

// Empty reports whether the result changes nothing.
func (r BatchResult) Empty() bool {
	return len(r.Expired) == 0 && len(r.NewAsync) == 0 && r.NewSync == nil
}

// Batcher accumulates jobs and groups them into batches. Every sync job
// since the last collect goes into one sync batch. An async job that
// overlaps live async batches expires them and absorbs their jobs.
//
// Batcher is not safe for concurrent use; the scheduler guards it.
type Batcher struct {
	nextID    lane.BatchID
	syncJobs  []*Job
	asyncJobs []*Job
	live      map[lane.BatchID]*Batch
}

// NewBatcher returns an empty Batcher.
func NewBatcher() *Batcher {
	return &Batcher{live: make(map[lane.BatchID]*Batch)}
}

// Add records a job for the next Collect.
func (b *Batcher) Add(j *Job) {
	if j.ID.IsSync() {
		b.syncJobs = append(b.syncJobs, j)
		return
	}
	b.asyncJobs = append(b.asyncJobs, j)
}

// Pending reports whether jobs wait for Collect.
func (b *Batcher) Pending() bool {
	return len(b.syncJobs) > 0 || len(b.asyncJobs) > 0
}

// Live returns the number of async batches not yet done.
func (b *Batcher) Live() int {
	return len(b.live)
}

// Collect groups the jobs added since the previous call.
func (b *Batcher) Collect() BatchResult {
	var res BatchResult
	if len(b.syncJobs) > 0 {
		res.NewSync = b.newBatch(b.syncJobs)
		b.syncJobs = nil
	}
	fresh := make(map[lane.BatchID]*Batch)
	for _, j := range b.asyncJobs {
		jobs := []*Job{j}
		for id, lb := range b.live {
			if !lb.overlaps(j) {
				continue
			}
			jobs = slices.Concat(lb.Jobs, jobs)
			delete(b.live, id)
			if _, ok := fresh[id]; ok {
				delete(fresh, id)
			} else {
				res.Expired = append(res.Expired, lb)
			}
		}
		nb := b.newBatch(jobs)
		b.live[nb.ID] = nb
		fresh[nb.ID] = nb
	}
	b.asyncJobs = nil
	for _, nb := range fresh {
		res.NewAsync = append(res.NewAsync, nb)
	}
	slices.SortFunc(res.NewAsync, func(x, y *Batch) int {
		return x.Priority().Compare(y.Priority())
	})
	return res
}

// Done retires a committed async batch.
func (b *Batcher) Done(batch *Batch) {
	delete(b.live, batch.ID)
}

func (b *Batcher) newBatch(jobs []*Job) *Batch {
	b.nextID++
	return &Batch{ID: b.nextID, Jobs: jobs, index: -1}
}
