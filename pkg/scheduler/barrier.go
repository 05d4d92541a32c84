package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/go-drift/weave/pkg/errors"
)

// CommitBarrier counts the unfinished tasks of one async attempt. The lane
// commits only once the count is zero.
//
// Acquire and TrySeal must be called with the scheduler's admission lock
// held, so the count never goes from zero to one after the lane was found
// ready. Releases may happen on any goroutine.
type CommitBarrier struct {
	admission *sync.Mutex
	count     atomic.Int64
	sealed    bool
}

func newCommitBarrier(admission *sync.Mutex) *CommitBarrier {
	return &CommitBarrier{admission: admission}
}

// Acquire adds one unfinished task and returns the reference that releases
// it.
func (b *CommitBarrier) Acquire() *BarrierRef {
	b.assertAdmission("CommitBarrier.Acquire")
	if b.sealed {
		panic(&errors.LaneContractError{Op: "CommitBarrier.Acquire", Detail: "barrier already sealed"})
	}
	b.count.Add(1)
	return &BarrierRef{barrier: b}
}

// Pending returns the number of unreleased references.
func (b *CommitBarrier) Pending() int64 {
	return b.count.Load()
}

// TrySeal reports whether every reference was released and, if so, closes
// the barrier to further Acquire calls.
func (b *CommitBarrier) TrySeal() bool {
	b.assertAdmission("CommitBarrier.TrySeal")
	if b.sealed {
		return true
	}
	if b.count.Load() != 0 {
		return false
	}
	b.sealed = true
	return true
}

func (b *CommitBarrier) assertAdmission(op string) {
	if b.admission.TryLock() {
		b.admission.Unlock()
		panic(&errors.LaneContractError{Op: op, Detail: "admission lock not held"})
	}
}

// BarrierRef is one task's hold on a CommitBarrier.
type BarrierRef struct {
	barrier *CommitBarrier
	once    sync.Once
}

// Release drops the hold. Repeated calls are no-ops.
func (r *BarrierRef) Release() {
	r.once.Do(func() {
		if r.barrier.count.Add(-1) < 0 {
			panic(&errors.LaneContractError{Op: "BarrierRef.Release", Detail: "barrier count below zero"})
		}
	})
}
