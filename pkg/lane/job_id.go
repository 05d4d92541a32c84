package lane

import (
	"cmp"
	"fmt"
	"time"
)

const (
	seqBits   = 32
	asyncBit  = uint64(1) << seqBits
	frameShft = seqBits + 1
	maxFrame  = (uint64(1) << (64 - frameShft)) - 1
)

// JobID identifies one logical update. It packs the frame the job was spawned
// in, whether the job is async, and a per-scheduler sequence number.
type JobID uint64

// NewJobID encodes a job identifier.
func NewJobID(frame uint64, async bool, seq uint32) JobID {
	id := (frame & maxFrame) << frameShft
	if async {
		id |= asyncBit
	}
	return JobID(id | uint64(seq))
}

// Frame returns the frame the job was spawned in.
func (id JobID) Frame() uint64 {
	return uint64(id) >> frameShft
}

// IsAsync reports whether the job runs on an async lane.
func (id JobID) IsAsync() bool {
	return uint64(id)&asyncBit != 0
}

// IsSync reports whether the job runs on the sync lane.
func (id JobID) IsSync() bool {
	return !id.IsAsync()
}

// Seq returns the sequence number of the job.
func (id JobID) Seq() uint32 {
	return uint32(id)
}

func (id JobID) String() string {
	kind := "sync"
	if id.IsAsync() {
		kind = "async"
	}
	return fmt.Sprintf("job(%s f%d #%d)", kind, id.Frame(), id.Seq())
}

// BatchID identifies a batch of jobs. Batch identifiers are monotonic per
// scheduler.
type BatchID uint64

func (id BatchID) String() string {
	return fmt.Sprintf("batch#%d", uint64(id))
}

// Priority orders jobs and batches: sync work always precedes async work,
// then the earlier deadline wins, then the smaller identifier.
type Priority struct {
	Sync     bool
	Deadline time.Time
	ID       uint64
}

// JobPriority returns the priority of a job with the given deadline.
func JobPriority(id JobID, deadline time.Time) Priority {
	return Priority{Sync: id.IsSync(), Deadline: deadline, ID: uint64(id)}
}

// Compare returns -1 if p runs before other, +1 if after, 0 if equal.
func (p Priority) Compare(other Priority) int {
	if p.Sync != other.Sync {
		if p.Sync {
			return -1
		}
		return 1
	}
	if c := p.Deadline.Compare(other.Deadline); c != 0 {
		return c
	}
	return cmp.Compare(p.ID, other.ID)
}

// Before reports whether p runs before other.
func (p Priority) Before(other Priority) bool {
	return p.Compare(other) < 0
}

// Min returns the higher of two priorities, i.e. the one that runs first.
func Min(a, b Priority) Priority {
	if b.Before(a) {
		return b
	}
	return a
}
