package lane

import (
	"fmt"
	"math/bits"
	"strings"
	"sync/atomic"
)

// MaxAsyncLanes is the largest number of async lanes a scheduler may run.
const MaxAsyncLanes = 63

// Pos identifies one lane. Position 0 is the sync lane.
type Pos uint8

// Sync is the position of the single sync lane.
const Sync Pos = 0

// Async returns the position of the async lane with the given index.
func Async(index int) Pos {
	if index < 0 || index >= MaxAsyncLanes {
		panic(fmt.Sprintf("lane: async index %d out of range", index))
	}
	return Pos(index + 1)
}

// IsSync reports whether p is the sync lane.
func (p Pos) IsSync() bool {
	return p == Sync
}

// AsyncIndex returns the async lane index for p. It panics for the sync lane.
func (p Pos) AsyncIndex() int {
	if p == Sync {
		panic("lane: sync lane has no async index")
	}
	return int(p) - 1
}

// Mask returns a mask containing only p.
func (p Pos) Mask() Mask {
	return Mask(1) << p
}

func (p Pos) String() string {
	if p == Sync {
		return "sync"
	}
	return fmt.Sprintf("async#%d", p.AsyncIndex())
}

// Mask is a set of lanes.
type Mask uint64

// Contains reports whether p is in the mask.
func (m Mask) Contains(p Pos) bool {
	return m&p.Mask() != 0
}

// Overlaps reports whether the two masks share any lane.
func (m Mask) Overlaps(other Mask) bool {
	return m&other != 0
}

// With returns m with p added.
func (m Mask) With(p Pos) Mask {
	return m | p.Mask()
}

// Without returns m with p removed.
func (m Mask) Without(p Pos) Mask {
	return m &^ p.Mask()
}

// IsEmpty reports whether the mask contains no lanes.
func (m Mask) IsEmpty() bool {
	return m == 0
}

// Len returns the number of lanes in the mask.
func (m Mask) Len() int {
	return bits.OnesCount64(uint64(m))
}

// Each calls fn for every lane in ascending position order.
func (m Mask) Each(fn func(Pos)) {
	for rest := uint64(m); rest != 0; rest &= rest - 1 {
		fn(Pos(bits.TrailingZeros64(rest)))
	}
}

func (m Mask) String() string {
	if m == 0 {
		return "{}"
	}
	var parts []string
	m.Each(func(p Pos) { parts = append(parts, p.String()) })
	return "{" + strings.Join(parts, ",") + "}"
}

// AtomicMask is a Mask that may be read and updated concurrently.
// The zero value is an empty mask.
type AtomicMask struct {
	v atomic.Uint64
}

// Load returns the current mask.
func (a *AtomicMask) Load() Mask {
	return Mask(a.v.Load())
}

// Contains reports whether p is currently in the mask.
func (a *AtomicMask) Contains(p Pos) bool {
	return a.Load().Contains(p)
}

// Insert adds p and reports whether it was absent before.
func (a *AtomicMask) Insert(p Pos) bool {
	bit := uint64(p.Mask())
	return a.v.Or(bit)&bit == 0
}

// Remove clears p and reports whether it was present before.
func (a *AtomicMask) Remove(p Pos) bool {
	bit := uint64(p.Mask())
	return a.v.And(^bit)&bit != 0
}

// Merge adds every lane of m.
func (a *AtomicMask) Merge(m Mask) {
	a.v.Or(uint64(m))
}

// Clear empties the mask and returns its previous contents.
func (a *AtomicMask) Clear() Mask {
	return Mask(a.v.Swap(0))
}
