package engine

import (
	"sync"
	"time"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/render"
)

const (
	frameTraceSamplesDefault   = 240
	defaultFrameTraceThreshold = 16667 * time.Microsecond
)

// FramePhaseTimings captures time spent in each frame phase (ms).
type FramePhaseTimings struct {
	TickMs          float64 `json:"tickMs"`
	LayoutMs        float64 `json:"layoutMs"`
	PaintMs         float64 `json:"paintMs"`
	CompositeMs     float64 `json:"compositeMs"`
	TraceOverheadMs float64 `json:"traceOverheadMs"`
}

// FrameCounts captures per-frame workload indicators.
type FrameCounts struct {
	Admitted      int `json:"admitted"`
	Expired       int `json:"expired"`
	Spawned       int `json:"spawned"`
	Committed     int `json:"committed"`
	Restarted     int `json:"restarted"`
	LayersPainted int `json:"layersPainted"`
	RenderObjects int `json:"renderObjects"`
	Elements      int `json:"elements"`
	BusyLanes     int `json:"busyLanes"`
}

// FrameFlags captures contextual flags for a frame.
type FrameFlags struct {
	SyncRan bool `json:"syncRan"`
	Cached  bool `json:"cached,omitempty"`
}

// FrameSample is a single frame trace sample.
type FrameSample struct {
	Frame     int64             `json:"frame"`
	Timestamp int64             `json:"ts"`
	FrameMs   float64           `json:"frameMs"`
	Phases    FramePhaseTimings `json:"phases"`
	Counts    FrameCounts       `json:"counts"`
	Flags     FrameFlags        `json:"flags"`
}

// FrameTimeline is the debug server response shape.
type FrameTimeline struct {
	Samples       []FrameSample `json:"samples"`
	DroppedFrames int           `json:"droppedFrames"`
	ThresholdMs   float64       `json:"thresholdMs"`
}

// FrameTraceBuffer stores recent frame samples in a ring buffer.
type FrameTraceBuffer struct {
	mu        sync.RWMutex
	samples   ring[FrameSample]
	dropped   int
	threshold time.Duration
}

// NewFrameTraceBuffer creates a new frame trace buffer.
func NewFrameTraceBuffer(capacity int, threshold time.Duration) *FrameTraceBuffer {
	if capacity <= 0 {
		capacity = frameTraceSamplesDefault
	}
	if threshold <= 0 {
		threshold = defaultFrameTraceThreshold
	}
	return &FrameTraceBuffer{
		samples:   newRing[FrameSample](capacity),
		threshold: threshold,
	}
}

// Capacity returns the buffer capacity.
func (b *FrameTraceBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples.buf)
}

// SetThreshold updates the dropped frame threshold.
func (b *FrameTraceBuffer) SetThreshold(threshold time.Duration) {
	if threshold <= 0 {
		threshold = defaultFrameTraceThreshold
	}
	b.mu.Lock()
	b.threshold = threshold
	b.mu.Unlock()
}

// Threshold returns the dropped frame threshold.
func (b *FrameTraceBuffer) Threshold() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.threshold
}

// Add records a frame sample and counts it as dropped when it overran the
// threshold.
func (b *FrameTraceBuffer) Add(sample FrameSample, frameDuration time.Duration) {
	b.mu.Lock()
	b.samples.add(sample)
	if frameDuration > b.threshold {
		b.dropped++
	}
	b.mu.Unlock()
}

// Snapshot returns the samples oldest first with the dropped count.
func (b *FrameTraceBuffer) Snapshot() FrameTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return FrameTimeline{
		Samples:       b.samples.ordered(),
		DroppedFrames: b.dropped,
		ThresholdMs:   durationToMillis(b.threshold),
	}
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func countRenderTree(root *render.Object) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children() {
		count += countRenderTree(child)
	}
	return count
}

// countElements counts mounted elements, excluding the tree root.
func countElements(tree *core.Tree) int {
	count := -1
	tree.Walk(func(*core.ElementNode) bool {
		count++
		return true
	})
	return count
}
