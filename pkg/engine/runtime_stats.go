package engine

import (
	"runtime"
	"sync"
	"time"
)

const (
	runtimeIntervalDefault = 5 * time.Second
	runtimeWindowDefault   = time.Minute
	runtimeIntervalMin     = time.Second
	runtimeSamplesMax      = 120
)

// RuntimeSample is one periodic reading of process and tree load.
type RuntimeSample struct {
	Timestamp     int64  `json:"ts"`
	HeapAlloc     uint64 `json:"heapAlloc"`
	NumGC         uint32 `json:"numGC"`
	LastPauseNs   uint64 `json:"lastPauseNs"`
	Goroutines    int    `json:"goroutines"`
	Elements      int    `json:"elements"`
	RenderObjects int    `json:"renderObjects"`
	PendingWakers int    `json:"pendingWakers"`
	BusyLanes     int    `json:"busyLanes"`
}

// runtimeHistory holds the samples of the last window.
type runtimeHistory struct {
	interval time.Duration

	mu      sync.Mutex
	samples ring[RuntimeSample]
}

func newRuntimeHistory(window, interval time.Duration) *runtimeHistory {
	if interval <= 0 {
		interval = runtimeIntervalDefault
	}
	interval = max(interval, runtimeIntervalMin)
	if window <= 0 {
		window = runtimeWindowDefault
	}
	n := min(max(int(window/interval), 1), runtimeSamplesMax)
	return &runtimeHistory{interval: interval, samples: newRing[RuntimeSample](n)}
}

func (h *runtimeHistory) add(s RuntimeSample) {
	h.mu.Lock()
	h.samples.add(s)
	h.mu.Unlock()
}

func (h *runtimeHistory) snapshot() []RuntimeSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.samples.ordered()
}

// sampleRuntime reads the process counters and the engine's tree and lane
// load between frames.
func sampleRuntime(e *Engine) RuntimeSample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := RuntimeSample{
		Timestamp:  time.Now().UnixMilli(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	if ms.NumGC > 0 {
		s.LastPauseNs = ms.PauseNs[(ms.NumGC+255)%256]
	}
	e.inspect(func() {
		s.Elements = countElements(e.tree)
		s.RenderObjects = countRenderTree(e.pipeline.Root())
		s.PendingWakers = e.tree.PendingWakers()
	})
	s.BusyLanes = countBusyLanes(e.sched.Lanes())
	return s
}

// runtimeSampler appends a sample every interval until stopped.
type runtimeSampler struct {
	stop chan struct{}
	done chan struct{}
}

func startRuntimeSampler(h *runtimeHistory, read func() RuntimeSample) *runtimeSampler {
	s := &runtimeSampler{stop: make(chan struct{}), done: make(chan struct{})}
	h.add(read())
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.add(read())
			case <-s.stop:
				return
			}
		}
	}()
	return s
}

func (s *runtimeSampler) Stop() {
	close(s.stop)
	<-s.done
}
