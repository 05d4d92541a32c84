// Package engine is the host-facing runtime. An Engine owns the element
// tree, the scheduler, the render pipeline and a canvas backend, and turns
// scheduled jobs into frames.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/go-drift/weave/pkg/canvas"
	"github.com/go-drift/weave/pkg/config"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/lane"
	"github.com/go-drift/weave/pkg/protocol"
	"github.com/go-drift/weave/pkg/render"
	"github.com/go-drift/weave/pkg/scheduler"
)

const tracerName = "github.com/go-drift/weave/pkg/engine"

var noopTracer = noop.NewTracerProvider().Tracer(tracerName)

// ErrNoBackend is returned by New when Options.Backend is nil.
var ErrNoBackend = errors.New("engine: no canvas backend")

// Options configures an Engine.
type Options struct {
	Backend canvas.Backend
	// SyncWorkers bounds the goroutines a sync pass forks onto.
	SyncWorkers int
	Scheduler   scheduler.Options
	Logger      zerolog.Logger
	// Tracer defaults to the global tracer provider's tracer.
	Tracer trace.Tracer
	// CachedComposite composites through per-layer caches.
	CachedComposite bool
	FrameSamples    int
	// FrameThreshold is the frame duration above which a frame counts as
	// dropped. Defaults to 16.67ms.
	FrameThreshold time.Duration
}

// Engine drives frames over one element tree.
type Engine struct {
	// frameLock serializes frames and tree inspection.
	frameLock sync.Mutex

	tree     *core.Tree
	sched    *scheduler.Scheduler
	pipeline *render.Pipeline
	backend  canvas.Backend
	metrics  *scheduler.Metrics
	logger   zerolog.Logger
	tracer   trace.Tracer
	cached   bool

	frames     *FrameTraceBuffer
	frameCount atomic.Int64
}

// New wires a tree, scheduler and pipeline around opts.Backend.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	pipeline := render.NewPipeline()
	tree := core.NewTree(core.Options{
		Pipeline:    pipeline,
		SyncWorkers: opts.SyncWorkers,
		Logger:      opts.Logger,
	})
	schedOpts := opts.Scheduler
	schedOpts.Logger = opts.Logger
	e := &Engine{
		tree:     tree,
		sched:    scheduler.New(tree, schedOpts),
		pipeline: pipeline,
		backend:  opts.Backend,
		metrics:  schedOpts.Metrics,
		logger:   opts.Logger.With().Str("component", "engine").Logger(),
		tracer:   tracer,
		cached:   opts.CachedComposite,
		frames:   NewFrameTraceBuffer(opts.FrameSamples, opts.FrameThreshold),
	}
	return e, nil
}

// FromConfig builds an Engine from a loaded configuration.
func FromConfig(cfg *config.Config, backend canvas.Backend, logger zerolog.Logger) (*Engine, error) {
	metrics, err := scheduler.NewMetrics(scheduler.MetricsConfig{
		Enabled:   cfg.Metrics.Enabled,
		Namespace: cfg.Metrics.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	opts := Options{
		Backend:     backend,
		SyncWorkers: cfg.Scheduler.SyncWorkers,
		Scheduler: scheduler.Options{
			AsyncLanes:      cfg.Scheduler.AsyncLanes,
			AsyncWorkers:    cfg.Scheduler.AsyncWorkers,
			DefaultDeadline: cfg.Scheduler.DefaultDeadline,
			Metrics:         metrics,
		},
		Logger: logger,
	}
	if !cfg.Tracing.Enabled {
		opts.Tracer = noopTracer
	}
	return New(opts)
}

// Tree returns the element tree.
func (e *Engine) Tree() *core.Tree { return e.tree }

// Scheduler returns the job scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Pipeline returns the render pipeline.
func (e *Engine) Pipeline() *render.Pipeline { return e.pipeline }

// Backend returns the canvas backend frames are painted with.
func (e *Engine) Backend() canvas.Backend { return e.backend }

// Metrics returns the scheduler metrics, or nil.
func (e *Engine) Metrics() *scheduler.Metrics { return e.metrics }

// Frames returns the frame trace buffer.
func (e *Engine) Frames() *FrameTraceBuffer { return e.frames }

// SetRoot schedules a sync job replacing the application widget.
func (e *Engine) SetRoot(w core.Widget) lane.JobID {
	return e.sched.RequestSyncJob(func(b core.JobBuilder) { e.tree.SetRoot(b, w) })
}

// RequestSyncJob schedules fn as a sync job. It runs on the next frame.
func (e *Engine) RequestSyncJob(fn func(b core.JobBuilder)) lane.JobID {
	return e.sched.RequestSyncJob(fn)
}

// CreateAsyncJob schedules fn as an async job with the given deadline. A
// zero deadline uses the scheduler default.
func (e *Engine) CreateAsyncJob(deadline time.Duration, fn func(b core.JobBuilder)) lane.JobID {
	return e.sched.CreateAsyncJob(deadline, fn)
}

// NeedsFrame reports whether a job is pending or running, or whether the
// render tree needs layout or paint.
func (e *Engine) NeedsFrame() bool {
	return !e.sched.Idle() || e.pipeline.NeedsLayout() || e.pipeline.NeedsPaint()
}

// DrawFrame ticks the scheduler, lays out the render tree under c, repaints
// dirty layers and composites the root layer into dst, which is cleared
// first.
func (e *Engine) DrawFrame(ctx context.Context, c protocol.Constraints, dst canvas.Encoding) (FrameSample, error) {
	if c == nil {
		return FrameSample{}, errors.New("engine: nil root constraints")
	}
	if dst == nil {
		return FrameSample{}, errors.New("engine: nil destination encoding")
	}
	e.frameLock.Lock()
	defer e.frameLock.Unlock()

	frame := e.frameCount.Add(1)
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "weave.frame", trace.WithAttributes(attribute.Int64("weave.frame", frame)))
	defer span.End()

	var sample FrameSample
	var tick scheduler.TickResult
	painted := 0
	sample.Phases.TickMs = e.phase(ctx, span, "weave.tick", func() { tick = e.sched.Tick() })
	sample.Phases.LayoutMs = e.phase(ctx, span, "weave.layout", func() { e.pipeline.FlushLayout(c) })
	sample.Phases.PaintMs = e.phase(ctx, span, "weave.paint", func() { painted = e.pipeline.FlushPaint(e.backend) })
	sample.Phases.CompositeMs = e.phase(ctx, span, "weave.composite", func() {
		e.backend.Clear(dst)
		e.pipeline.FlushComposite(e.backend, dst, e.cached)
	})

	traceStart := time.Now()
	sample.Counts = FrameCounts{
		Admitted:      len(tick.Admitted),
		Expired:       len(tick.Expired),
		Spawned:       tick.Spawned,
		Committed:     len(tick.Committed),
		Restarted:     len(tick.Restarted),
		LayersPainted: painted,
		RenderObjects: countRenderTree(e.pipeline.Root()),
		Elements:      countElements(e.tree),
		BusyLanes:     countBusyLanes(e.sched.Lanes()),
	}
	sample.Flags = FrameFlags{SyncRan: tick.SyncRan, Cached: e.cached}
	sample.Phases.TraceOverheadMs = durationToMillis(time.Since(traceStart))

	elapsed := time.Since(start)
	sample.Timestamp = start.UnixMilli()
	sample.Frame = frame
	sample.FrameMs = durationToMillis(elapsed)
	e.frames.Add(sample, elapsed)

	span.SetAttributes(
		attribute.Bool("weave.sync_ran", tick.SyncRan),
		attribute.Int("weave.lanes_committed", len(tick.Committed)),
		attribute.Int("weave.layers_painted", painted),
	)
	if elapsed > e.frames.Threshold() {
		e.logger.Debug().
			Int64("frame", frame).
			Dur("elapsed", elapsed).
			Msg("frame over budget")
	}
	return sample, nil
}

// phase runs fn inside a child span of parent. A panic is recorded on both
// spans and re-raised.
func (e *Engine) phase(ctx context.Context, parent trace.Span, name string, fn func()) float64 {
	_, span := e.tracer.Start(ctx, name)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s: %v", name, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			parent.SetStatus(codes.Error, name+" panicked")
			panic(r)
		}
	}()
	start := time.Now()
	fn()
	return durationToMillis(time.Since(start))
}

// Settle runs the scheduler until no job is pending or running and then
// draws one frame.
func (e *Engine) Settle(ctx context.Context, c protocol.Constraints, dst canvas.Encoding) (FrameSample, error) {
	e.frameLock.Lock()
	err := e.sched.RunUntilIdle(ctx)
	e.frameLock.Unlock()
	if err != nil {
		return FrameSample{}, err
	}
	return e.DrawFrame(ctx, c, dst)
}

// HitTest tests position against the laid-out render tree.
func (e *Engine) HitTest(position canvas.Point) *render.HitTestResult {
	e.frameLock.Lock()
	defer e.frameLock.Unlock()
	return e.pipeline.HitTest(position)
}

// inspect runs fn between frames.
func (e *Engine) inspect(fn func()) {
	e.frameLock.Lock()
	defer e.frameLock.Unlock()
	fn()
}

// Close stops the scheduler and waits for its tasks.
func (e *Engine) Close() error {
	return e.sched.Close()
}

func countBusyLanes(lanes []scheduler.LaneInfo) int {
	n := 0
	for _, l := range lanes {
		if l.Batch != 0 {
			n++
		}
	}
	return n
}
