package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/lane"
)

const (
	defaultAsyncLanes = 4
	defaultDeadline   = 100 * time.Millisecond
)

// Options configures a Scheduler.
type Options struct {
	// AsyncLanes is the number of async lanes, at most lane.MaxAsyncLanes.
	AsyncLanes int
	// AsyncWorkers bounds concurrently running async build tasks.
	// Defaults to GOMAXPROCS.
	AsyncWorkers int
	// DefaultDeadline applies to async jobs created without a deadline.
	DefaultDeadline time.Duration
	Logger          zerolog.Logger
	// Metrics may be nil.
	Metrics *Metrics
	// Now returns the time used for job deadlines. Defaults to time.Now.
	Now func() time.Time
	// OnCommit is called after every committed lane run.
	OnCommit func(CommitEvent)
}

// CommitEvent describes one committed lane run.
type CommitEvent struct {
	Lane     lane.Pos
	Batch    lane.BatchID
	Jobs     []lane.JobID
	Duration time.Duration
	// Change is the root change of a sync run.
	Change core.Change
}

// TickResult reports what one Tick did.
type TickResult struct {
	SyncRan   bool
	Sync      core.Change
	Admitted  []lane.BatchID
	Expired   []lane.BatchID
	Spawned   int
	Committed []lane.Pos
	Restarted []lane.Pos
}

// LaneInfo is a snapshot of one async lane.
type LaneInfo struct {
	Pos       lane.Pos
	Batch     lane.BatchID
	Running   bool
	Pending   int64
	Cancelled bool
}

// laneRun is one attempt of an async lane.
type laneRun struct {
	attempt   *core.Attempt
	barrier   *CommitBarrier
	stop      context.CancelFunc
	cancelled atomic.Bool
	// failed is set when a task panicked. The run is aborted, never
	// restarted or committed.
	failed atomic.Bool
}

type asyncLane struct {
	pos   lane.Pos
	batch *Batch
	run   *laneRun
}

// Scheduler dispatches jobs onto one sync lane and a fixed set of async
// lanes of a core.Tree.
type Scheduler struct {
	tree     *core.Tree
	logger   zerolog.Logger
	metrics  *Metrics
	now      func() time.Time
	deadline time.Duration
	onCommit func(CommitEvent)

	// tickMu serializes Tick. Lane fields are written only by Tick, under mu.
	tickMu sync.Mutex

	// mu is the admission lock. It guards the batcher, the queue and the
	// lanes, and every CommitBarrier increment happens under it.
	mu        sync.Mutex
	frame     uint64
	seq       uint32
	batcher   *Batcher
	queue     batchQueue
	syncBatch *Batch
	lanes     []*asyncLane
	fatal     any

	workers *semaphore.Weighted
	tasks   errgroup.Group
	ctx     context.Context
	stop    context.CancelFunc
	wake    chan struct{}
}

// New returns a scheduler driving tree. It installs the tree's wake handler.
func New(tree *core.Tree, opts Options) *Scheduler {
	n := opts.AsyncLanes
	if n <= 0 {
		n = defaultAsyncLanes
	}
	if n > lane.MaxAsyncLanes {
		n = lane.MaxAsyncLanes
	}
	workers := opts.AsyncWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	deadline := opts.DefaultDeadline
	if deadline <= 0 {
		deadline = defaultDeadline
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Scheduler{
		tree:     tree,
		logger:   opts.Logger.With().Str("component", "scheduler").Logger(),
		metrics:  opts.Metrics,
		now:      now,
		deadline: deadline,
		onCommit: opts.OnCommit,
		batcher:  NewBatcher(),
		workers:  semaphore.NewWeighted(int64(workers)),
		ctx:      ctx,
		stop:     stop,
		wake:     make(chan struct{}, 1),
	}
	for i := range n {
		s.lanes = append(s.lanes, &asyncLane{pos: lane.Async(i)})
	}
	tree.SetWakeHandler(s.onWake)
	return s
}

// Tree returns the driven tree.
func (s *Scheduler) Tree() *core.Tree {
	return s.tree
}

// RequestSyncJob describes a job with fn and queues it for the sync lane of
// the next Tick.
func (s *Scheduler) RequestSyncJob(fn func(b core.JobBuilder)) lane.JobID {
	return s.submit(false, s.now(), fn)
}

// CreateAsyncJob describes a job with fn and queues it for an async lane.
// A non-positive deadline uses the default deadline.
func (s *Scheduler) CreateAsyncJob(deadline time.Duration, fn func(b core.JobBuilder)) lane.JobID {
	if deadline <= 0 {
		deadline = s.deadline
	}
	return s.submit(true, s.now().Add(deadline), fn)
}

func (s *Scheduler) submit(async bool, deadline time.Time, fn func(b core.JobBuilder)) lane.JobID {
	s.mu.Lock()
	s.seq++
	job := &Job{ID: lane.NewJobID(s.frame, async, s.seq), Deadline: deadline}
	s.mu.Unlock()

	if fn != nil {
		fn(&jobBuilder{job: job})
	}

	s.mu.Lock()
	s.batcher.Add(job)
	s.mu.Unlock()
	s.metrics.recordJob(!async)
	s.signal()
	return job.ID
}

// onWake turns a fired waker into a point rebuild of its element.
func (s *Scheduler) onWake(ctx *core.ElementContextNode) {
	s.CreateAsyncJob(0, func(b core.JobBuilder) { b.AddRoot(ctx) })
}

// Tick runs one scheduling round: it admits new batches, runs the sync
// batch to completion, starts async attempts and commits every async lane
// whose barrier reached zero. A panic raised by an async task is re-raised
// here.
func (s *Scheduler) Tick() TickResult {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.rethrow()

	var res TickResult
	s.mu.Lock()
	s.frame++
	s.admitLocked(s.batcher.Collect(), &res)
	syncBatch := s.syncBatch
	s.syncBatch = nil
	s.mu.Unlock()

	if syncBatch != nil {
		res.SyncRan = true
		res.Sync = s.runSync(syncBatch)
	}
	s.spawn(&res)
	s.commitReady(&res)
	s.restart(&res)
	s.spawn(&res)

	s.rethrow()
	return res
}

func (s *Scheduler) admitLocked(br BatchResult, res *TickResult) {
	for _, b := range br.Expired {
		if l := s.laneHolding(b); l != nil {
			s.releaseLocked(l)
		} else {
			s.queue.remove(b)
		}
		res.Expired = append(res.Expired, b.ID)
		s.logger.Debug().Stringer("batch", b.ID).Int("jobs", len(b.Jobs)).Msg("batch expired")
	}
	s.metrics.recordExpired(len(br.Expired))

	if b := br.NewSync; b != nil {
		s.syncBatch = b
		s.tree.MarkRoots(lane.Sync, b.Roots())
		s.metrics.recordAdmitted(true)
		res.Admitted = append(res.Admitted, b.ID)
	}
	for _, b := range br.NewAsync {
		s.queue.push(b)
	}
	s.fillLocked(res)
}

// fillLocked hands queued batches to free async lanes, highest priority
// first.
func (s *Scheduler) fillLocked(res *TickResult) {
	busy := 0
	for _, l := range s.lanes {
		if l.batch == nil {
			b := s.queue.pop()
			if b == nil {
				continue
			}
			l.batch = b
			s.tree.MarkRoots(l.pos, b.Roots())
			s.metrics.recordAdmitted(false)
			res.Admitted = append(res.Admitted, b.ID)
			s.logger.Debug().
				Stringer("batch", b.ID).
				Stringer("lane", l.pos).
				Int("jobs", len(b.Jobs)).
				Msg("batch admitted")
		}
		busy++
	}
	s.metrics.setBusyLanes(busy)
}

func (s *Scheduler) laneHolding(b *Batch) *asyncLane {
	for _, l := range s.lanes {
		if l.batch == b {
			return l
		}
	}
	return nil
}

// releaseLocked abandons the lane's batch and purges its marks.
func (s *Scheduler) releaseLocked(l *asyncLane) {
	if r := l.run; r != nil {
		r.attempt.Cancel()
		r.stop()
		l.run = nil
	}
	s.tree.PurgeLane(l.pos)
	l.batch = nil
}

func (s *Scheduler) runSync(b *Batch) core.Change {
	start := time.Now()
	change := s.tree.RunSync(b.run(lane.Sync))
	d := time.Since(start)
	s.metrics.recordSyncWalk(d)
	s.logger.Debug().
		Stringer("batch", b.ID).
		Int("jobs", len(b.Jobs)).
		Stringer("change", change).
		Dur("duration", d).
		Msg("sync lane committed")
	s.emit(CommitEvent{Lane: lane.Sync, Batch: b.ID, Jobs: b.JobIDs(), Duration: d, Change: change})
	return change
}

// spawn begins an attempt on every lane that holds a batch but no attempt,
// and starts one task per entry point.
func (s *Scheduler) spawn(res *TickResult) {
	for _, l := range s.lanes {
		if l.batch == nil || l.run != nil {
			continue
		}
		run := &laneRun{}
		ctx, stop := context.WithCancel(s.ctx)
		run.stop = stop
		run.attempt = s.tree.BeginAsync(l.batch.run(l.pos), func(*core.Attempt) {
			run.cancelled.Store(true)
			s.signal()
		})
		entries := run.attempt.Entries()

		s.mu.Lock()
		run.barrier = newCommitBarrier(&s.mu)
		refs := make([]*BarrierRef, len(entries))
		for i := range entries {
			refs[i] = run.barrier.Acquire()
		}
		l.run = run
		s.mu.Unlock()

		for i, entry := range entries {
			ref := refs[i]
			s.tasks.Go(func() error {
				s.runTask(ctx, run, entry, ref)
				return nil
			})
		}
		res.Spawned += len(entries)
		if len(entries) == 0 {
			// nothing to build; commit on the next tick
			s.signal()
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, run *laneRun, entry *core.ElementNode, ref *BarrierRef) {
	defer s.signal()
	defer ref.Release()
	defer func() {
		if r := recover(); r != nil {
			errors.ReportPanic(errors.Capture("scheduler.task", r))
			run.failed.Store(true)
			run.attempt.Cancel()
			s.setFatal(r)
		}
	}()

	if err := s.workers.Acquire(ctx, 1); err != nil {
		s.metrics.recordTaskCancelled()
		return
	}
	defer s.workers.Release(1)

	if err := s.tree.BuildEntry(ctx, run.attempt, entry); err != nil {
		if !stderrors.Is(err, core.ErrCancelled) {
			panic(err)
		}
		s.metrics.recordTaskCancelled()
	}
}

// commitReady commits every lane whose attempt is intact and whose barrier
// is at zero.
func (s *Scheduler) commitReady(res *TickResult) {
	var ready []*asyncLane
	s.mu.Lock()
	for _, l := range s.lanes {
		r := l.run
		if r == nil || r.cancelled.Load() || r.failed.Load() || s.fatal != nil {
			continue
		}
		if r.barrier.TrySeal() {
			ready = append(ready, l)
		}
	}
	s.mu.Unlock()

	for _, l := range ready {
		r, b := l.run, l.batch
		start := time.Now()
		if !s.tree.CommitAsync(r.attempt) {
			r.cancelled.Store(true)
			continue
		}
		d := time.Since(start)
		r.stop()

		s.mu.Lock()
		s.batcher.Done(b)
		l.batch, l.run = nil, nil
		s.mu.Unlock()

		s.metrics.recordAsyncCommit(d)
		s.logger.Debug().
			Stringer("batch", b.ID).
			Stringer("lane", l.pos).
			Dur("duration", d).
			Msg("async lane committed")
		res.Committed = append(res.Committed, l.pos)
		s.emit(CommitEvent{Lane: l.pos, Batch: b.ID, Jobs: b.JobIDs(), Duration: d})
	}

	if len(ready) > 0 {
		s.mu.Lock()
		s.fillLocked(res)
		s.mu.Unlock()
	}
}

// restart drops cancelled attempts so spawn begins them again against the
// current mainline.
func (s *Scheduler) restart(res *TickResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lanes {
		r := l.run
		if r == nil || !r.cancelled.Load() || r.failed.Load() {
			continue
		}
		r.stop()
		l.run = nil
		s.metrics.recordRestart()
		res.Restarted = append(res.Restarted, l.pos)
		s.logger.Debug().Stringer("lane", l.pos).Stringer("batch", l.batch.ID).Msg("lane restarted")
	}
}

func (s *Scheduler) emit(ev CommitEvent) {
	if s.onCommit != nil {
		s.onCommit(ev)
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) setFatal(r any) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = r
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) rethrow() {
	s.mu.Lock()
	s.abortFailedLocked()
	r := s.fatal
	s.fatal = nil
	s.mu.Unlock()
	if r != nil {
		panic(r)
	}
}

// abortFailedLocked retires the batch of every lane whose run panicked.
// Nothing the batch built is committed and its jobs' updates are dropped.
func (s *Scheduler) abortFailedLocked() {
	for _, l := range s.lanes {
		r := l.run
		if r == nil || !r.failed.Load() {
			continue
		}
		r.attempt.Cancel()
		r.stop()
		s.tree.AbortLane(l.batch.run(l.pos))
		s.batcher.Done(l.batch)
		s.logger.Error().
			Stringer("batch", l.batch.ID).
			Stringer("lane", l.pos).
			Msg("async lane aborted")
		l.batch, l.run = nil, nil
	}
}

// Idle reports whether no job, batch or attempt is outstanding.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batcher.Pending() || s.syncBatch != nil || s.queue.Len() > 0 || s.fatal != nil {
		return false
	}
	for _, l := range s.lanes {
		if l.batch != nil {
			return false
		}
	}
	return true
}

// RunUntilIdle ticks until Idle, waiting for task completions between
// ticks.
func (s *Scheduler) RunUntilIdle(ctx context.Context) error {
	for {
		s.Tick()
		if s.Idle() {
			return nil
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return fmt.Errorf("scheduler not idle: %w", ctx.Err())
		}
	}
}

// Lanes returns a snapshot of the async lanes.
func (s *Scheduler) Lanes() []LaneInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LaneInfo, len(s.lanes))
	for i, l := range s.lanes {
		info := LaneInfo{Pos: l.pos}
		if l.batch != nil {
			info.Batch = l.batch.ID
		}
		if r := l.run; r != nil {
			info.Running = true
			info.Pending = r.barrier.Pending()
			info.Cancelled = r.cancelled.Load()
		}
		out[i] = info
	}
	return out
}

// Close cancels every running attempt and waits for the tasks to return.
func (s *Scheduler) Close() error {
	s.tree.SetWakeHandler(nil)
	s.stop()
	s.mu.Lock()
	for _, l := range s.lanes {
		if r := l.run; r != nil {
			r.attempt.Cancel()
		}
	}
	s.mu.Unlock()
	return s.tasks.Wait()
}
