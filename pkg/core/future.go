package core

import (
	"sync"
	"sync/atomic"

	"github.com/go-drift/weave/pkg/errors"
)

// Future is an externally resolved value that builds can suspend on.
type Future[T any] struct {
	mu     sync.Mutex
	done   bool
	value  T
	err    error
	wakers []errors.Waker
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{}
}

// Ready returns a future already resolved to v.
func Ready[T any](v T) *Future[T] {
	return &Future[T]{done: true, value: v}
}

// Resolve completes the future with v and fires every waiting waker.
// Later calls are ignored.
func (f *Future[T]) Resolve(v T) {
	f.complete(v, nil)
}

// Fail completes the future with err.
func (f *Future[T]) Fail(err error) {
	var zero T
	f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value = v
	f.err = err
	wakers := f.wakers
	f.wakers = nil
	f.mu.Unlock()
	for _, w := range wakers {
		w.Wake()
	}
}

// Result returns the outcome; ok is false while pending.
func (f *Future[T]) Result() (v T, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.done, f.err
}

func (f *Future[T]) subscribe(w errors.Waker) {
	f.mu.Lock()
	if !f.done {
		f.wakers = append(f.wakers, w)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	w.Wake()
}

const (
	wakerPending int32 = iota
	wakerFired
	wakerAborted
)

// waker resumes one suspended element. It fires at most once.
type waker struct {
	state    atomic.Int32
	ctx      *ElementContextNode
	registry *wakeRegistry
}

// Wake enqueues a point rebuild of the suspended element.
func (w *waker) Wake() bool {
	if !w.state.CompareAndSwap(wakerPending, wakerFired) {
		return false
	}
	w.registry.fire(w)
	return true
}

func (w *waker) abort() {
	w.state.CompareAndSwap(wakerPending, wakerAborted)
}

// wakeRegistry maps each suspended element to its live waker.
type wakeRegistry struct {
	mu     sync.Mutex
	byCtx  map[*ElementContextNode]*waker
	onWake func(*ElementContextNode)
	fired  atomic.Int64
}

func (r *wakeRegistry) register(ctx *ElementContextNode) *waker {
	w := &waker{ctx: ctx, registry: r}
	r.mu.Lock()
	if r.byCtx == nil {
		r.byCtx = make(map[*ElementContextNode]*waker)
	}
	old := r.byCtx[ctx]
	r.byCtx[ctx] = w
	r.mu.Unlock()
	if old != nil {
		old.abort()
	}
	return w
}

func (r *wakeRegistry) fire(w *waker) {
	r.mu.Lock()
	if r.byCtx[w.ctx] == w {
		delete(r.byCtx, w.ctx)
	}
	onWake := r.onWake
	r.mu.Unlock()
	if w.ctx.Detached() {
		return
	}
	r.fired.Add(1)
	if onWake != nil {
		onWake(w.ctx)
	}
}

// abort cancels the live waker of ctx, if any.
func (r *wakeRegistry) abort(ctx *ElementContextNode) {
	r.mu.Lock()
	w := r.byCtx[ctx]
	delete(r.byCtx, ctx)
	r.mu.Unlock()
	if w != nil {
		w.abort()
	}
}

func (r *wakeRegistry) setHandler(fn func(*ElementContextNode)) {
	r.mu.Lock()
	r.onWake = fn
	r.mu.Unlock()
}

func (r *wakeRegistry) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byCtx)
}
