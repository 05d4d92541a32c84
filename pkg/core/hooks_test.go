package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/lane"
)

// shifty calls a different hook sequence once Skip is set.
type shifty struct {
	Skip bool
	Drop bool
}

func (shifty) Key() any { return nil }

func (s shifty) Build(ctx *BuildContext) (Widget, error) {
	if !s.Skip {
		UseState(ctx, 1)
	}
	UseMemo(ctx, func() string { return "memo" })
	if !s.Drop {
		UseRef(ctx, 0)
	}
	return leaf{}, nil
}

func TestHooks_SkippedCallIsMismatch(t *testing.T) {
	h := newHarness(t, Options{})
	h.mount(shifty{})

	r := catch(func() { h.mount(shifty{Skip: true}) })

	mismatch, ok := r.(*errors.HookMismatchError)
	require.True(t, ok, "got %T: %v", r, r)
	require.Equal(t, "shifty", mismatch.Widget)
	require.Equal(t, 0, mismatch.Index)
	require.Equal(t, "state", mismatch.Expected)
	require.Equal(t, "memo", mismatch.Got)
}

func TestHooks_MissingTrailingCallIsUnderflow(t *testing.T) {
	h := newHarness(t, Options{})
	h.mount(shifty{})

	r := catch(func() { h.mount(shifty{Drop: true}) })

	underflow, ok := r.(*errors.HookUnderflowError)
	require.True(t, ok, "got %T: %v", r, r)
	require.Equal(t, 3, underflow.Slots)
	require.Equal(t, 2, underflow.Called)
}

func TestHooks_ExtraCallIsOverflow(t *testing.T) {
	h := newHarness(t, Options{})
	h.mount(shifty{Drop: true})

	r := catch(func() { h.mount(shifty{}) })

	_, ok := r.(*errors.HookOverflowError)
	require.True(t, ok, "got %T: %v", r, r)
}

type tally struct {
	Seen  *[]int
	Memos *int
	Refs  *[]*Ref[int]
	Bump  *Dispatch[int]
	Extra int
}

func (tally) Key() any { return nil }

func (w tally) Build(ctx *BuildContext) (Widget, error) {
	total, dispatch := UseReducer(ctx, func(s, a int) int { return s + a }, 100)
	*w.Bump = dispatch
	*w.Seen = append(*w.Seen, total)
	UseMemo(ctx, func() int { *w.Memos++; return w.Extra * 2 }, w.Extra)
	*w.Refs = append(*w.Refs, UseRef(ctx, 0))
	return leaf{}, nil
}

func TestHooks_ReducerMemoAndRef(t *testing.T) {
	h := newHarness(t, Options{})
	var seen []int
	var memos int
	var refs []*Ref[int]
	var bump Dispatch[int]
	w := tally{Seen: &seen, Memos: &memos, Refs: &refs, Bump: &bump}
	h.mount(w)

	h.sync(func(b JobBuilder) {
		bump.Send(b, 5)
		bump.Send(b, 7)
	})
	require.Equal(t, []int{100, 112}, seen)
	require.Equal(t, 1, memos, "deps unchanged")

	w.Extra = 3
	h.mount(w)
	require.Equal(t, 2, memos)
	require.Len(t, refs, 3)
	require.Same(t, refs[0], refs[2])
}

type effectful struct {
	Dep  int
	Log  *[]string
	Name string
}

func (effectful) Key() any { return nil }

func (w effectful) Build(ctx *BuildContext) (Widget, error) {
	UseEffect(ctx, func() func() {
		*w.Log = append(*w.Log, w.Name+" run")
		return func() { *w.Log = append(*w.Log, w.Name+" cleanup") }
	}, w.Dep)
	return leaf{}, nil
}

func TestHooks_EffectsRunOnDepChangeAndCleanUpOnUnmount(t *testing.T) {
	h := newHarness(t, Options{})
	var log []string
	h.mount(effectful{Dep: 1, Log: &log, Name: "e1"})
	require.Equal(t, []string{"e1 run"}, log)

	h.mount(effectful{Dep: 1, Log: &log, Name: "e2"})
	require.Equal(t, []string{"e1 run"}, log, "same deps do not refire")

	h.mount(effectful{Dep: 2, Log: &log, Name: "e3"})
	require.Equal(t, []string{"e1 run", "e1 cleanup", "e3 run"}, log)

	h.mount(leaf{})
	require.Equal(t, []string{"e1 run", "e1 cleanup", "e3 run", "e3 cleanup"}, log)
}

// eagerLoader declares an effect and then waits on F.
type eagerLoader struct {
	F    *Future[string]
	Runs *atomic.Int32
}

func (eagerLoader) Key() any { return nil }

func (w eagerLoader) Build(ctx *BuildContext) (Widget, error) {
	UseEffect(ctx, func() func() {
		w.Runs.Add(1)
		return nil
	})
	text, err := UseFuture(ctx, w.F)
	if err != nil {
		return nil, err
	}
	return leaf{Label: text}, nil
}

// reveal shows Child once its state is non-zero.
type reveal struct {
	P     *tracker
	Child Widget
}

func (reveal) Key() any { return nil }

func (r reveal) Build(ctx *BuildContext) (Widget, error) {
	v, set := UseState(ctx, 0)
	r.P.record(v, set)
	if v == 0 {
		return leaf{Label: "hidden"}, nil
	}
	return r.Child, nil
}

func TestHooks_AsyncEffectFiresWhenBuildSuspends(t *testing.T) {
	h := newHarness(t, Options{})
	var wakes wakeLog
	h.tree.SetWakeHandler(wakes.handle)
	f := NewFuture[string]()
	var runs atomic.Int32
	p := &tracker{}
	h.mount(reveal{P: p, Child: Suspense{
		Child:    eagerLoader{F: f, Runs: &runs},
		Fallback: leaf{Label: "loading"},
	}})
	_, set := p.state()

	a := h.async(lane.Async(0), nil, func(b JobBuilder) { set.Set(b, 1) })
	for _, e := range a.Entries() {
		require.NoError(t, h.tree.BuildEntry(context.Background(), a, e))
	}
	require.Zero(t, runs.Load(), "nothing fires before commit")
	require.True(t, h.tree.CommitAsync(a))
	require.EqualValues(t, 1, runs.Load())
	require.Equal(t, "loading", labelOf(t, h.pipeline.Root()))

	f.Resolve("ready")
	h.resume(wakes.all()[0])
	require.Equal(t, "ready", labelOf(t, h.pipeline.Root()))
	require.EqualValues(t, 1, runs.Load(), "deps unchanged on resume")
}

func TestHooks_AsyncDepsChangeFiresWhenBuildSuspends(t *testing.T) {
	h := newHarness(t, Options{})
	var wakes wakeLog
	h.tree.SetWakeHandler(wakes.handle)
	var log []string
	first := NewFuture[string]()
	first.Resolve("a")
	h.mount(Suspense{Child: depLoader{F: first, Dep: 1, Log: &log}, Fallback: leaf{Label: "loading"}})
	require.Equal(t, []string{"run 1"}, log)

	pending := NewFuture[string]()
	j := h.job(true)
	h.tree.SetRoot(j, Suspense{Child: depLoader{F: pending, Dep: 2, Log: &log}, Fallback: leaf{Label: "loading"}})
	h.tree.MarkRoots(lane.Async(0), j.roots)
	a := h.tree.BeginAsync(Run{Lane: lane.Async(0), Jobs: []lane.JobID{j.id}, Priority: lane.JobPriority(j.id, time.Now())}, nil)
	for _, e := range a.Entries() {
		require.NoError(t, h.tree.BuildEntry(context.Background(), a, e))
	}
	require.True(t, h.tree.CommitAsync(a))
	require.Equal(t, []string{"run 1", "cleanup 1", "run 2"}, log)

	pending.Resolve("b")
	h.resume(wakes.all()[0])
	require.Equal(t, []string{"run 1", "cleanup 1", "run 2"}, log)
}

// depLoader runs an effect keyed on Dep and then waits on F.
type depLoader struct {
	F   *Future[string]
	Dep int
	Log *[]string
}

func (depLoader) Key() any { return nil }

func (w depLoader) Build(ctx *BuildContext) (Widget, error) {
	UseEffect(ctx, func() func() {
		*w.Log = append(*w.Log, fmt.Sprintf("run %d", w.Dep))
		return func() { *w.Log = append(*w.Log, fmt.Sprintf("cleanup %d", w.Dep)) }
	}, w.Dep)
	text, err := UseFuture(ctx, w.F)
	if err != nil {
		return nil, err
	}
	return leaf{Label: text}, nil
}

type orphanConsumer struct{}

func (orphanConsumer) Key() any { return nil }

func (orphanConsumer) Build(ctx *BuildContext) (Widget, error) {
	UseConsumer[theme](ctx)
	return leaf{}, nil
}

func TestHooks_ConsumerWithoutProviderIsFatal(t *testing.T) {
	h := newHarness(t, Options{})

	r := catch(func() { h.mount(orphanConsumer{}) })

	missing, ok := r.(*errors.ProviderMissingError)
	require.True(t, ok, "got %T: %v", r, r)
	require.Equal(t, "core.theme", missing.Type)
}

func TestHooks_SetterOnUnmountedElementIsDropped(t *testing.T) {
	h := newHarness(t, Options{})
	p := &tracker{}
	h.mount(counter{P: p})
	_, set := p.state()
	h.mount(leaf{})

	j := h.job(false)
	set.Set(j, 9)
	require.Empty(t, j.roots)
}
