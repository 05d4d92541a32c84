package core

import (
	"fmt"
	"reflect"
	"slices"
	"weak"

	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/lane"
)

type hookKind uint8

const (
	hookState hookKind = iota + 1
	hookReducer
	hookMemo
	hookEffect
	hookRef
	hookConsumer
	hookFuture
)

func (k hookKind) String() string {
	switch k {
	case hookState:
		return "state"
	case hookReducer:
		return "reducer"
	case hookMemo:
		return "memo"
	case hookEffect:
		return "effect"
	case hookRef:
		return "ref"
	case hookConsumer:
		return "consumer"
	case hookFuture:
		return "future"
	default:
		return "unknown"
	}
}

// hookSlot is one unit of persistent state. Only the fields relevant to
// kind are used.
type hookSlot struct {
	kind    hookKind
	value   any
	deps    []any
	cleanup func()
}

// hookMode is the state of the hook machine for one build.
type hookMode uint8

const (
	// modeInflate creates a slot on every call.
	modeInflate hookMode = iota
	// modeRebuild requires every call to match an existing slot.
	modeRebuild
	// modePollInflate matches existing slots, then creates new ones.
	modePollInflate
)

type pendingEffect struct {
	slot int
	run  func() func()
}

// hookCursor walks a cloned slot list during one build.
type hookCursor struct {
	mode    hookMode
	slots   []hookSlot
	index   int
	widget  string
	effects []pendingEffect
}

func newHookCursor(mode hookMode, slots []hookSlot, widget string) *hookCursor {
	return &hookCursor{mode: mode, slots: slices.Clone(slots), widget: widget}
}

// use returns the slot for the next call, creating it with init if the
// mode allows.
func (c *hookCursor) use(kind hookKind, init func() hookSlot) (*hookSlot, bool) {
	i := c.index
	c.index++
	if i < len(c.slots) {
		if c.slots[i].kind != kind {
			panic(&errors.HookMismatchError{
				Widget:   c.widget,
				Index:    i,
				Expected: c.slots[i].kind.String(),
				Got:      kind.String(),
			})
		}
		return &c.slots[i], false
	}
	if c.mode == modeRebuild {
		panic(&errors.HookOverflowError{Widget: c.widget, Slots: len(c.slots)})
	}
	s := init()
	s.kind = kind
	c.slots = append(c.slots, s)
	return &c.slots[len(c.slots)-1], true
}

// finish validates the call count once the build returned normally.
func (c *hookCursor) finish() {
	if c.mode == modeRebuild && c.index != len(c.slots) {
		panic(&errors.HookUnderflowError{Widget: c.widget, Slots: len(c.slots), Called: c.index})
	}
}

func (c *hookCursor) applyUpdates(updates []hookUpdate) {
	for _, u := range updates {
		if u.slot < 0 || u.slot >= len(c.slots) {
			continue
		}
		c.slots[u.slot].value = u.apply(c.slots[u.slot].value)
	}
}

// JobBuilder is the scheduler's view of the job being described. Hook
// setters record their update under the job's id and register the element
// as a root of the job.
type JobBuilder interface {
	ID() lane.JobID
	AddRoot(ctx *ElementContextNode)
}

// Setter writes a state slot from outside a build.
type Setter[T any] struct {
	ctx  weak.Pointer[ElementContextNode]
	slot int
}

// Set replaces the value in job b.
func (s Setter[T]) Set(b JobBuilder, v T) {
	s.Update(b, func(T) T { return v })
}

// Update transforms the value in job b. Updates of one job are applied in
// call order; sync jobs apply before async ones.
func (s Setter[T]) Update(b JobBuilder, fn func(T) T) {
	ctx := s.ctx.Value()
	if ctx == nil || ctx.Detached() {
		return
	}
	ctx.pushUpdate(b.ID(), hookUpdate{slot: s.slot, apply: func(old any) any {
		v, _ := old.(T)
		return fn(v)
	}})
	b.AddRoot(ctx)
}

// Dispatch sends actions to a reducer slot.
type Dispatch[A any] struct {
	ctx     weak.Pointer[ElementContextNode]
	slot    int
	reducer func(state any, action A) any
}

// Send applies action in job b.
func (d Dispatch[A]) Send(b JobBuilder, action A) {
	ctx := d.ctx.Value()
	if ctx == nil || ctx.Detached() {
		return
	}
	reducer := d.reducer
	ctx.pushUpdate(b.ID(), hookUpdate{slot: d.slot, apply: func(old any) any {
		return reducer(old, action)
	}})
	b.AddRoot(ctx)
}

// UseState returns the current value of a state slot and its setter.
func UseState[T any](ctx *BuildContext, initial T) (T, Setter[T]) {
	c := ctx.cursor()
	s, _ := c.use(hookState, func() hookSlot { return hookSlot{value: initial} })
	v, _ := s.value.(T)
	return v, Setter[T]{ctx: weak.Make(ctx.node.ctx), slot: c.index - 1}
}

// UseReducer returns the current reducer state and a dispatcher.
func UseReducer[S, A any](ctx *BuildContext, reducer func(S, A) S, initial S) (S, Dispatch[A]) {
	c := ctx.cursor()
	s, _ := c.use(hookReducer, func() hookSlot { return hookSlot{value: initial} })
	v, _ := s.value.(S)
	return v, Dispatch[A]{
		ctx:  weak.Make(ctx.node.ctx),
		slot: c.index - 1,
		reducer: func(state any, action A) any {
			st, _ := state.(S)
			return reducer(st, action)
		},
	}
}

// UseMemo recomputes compute only when deps change.
func UseMemo[T any](ctx *BuildContext, compute func() T, deps ...any) T {
	c := ctx.cursor()
	s, created := c.use(hookMemo, func() hookSlot { return hookSlot{value: compute(), deps: deps} })
	if !created && !depsEqual(s.deps, deps) {
		s.value = compute()
		s.deps = deps
	}
	v, _ := s.value.(T)
	return v
}

// Ref is a mutable box whose identity survives rebuilds.
type Ref[T any] struct {
	Current T
}

// UseRef returns the same Ref on every rebuild.
func UseRef[T any](ctx *BuildContext, initial T) *Ref[T] {
	c := ctx.cursor()
	s, _ := c.use(hookRef, func() hookSlot { return hookSlot{value: &Ref[T]{Current: initial}} })
	return s.value.(*Ref[T])
}

// UseEffect runs effect on the first build and whenever deps change,
// running the previous cleanup first. In a sync pass the effect fires
// during the build; in an async pass it fires when the attempt commits,
// including a build that suspends after declaring it.
// Cleanups also run on unmount.
func UseEffect(ctx *BuildContext, effect func() func(), deps ...any) {
	c := ctx.cursor()
	s, created := c.use(hookEffect, func() hookSlot { return hookSlot{deps: deps} })
	if !created && depsEqual(s.deps, deps) {
		return
	}
	s.deps = deps
	if ctx.pass.async {
		c.effects = append(c.effects, pendingEffect{slot: c.index - 1, run: effect})
		return
	}
	if s.cleanup != nil {
		s.cleanup()
	}
	s.cleanup = effect()
}

// UseConsumer reads the value of the nearest ancestor Provider[T] and
// subscribes the element to its changes.
func UseConsumer[T any](ctx *BuildContext) T {
	t := reflect.TypeFor[T]()
	c := ctx.cursor()
	s, _ := c.use(hookConsumer, func() hookSlot { return hookSlot{value: t} })
	if s.value.(reflect.Type) != t {
		panic(&errors.HookMismatchError{
			Widget:   c.widget,
			Index:    c.index - 1,
			Expected: fmt.Sprintf("consumer of %v", s.value),
			Got:      fmt.Sprintf("consumer of %v", t),
		})
	}
	provider := ctx.node.ctx.provider(t)
	if provider == nil {
		panic(&errors.ProviderMissingError{Widget: c.widget, Type: t.String()})
	}
	provider.addReader(ctx.node.ctx)
	v := ctx.providedValue(provider)
	typed, ok := v.(T)
	if !ok && v != nil {
		panic(&errors.ProviderTypeError{Expected: t.String(), Got: reflect.TypeOf(v).String()})
	}
	return typed
}

// UseFuture returns the value of f once resolved. While pending it returns
// a SuspendedError whose waker fires when f resolves; the build should
// return that error.
func UseFuture[T any](ctx *BuildContext, f *Future[T]) (T, error) {
	c := ctx.cursor()
	s, _ := c.use(hookFuture, func() hookSlot { return hookSlot{value: f} })
	if s.value != any(f) {
		// a different future at the same position supersedes the old one
		s.value = f
	}
	if v, ok, err := f.Result(); ok {
		return v, err
	}
	var zero T
	w := ctx.tree.newWaker(ctx.node.ctx)
	f.subscribe(w)
	return zero, &errors.SuspendedError{Widget: c.widget, Waker: w}
}

func depsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
