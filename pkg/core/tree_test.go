package core

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/weave/pkg/canvas/recorder"
	"github.com/go-drift/weave/pkg/errors"
	"github.com/go-drift/weave/pkg/lane"
	"github.com/go-drift/weave/pkg/protocol/box"
	"github.com/go-drift/weave/pkg/render"
)

func TestTree_InflateBuildsRenderTree(t *testing.T) {
	h := newHarness(t, Options{})
	change := h.mount(stack{Kids: []Widget{leaf{Label: "a"}, leaf{Label: "b"}}})

	require.Equal(t, NewRenderObject, change.Kind)
	root := h.pipeline.Root()
	require.NotNil(t, root)
	require.Same(t, change.Object, root)
	require.Len(t, root.Children(), 2)
	require.Equal(t, "a", labelOf(t, root.Children()[0]))
	require.Equal(t, "b", labelOf(t, root.Children()[1]))
	require.EqualValues(t, 3, h.tree.Stats().RenderObjects)
}

func TestTree_EqualWidgetsAreIdempotent(t *testing.T) {
	h := newHarness(t, Options{})
	app := stack{Kids: []Widget{leaf{Label: "a"}, stack{Kids: []Widget{leaf{Label: "b"}}}}}
	h.mount(app)
	before := h.tree.Stats()

	again := stack{Kids: []Widget{leaf{Label: "a"}, stack{Kids: []Widget{leaf{Label: "b"}}}}}
	change := h.mount(again)

	require.Equal(t, NoUpdate, change.Kind)
	after := h.tree.Stats()
	require.Equal(t, before.RenderObjects, after.RenderObjects)
	require.Equal(t, before.Inflated, after.Inflated)
	require.False(t, h.tree.RootContext().HasWork(lane.Sync))
}

func TestTree_ReplacingTypeUnmountsAndDetaches(t *testing.T) {
	h := newHarness(t, Options{})
	h.mount(leaf{Label: "a"})
	old := h.app()
	oldRO := old.OwnRenderObject()

	change := h.mount(stack{})
	require.Equal(t, NewRenderObject, change.Kind)
	require.True(t, old.Unmounted())
	require.True(t, old.Context().Detached())
	require.True(t, oldRO.IsDetached())
	require.Same(t, h.app().OwnRenderObject(), h.pipeline.Root())
}

func TestTree_StateUpdateRebuildsInPlace(t *testing.T) {
	h := newHarness(t, Options{})
	p := &tracker{}
	h.mount(counter{P: p})
	leafRO := h.pipeline.Root()
	require.Equal(t, "0", labelOf(t, leafRO))
	h.pipeline.FlushLayout(box.Loose(box.Size{Width: 100, Height: 100}))
	h.pipeline.FlushPaint(recorder.New())
	require.False(t, leafRO.NeedsPaint())

	_, set := p.state()
	change := h.sync(func(b JobBuilder) { set.Set(b, 4) })

	require.Equal(t, NoUpdate, change.Kind)
	require.Same(t, leafRO, h.pipeline.Root())
	require.Equal(t, "4", labelOf(t, leafRO))
	require.EqualValues(t, 2, p.builds.Load())
	require.True(t, leafRO.NeedsPaint())
	require.Zero(t, h.app().Context().MailboxLen())
}

func TestTree_UpdatesOfOneJobApplyInOrder(t *testing.T) {
	h := newHarness(t, Options{})
	p := &tracker{}
	h.mount(counter{P: p})
	_, set := p.state()

	h.sync(func(b JobBuilder) {
		set.Set(b, 2)
		set.Update(b, func(v int) int { return v * 10 })
		set.Update(b, func(v int) int { return v + 1 })
	})
	v, _ := p.state()
	require.Equal(t, 21, v)
}

func TestTree_KeyedChildrenKeepIdentityAcrossReorder(t *testing.T) {
	h := newHarness(t, Options{})
	pa, pb := &tracker{}, &tracker{}
	h.mount(stack{Kids: []Widget{counter{P: pa, K: "a"}, counter{P: pb, K: "b"}}})

	_, setA := pa.state()
	h.sync(func(b JobBuilder) { setA.Set(b, 5) })
	elems := h.app().Children()
	objects := h.pipeline.Root().Children()
	created := h.tree.Stats().RenderObjects

	h.mount(stack{Kids: []Widget{counter{P: pb, K: "b"}, counter{P: pa, K: "a"}}})

	reordered := h.app().Children()
	require.Same(t, elems[1], reordered[0])
	require.Same(t, elems[0], reordered[1])
	require.Equal(t, []*render.Object{objects[1], objects[0]}, h.pipeline.Root().Children())
	require.Equal(t, created, h.tree.Stats().RenderObjects)
	require.Equal(t, "5", labelOf(t, h.pipeline.Root().Children()[1]))
	require.EqualValues(t, 2, pa.builds.Load())
	require.EqualValues(t, 1, pb.builds.Load())
}

func TestTree_UnhashableKeysMatchByValue(t *testing.T) {
	h := newHarness(t, Options{})
	pa, pb := &tracker{}, &tracker{}
	h.mount(stack{Kids: []Widget{
		counter{P: pa, K: []string{"a"}},
		counter{P: pb, K: []string{"b"}},
		leaf{Label: "x", K: []int{1}},
	}})
	elems := h.app().Children()

	h.mount(stack{Kids: []Widget{
		leaf{Label: "y", K: []int{1}},
		counter{P: pb, K: []string{"b"}},
		counter{P: pa, K: []string{"a"}},
	}})

	next := h.app().Children()
	require.Same(t, elems[2], next[0])
	require.Same(t, elems[1], next[1])
	require.Same(t, elems[0], next[2])
	require.Equal(t, "y", labelOf(t, h.pipeline.Root().Children()[0]))
	require.True(t, CanUpdate(counter{K: []string{"a"}}, counter{K: []string{"a"}}))
	require.False(t, CanUpdate(counter{K: []string{"a"}}, counter{K: []string{"b"}}))
}

func TestTree_UnkeyedChildrenMatchPositionally(t *testing.T) {
	h := newHarness(t, Options{})
	h.mount(stack{Kids: []Widget{leaf{Label: "a"}, leaf{Label: "b"}, leaf{Label: "c"}}})
	elems := h.app().Children()

	h.mount(stack{Kids: []Widget{leaf{Label: "x"}, stack{}}})

	next := h.app().Children()
	require.Len(t, next, 2)
	require.Same(t, elems[0], next[0], "same type at the same position is rebuilt")
	require.NotSame(t, elems[1], next[1])
	require.True(t, elems[1].Unmounted())
	require.True(t, elems[2].Unmounted())
	require.Equal(t, "x", labelOf(t, next[0].OwnRenderObject()))
}

func TestTree_ParallelSyncWalk(t *testing.T) {
	h := newHarness(t, Options{SyncWorkers: 4})
	trackers := make([]*tracker, 16)
	kids := make([]Widget, len(trackers))
	for i := range trackers {
		trackers[i] = &tracker{}
		kids[i] = counter{P: trackers[i], K: i}
	}
	h.mount(stack{Kids: kids})
	require.Len(t, h.pipeline.Root().Children(), 16)

	h.sync(func(b JobBuilder) {
		for i, p := range trackers {
			_, set := p.state()
			set.Set(b, i)
		}
	})
	for i, ro := range h.pipeline.Root().Children() {
		require.Equal(t, strconv.Itoa(i), labelOf(t, ro))
	}
}

type exploding struct{ K any }

func (e exploding) Key() any { return e.K }

func (exploding) Build(*BuildContext) (Widget, error) {
	panic("boom")
}

func TestTree_BuildPanicAbortsPass(t *testing.T) {
	h := newHarness(t, Options{SyncWorkers: 4})
	kids := []Widget{leaf{Label: "a"}, exploding{}, leaf{Label: "b"}, leaf{Label: "c"}}

	r := catch(func() { h.mount(stack{Kids: kids}) })

	be, ok := r.(*errors.BuildError)
	require.True(t, ok, "got %T", r)
	require.Equal(t, "exploding", be.Widget)
	require.Equal(t, "boom", be.Recovered)
}

func TestTree_Dump(t *testing.T) {
	h := newHarness(t, Options{})
	h.mount(stack{Kids: []Widget{counter{P: &tracker{}, K: "c"}}})

	want := "<root> [root hooks=1]\n" +
		"  stack [render]\n" +
		"    counter [component key=c hooks=1]\n" +
		"      leaf [render]\n"
	require.Equal(t, want, h.tree.Dump())
}
