package core

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/weave/pkg/lane"
)

func TestContextNode_MarkRootPropagatesUp(t *testing.T) {
	root := newContextNode(nil)
	mid := newContextNode(root)
	leafCtx := newContextNode(mid)
	pos := lane.Async(3)

	leafCtx.MarkRoot(pos)

	require.True(t, leafCtx.NeedsRebuild(pos))
	require.False(t, leafCtx.DescendantLanes.Contains(pos))
	require.True(t, mid.DescendantLanes.Contains(pos))
	require.True(t, root.DescendantLanes.Contains(pos))
	require.False(t, root.NeedsRebuild(pos))
	require.False(t, root.HasWork(lane.Sync))

	leafCtx.detached.Store(true)
	leafCtx.MarkRoot(lane.Sync)
	require.False(t, leafCtx.HasWork(lane.Sync), "detached contexts are never marked")
}

func TestContextNode_PendingUpdatesOrder(t *testing.T) {
	n := newContextNode(nil)
	asyncA := lane.NewJobID(1, true, 1)
	syncJob := lane.NewJobID(1, false, 2)
	asyncB := lane.NewJobID(1, true, 3)
	other := lane.NewJobID(1, true, 4)
	appendOp := func(s string) hookUpdate {
		return hookUpdate{slot: 0, apply: func(old any) any { return old.(string) + s }}
	}
	n.pushUpdate(asyncB, appendOp("b"))
	n.pushUpdate(asyncA, appendOp("a"))
	n.pushUpdate(syncJob, appendOp("s"))
	n.pushUpdate(other, appendOp("x"))

	jobs := map[lane.JobID]struct{}{asyncA: {}, syncJob: {}, asyncB: {}}
	c := newHookCursor(modeRebuild, []hookSlot{{kind: hookState, value: ""}}, "w")
	c.applyUpdates(n.pendingUpdates(jobs))
	require.Equal(t, "sab", c.slots[0].value)

	n.consumeUpdates(jobs)
	require.Equal(t, 1, n.MailboxLen())
}

var themeType = reflect.TypeFor[theme]()

func TestContextNode_ProvidersAreInherited(t *testing.T) {
	root := newContextNode(nil)
	p := newContextNode(root)
	p.provide(themeType)
	child := newContextNode(p)

	require.Same(t, p, child.provider(themeType))
	require.Nil(t, root.provider(themeType))
}
