package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscillon/desync/phase"
	"github.com/oscillon/desync/scheduler"
)

func TestDesyncRecvClosesSlotAndAdjusts(t *testing.T) {
	q := scheduler.New()
	popAt(t, q, 0, 30_000_000)

	n := NewNode(0, Config{Kind: Desync, Alpha: 50}, 1)
	n.MySlot = true
	n.LatestBroadcast = 0
	n.NextBroadcast = phase.Interval
	n.HasPrev = false

	pop := &Population{Nodes: []*Node{n}, Queue: q}
	require.NoError(t, pop.desyncRecv(n, 7))

	require.False(t, n.MySlot)
	require.False(t, n.HasPrev)
	require.Equal(t, int64(90_000_000), n.NextBroadcast)

	require.Len(t, n.Log, 2)
	require.Equal(t, KindDeficit, n.Log[0].Kind)
	require.Equal(t, "0.400000", n.Log[0].Payload)
	require.Equal(t, KindAdjust, n.Log[1].Kind)
	require.Equal(t, "-10000000", n.Log[1].Payload)
}

func TestDesyncRecvTracksPrevBeforeOwnBroadcast(t *testing.T) {
	q := scheduler.New()
	popAt(t, q, 0, 20_000_000)

	n := NewNode(0, Config{Kind: Desync, Alpha: 50}, 1)
	n.MySlot = false
	n.NextBroadcast = 50_000_000

	pop := &Population{Nodes: []*Node{n}, Queue: q}
	require.NoError(t, pop.desyncRecv(n, 7))

	require.True(t, n.HasPrev)
	require.Equal(t, int64(30_000_000), n.Prev)
	require.Empty(t, n.Log) // this branch never emits an adjust record
}

func TestDesyncTimerReArmsAtFixedInterval(t *testing.T) {
	q := scheduler.New()
	popAt(t, q, 0, 5_000_000)

	n := NewNode(0, Config{Kind: Desync, Alpha: 50}, 1)
	pop := &Population{Nodes: []*Node{n}, Queue: q}
	require.NoError(t, pop.desyncTimer(n))

	require.True(t, n.MySlot)
	require.Equal(t, int64(5_000_000+phase.Interval), n.NextBroadcast)

	payload, err := q.PopTask()
	require.NoError(t, err)
	require.Equal(t, scheduler.Timer, payload.Kind)
	require.Equal(t, int64(5_000_000+phase.Interval), q.CurrentTime())
}
