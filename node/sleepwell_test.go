package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscillon/desync/phase"
	"github.com/oscillon/desync/scheduler"
)

func TestLargestGapScenario(t *testing.T) {
	phases := []int64{phase.Interval / 10, phase.Interval / 4, phase.Interval / 2}
	start, end, _ := largestGap(phases)
	require.Equal(t, phase.Interval/2, start)
	require.Equal(t, phase.Interval/10, end)
}

func TestSleepWellAdjustAtDeficit(t *testing.T) {
	q := scheduler.New()
	q.AddTask(scheduler.Payload{NodeID: 0, Kind: scheduler.Start}, 3*phase.Interval/10)
	_, err := q.PopTask()
	require.NoError(t, err)

	n := NewNode(0, Config{Kind: SleepWell, DeficitResetThreshold: 100}, 1)
	n.NeighborMap[1] = phase.Interval / 10
	n.NeighborMap[2] = phase.Interval / 4
	n.NeighborMap[3] = phase.Interval / 2

	pop := &Population{Nodes: []*Node{n}, Queue: q}
	interval := pop.sleepWellAdjust(n)
	require.Equal(t, phase.Interval+phase.Interval/2, interval)
}

func TestSleepWellRecvClosesOpenSlot(t *testing.T) {
	q := scheduler.New()
	popAt(t, q, 0, 30_000_000)

	n := NewNode(0, Config{Kind: SleepWell}, 1)
	n.MySlot = true
	n.LatestBroadcast = 0

	pop := &Population{Nodes: []*Node{n}, Queue: q}
	require.NoError(t, pop.sleepWellRecv(n, 7))

	require.False(t, n.MySlot)
	require.Len(t, n.Log, 1)
	require.Equal(t, KindDeficit, n.Log[0].Kind)
	require.Equal(t, "0.400000", n.Log[0].Payload)
}

func TestSleepWellRecvNoDeficitWhenSlotAlreadyClosed(t *testing.T) {
	q := scheduler.New()
	popAt(t, q, 0, 10_000_000)

	n := NewNode(0, Config{Kind: SleepWell}, 1)
	n.MySlot = false

	pop := &Population{Nodes: []*Node{n}, Queue: q}
	require.NoError(t, pop.sleepWellRecv(n, 7))

	require.Empty(t, n.Log)
}

func TestSleepWellTimerClosesStillOpenSlotOnRebroadcast(t *testing.T) {
	q := scheduler.New()
	popAt(t, q, 0, 50_000_000)

	n := NewNode(0, Config{Kind: SleepWell}, 1)
	n.MySlot = true
	n.LatestBroadcast = 0
	// No neighbors: adjust() returns early without logging anything beyond
	// the deficit closing the stale slot.

	pop := &Population{Nodes: []*Node{n}, Queue: q}
	require.NoError(t, pop.sleepWellTimer(n))

	require.Len(t, n.Log, 2)
	require.Equal(t, KindBroadcast, n.Log[0].Kind)
	require.Equal(t, KindDeficit, n.Log[1].Kind)
	require.Equal(t, "0.500000", n.Log[1].Payload)
}

func TestSleepWellNoJumpWhenShareSufficient(t *testing.T) {
	q := scheduler.New()
	q.AddTask(scheduler.Payload{NodeID: 0, Kind: scheduler.Start}, 0)
	_, err := q.PopTask()
	require.NoError(t, err)

	n := NewNode(0, Config{Kind: SleepWell}, 1)
	// A single neighbor directly opposite now=0 gives a huge share.
	n.NeighborMap[1] = phase.Interval / 2

	pop := &Population{Nodes: []*Node{n}, Queue: q}
	interval := pop.sleepWellAdjust(n)
	require.Equal(t, phase.Interval, interval)
}
