package node

import (
	"fmt"
	"sort"

	"github.com/oscillon/desync/phase"
)

// sleepWellTimer implements "Timer callback": broadcast, run
// adjust(), re-arm at now + the returned interval + jitter. If the previous
// slot was still open when this broadcast fires, its deficit is logged right
// after the broadcast record, measured against the previous broadcast time.
func (p *Population) sleepWellTimer(n *Node) error {
	wasOpen := n.MySlot
	lastBroadcast := n.LatestBroadcast

	p.broadcast(n, 0)
	if wasOpen {
		p.recordDeficit(n, p.now(), lastBroadcast)
	}

	interval := p.sleepWellAdjust(n)
	next := p.now() + interval + n.jitter()
	p.Queue.AddTask(timerPayload(n), next)
	n.NextBroadcast = next
	return nil
}

// sleepWellRecv implements "Receive callback": record the neighbor's
// phase, then close the slot (logging its deficit) if one is open.
func (p *Population) sleepWellRecv(n *Node, src int) error {
	now := p.now()
	n.recordNeighbor(now, src)

	if n.MySlot {
		p.recordDeficit(n, now, n.LatestBroadcast)
		n.MySlot = false
	}
	return nil
}

// sleepWellAdjust implements adjust() policy.
func (p *Population) sleepWellAdjust(n *Node) int64 {
	now := p.now() % phase.Interval
	target := phase.Interval / int64(len(n.NeighborMap)+1)

	if len(n.NeighborMap) == 0 {
		return phase.Interval
	}

	myShare := minShare(n.NeighborMap, now)

	tolerance := int64(DeficitTolerance * float64(phase.Interval))
	if myShare-target > -tolerance {
		return phase.Interval
	}

	n.append(p.now(), KindNmap, formatNeighborMap(n))
	n.append(p.now(), KindShort, fmt.Sprintf("%.6f", float64(target-myShare)/float64(phase.Interval)))

	var newOffset int64
	n.DeficitCount++
	if n.DeficitCount >= n.Cfg.DeficitResetThreshold {
		newOffset = n.Rng.Int64N(phase.Interval)
		n.append(p.now(), KindReset, "")
		n.DeficitCount = 0
	} else {
		start, end, _ := largestGap(neighborPhases(n))
		half := phase.Diff(end, start) / 2
		if half > target {
			newOffset = phase.Sum(start, half)
		} else {
			newOffset = phase.Diff(end, target)
		}
	}

	interval := phase.Diff(newOffset, now)
	if interval <= phase.Interval/2 {
		interval += phase.Interval
	}
	n.append(p.now(), KindAdjust, fmt.Sprintf("%d", interval))
	return interval
}

// neighborPhases returns the sorted phases currently recorded in n's
// neighbor map.
func neighborPhases(n *Node) []int64 {
	phases := make([]int64, 0, len(n.NeighborMap))
	for _, ph := range n.NeighborMap {
		phases = append(phases, ph)
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i] < phases[j] })
	return phases
}

// largestGap finds the largest circular gap among sorted phases, returning
// the (start, end) endpoints of that gap (the arc runs forward from start to
// end) and its size.
func largestGap(phases []int64) (start, end, gap int64) {
	n := len(phases)
	if n == 1 {
		return phases[0], phases[0], phase.Interval
	}

	maxGap := int64(-1)
	for i := 0; i < n; i++ {
		a := phases[i]
		b := phases[(i+1)%n]
		g := phase.Diff(b, a)
		if g > maxGap {
			maxGap, start, end = g, a, b
		}
	}
	return start, end, maxGap
}
