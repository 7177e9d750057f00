package node

import (
	"fmt"

	"github.com/oscillon/desync/phase"
)

// desyncTimer runs DESYNC's broadcast cycle: broadcast, toggle fired
// (MySlot) true, re-arm at INTERVAL plus jitter. If the previous slot was
// still open when this broadcast fires, its deficit is logged right after
// the broadcast record, measured against the previous broadcast time.
func (p *Population) desyncTimer(n *Node) error {
	wasOpen := n.MySlot
	lastBroadcast := n.LatestBroadcast

	p.broadcast(n, 0)
	if wasOpen {
		p.recordDeficit(n, p.now(), lastBroadcast)
	}

	now := p.now()
	next := now + phase.Interval + n.jitter()
	n.NextBroadcast = next
	p.Queue.AddTask(timerPayload(n), next)
	return nil
}

// desyncRecv implements DESYNC's receive policy. prev is recomputed only on
// receives while fired (MySlot) is false (see DESIGN.md for the rationale
// behind this choice over recomputing on every receive).
func (p *Population) desyncRecv(n *Node, src int) error {
	now := p.now()
	n.recordNeighbor(now, src)

	if n.MySlot {
		// First receive since the last broadcast: close the slot (logging
		// its deficit) before computing the adjustment toward the midpoint
		// of predecessor and successor.
		next := now - n.LatestBroadcast
		p.recordDeficit(n, now, n.LatestBroadcast)
		n.MySlot = false

		var prev int64
		if n.HasPrev {
			prev = n.Prev
		} else {
			prev = phase.Interval - next
		}

		adjustment := int64(float64(n.Cfg.Alpha) * float64(next-prev) / 200)
		newFireTime := n.NextBroadcast + adjustment + n.jitter()
		p.Queue.AddTask(timerPayload(n), newFireTime)
		n.NextBroadcast = newFireTime
		n.append(now, KindAdjust, fmt.Sprintf("%d", adjustment))

		n.HasPrev = false
	} else {
		// Subsequent receive before our own next broadcast: track the
		// distance to our most recent predecessor.
		senderPhase := now % phase.Interval
		ownOffset := n.NextBroadcast % phase.Interval
		n.Prev = phase.Diff(ownOffset, senderPhase)
		n.HasPrev = true
	}

	return nil
}
