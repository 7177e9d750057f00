package node

import (
	"fmt"

	"github.com/oscillon/desync/phase"
)

// soloTimer is the shared timer callback for Solo and Solo2: close the
// previous slot (emitting a deficit record), broadcast carrying this node's
// degree, then re-arm at INTERVAL ± JITTER.
func (p *Population) soloTimer(n *Node) error {
	now := p.now()

	if n.HasLatestBroadcast && len(n.NeighborMap) > 0 {
		target := phase.Interval / int64(len(n.NeighborMap)+1)
		myShare := minShare(n.NeighborMap, now%phase.Interval)
		deficit := float64(target-myShare) / float64(target)
		n.append(now, KindDeficit, fmt.Sprintf("%.6f", deficit))
	}

	degree := len(n.NeighborMap)
	p.broadcast(n, degree)

	next := now + phase.Interval + n.jitter()
	n.NextBroadcast = next
	p.Queue.AddTask(timerPayload(n), next)
	return nil
}

// soloRecv implements Solo's receive policy: the target share
// is sized by the sender's reported degree.
func (p *Population) soloRecv(n *Node, src, theirDegree int) error {
	return p.soloAdjustOnRecv(n, src, theirDegree, false)
}

// solo2Recv implements Solo2/Fidget's receive policy: the target share is
// sized by this node's own (ego-side) degree rather than the sender's
// reported degree (see DESIGN.md for why this reading was chosen).
func (p *Population) solo2Recv(n *Node, src, theirDegree int) error {
	return p.soloAdjustOnRecv(n, src, theirDegree, true)
}

func (p *Population) soloAdjustOnRecv(n *Node, src, theirDegree int, egoDegree bool) error {
	now := p.now()
	n.recordNeighbor(now, src)

	degree := theirDegree
	if egoDegree {
		degree = len(n.NeighborMap)
	}
	if degree < 1 {
		degree = 1
	}
	targetShare := phase.Interval / int64(degree+1)
	theirShare := n.NextBroadcast - now

	tolerance := int64(DeficitTolerance * float64(phase.Interval))
	if theirShare-targetShare > -tolerance {
		return nil
	}

	targetBC := now + targetShare
	newBC := (n.NextBroadcast*int64(100-n.Cfg.Alpha) + targetBC*int64(n.Cfg.Alpha)) / 100
	delay := newBC - n.NextBroadcast
	if delay > 0 {
		n.NextBroadcast += delay
		n.append(now, KindAdjust, fmt.Sprintf("%d", delay))
		p.Queue.AddTask(timerPayload(n), n.NextBroadcast)
	}
	return nil
}
