// Package node implements the per-node protocol state machines for the four
// desynchronization algorithms (SleepWell, Solo, Solo2/Fidget, DESYNC). The
// four variants share a common {start, recv, timer} contract; rather than
// dynamic dispatch, a single closed tagged-union Node struct carries every
// algorithm's fields and Population's dispatcher switches on Kind, matching
// the eventloop package's preference for a concrete dispatch table over
// interface indirection on hot paths.
package node

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/oscillon/desync/desyncerrors"
	"github.com/oscillon/desync/phase"
	"github.com/oscillon/desync/scheduler"
)

// Kind selects which desynchronization algorithm a Node runs.
type Kind uint8

const (
	SleepWell Kind = iota
	Solo
	Solo2
	Desync
)

func (k Kind) String() string {
	switch k {
	case SleepWell:
		return "sleepwell"
	case Solo:
		return "solo"
	case Solo2:
		return "solo2"
	case Desync:
		return "desync"
	default:
		return "unknown"
	}
}

// Config bundles the algorithm descriptor and tunable parameters, passed
// into node construction rather than held as process-wide state: batch
// workers may run multiple algorithms with different alpha values
// interleaved, so alpha/jitter cannot be globals.
type Config struct {
	Kind Kind

	// Alpha weights the corrective pull toward the target, for Solo, Solo2,
	// and DESYNC. Must be in (0, 100); ignored for SleepWell.
	Alpha int

	// Jitter is the maximum per-timer random perturbation added on each
	// re-arm. Defaults to 10.
	Jitter int64

	// DeficitResetThreshold is SleepWell's deficit_count trigger for a
	// random full reset. Defaults to 100.
	DeficitResetThreshold int
}

// DeficitTolerance is the empirical "close enough" tolerance used when
// deciding whether a node has enough share, named rather than inlined.
const DeficitTolerance = 1e-3

// Validate fills in defaults and checks Alpha's range where it applies.
func (c *Config) Validate() error {
	if c.Jitter == 0 {
		c.Jitter = 10
	}
	if c.DeficitResetThreshold == 0 {
		c.DeficitResetThreshold = 100
	}
	if c.Kind != SleepWell {
		if c.Alpha <= 0 || c.Alpha >= 100 {
			return desyncerrors.NewUsageError("config_validate", "alpha must be in (0, 100)", nil)
		}
	}
	return nil
}

// Node holds all state for one oscillator, across every algorithm kind.
// Instances are owned exclusively by a Population arena; Links hold indices
// into that arena rather than pointers, avoiding cyclic ownership between
// neighbors.
type Node struct {
	ID    int
	Kind  Kind
	Cfg   Config
	Links []int // neighbor indices into the owning Population

	NeighborMap map[int]int64 // neighbor node id -> last-observed phase

	On bool

	HasLatestBroadcast bool
	LatestBroadcast    int64

	NextBroadcast int64 // first-class reschedulable field (Solo/Solo2/DESYNC)

	MySlot bool // "fired": a broadcast occurred, slot not yet closed

	// SleepWell-only.
	DeficitCount int

	// DESYNC-only.
	HasPrev bool
	Prev    int64

	Rng *rand.Rand

	Log []Record
}

// NewNode constructs a Node with an isolated PRNG stream seeded
// deterministically from (baseSeed, id), so parallel batch workers never
// share a stream.
func NewNode(id int, cfg Config, baseSeed int64) *Node {
	s1 := uint64(baseSeed)*0x9E3779B97F4A7C15 + uint64(id) + 1
	s2 := uint64(id)*0xBF58476D1CE4E5B9 + uint64(baseSeed) + 1
	return &Node{
		ID:          id,
		Kind:        cfg.Kind,
		Cfg:         cfg,
		NeighborMap: make(map[int]int64),
		Rng:         rand.New(rand.NewPCG(s1, s2)),
	}
}

// append records kind/payload at time t, in this node's local log.
func (n *Node) append(t int64, kind RecordKind, payload string) {
	n.Log = append(n.Log, Record{Time: t, NodeID: n.ID, Kind: kind, Payload: payload})
}

// Init records the mandatory first log entry for a node, at time 0,
// independent of when the node's own Start event fires.
func (n *Node) Init() {
	n.append(0, KindInit, "")
}

// jitter draws a uniform perturbation in [-Jitter, +Jitter].
func (n *Node) jitter() int64 {
	if n.Cfg.Jitter <= 0 {
		return 0
	}
	return n.Rng.Int64N(2*n.Cfg.Jitter+1) - n.Cfg.Jitter
}

// Population is the driver-owned arena of every node in one simulation
// instance, plus the event queue driving them.
type Population struct {
	Nodes []*Node
	Queue *scheduler.Queue
}

// Dispatch invokes the callback identified by payload against its node,
// routing Start/Timer/Recv to the algorithm-specific handler for that
// node's Kind.
func (p *Population) Dispatch(payload scheduler.Payload) error {
	if payload.NodeID < 0 || payload.NodeID >= len(p.Nodes) {
		return desyncerrors.NewInvariantViolation("dispatch", "payload references unknown node", nil).
			WithContext("node_id", payload.NodeID)
	}
	n := p.Nodes[payload.NodeID]

	switch payload.Kind {
	case scheduler.Start:
		return p.handleStart(n)
	case scheduler.Timer:
		return p.handleTimer(n)
	case scheduler.Recv:
		return p.handleRecv(n, payload.Source, payload.Extra)
	default:
		return desyncerrors.NewInvariantViolation("dispatch", "unknown callback kind", nil)
	}
}

// now is shorthand for the queue's current time.
func (p *Population) now() int64 {
	return p.Queue.CurrentTime()
}

// broadcast delivers recv_callback to every link of n at the current time.
// Deliveries are scheduled during this callback, so every delivery
// necessarily carries a larger sequence number than any event already
// popped, including n's own broadcast event.
func (p *Population) broadcast(n *Node, degree int) {
	now := p.now()
	n.HasLatestBroadcast = true
	n.LatestBroadcast = now
	n.MySlot = true
	n.append(now, KindBroadcast, "")

	for _, linkID := range n.Links {
		p.Queue.AddTask(scheduler.Payload{
			NodeID: linkID,
			Kind:   scheduler.Recv,
			Source: n.ID,
			Extra:  degree,
		}, now)
	}
}

// handleStart activates a node and runs its first timer tick.
func (p *Population) handleStart(n *Node) error {
	n.On = true
	n.NextBroadcast = p.now()
	return p.handleTimer(n)
}

func (p *Population) handleTimer(n *Node) error {
	switch n.Kind {
	case SleepWell:
		return p.sleepWellTimer(n)
	case Solo, Solo2:
		return p.soloTimer(n)
	case Desync:
		return p.desyncTimer(n)
	default:
		return desyncerrors.NewInvariantViolation("handle_timer", "unknown node kind", nil)
	}
}

func (p *Population) handleRecv(n *Node, src, extra int) error {
	if !n.On {
		// "All beacons sent while on = false are ignored at the receiver."
		return nil
	}
	switch n.Kind {
	case SleepWell:
		return p.sleepWellRecv(n, src)
	case Solo:
		return p.soloRecv(n, src, extra)
	case Solo2:
		return p.solo2Recv(n, src, extra)
	case Desync:
		return p.desyncRecv(n, src)
	default:
		return desyncerrors.NewInvariantViolation("handle_recv", "unknown node kind", nil)
	}
}

// recordNeighbor stores the receive-time phase of src. Slot-closing is
// handled separately by recordDeficit, since its exact trigger point
// (immediately, or deferred to the next broadcast) varies by algorithm.
func (n *Node) recordNeighbor(now int64, src int) {
	n.NeighborMap[src] = now % phase.Interval
}

// recordDeficit closes an open broadcast slot, logging the fractional
// shortfall between the share this node was owed (target, given its current
// neighbor count) and the share it actually held (the time elapsed since
// lastBroadcast). It is the sole source of "deficit" records for SleepWell
// and DESYNC, mirroring close_slot()'s role there; Solo and Solo2 log their
// deficit records in soloTimer instead.
func (p *Population) recordDeficit(n *Node, now, lastBroadcast int64) {
	target := phase.Interval / int64(len(n.NeighborMap)+1)
	myShare := now - lastBroadcast
	deficit := float64(target-myShare) / float64(target)
	n.append(now, KindDeficit, fmt.Sprintf("%.6f", deficit))
}

// timerPayload is the scheduler payload identifying n's periodic re-arm
// timer.
func timerPayload(n *Node) scheduler.Payload {
	return scheduler.Payload{NodeID: n.ID, Kind: scheduler.Timer}
}

// minShare returns the minimum forward circular distance from now to any
// phase recorded in neighborMap. Callers must ensure neighborMap is
// non-empty.
func minShare(neighborMap map[int]int64, now int64) int64 {
	share := int64(-1)
	for _, ph := range neighborMap {
		d := phase.Diff(ph, now)
		if share == -1 || d < share {
			share = d
		}
	}
	return share
}

// formatNeighborMap renders a deterministic snapshot of n's neighbor map for
// the "nmap" log kind, sorted by neighbor id.
func formatNeighborMap(n *Node) string {
	ids := make([]int, 0, len(n.NeighborMap))
	for id := range n.NeighborMap {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%d:%d", id, n.NeighborMap[id])
	}
	return b.String()
}
