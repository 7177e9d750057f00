// Package scheduler implements the simulator's event queue: a priority queue
// of scheduled tasks keyed by firing time, with a per-payload index
// supporting idempotent cancellation.
//
// The heap mechanics are grounded on the timer heap in the eventloop
// package (container/heap, ordered by fire time), generalized here with a
// payload-equality index so re-scheduling a timer for the same node
// implicitly cancels the one already in flight.
package scheduler

import (
	"container/heap"

	"github.com/oscillon/desync/desyncerrors"
)

// CallbackKind identifies which node callback a Payload should invoke.
type CallbackKind uint8

const (
	// Start fires a node's initial activation, scheduled at its random
	// offset.
	Start CallbackKind = iota
	// Timer fires a node's periodic re-broadcast/adjustment callback.
	Timer
	// Recv delivers a beacon from Source to the node the task is keyed on.
	Recv
)

func (k CallbackKind) String() string {
	switch k {
	case Start:
		return "start"
	case Timer:
		return "timer"
	case Recv:
		return "recv"
	default:
		return "unknown"
	}
}

// Payload identifies a scheduled callback. Equality is structural on
// (NodeID, Kind, Source): two payloads compare equal exactly when they would
// invoke "the same timer" for cancellation purposes.
//
// For Recv payloads, Source additionally participates in identity, since a
// node may have more than one pending receive scheduled for the same instant
// from distinct senders; those must not cancel each other.
type Payload struct {
	NodeID int
	Kind   CallbackKind
	Source int // meaningful only when Kind == Recv
	Extra  int // degree/auxiliary argument carried by the callback, not part of identity
}

// key is the portion of Payload used for cancellation-equality.
type key struct {
	NodeID int
	Kind   CallbackKind
	Source int
}

func (p Payload) key() key {
	k := key{NodeID: p.NodeID, Kind: p.Kind}
	if p.Kind == Recv {
		k.Source = p.Source
	}
	return k
}

// task is one heap entry: a scheduled, possibly-cancelled payload.
type task struct {
	fireTime  int64
	sequence  uint64
	payload   Payload
	cancelled bool
	index     int // position in the heap slice, maintained by container/heap
}

// taskHeap implements heap.Interface, ordering by (fireTime, sequence).
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].fireTime != h[j].fireTime {
		return h[i].fireTime < h[j].fireTime
	}
	return h[i].sequence < h[j].sequence
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Queue is the simulator's event queue. It is not safe for concurrent use;
// each simulation instance owns exactly one Queue, driven by a single
// goroutine.
type Queue struct {
	heap        taskHeap
	index       map[key]*task
	nextSeq     uint64
	currentTime int64
}

// New returns an empty Queue with CurrentTime() == 0.
func New() *Queue {
	return &Queue{
		heap:  make(taskHeap, 0, 64),
		index: make(map[key]*task),
	}
}

// CurrentTime returns the fire time of the most recently popped task. It is
// monotonically non-decreasing for the lifetime of the Queue.
func (q *Queue) CurrentTime() int64 {
	return q.currentTime
}

// Len returns the number of live (non-cancelled) tasks still enqueued.
func (q *Queue) Len() int {
	return len(q.index)
}

// AddTask enqueues payload to fire at fireTime. If an equal payload (by
// NodeID/Kind/Source) is already enqueued, the prior entry is cancelled
// first: this is how timers are "rescheduled" idempotently.
func (q *Queue) AddTask(payload Payload, fireTime int64) {
	k := payload.key()
	if prev, ok := q.index[k]; ok {
		prev.cancelled = true
	}

	t := &task{
		fireTime: fireTime,
		sequence: q.nextSeq,
		payload:  payload,
	}
	q.nextSeq++

	q.index[k] = t
	heap.Push(&q.heap, t)
}

// CancelTask cancels a previously scheduled payload, if one is live. It
// returns true if a live task was found and cancelled.
func (q *Queue) CancelTask(payload Payload) bool {
	k := payload.key()
	t, ok := q.index[k]
	if !ok {
		return false
	}
	t.cancelled = true
	delete(q.index, k)
	return true
}

// PopTask extracts the minimum live task, advances CurrentTime to its fire
// time, and returns its payload. It returns desyncerrors.ErrQueueEmpty
// (wrapped with context) when no live task remains — a terminal condition
// for the simulation driver.
func (q *Queue) PopTask() (Payload, error) {
	for q.heap.Len() > 0 {
		t := heap.Pop(&q.heap).(*task)
		if t.cancelled {
			continue
		}
		delete(q.index, t.payload.key())
		q.currentTime = t.fireTime
		return t.payload, nil
	}
	return Payload{}, desyncerrors.ErrQueueEmpty.
		WithContext("current_time", q.currentTime)
}
