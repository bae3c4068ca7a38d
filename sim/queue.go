// Implements the ArrivalQueue, the bounded admission buffer in front of the
// DestinationIndex. Parcels are enqueued on generation and dequeued in small batches.

package sim

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ArrivalQueue is a bounded FIFO of freshly generated parcels.
// A full queue rejects new parcels instead of growing.
type ArrivalQueue struct {
	queue    []*Parcel // FIFO queue of parcels
	capacity int
}

// NewArrivalQueue creates an empty queue holding at most capacity parcels.
// Panics if capacity < 1.
func NewArrivalQueue(capacity int) *ArrivalQueue {
	if capacity < 1 {
		panic(fmt.Sprintf("NewArrivalQueue: capacity must be >= 1, got %d", capacity))
	}
	return &ArrivalQueue{queue: make([]*Parcel, 0, capacity), capacity: capacity}
}

// Enqueue adds a parcel to the back of the queue.
// Returns a CAPACITY_EXCEEDED error, and leaves the queue untouched, when full.
func (aq *ArrivalQueue) Enqueue(p *Parcel) error {
	if p == nil {
		return NewInvalidArgument("Enqueue: parcel must not be nil")
	}
	if aq.IsFull() {
		logrus.Warnf("arrival queue overflow, parcel %s discarded", p.ID)
		return NewCapacityExceeded(p.ID, aq.capacity)
	}
	aq.queue = append(aq.queue, p)
	return nil
}

// retract removes p from the back of the queue, undoing the Enqueue that just added it.
// Reports false, and leaves the queue untouched, when p is not the last parcel.
func (aq *ArrivalQueue) retract(p *Parcel) bool {
	n := len(aq.queue)
	if n == 0 || aq.queue[n-1] != p {
		return false
	}
	aq.queue[n-1] = nil
	aq.queue = aq.queue[:n-1]
	return true
}

// Dequeue removes the parcel at the front of the queue.
// Returns nil if the queue is empty.
func (aq *ArrivalQueue) Dequeue() *Parcel {
	if len(aq.queue) == 0 {
		return nil
	}
	front := aq.queue[0]
	aq.queue[0] = nil
	aq.queue = aq.queue[1:]
	return front
}

// Peek returns the parcel at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (aq *ArrivalQueue) Peek() *Parcel {
	if len(aq.queue) == 0 {
		return nil
	}
	return aq.queue[0]
}

// Len returns the number of parcels in the queue.
func (aq *ArrivalQueue) Len() int { return len(aq.queue) }

// Cap returns the configured capacity.
func (aq *ArrivalQueue) Cap() int { return aq.capacity }

func (aq *ArrivalQueue) IsFull() bool  { return len(aq.queue) >= aq.capacity }
func (aq *ArrivalQueue) IsEmpty() bool { return len(aq.queue) == 0 }

// Items returns the queue contents front to back.
// The returned slice is the queue's internal storage; callers MUST NOT modify it.
func (aq *ArrivalQueue) Items() []*Parcel {
	return aq.queue
}

// CountPriority returns how many queued parcels have priority p.
func (aq *ArrivalQueue) CountPriority(p Priority) int {
	n := 0
	for _, parcel := range aq.queue {
		if parcel.Priority == p {
			n++
		}
	}
	return n
}

// CountSize returns how many queued parcels have size class s.
func (aq *ArrivalQueue) CountSize(s SizeClass) int {
	n := 0
	for _, parcel := range aq.queue {
		if parcel.Size == s {
			n++
		}
	}
	return n
}

// AverageWait returns the mean number of ticks queued parcels have waited as of now.
func (aq *ArrivalQueue) AverageWait(now int64) float64 {
	if len(aq.queue) == 0 {
		return 0
	}
	var total int64
	for _, parcel := range aq.queue {
		total += now - parcel.ArrivalTick
	}
	return float64(total) / float64(len(aq.queue))
}

func (aq *ArrivalQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range aq.queue {
		sb.WriteString(p.ID)
		if i < len(aq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
