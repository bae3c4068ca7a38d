package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultMaxRetries is the number of misroutes a parcel may survive.
const DefaultMaxRetries = 3

// RetryEntry is a parcel on the RetryStack with the return count it was pushed at.
type RetryEntry struct {
	Parcel      *Parcel
	ReturnCount int
}

// RetryStack holds misrouted parcels for later reprocessing, strictly LIFO.
type RetryStack struct {
	entries    []RetryEntry // top of stack is the last element
	maxRetries int
	rejected   int
}

// NewRetryStack creates an empty stack that drops parcels whose return count would
// exceed maxRetries. Panics if maxRetries < 0.
func NewRetryStack(maxRetries int) *RetryStack {
	if maxRetries < 0 {
		panic(fmt.Sprintf("NewRetryStack: maxRetries must be >= 0, got %d", maxRetries))
	}
	return &RetryStack{maxRetries: maxRetries}
}

// Push increments p's return count, then either places p on top (status Returned)
// or, when the new count exceeds the maximum, rejects it with RETRY_LIMIT_EXCEEDED.
// A rejected parcel is dropped from the simulation; the stack is unchanged.
func (rs *RetryStack) Push(p *Parcel) error {
	if p == nil {
		return NewInvalidArgument("Push: parcel must not be nil")
	}
	p.ReturnCount++
	if p.ReturnCount > rs.maxRetries {
		rs.rejected++
		logrus.Warnf("parcel %s exceeded maximum retry count (%d), removing from system", p.ID, rs.maxRetries)
		return NewRetryLimitExceeded(p.ID, p.ReturnCount, rs.maxRetries)
	}
	p.Status = StatusReturned
	rs.entries = append(rs.entries, RetryEntry{Parcel: p, ReturnCount: p.ReturnCount})
	logrus.Debugf("parcel %s pushed to retry stack (retry #%d)", p.ID, p.ReturnCount)
	return nil
}

// Pop removes and returns the top parcel. Returns nil if the stack is empty.
func (rs *RetryStack) Pop() *Parcel {
	n := len(rs.entries)
	if n == 0 {
		return nil
	}
	top := rs.entries[n-1]
	rs.entries[n-1] = RetryEntry{}
	rs.entries = rs.entries[:n-1]
	logrus.Debugf("parcel %s popped from retry stack for reprocessing", top.Parcel.ID)
	return top.Parcel
}

// Peek returns the top parcel without removing it, or nil if empty.
func (rs *RetryStack) Peek() *Parcel {
	if len(rs.entries) == 0 {
		return nil
	}
	return rs.entries[len(rs.entries)-1].Parcel
}

func (rs *RetryStack) Len() int      { return len(rs.entries) }
func (rs *RetryStack) IsEmpty() bool { return len(rs.entries) == 0 }

// MaxRetries returns the configured retry limit.
func (rs *RetryStack) MaxRetries() int { return rs.maxRetries }

// Rejected returns how many pushes were refused.
func (rs *RetryStack) Rejected() int { return rs.rejected }

// Entries returns a copy of the stack contents, top first.
func (rs *RetryStack) Entries() []RetryEntry {
	out := make([]RetryEntry, len(rs.entries))
	for i, e := range rs.entries {
		out[len(rs.entries)-1-i] = e
	}
	return out
}
