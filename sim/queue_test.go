package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParcel(id, dest string) *Parcel {
	return NewParcel(id, dest, PriorityMedium, SizeSmall, 1)
}

func TestArrivalQueue_OverCapacity_RejectsThirdParcel(t *testing.T) {
	// GIVEN a queue of capacity 2
	aq := NewArrivalQueue(2)

	// WHEN three parcels are enqueued
	require.NoError(t, aq.Enqueue(newTestParcel("P1", "Izmir")))
	require.NoError(t, aq.Enqueue(newTestParcel("P2", "Izmir")))
	err := aq.Enqueue(newTestParcel("P3", "Izmir"))

	// THEN the third is rejected as CAPACITY_EXCEEDED and the queue holds two
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.True(t, IsExpected(err))
	assert.Equal(t, 2, aq.Len())
	assert.True(t, aq.IsFull())

	// AND two dequeues empty it in FIFO order, a third reports absent
	assert.Equal(t, "P1", aq.Dequeue().ID)
	assert.Equal(t, "P2", aq.Dequeue().ID)
	assert.Nil(t, aq.Dequeue())
	assert.True(t, aq.IsEmpty())
}

func TestArrivalQueue_Peek_DoesNotRemove(t *testing.T) {
	// GIVEN a queue with [A, B]
	aq := NewArrivalQueue(4)
	require.NoError(t, aq.Enqueue(newTestParcel("A", "Bursa")))
	require.NoError(t, aq.Enqueue(newTestParcel("B", "Bursa")))

	// WHEN Peek is called
	got := aq.Peek()

	// THEN the front is returned and the length is unchanged
	require.NotNil(t, got)
	assert.Equal(t, "A", got.ID)
	assert.Equal(t, 2, aq.Len())
}

func TestArrivalQueue_Peek_Empty_ReturnsNil(t *testing.T) {
	aq := NewArrivalQueue(1)
	assert.Nil(t, aq.Peek())
}

func TestArrivalQueue_EnqueueNil_InvalidArgument(t *testing.T) {
	aq := NewArrivalQueue(1)
	err := aq.Enqueue(nil)
	assert.Equal(t, ErrCodeInvalidArgument, CodeOf(err))
	assert.Equal(t, 0, aq.Len())
}

func TestArrivalQueue_NonPositiveCapacity_Panics(t *testing.T) {
	assert.Panics(t, func() { NewArrivalQueue(0) })
}

func TestArrivalQueue_Counts_ByPriorityAndSize(t *testing.T) {
	// GIVEN parcels with mixed priority and size
	aq := NewArrivalQueue(5)
	require.NoError(t, aq.Enqueue(NewParcel("A", "X", PriorityHigh, SizeLarge, 1)))
	require.NoError(t, aq.Enqueue(NewParcel("B", "X", PriorityHigh, SizeSmall, 2)))
	require.NoError(t, aq.Enqueue(NewParcel("C", "X", PriorityLow, SizeSmall, 4)))

	// THEN counts reflect the queue contents
	assert.Equal(t, 2, aq.CountPriority(PriorityHigh))
	assert.Equal(t, 0, aq.CountPriority(PriorityMedium))
	assert.Equal(t, 2, aq.CountSize(SizeSmall))
	assert.Equal(t, 1, aq.CountSize(SizeLarge))

	// AND average wait at tick 5 is ((5-1)+(5-2)+(5-4))/3
	assert.InDelta(t, 8.0/3.0, aq.AverageWait(5), 1e-9)
}

func TestArrivalQueue_AverageWait_Empty_Zero(t *testing.T) {
	assert.Equal(t, 0.0, NewArrivalQueue(3).AverageWait(10))
}

func TestArrivalQueue_Retract_OnlyUndoesLastEnqueue(t *testing.T) {
	// GIVEN a queue holding P1 then P2
	aq := NewArrivalQueue(3)
	p1, p2 := newTestParcel("P1", "A"), newTestParcel("P2", "A")
	require.NoError(t, aq.Enqueue(p1))
	require.NoError(t, aq.Enqueue(p2))

	// WHEN retracting a parcel that is not last, then the last one
	assert.False(t, aq.retract(p1))
	assert.True(t, aq.retract(p2))

	// THEN only P1 remains at the front
	assert.Equal(t, 1, aq.Len())
	assert.Same(t, p1, aq.Peek())
	assert.False(t, NewArrivalQueue(1).retract(p1))
}
