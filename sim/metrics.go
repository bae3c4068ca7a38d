// Tracks hub-wide flow counters and observed structure maxima.

package sim

// Metrics aggregates what happened during a run, complementing the registry's
// per-parcel counters with events the registry never sees (overflow, drops).
type Metrics struct {
	TicksExecuted int64

	Generated   int // parcels produced by the source
	Admitted    int // parcels accepted by the arrival queue
	Overflowed  int // parcels discarded because the arrival queue was full
	Sorted      int // arrival-queue -> index moves
	Dispatched  int // successful dispatches
	Misrouted   int // failed dispatch attempts, including drops
	Dropped     int // parcels removed after exceeding the retry limit
	Reprocessed int // retry-stack -> index moves
	IdleTicks   int // ticks whose active terminal had nothing waiting
	Rejected    int // parcels set aside after a call-local error

	MaxQueueLen int // largest arrival queue length observed after sorting
	MaxStackLen int // largest retry stack length observed
}

// NewMetrics creates a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) observeQueue(n int) {
	if n > m.MaxQueueLen {
		m.MaxQueueLen = n
	}
}

func (m *Metrics) observeStack(n int) {
	if n > m.MaxStackLen {
		m.MaxStackLen = n
	}
}
