// Package trace provides per-tick decision recording for hub runs.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// TickRecord captures every decision the hub made during one tick.
type TickRecord struct {
	Tick           int64           // simulated tick
	Admitted       []string        // parcel IDs accepted into the arrival queue
	Overflowed     []string        // parcel IDs dropped because the arrival queue was full
	Sorted         []string        // parcel IDs moved from the arrival queue into the index
	Dispatch       *DispatchRecord // nil when the active terminal had nothing waiting
	Reprocessed    string          // parcel ID replayed from the retry stack ("" if none)
	Rejected       []RejectRecord  // parcels set aside after a call-local error
	RotatedTo      string          // new active terminal ("" if no rotation)
	ActiveTerminal string          // active terminal at end of tick
	QueueLen       int             // arrival queue length at end of tick
	StackLen       int             // retry stack length at end of tick
	Pending        map[string]int  // non-zero per-destination queue lengths at end of tick
}

// RejectRecord captures a parcel the hub refused, with the error code that caused it.
type RejectRecord struct {
	ParcelID string
	Code     string // e.g. "DUPLICATE_KEY"
	Reason   string
}

// DispatchOutcome classifies a dispatch attempt.
type DispatchOutcome string

const (
	OutcomeDispatched DispatchOutcome = "dispatched"
	OutcomeMisrouted  DispatchOutcome = "misrouted"
	// OutcomeDropped is a misroute whose parcel exceeded the retry limit.
	OutcomeDropped DispatchOutcome = "dropped"
)

// DispatchRecord captures the head-of-queue dispatch attempt at the active terminal.
type DispatchRecord struct {
	ParcelID    string
	Terminal    string
	Outcome     DispatchOutcome
	ReturnCount int // parcel return count after the attempt
}
