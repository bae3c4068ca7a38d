package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	Ticks              int
	Admitted           int
	Overflowed         int
	Sorted             int
	Dispatched         int
	Misrouted          int // includes dropped
	Dropped            int
	Reprocessed        int
	Rejected           int
	Rotations          int
	IdleTicks          int            // ticks whose active terminal had nothing to dispatch
	DispatchByTerminal map[string]int // terminal -> successful dispatches
	MisrouteByTerminal map[string]int // terminal -> misroutes (including drops)
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		DispatchByTerminal: make(map[string]int),
		MisrouteByTerminal: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.Ticks = len(st.Ticks)
	for _, t := range st.Ticks {
		summary.Admitted += len(t.Admitted)
		summary.Overflowed += len(t.Overflowed)
		summary.Sorted += len(t.Sorted)
		summary.Rejected += len(t.Rejected)
		if t.Reprocessed != "" {
			summary.Reprocessed++
		}
		if t.RotatedTo != "" {
			summary.Rotations++
		}
		if t.Dispatch == nil {
			summary.IdleTicks++
			continue
		}
		switch t.Dispatch.Outcome {
		case OutcomeDispatched:
			summary.Dispatched++
			summary.DispatchByTerminal[t.Dispatch.Terminal]++
		case OutcomeMisrouted, OutcomeDropped:
			summary.Misrouted++
			summary.MisrouteByTerminal[t.Dispatch.Terminal]++
			if t.Dispatch.Outcome == OutcomeDropped {
				summary.Dropped++
			}
		}
	}
	return summary
}
