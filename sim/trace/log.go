package trace

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteTickLog renders every tick record as a human-readable block:
//
//	[Tick 3]
//	New Parcels: P00005, P00006
//	Sorted to index: P00003, P00004
//	Dispatched: P00001 to Ankara -> Success
//	Active Terminal: Izmir
//	...
func WriteTickLog(w io.Writer, st *SimulationTrace) error {
	bw := bufio.NewWriter(w)
	if st != nil {
		for _, t := range st.Ticks {
			writeTick(bw, t)
		}
	}
	return bw.Flush()
}

func writeTick(w *bufio.Writer, t TickRecord) {
	fmt.Fprintf(w, "[Tick %d]\n", t.Tick)
	if len(t.Admitted) > 0 {
		fmt.Fprintf(w, "New Parcels: %s\n", strings.Join(t.Admitted, ", "))
	}
	if len(t.Overflowed) > 0 {
		fmt.Fprintf(w, "Overflow (discarded): %s\n", strings.Join(t.Overflowed, ", "))
	}
	if len(t.Sorted) > 0 {
		fmt.Fprintf(w, "Sorted to index: %s\n", strings.Join(t.Sorted, ", "))
	}
	fmt.Fprintf(w, "Queue Size: %d\n", t.QueueLen)
	if d := t.Dispatch; d != nil {
		switch d.Outcome {
		case OutcomeDispatched:
			fmt.Fprintf(w, "Dispatched: %s to %s -> Success\n", d.ParcelID, d.Terminal)
		case OutcomeMisrouted:
			fmt.Fprintf(w, "Returned: %s misrouted -> Pushed to retry stack (retry #%d)\n", d.ParcelID, d.ReturnCount)
		case OutcomeDropped:
			fmt.Fprintf(w, "Dropped: %s misrouted %d times -> Removed from system\n", d.ParcelID, d.ReturnCount)
		}
	}
	for _, r := range t.Rejected {
		fmt.Fprintf(w, "Rejected: %s (%s)\n", r.ParcelID, r.Code)
	}
	if t.Reprocessed != "" {
		fmt.Fprintf(w, "Reprocessed from retry stack: %s\n", t.Reprocessed)
	}
	if t.RotatedTo != "" {
		fmt.Fprintf(w, "Terminal Rotated to: %s\n", t.RotatedTo)
	}
	fmt.Fprintf(w, "Active Terminal: %s\n", t.ActiveTerminal)
	fmt.Fprintf(w, "Retry Stack Size: %d\n", t.StackLen)

	keys := make([]string, 0, len(t.Pending))
	for k := range t.Pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d parcel(s)\n", k, t.Pending[k])
	}
}
