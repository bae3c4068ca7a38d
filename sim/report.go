package sim

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteReport renders the end-of-run report: counters, dispatch distribution,
// timing, structural health and the terminal rotation timeline.
// Numbers are formatted for English with digit grouping.
func (sim *Simulator) WriteReport(w io.Writer) error {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	c := sim.Registry.Counters()
	m := sim.Metrics

	section := func(title string) {
		b.WriteString("\n=== ")
		b.WriteString(title)
		b.WriteString(" ===\n")
	}

	b.WriteString("PARCEL HUB SIMULATION REPORT\n")
	p.Fprintf(&b, "Run ID: %s\n", sim.RunID)
	p.Fprintf(&b, "Ticks executed: %d of %d\n", m.TicksExecuted, sim.Horizon)
	p.Fprintf(&b, "Rotation: %s every %d tick(s)\n", sim.Terminals.Mode(), sim.Terminals.Interval())

	section("Parcel Counters")
	p.Fprintf(&b, "Generated:            %d\n", m.Generated)
	p.Fprintf(&b, "Admitted:             %d\n", m.Admitted)
	p.Fprintf(&b, "Overflowed:           %d\n", m.Overflowed)
	p.Fprintf(&b, "Registered:           %d\n", c.Generated)
	p.Fprintf(&b, "Dispatched:           %d\n", c.Dispatched)
	p.Fprintf(&b, "Returned (current):   %d\n", c.Returned)
	p.Fprintf(&b, "Misroutes (total):    %d\n", c.ReturnEvents)
	p.Fprintf(&b, "Dropped after %d:      %d\n", sim.Retries.MaxRetries(), m.Dropped)
	p.Fprintf(&b, "Reprocessed:          %d\n", m.Reprocessed)
	p.Fprintf(&b, "Rejected (errors):    %d\n", m.Rejected)
	p.Fprintf(&b, "In system:            %d\n", c.InSystem)

	section("Dispatch By Destination")
	totals := sim.Registry.DispatchTotals()
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sum := 0
	for _, k := range keys {
		p.Fprintf(&b, "  %s: %d\n", k, totals[k])
		sum += totals[k]
	}
	if len(keys) == 0 {
		b.WriteString("  (none)\n")
	}
	if dest, n := sim.Registry.MostDispatched(); dest != "" {
		p.Fprintf(&b, "Most dispatched: %s (%d)\n", dest, n)
	}
	p.Fprintf(&b, "Consistency: sum=%d total=%d %s\n", sum, c.Dispatched, okMark(sum == c.Dispatched))

	section("Timing")
	ts := sim.Registry.TimingStats()
	if ts.Dispatched > 0 {
		p.Fprintf(&b, "Average dispatch delay: %.2f ticks\n", ts.AverageDelay)
		p.Fprintf(&b, "Delay percentiles: p50=%.1f p90=%.1f p99=%.1f\n", ts.P50Delay, ts.P90Delay, ts.P99Delay)
		p.Fprintf(&b, "Longest delay: %s (%d ticks)\n", ts.LongestDelayParcel, ts.LongestDelay)
	} else {
		b.WriteString("Average dispatch delay: n/a\n")
	}
	p.Fprintf(&b, "Returned more than once: %d\n", ts.ReturnedMoreThanOnce)

	section("Structures")
	p.Fprintf(&b, "Max arrival queue size: %d / %d\n", m.MaxQueueLen, sim.Arrivals.Cap())
	p.Fprintf(&b, "Max retry stack size:   %d\n", m.MaxStackLen)
	p.Fprintf(&b, "Index height:           %d (%d destinations, %d rotations)\n",
		sim.Index.Height(), sim.Index.Len(), sim.Index.Rotations())
	p.Fprintf(&b, "Pending in index:       %d\n", sim.Index.TotalCount())
	if most, n := sim.Index.MostLoaded(); n > 0 {
		p.Fprintf(&b, "Most loaded:            %s (%d)\n", strings.Join(most, ", "), n)
	}
	p.Fprintf(&b, "Index balanced:         %s\n", okMark(sim.Index.IsBalanced()))
	p.Fprintf(&b, "Registry load factor:   %.2f (%d/%d, %d resize(s))\n",
		sim.Registry.LoadFactor(), sim.Registry.Len(), sim.Registry.Capacity(), sim.Registry.Resizes())

	section("Terminals")
	history := sim.Terminals.History()
	visits := make(map[string]int)
	for _, ev := range history {
		visits[ev.To]++
	}
	for _, t := range sim.Terminals.Terminals() {
		p.Fprintf(&b, "  %s: pending=%d activations=%d dispatched=%d\n",
			t.Name, t.PendingLoad, visits[t.Name], sim.Registry.DispatchedTo(t.Name))
	}
	p.Fprintf(&b, "Rotations: %d\n", len(history))
	for _, ev := range history {
		p.Fprintf(&b, "  tick %d: %s -> %s (load %d)\n", ev.Tick, ev.From, ev.To, ev.Load)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func okMark(ok bool) string {
	if ok {
		return "OK"
	}
	return "MISMATCH"
}
