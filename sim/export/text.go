package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// TextSink renders a snapshot as key-value blocks, one per parcel.
type TextSink struct {
	w      io.Writer
	closer io.Closer
}

// NewTextSink writes to w. Close is a no-op; the caller owns w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// CreateTextFile creates (or truncates) path and writes the export there.
func CreateTextFile(path string) (*TextSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	return &TextSink{w: f, closer: f}, nil
}

// Export writes snap. ctx is checked once before writing; text output is not interruptible.
func (t *TextSink) Export(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bw := bufio.NewWriter(t.w)
	fmt.Fprintln(bw, "=== Parcel Registry Export ===")
	fmt.Fprintf(bw, "Run ID: %s\n", snap.RunID)
	fmt.Fprintf(bw, "Seed: %d\n", snap.Seed)
	fmt.Fprintf(bw, "Ticks: %d\n", snap.Ticks)
	fmt.Fprintf(bw, "Total Parcels: %d\n", len(snap.Records))
	fmt.Fprintf(bw, "Capacity: %d\n", snap.Capacity)
	fmt.Fprintf(bw, "Load Factor: %.2f\n", snap.LoadFactor)
	fmt.Fprintf(bw, "Dispatched: %d\n", snap.Counters.Dispatched)
	fmt.Fprintf(bw, "Returned: %d\n", snap.Counters.Returned)
	fmt.Fprintf(bw, "In System: %d\n", snap.Counters.InSystem)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "Parcel Details:")
	fmt.Fprintln(bw, "==============")

	for _, r := range snap.Records {
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "Parcel ID: %s\n", r.ID)
		fmt.Fprintf(bw, "Status: %s\n", r.Status)
		fmt.Fprintf(bw, "Priority: %d\n", r.Priority)
		fmt.Fprintf(bw, "Size: %s\n", r.Size)
		fmt.Fprintf(bw, "Destination: %s\n", r.Destination)
		fmt.Fprintf(bw, "Arrival Tick: %d\n", r.ArrivalTick)
		if r.DispatchTick < 0 {
			fmt.Fprintln(bw, "Dispatch Tick: Not dispatched")
		} else {
			fmt.Fprintf(bw, "Dispatch Tick: %d\n", r.DispatchTick)
		}
		fmt.Fprintf(bw, "Return Count: %d\n", r.ReturnCount)
		fmt.Fprintln(bw, "Status History:")
		for _, h := range r.History {
			fmt.Fprintf(bw, "  %s at tick %d\n", h.Status, h.Tick)
		}
		fmt.Fprintln(bw, "-------------------")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write text export: %w", err)
	}
	return nil
}

// Close closes the underlying file when the sink created it.
func (t *TextSink) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
