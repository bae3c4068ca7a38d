// Package export writes a one-shot snapshot of the parcel registry to an external
// sink: a human-readable text block, a SQLite file, or a PostgreSQL database.
package export

import (
	"context"
	"fmt"

	"github.com/parcel-sim/parcel-sim/sim"
)

// Format names accepted by Open.
const (
	FormatText     = "text"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Snapshot is the full registry state at the end of a run.
type Snapshot struct {
	RunID      string
	Seed       int64
	Ticks      int64
	Capacity   int
	LoadFactor float64
	Counters   sim.Counters
	Records    []sim.Record // insertion order
}

// NewSnapshot captures the registry of a finished simulator.
func NewSnapshot(s *sim.Simulator) Snapshot {
	snap := Snapshot{
		RunID:      s.RunID,
		Seed:       s.Config.Seed,
		Ticks:      s.Clock,
		Capacity:   s.Registry.Capacity(),
		LoadFactor: s.Registry.LoadFactor(),
		Counters:   s.Registry.Counters(),
		Records:    make([]sim.Record, 0, s.Registry.Len()),
	}
	s.Registry.Each(func(r sim.Record) {
		snap.Records = append(snap.Records, r)
	})
	return snap
}

// Sink receives a snapshot. Implementations write it atomically where the target allows.
type Sink interface {
	Export(ctx context.Context, snap Snapshot) error
	Close() error
}

// IsValidFormat reports whether format names a known sink.
func IsValidFormat(format string) bool {
	switch format {
	case FormatText, FormatSQLite, FormatPostgres:
		return true
	default:
		return false
	}
}

// Open creates the sink for format. target is a file path for text and sqlite,
// and a connection URL for postgres.
func Open(format, target string) (Sink, error) {
	switch format {
	case FormatText:
		return CreateTextFile(target)
	case FormatSQLite:
		return OpenSQLite(target)
	case FormatPostgres:
		return OpenPostgres(target)
	default:
		return nil, fmt.Errorf("unknown export format %q; valid: text, sqlite, postgres", format)
	}
}
