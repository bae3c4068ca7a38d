package workload

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/parcel-sim/parcel-sim/sim"
)

// ManifestEntry is one scripted parcel arrival.
type ManifestEntry struct {
	ID          string `yaml:"id"`
	Destination string `yaml:"destination"`
	Priority    int    `yaml:"priority"`
	Size        string `yaml:"size"`
	Tick        int64  `yaml:"tick"`
}

// Manifest is a recorded or hand-written arrival plan:
//
//	parcels:
//	  - {id: P1, destination: Izmir, priority: 2, size: small, tick: 1}
type Manifest struct {
	Parcels []ManifestEntry `yaml:"parcels"`
}

// LoadManifest reads and parses a YAML parcel manifest.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML. Destinations are NFC-normalized
// so that visually identical city names land in the same index node.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	for i := range m.Parcels {
		m.Parcels[i].Destination = norm.NFC.String(strings.TrimSpace(m.Parcels[i].Destination))
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Validate checks every entry and reports all problems at once.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(m.Parcels))
	for i, e := range m.Parcels {
		bad := func(format string, args ...any) {
			errs = append(errs, sim.NewInvalidArgument(fmt.Sprintf("parcels[%d]: "+format, append([]any{i}, args...)...)))
		}
		if strings.TrimSpace(e.ID) == "" {
			bad("empty id")
		} else if seen[e.ID] {
			bad("duplicate id %q", e.ID)
		}
		seen[e.ID] = true
		if e.Destination == "" {
			bad("empty destination")
		}
		if !sim.Priority(e.Priority).Valid() {
			bad("priority %d outside 1..3", e.Priority)
		}
		if _, err := sim.ParseSizeClass(e.Size); err != nil {
			bad("unknown size %q", e.Size)
		}
		if e.Tick < 1 {
			bad("tick must be >= 1, got %d", e.Tick)
		}
	}
	return errors.Join(errs...)
}

// Destinations returns the distinct destinations in first-appearance order.
func (m *Manifest) Destinations() []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range m.Parcels {
		if !seen[e.Destination] {
			seen[e.Destination] = true
			out = append(out, e.Destination)
		}
	}
	return out
}

// LastTick returns the latest arrival tick in the manifest (0 when empty).
func (m *Manifest) LastTick() int64 {
	var last int64
	for _, e := range m.Parcels {
		last = max(last, e.Tick)
	}
	return last
}

// ManifestSource replays a validated Manifest tick by tick.
// Each call builds fresh Parcels, so a source can be replayed only once per run.
type ManifestSource struct {
	byTick map[int64][]ManifestEntry
}

// NewManifestSource groups entries by tick, keeping file order within a tick.
func NewManifestSource(m *Manifest) *ManifestSource {
	byTick := make(map[int64][]ManifestEntry)
	for _, e := range m.Parcels {
		byTick[e.Tick] = append(byTick[e.Tick], e)
	}
	return &ManifestSource{byTick: byTick}
}

// GenerateParcelsForTick returns the parcels scripted for tick.
func (s *ManifestSource) GenerateParcelsForTick(tick int64) []*sim.Parcel {
	entries := s.byTick[tick]
	if len(entries) == 0 {
		return nil
	}
	parcels := make([]*sim.Parcel, 0, len(entries))
	for _, e := range entries {
		size, _ := sim.ParseSizeClass(e.Size) // checked by Validate
		parcels = append(parcels, sim.NewParcel(e.ID, e.Destination, sim.Priority(e.Priority), size, tick))
	}
	return parcels
}

// Ticks returns the ticks that carry at least one arrival, ascending.
func (s *ManifestSource) Ticks() []int64 {
	ticks := make([]int64, 0, len(s.byTick))
	for t := range s.byTick {
		ticks = append(ticks, t)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	return ticks
}
