package workload

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/parcel-sim/parcel-sim/sim"
)

// Generator produces a random parcel stream from the hub configuration.
// Deterministic given the same config and seed.
type Generator struct {
	min, max     int
	destinations []string
	rng          *rand.Rand
	next         int
}

// NewGenerator creates a Generator drawing from the workload subsystem of rng.
// Destinations are the configured terminals, so every parcel can eventually be dispatched.
func NewGenerator(cfg sim.HubConfig, rng *sim.PartitionedRNG) (*Generator, error) {
	if cfg.ParcelsPerTickMin < 0 || cfg.ParcelsPerTickMax < cfg.ParcelsPerTickMin {
		return nil, sim.NewInvalidArgument(fmt.Sprintf("parcels per tick range [%d, %d] is invalid", cfg.ParcelsPerTickMin, cfg.ParcelsPerTickMax))
	}
	if len(cfg.Terminals) == 0 {
		return nil, sim.NewInvalidArgument("generator needs at least one destination")
	}
	if rng == nil {
		rng = sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	}
	return &Generator{
		min:          cfg.ParcelsPerTickMin,
		max:          cfg.ParcelsPerTickMax,
		destinations: append([]string(nil), cfg.Terminals...),
		rng:          rng.ForSubsystem(sim.SubsystemWorkload),
	}, nil
}

// GenerateParcelsForTick draws a count uniformly in [min, max] and that many parcels
// with sequential IDs (P00001, P00002, ...), uniform destination, priority and size.
func (g *Generator) GenerateParcelsForTick(tick int64) []*sim.Parcel {
	n := g.min + g.rng.Intn(g.max-g.min+1)
	if n == 0 {
		return nil
	}
	parcels := make([]*sim.Parcel, 0, n)
	for i := 0; i < n; i++ {
		g.next++
		parcels = append(parcels, sim.NewParcel(
			fmt.Sprintf("P%05d", g.next),
			g.destinations[g.rng.Intn(len(g.destinations))],
			sim.Priority(1+g.rng.Intn(3)),
			sim.AllSizes[g.rng.Intn(len(sim.AllSizes))],
			tick,
		))
	}
	logrus.Debugf("[tick %07d] generated %d parcel(s)", tick, n)
	return parcels
}

// Generated returns how many parcels have been produced so far.
func (g *Generator) Generated() int { return g.next }
