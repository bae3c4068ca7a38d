package workload

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcel-sim/parcel-sim/sim"
)

func generatorConfig(seed int64) sim.HubConfig {
	return sim.HubConfig{
		ParcelsPerTickMin: 1,
		ParcelsPerTickMax: 3,
		Terminals:         []string{"Ankara", "Istanbul", "Izmir"},
		Seed:              seed,
	}
}

func TestGenerator_CountsWithinRange_SequentialIDs(t *testing.T) {
	// GIVEN a generator drawing 1..3 parcels per tick
	g, err := NewGenerator(generatorConfig(42), nil)
	require.NoError(t, err)

	// WHEN 50 ticks are generated
	next := 0
	for tick := int64(1); tick <= 50; tick++ {
		parcels := g.GenerateParcelsForTick(tick)

		// THEN each tick yields 1..3 well-formed parcels with sequential IDs
		require.GreaterOrEqual(t, len(parcels), 1)
		require.LessOrEqual(t, len(parcels), 3)
		for _, p := range parcels {
			next++
			assert.Equal(t, fmt.Sprintf("P%05d", next), p.ID)
			assert.Equal(t, tick, p.ArrivalTick)
			assert.Equal(t, sim.StatusInQueue, p.Status)
			assert.True(t, p.Priority.Valid())
			assert.True(t, p.Size.Valid())
			assert.Contains(t, []string{"Ankara", "Istanbul", "Izmir"}, p.Destination)
		}
	}
	assert.Equal(t, next, g.Generated())
}

func TestGenerator_SameSeed_SameStream(t *testing.T) {
	a, err := NewGenerator(generatorConfig(7), nil)
	require.NoError(t, err)
	b, err := NewGenerator(generatorConfig(7), sim.NewPartitionedRNG(sim.NewSimulationKey(7)))
	require.NoError(t, err)

	for tick := int64(1); tick <= 20; tick++ {
		assert.Equal(t, a.GenerateParcelsForTick(tick), b.GenerateParcelsForTick(tick))
	}
}

func TestGenerator_ZeroRange_NoParcels(t *testing.T) {
	cfg := generatorConfig(1)
	cfg.ParcelsPerTickMax = 0
	cfg.ParcelsPerTickMin = 0
	g, err := NewGenerator(cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, g.GenerateParcelsForTick(1))
}

func TestNewGenerator_InvalidConfig(t *testing.T) {
	cfg := generatorConfig(1)
	cfg.ParcelsPerTickMin = 5
	_, err := NewGenerator(cfg, nil)
	assert.Equal(t, sim.ErrCodeInvalidArgument, sim.CodeOf(err))

	cfg = generatorConfig(1)
	cfg.Terminals = nil
	_, err = NewGenerator(cfg, nil)
	assert.Equal(t, sim.ErrCodeInvalidArgument, sim.CodeOf(err))
}

func TestGenerator_DrivesSimulator(t *testing.T) {
	// GIVEN a hub fed by the generator
	cfg := generatorConfig(3)
	cfg.MaxTicks = 40
	cfg.QueueCapacity = 5
	cfg.RotationInterval = 2
	cfg.MisroutingRate = 0.2
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	g, err := NewGenerator(cfg, rng)
	require.NoError(t, err)
	s, err := sim.NewSimulator(cfg, g, rng)
	require.NoError(t, err)

	// WHEN it runs
	s.Run()

	// THEN every generated parcel was either admitted or overflowed
	assert.Equal(t, g.Generated(), s.Metrics.Generated)
	assert.Equal(t, s.Metrics.Generated, s.Metrics.Admitted+s.Metrics.Overflowed)
	assert.Greater(t, s.Metrics.Dispatched, 0)
}
