package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey identifies a reproducible run: the same key and configuration
// MUST produce identical parcel streams and misroute decisions.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemWorkload seeds parcel generation. Uses the master seed directly.
	SubsystemWorkload = "workload"

	// SubsystemMisroute seeds the per-dispatch misroute draw.
	SubsystemMisroute = "misroute"
)

// PartitionedRNG hands out one deterministic *rand.Rand per subsystem so that
// drawing from one stream never shifts another.
//
// Derivation: the workload subsystem uses the master seed; every other subsystem
// uses masterSeed XOR fnv1a64(name).
//
// Not thread-safe.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, subsystems: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the cached RNG for name, creating it on first use. Never nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	seed := int64(p.key)
	if name != SubsystemWorkload {
		seed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(seed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey { return p.key }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
