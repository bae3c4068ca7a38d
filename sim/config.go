package sim

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultSortBatchSize is how many parcels move from the ArrivalQueue into the
	// DestinationIndex per tick.
	DefaultSortBatchSize = 2
	// DefaultRetryEvery is the tick period at which one parcel is replayed from the RetryStack.
	DefaultRetryEvery = 3
	// DefaultSnapshotEvery is the tick period of the debug-level system snapshot.
	DefaultSnapshotEvery = 5
)

// HubConfig groups every parameter of a hub run.
type HubConfig struct {
	MaxTicks          int64        // number of ticks to simulate (must be > 0)
	QueueCapacity     int          // ArrivalQueue capacity (must be > 0)
	RotationInterval  int          // ticks between terminal rotations (must be > 0)
	ParcelsPerTickMin int          // generator lower bound (>= 0)
	ParcelsPerTickMax int          // generator upper bound (>= min)
	MisroutingRate    float64      // probability in [0, 1] that a dispatch attempt fails
	Terminals         []string     // ordered terminal / destination names
	RotationMode      RotationMode // "fixed" (default) or "load-aware"
	SortBatchSize     int          // 0 = DefaultSortBatchSize
	RetryEvery        int          // 0 = DefaultRetryEvery
	MaxRetries        *int         // nil = DefaultMaxRetries; 0 drops a parcel on its first misroute
	RegistryCapacity  int          // 0 = DefaultRegistryCapacity
	SnapshotEvery     int          // 0 = DefaultSnapshotEvery
	Seed              int64
}

// WithDefaults returns a copy of c with zero-valued tuning knobs filled in.
func (c HubConfig) WithDefaults() HubConfig {
	if c.RotationMode == "" {
		c.RotationMode = RotationFixed
	}
	if c.SortBatchSize == 0 {
		c.SortBatchSize = DefaultSortBatchSize
	}
	if c.RetryEvery == 0 {
		c.RetryEvery = DefaultRetryEvery
	}
	if c.MaxRetries == nil {
		c.MaxRetries = RetryLimit(DefaultMaxRetries)
	} else {
		c.MaxRetries = RetryLimit(*c.MaxRetries)
	}
	if c.RegistryCapacity == 0 {
		c.RegistryCapacity = DefaultRegistryCapacity
	}
	if c.SnapshotEvery == 0 {
		c.SnapshotEvery = DefaultSnapshotEvery
	}
	c.Terminals = append([]string(nil), c.Terminals...)
	return c
}

// Validate reports every malformed field, joined, as INVALID_ARGUMENT errors.
func (c HubConfig) Validate() error {
	var errs []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, NewInvalidArgument(fmt.Sprintf(format, args...)))
		}
	}
	check(c.MaxTicks <= 0, "max ticks must be > 0, got %d", c.MaxTicks)
	check(c.QueueCapacity <= 0, "queue capacity must be > 0, got %d", c.QueueCapacity)
	check(c.RotationInterval <= 0, "rotation interval must be > 0, got %d", c.RotationInterval)
	check(c.ParcelsPerTickMin < 0, "parcels per tick min must be >= 0, got %d", c.ParcelsPerTickMin)
	check(c.ParcelsPerTickMax < c.ParcelsPerTickMin, "parcels per tick max (%d) must be >= min (%d)", c.ParcelsPerTickMax, c.ParcelsPerTickMin)
	check(math.IsNaN(c.MisroutingRate) || c.MisroutingRate < 0 || c.MisroutingRate > 1, "misrouting rate must be within [0, 1], got %v", c.MisroutingRate)
	check(len(c.Terminals) == 0, "terminal list must not be empty")
	for i, t := range c.Terminals {
		check(strings.TrimSpace(t) == "", "blank terminal name at index %d", i)
	}
	check(!IsValidRotationMode(string(c.RotationMode)), "unknown rotation mode %q", c.RotationMode)
	check(c.SortBatchSize < 0, "sort batch size must be >= 0, got %d", c.SortBatchSize)
	check(c.RetryEvery < 0, "retry period must be >= 0, got %d", c.RetryEvery)
	check(c.MaxRetries != nil && *c.MaxRetries < 0, "max retries must be >= 0, got %d", c.retryLimit())
	check(c.RegistryCapacity < 0, "registry capacity must be >= 0, got %d", c.RegistryCapacity)
	return errors.Join(errs...)
}

// RetryLimit returns a MaxRetries value that is explicitly set to n.
func RetryLimit(n int) *int {
	return &n
}

func (c HubConfig) retryLimit() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}
