package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parcel-sim/parcel-sim/sim/internal/testutil"
)

func TestCalculatePercentile_Interpolates(t *testing.T) {
	data := []int64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, CalculatePercentile(data, 0))
	assert.Equal(t, 3.0, CalculatePercentile(data, 50))
	assert.Equal(t, 5.0, CalculatePercentile(data, 100))
	testutil.AssertFloat64Equal(t, "p90", 4.6, CalculatePercentile(data, 90), 1e-9)
}

func TestCalculatePercentile_EmptyAndSingle(t *testing.T) {
	assert.Equal(t, 0.0, CalculatePercentile([]int{}, 50))
	assert.Equal(t, 7.0, CalculatePercentile([]float64{7}, 99))
}

func TestCalculateMean(t *testing.T) {
	assert.Equal(t, 0.0, CalculateMean([]int{}))
	assert.Equal(t, 2.5, CalculateMean([]int{1, 2, 3, 4}))
}
