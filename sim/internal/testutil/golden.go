// Package testutil provides shared test helpers for the parcel hub packages:
// golden-file comparison of rendered output and tolerant float comparison.
package testutil

import (
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden files live, relative to the calling test's package.
const GoldenDir = "testdata/golden"

// AssertGolden compares got byte-for-byte against testdata/golden/<name>.golden.
// Run the tests with -update to rewrite the fixture from the current output.
func AssertGolden(t *testing.T, name string, got []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, got)
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
