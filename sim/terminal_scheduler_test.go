package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, interval int, mode RotationMode, names ...string) *TerminalScheduler {
	t.Helper()
	ts, err := NewTerminalScheduler(interval, mode)
	require.NoError(t, err)
	require.NoError(t, ts.Initialize(names))
	return ts
}

func TestTerminalScheduler_Fixed_RotatesEveryInterval(t *testing.T) {
	// GIVEN [A, B, C] rotating every 2 ticks
	ts := newScheduler(t, 2, RotationFixed, "A", "B", "C")
	cur, ok := ts.Current()
	require.True(t, ok)
	assert.Equal(t, "A", cur)

	// WHEN one tick passes THEN nothing rotates
	assert.False(t, ts.Tick(1))
	cur, _ = ts.Current()
	assert.Equal(t, "A", cur)

	// WHEN the second tick passes THEN B becomes active
	assert.True(t, ts.Tick(2))
	cur, _ = ts.Current()
	assert.Equal(t, "B", cur)

	// AND the ring wraps after C
	ts.Tick(3)
	ts.Tick(4)
	ts.Tick(5)
	ts.Tick(6)
	cur, _ = ts.Current()
	assert.Equal(t, "A", cur)

	history := ts.History()
	require.Len(t, history, 3)
	assert.Equal(t, RotationEvent{Tick: 2, From: "A", To: "B"}, history[0])
	assert.Equal(t, RotationEvent{Tick: 6, From: "C", To: "A"}, history[2])
}

func TestTerminalScheduler_LoadAware_FirstMaxAfterCurrent(t *testing.T) {
	// GIVEN loads {A:1, B:5, C:5} with A active
	ts := newScheduler(t, 2, RotationLoadAware, "A", "B", "C")
	ts.UpdatePendingLoad("A", 1)
	ts.UpdatePendingLoad("B", 5)
	ts.UpdatePendingLoad("C", 5)

	// WHEN the interval elapses
	ts.Tick(1)
	ts.Tick(2)

	// THEN B, the first maximum encountered after A, is selected
	cur, _ := ts.Current()
	assert.Equal(t, "B", cur)
	assert.Equal(t, 5, ts.History()[0].Load)
}

func TestTerminalScheduler_LoadAware_CurrentWinsTie(t *testing.T) {
	ts := newScheduler(t, 1, RotationLoadAware, "A", "B", "C")
	ts.UpdatePendingLoad("A", 3)
	ts.UpdatePendingLoad("B", 3)

	assert.True(t, ts.Tick(1))
	cur, _ := ts.Current()
	assert.Equal(t, "A", cur)
	assert.Equal(t, RotationEvent{Tick: 1, From: "A", To: "A", Load: 3}, ts.History()[0])
}

func TestTerminalScheduler_Initialize_Invalid(t *testing.T) {
	ts, err := NewTerminalScheduler(1, RotationFixed)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeInvalidArgument, CodeOf(ts.Initialize(nil)))
	assert.Equal(t, ErrCodeInvalidArgument, CodeOf(ts.Initialize([]string{"A", " "})))
	assert.False(t, ts.Initialized())
}

func TestTerminalScheduler_Uninitialized_ReportsAbsent(t *testing.T) {
	ts, err := NewTerminalScheduler(1, "")
	require.NoError(t, err)
	assert.Equal(t, RotationFixed, ts.Mode())

	_, ok := ts.Current()
	assert.False(t, ok)
	assert.False(t, ts.Tick(1))
}

func TestNewTerminalScheduler_BadArguments(t *testing.T) {
	_, err := NewTerminalScheduler(0, RotationFixed)
	assert.Equal(t, ErrCodeInvalidArgument, CodeOf(err))
	_, err = NewTerminalScheduler(1, "round-robin")
	assert.Equal(t, ErrCodeInvalidArgument, CodeOf(err))
}

func TestTerminalScheduler_UpdatePendingLoad_UnknownIgnored(t *testing.T) {
	ts := newScheduler(t, 1, RotationLoadAware, "A", "B")
	ts.UpdatePendingLoad("Z", 99)
	for _, term := range ts.Terminals() {
		assert.Equal(t, 0, term.PendingLoad)
	}
}
