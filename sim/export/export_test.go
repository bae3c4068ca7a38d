package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcel-sim/parcel-sim/sim"
	"github.com/parcel-sim/parcel-sim/sim/internal/testutil"
)

func fixtureSnapshot() Snapshot {
	return Snapshot{
		RunID:      "0190f5a4-7c00-7000-8000-000000000001",
		Seed:       42,
		Ticks:      5,
		Capacity:   30,
		LoadFactor: 2.0 / 30.0,
		Counters:   sim.Counters{Generated: 2, Enqueued: 2, Dispatched: 1, Returned: 1, ReturnEvents: 1},
		Records: []sim.Record{
			{
				ID: "P00001", Status: sim.StatusDispatched, ArrivalTick: 1, DispatchTick: 2,
				Destination: "Izmir", Priority: sim.PriorityHigh, Size: sim.SizeSmall,
				History: []sim.StatusChange{
					{Status: sim.StatusDispatched, Tick: 2},
					{Status: sim.StatusSorted, Tick: 1},
					{Status: sim.StatusInQueue, Tick: 1},
				},
			},
			{
				ID: "P00002", Status: sim.StatusReturned, ArrivalTick: 1, DispatchTick: sim.NotDispatched, ReturnCount: 1,
				Destination: "Ankara", Priority: sim.PriorityLow, Size: sim.SizeLarge,
				History: []sim.StatusChange{
					{Status: sim.StatusReturned, Tick: 3},
					{Status: sim.StatusSorted, Tick: 2},
					{Status: sim.StatusInQueue, Tick: 1},
				},
			},
		},
	}
}

type oneTickSource []*sim.Parcel

func (s oneTickSource) GenerateParcelsForTick(tick int64) []*sim.Parcel {
	if tick == 1 {
		return s
	}
	return nil
}

func TestTextSink_MatchesGolden(t *testing.T) {
	// GIVEN a fixed snapshot
	var buf bytes.Buffer

	// WHEN it is exported as text
	require.NoError(t, NewTextSink(&buf).Export(context.Background(), fixtureSnapshot()))

	// THEN the output matches the stable key-value format byte for byte
	testutil.AssertGolden(t, "registry_export", buf.Bytes())
}

func TestTextSink_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	assert.ErrorIs(t, NewTextSink(&buf).Export(ctx, fixtureSnapshot()), context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestNewSnapshot_FromSimulator(t *testing.T) {
	// GIVEN a two-tick run with one parcel
	cfg := sim.HubConfig{MaxTicks: 2, QueueCapacity: 2, RotationInterval: 1, Terminals: []string{"Izmir"}, Seed: 9}
	s, err := sim.NewSimulator(cfg, oneTickSource{sim.NewParcel("P1", "Izmir", sim.PriorityLow, sim.SizeSmall, 1)}, nil)
	require.NoError(t, err)
	s.Run()

	// WHEN a snapshot is taken
	snap := NewSnapshot(s)

	// THEN it mirrors the registry
	assert.Equal(t, s.RunID, snap.RunID)
	assert.Equal(t, int64(9), snap.Seed)
	assert.Equal(t, int64(2), snap.Ticks)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, sim.StatusDispatched, snap.Records[0].Status)
	assert.Equal(t, 1, snap.Counters.Dispatched)
}

func TestOpen_TextFileAndUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.txt")
	sink, err := Open(FormatText, path)
	require.NoError(t, err)
	require.NoError(t, sink.Export(context.Background(), fixtureSnapshot()))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Parcel ID: P00002")

	_, err = Open("csv", path)
	assert.ErrorContains(t, err, "unknown export format")
	assert.False(t, IsValidFormat("csv"))
	assert.True(t, IsValidFormat(FormatPostgres))
}

func TestDialect_Rebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"
	assert.Equal(t, q, dialectSQLite.rebind(q))
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", dialectPostgres.rebind(q))
}

// assertStored checks the rows an exported fixture snapshot leaves behind.
func assertStored(t *testing.T, sink *SQLSink, runID string) {
	t.Helper()
	db := sink.DB()

	var total, dispatched int
	require.NoError(t, db.QueryRow(sink.dialect.rebind("SELECT total_parcels, dispatched FROM runs WHERE run_id = ?"), runID).Scan(&total, &dispatched))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, dispatched)

	var parcels int
	require.NoError(t, db.QueryRow(sink.dialect.rebind("SELECT COUNT(*) FROM parcels WHERE run_id = ?"), runID).Scan(&parcels))
	assert.Equal(t, 2, parcels)

	var dispatchTick int64
	require.NoError(t, db.QueryRow(sink.dialect.rebind("SELECT dispatch_tick FROM parcels WHERE run_id = ? AND parcel_id = ?"), runID, "P00002").Scan(&dispatchTick))
	assert.Equal(t, sim.NotDispatched, dispatchTick)

	rows, err := db.Query(sink.dialect.rebind("SELECT status FROM status_history WHERE run_id = ? AND parcel_id = ? ORDER BY seq"), runID, "P00001")
	require.NoError(t, err)
	defer rows.Close()
	var statuses []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		statuses = append(statuses, s)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"InQueue", "Sorted", "Dispatched"}, statuses)
}

func TestSQLiteSink_Export(t *testing.T) {
	// GIVEN a fresh SQLite file
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	defer sink.Close()

	// WHEN the snapshot is exported
	snap := fixtureSnapshot()
	require.NoError(t, sink.Export(context.Background(), snap))

	// THEN runs, parcels and ordered history are stored
	assertStored(t, sink, snap.RunID)

	// AND exporting the same run again fails without partial writes
	err = sink.Export(context.Background(), snap)
	require.Error(t, err)
	var parcels int
	require.NoError(t, sink.DB().QueryRow("SELECT COUNT(*) FROM parcels").Scan(&parcels))
	assert.Equal(t, 2, parcels)
}

func TestSQLiteSink_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.db")
	first, err := OpenSQLite(path)
	require.NoError(t, err)
	snap := fixtureSnapshot()
	require.NoError(t, first.Export(context.Background(), snap))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()
	snap.RunID = uuid.NewString()
	require.NoError(t, second.Export(context.Background(), snap))

	var runs int
	require.NoError(t, second.DB().QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs))
	assert.Equal(t, 2, runs)
}

func TestPostgresSink_Export(t *testing.T) {
	dsn := os.Getenv("PARCELSIM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PARCELSIM_TEST_POSTGRES_DSN not set")
	}
	sink, err := OpenPostgres(dsn)
	require.NoError(t, err)
	defer sink.Close()

	snap := fixtureSnapshot()
	snap.RunID = uuid.NewString()
	require.NoError(t, sink.Export(context.Background(), snap))
	assertStored(t, sink, snap.RunID)
}
