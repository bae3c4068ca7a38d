package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcel-sim/parcel-sim/sim"
	"github.com/parcel-sim/parcel-sim/sim/export"
)

// newTestCommand registers fresh flags, resetting the package-level flag values.
func newTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addConfigFlags(c)
	manifestPath, tickLogPath, reportPath, exportTarget = "", "", "", ""
	exportFormat = export.FormatText
	t.Cleanup(func() {
		configPath, manifestPath, tickLogPath, reportPath, exportTarget = "", "", "", "", ""
		exportFormat = export.FormatText
	})
	return c
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	// GIVEN a config file and explicit flags
	c := newTestCommand(t)
	configPath = writeTemp(t, "config.txt", "MAX_TICKS=300\nQUEUE_CAPACITY=5\nTERMINAL_ROTATION_INTERVAL=2\nPARCEL_PER_TICK_MIN=1\nPARCEL_PER_TICK_MAX=2\nMISROUTING_RATE=0.5\nCITY_LIST=A,B\n")
	require.NoError(t, c.Flags().Set("max-ticks", "9"))
	require.NoError(t, c.Flags().Set("rotation-mode", "load-aware"))

	// WHEN the config is resolved
	cfg, err := resolveConfig(c)

	// THEN flags win, untouched flags do not, and defaults are filled
	require.NoError(t, err)
	assert.Equal(t, int64(9), cfg.MaxTicks)
	assert.Equal(t, sim.RotationLoadAware, cfg.RotationMode)
	assert.InDelta(t, 0.5, cfg.MisroutingRate, 1e-12)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, sim.DefaultSortBatchSize, cfg.SortBatchSize)
}

func TestResolveConfig_InvalidConfigRejected(t *testing.T) {
	c := newTestCommand(t)
	configPath = writeTemp(t, "config.txt", "MAX_TICKS=0\nCITY_LIST=A\n")
	_, err := resolveConfig(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max ticks must be > 0")
}

func TestResolveConfig_NaNMisroutingRateRejected(t *testing.T) {
	c := newTestCommand(t)
	configPath = writeTemp(t, "config.txt", "MAX_TICKS=5\nCITY_LIST=A\nMISROUTING_RATE=NaN\n")
	_, err := resolveConfig(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "misrouting rate must be within [0, 1]")
}

func TestResolveConfig_ExplicitZeroSeedAndRetriesHonored(t *testing.T) {
	// GIVEN a file that sets SEED and MAX_RETRIES to zero and no --seed flag
	c := newTestCommand(t)
	configPath = writeTemp(t, "config.txt", "MAX_TICKS=5\nCITY_LIST=A\nSEED=0\nMAX_RETRIES=0\n")

	// WHEN resolved
	cfg, err := resolveConfig(c)

	// THEN neither zero is replaced by a default
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Seed)
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, 0, *cfg.MaxRetries)
}

func TestResolveConfig_SeedDefaultAndFlag(t *testing.T) {
	c := newTestCommand(t)
	cfg, err := resolveConfig(c)
	require.NoError(t, err)
	assert.Equal(t, int64(defaultSeed), cfg.Seed)

	require.NoError(t, c.Flags().Set("seed", "0"))
	cfg, err = resolveConfig(c)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Seed)
}

func TestResolveConfig_DefaultsWithoutFile(t *testing.T) {
	c := newTestCommand(t)
	cfg, err := resolveConfig(c)
	require.NoError(t, err)
	assert.Equal(t, defaultHubConfig().Terminals, cfg.Terminals)
}

func TestRunHub_WritesReportTickLogAndExport(t *testing.T) {
	// GIVEN a small run with a tick log and a SQLite export
	c := newTestCommand(t)
	dir := t.TempDir()
	configPath = writeTemp(t, "config.txt", "MAX_TICKS=15\nQUEUE_CAPACITY=4\nTERMINAL_ROTATION_INTERVAL=2\nPARCEL_PER_TICK_MIN=1\nPARCEL_PER_TICK_MAX=3\nMISROUTING_RATE=0.2\nCITY_LIST=Istanbul,Ankara,Izmir\n")
	tickLogPath = filepath.Join(dir, "log.txt")
	exportTarget = filepath.Join(dir, "hub.db")
	exportFormat = export.FormatSQLite

	// WHEN the hub runs
	var stdout bytes.Buffer
	require.NoError(t, runHub(c, &stdout))

	// THEN the report goes to stdout
	report := stdout.String()
	assert.Contains(t, report, "PARCEL HUB SIMULATION REPORT")
	assert.Contains(t, report, "Ticks executed: 15 of 15")
	assert.Contains(t, report, "Index balanced:         OK")

	// AND the tick log covers every tick
	log, err := os.ReadFile(tickLogPath)
	require.NoError(t, err)
	assert.Equal(t, 15, strings.Count(string(log), "[Tick "))

	// AND the registry landed in SQLite
	sink, err := export.OpenSQLite(exportTarget)
	require.NoError(t, err)
	defer sink.Close()
	var runs int
	require.NoError(t, sink.DB().QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs))
	assert.Equal(t, 1, runs)
}

func TestRunHub_ManifestSource(t *testing.T) {
	c := newTestCommand(t)
	manifestPath = writeTemp(t, "parcels.yaml", "parcels:\n  - {id: M1, destination: Ankara, priority: 2, size: small, tick: 1}\n")
	require.NoError(t, c.Flags().Set("max-ticks", "5"))
	require.NoError(t, c.Flags().Set("misrouting-rate", "0"))
	reportPath = filepath.Join(t.TempDir(), "report.txt")

	var stdout bytes.Buffer
	require.NoError(t, runHub(c, &stdout))
	assert.Zero(t, stdout.Len())

	report, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "Most dispatched: Ankara (1)")
}

func TestRunHub_UnknownExportFormat(t *testing.T) {
	c := newTestCommand(t)
	exportTarget = filepath.Join(t.TempDir(), "out")
	exportFormat = "csv"
	var stdout bytes.Buffer
	err := runHub(c, &stdout)
	assert.ErrorContains(t, err, "unknown export format")
}

func TestWriteEffectiveConfig_RoundTripsThroughLoader(t *testing.T) {
	// GIVEN an effective config rendered as YAML
	cfg := defaultHubConfig().WithDefaults()
	cfg.Seed = 11
	var buf bytes.Buffer
	require.NoError(t, writeEffectiveConfig(&buf, cfg))

	// WHEN the output is loaded back as a config file
	loaded, err := LoadHubConfig(writeTemp(t, "effective.yaml", buf.String()), sim.HubConfig{})

	// THEN it describes the same hub
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
