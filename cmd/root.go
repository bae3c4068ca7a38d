package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/parcel-sim/parcel-sim/sim"
	"github.com/parcel-sim/parcel-sim/sim/export"
	"github.com/parcel-sim/parcel-sim/sim/trace"
	"github.com/parcel-sim/parcel-sim/sim/workload"
)

var (
	configPath     string  // KEY=VALUE or YAML hub configuration
	manifestPath   string  // optional YAML parcel manifest replacing the generator
	seed           int64   // Seed for parcel generation and misroute draws
	maxTicks       int64   // Overrides MAX_TICKS
	misroutingRate float64 // Overrides MISROUTING_RATE
	rotationMode   string  // Overrides ROTATION_MODE
	logLevel       string  // Log verbosity level
	tickLogPath    string  // Per-tick decision log output ("" disables)
	reportPath     string  // Final report output ("" writes to stdout)
	exportTarget   string  // Registry export target ("" disables)
	exportFormat   string  // text, sqlite or postgres
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "parcel-sim",
	Short: "Tick-driven simulator for a parcel sorting hub",
}

// runCmd executes the simulation using the loaded configuration and CLI overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the hub simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if err := runHub(cmd, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd loads and checks a configuration without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a hub configuration and print the effective values",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := writeEffectiveConfig(cmd.OutOrStdout(), cfg); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// defaultSeed seeds runs whose file, environment and flags leave SEED unset.
const defaultSeed = 42

// defaultHubConfig is the base every config file and override is layered on.
func defaultHubConfig() sim.HubConfig {
	return sim.HubConfig{
		Seed:              defaultSeed,
		MaxTicks:          50,
		QueueCapacity:     10,
		RotationInterval:  3,
		ParcelsPerTickMin: 1,
		ParcelsPerTickMax: 3,
		MisroutingRate:    0.1,
		Terminals:         []string{"Istanbul", "Ankara", "Izmir", "Bursa", "Antalya"},
	}
}

// resolveConfig layers the config file, PARCELSIM_* variables and explicit flags,
// fills defaults and validates the result.
func resolveConfig(cmd *cobra.Command) (sim.HubConfig, error) {
	loadDotEnv()
	cfg := defaultHubConfig()
	if configPath != "" {
		loaded, err := LoadHubConfig(configPath, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	applyFlagOverrides(cmd, &cfg)
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid hub config: %w", err)
	}
	return cfg, nil
}

// applyFlagOverrides copies flags the user set explicitly onto cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *sim.HubConfig) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("max-ticks") {
		cfg.MaxTicks = maxTicks
	}
	if flags.Changed("misrouting-rate") {
		cfg.MisroutingRate = misroutingRate
	}
	if flags.Changed("rotation-mode") {
		cfg.RotationMode = sim.RotationMode(rotationMode)
	}
}

// runHub runs one simulation and writes the requested outputs.
func runHub(cmd *cobra.Command, stdout io.Writer) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if exportTarget != "" && !export.IsValidFormat(exportFormat) {
		return fmt.Errorf("unknown export format %q; valid: text, sqlite, postgres", exportFormat)
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	source, err := buildSource(cfg, rng)
	if err != nil {
		return err
	}
	s, err := sim.NewSimulator(cfg, source, rng)
	if err != nil {
		return err
	}
	if tickLogPath != "" {
		s.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelTicks})
	}

	logrus.Infof("Starting simulation: ticks=%d, queue=%d, terminals=%v, rotation=%s/%d, misrouting=%.2f, seed=%d",
		cfg.MaxTicks, cfg.QueueCapacity, cfg.Terminals, cfg.RotationMode, cfg.RotationInterval, cfg.MisroutingRate, cfg.Seed)
	s.Run()
	if s.Metrics.Rejected > 0 {
		logrus.Warnf("%d parcel(s) rejected during the run; see the tick log for details", s.Metrics.Rejected)
	}

	if tickLogPath != "" {
		if err := writeFile(tickLogPath, func(w io.Writer) error { return trace.WriteTickLog(w, s.Trace) }); err != nil {
			return err
		}
		sum := trace.Summarize(s.Trace)
		logrus.Infof("Tick log: %d ticks, %d dispatched, %d misrouted, %d dropped, %d idle",
			sum.Ticks, sum.Dispatched, sum.Misrouted, sum.Dropped, sum.IdleTicks)
	}
	if reportPath != "" {
		if err := writeFile(reportPath, s.WriteReport); err != nil {
			return err
		}
	} else if err := s.WriteReport(stdout); err != nil {
		return err
	}
	if exportTarget != "" {
		if err := exportRegistry(cmd.Context(), s); err != nil {
			return err
		}
	}
	return nil
}

func buildSource(cfg sim.HubConfig, rng *sim.PartitionedRNG) (sim.ParcelSource, error) {
	if manifestPath == "" {
		return workload.NewGenerator(cfg, rng)
	}
	m, err := workload.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if last := m.LastTick(); last > cfg.MaxTicks {
		logrus.Warnf("manifest has arrivals up to tick %d but the run stops at %d", last, cfg.MaxTicks)
	}
	return workload.NewManifestSource(m), nil
}

func exportRegistry(ctx context.Context, s *sim.Simulator) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sink, err := export.Open(exportFormat, exportTarget)
	if err != nil {
		return err
	}
	defer sink.Close()
	if err := sink.Export(ctx, export.NewSnapshot(s)); err != nil {
		return fmt.Errorf("export to %s failed: %w", exportFormat, err)
	}
	logrus.Infof("Registry exported (%s)", exportFormat)
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeEffectiveConfig(w io.Writer, cfg sim.HubConfig) error {
	out, err := yaml.Marshal(hubFileOf(cfg))
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addConfigFlags registers the flags shared by run and validate.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Hub configuration file (KEY=VALUE, or YAML with .yaml/.yml)")
	cmd.Flags().Int64Var(&seed, "seed", defaultSeed, "Seed for parcel generation and misroute decisions")
	cmd.Flags().Int64Var(&maxTicks, "max-ticks", 0, "Number of ticks to simulate (overrides MAX_TICKS)")
	cmd.Flags().Float64Var(&misroutingRate, "misrouting-rate", 0, "Probability in [0,1] that a dispatch fails (overrides MISROUTING_RATE)")
	cmd.Flags().StringVar(&rotationMode, "rotation-mode", "fixed", "Terminal rotation mode (fixed, load-aware)")
	cmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

// init sets up CLI flags and subcommands
func init() {
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML parcel manifest to replay instead of random generation")
	runCmd.Flags().StringVar(&tickLogPath, "tick-log", "", "Write the per-tick decision log to this file")
	runCmd.Flags().StringVar(&reportPath, "report", "", "Write the final report to this file instead of stdout")
	runCmd.Flags().StringVar(&exportTarget, "export", "", "Export the registry: file path (text, sqlite) or connection URL (postgres)")
	runCmd.Flags().StringVar(&exportFormat, "export-format", export.FormatText, "Export format (text, sqlite, postgres)")

	addConfigFlags(validateCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
