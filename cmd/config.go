package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/parcel-sim/parcel-sim/sim"
)

// EnvPrefix marks environment variables that override config file keys,
// e.g. PARCELSIM_MAX_TICKS=200.
const EnvPrefix = "PARCELSIM_"

// HubFile is the YAML form of a hub configuration.
// All fields must be listed to satisfy KnownFields(true) strict parsing.
type HubFile struct {
	MaxTicks          int64    `yaml:"max_ticks"`
	QueueCapacity     int      `yaml:"queue_capacity"`
	RotationInterval  int      `yaml:"rotation_interval"`
	ParcelsPerTickMin int      `yaml:"parcels_per_tick_min"`
	ParcelsPerTickMax int      `yaml:"parcels_per_tick_max"`
	MisroutingRate    float64  `yaml:"misrouting_rate"`
	Terminals         []string `yaml:"terminals"`
	RotationMode      string   `yaml:"rotation_mode"`
	SortBatchSize     int      `yaml:"sort_batch_size"`
	RetryEvery        int      `yaml:"retry_every"`
	MaxRetries        *int     `yaml:"max_retries,omitempty"`
	RegistryCapacity  int      `yaml:"registry_capacity"`
	SnapshotEvery     int      `yaml:"snapshot_every"`
	Seed              int64    `yaml:"seed"`
}

// hubFileOf renders cfg as a HubFile. MaxRetries is copied so decoding YAML into
// the result never writes through to cfg.
func hubFileOf(cfg sim.HubConfig) HubFile {
	f := HubFile{
		MaxTicks:          cfg.MaxTicks,
		QueueCapacity:     cfg.QueueCapacity,
		RotationInterval:  cfg.RotationInterval,
		ParcelsPerTickMin: cfg.ParcelsPerTickMin,
		ParcelsPerTickMax: cfg.ParcelsPerTickMax,
		MisroutingRate:    cfg.MisroutingRate,
		Terminals:         cfg.Terminals,
		RotationMode:      string(cfg.RotationMode),
		SortBatchSize:     cfg.SortBatchSize,
		RetryEvery:        cfg.RetryEvery,
		RegistryCapacity:  cfg.RegistryCapacity,
		SnapshotEvery:     cfg.SnapshotEvery,
		Seed:              cfg.Seed,
	}
	if cfg.MaxRetries != nil {
		f.MaxRetries = sim.RetryLimit(*cfg.MaxRetries)
	}
	return f
}

func (f HubFile) toConfig() sim.HubConfig {
	return sim.HubConfig{
		MaxTicks:          f.MaxTicks,
		QueueCapacity:     f.QueueCapacity,
		RotationInterval:  f.RotationInterval,
		ParcelsPerTickMin: f.ParcelsPerTickMin,
		ParcelsPerTickMax: f.ParcelsPerTickMax,
		MisroutingRate:    f.MisroutingRate,
		Terminals:         normalizeTerminals(f.Terminals),
		RotationMode:      sim.RotationMode(f.RotationMode),
		SortBatchSize:     f.SortBatchSize,
		RetryEvery:        f.RetryEvery,
		MaxRetries:        f.MaxRetries,
		RegistryCapacity:  f.RegistryCapacity,
		SnapshotEvery:     f.SnapshotEvery,
		Seed:              f.Seed,
	}
}

// LoadHubConfig layers path over base: YAML (.yaml, .yml) or KEY=VALUE lines
// otherwise, then PARCELSIM_* environment overrides. Keys absent from both keep
// base's value, so an explicit zero in the file is honored. The result is not validated.
func LoadHubConfig(path string, base sim.HubConfig) (sim.HubConfig, error) {
	cfg := base
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading hub config: %w", err)
		}
		f := hubFileOf(base)
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&f); err != nil {
			return cfg, fmt.Errorf("parsing hub config: %w", err)
		}
		cfg = f.toConfig()
	default:
		kv, err := godotenv.Read(path)
		if err != nil {
			return cfg, fmt.Errorf("reading hub config: %w", err)
		}
		if err := applyKeyValues(&cfg, upperKeys(kv), true); err != nil {
			return cfg, fmt.Errorf("parsing hub config: %w", err)
		}
	}
	if err := applyKeyValues(&cfg, envOverrides(os.Environ()), false); err != nil {
		return cfg, fmt.Errorf("applying %s overrides: %w", EnvPrefix, err)
	}
	return cfg, nil
}

// loadDotEnv loads .env into the process environment if the file exists.
// Variables already set in the environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("ignoring .env: %v", err)
	}
}

func upperKeys(kv map[string]string) map[string]string {
	out := make(map[string]string, len(kv))
	for k, v := range kv {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// envOverrides extracts PARCELSIM_<KEY>=value pairs as KEY=value.
func envOverrides(environ []string) map[string]string {
	out := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		out[strings.TrimPrefix(key, EnvPrefix)] = value
	}
	return out
}

// applyKeyValues sets every recognized key on cfg. Unknown keys are logged when
// warnUnknown is set (config files) and ignored otherwise (environment).
func applyKeyValues(cfg *sim.HubConfig, kv map[string]string, warnUnknown bool) error {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	intField := func(key, value string, dst *int) {
		n, err := strconv.Atoi(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, value))
			return
		}
		*dst = n
	}
	for _, key := range keys {
		value := kv[key]
		switch key {
		case "MAX_TICKS":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, value))
				continue
			}
			cfg.MaxTicks = n
		case "SEED":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, value))
				continue
			}
			cfg.Seed = n
		case "QUEUE_CAPACITY":
			intField(key, value, &cfg.QueueCapacity)
		case "TERMINAL_ROTATION_INTERVAL":
			intField(key, value, &cfg.RotationInterval)
		case "PARCEL_PER_TICK_MIN":
			intField(key, value, &cfg.ParcelsPerTickMin)
		case "PARCEL_PER_TICK_MAX":
			intField(key, value, &cfg.ParcelsPerTickMax)
		case "SORT_BATCH_SIZE":
			intField(key, value, &cfg.SortBatchSize)
		case "RETRY_EVERY":
			intField(key, value, &cfg.RetryEvery)
		case "MAX_RETRIES":
			n, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, value))
				continue
			}
			cfg.MaxRetries = sim.RetryLimit(n)
		case "REGISTRY_CAPACITY":
			intField(key, value, &cfg.RegistryCapacity)
		case "SNAPSHOT_EVERY":
			intField(key, value, &cfg.SnapshotEvery)
		case "MISROUTING_RATE":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a number", key, value))
				continue
			}
			cfg.MisroutingRate = f
		case "CITY_LIST":
			cfg.Terminals = normalizeTerminals(strings.Split(value, ","))
		case "ROTATION_MODE":
			cfg.RotationMode = sim.RotationMode(value)
		default:
			if warnUnknown {
				logrus.Warnf("unknown config key: %s", key)
			}
		}
	}
	return errors.Join(errs...)
}

// normalizeTerminals trims and NFC-normalizes names. Blank entries are kept so
// HubConfig.Validate can reject them.
func normalizeTerminals(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, norm.NFC.String(strings.TrimSpace(n)))
	}
	return out
}
