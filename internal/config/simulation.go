package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/sensor.sim/internal/fsutil"
	"github.com/banshee-data/sensor.sim/internal/kalman"
	"github.com/banshee-data/sensor.sim/internal/telemetry"
	"github.com/banshee-data/sensor.sim/internal/thermal"
	"github.com/banshee-data/sensor.sim/internal/units"
)

// DefaultConfigPath is the path to the canonical simulation defaults file.
const DefaultConfigPath = "config/simulation.defaults.json"

// SimulationConfig represents the simulator configuration. Every field is
// optional; the Get* methods fall back to the built-in defaults, so partial
// files are safe. The same keys are accepted from JSON, TOML and YAML files.
type SimulationConfig struct {
	// Sensor and environment
	AmbientTemperature *float64 `json:"ambient_temperature,omitempty" toml:"ambient_temperature" yaml:"ambient_temperature,omitempty"`
	ResponseTime       *float64 `json:"response_time,omitempty" toml:"response_time" yaml:"response_time,omitempty"` // seconds
	NoiseLevel         *float64 `json:"noise_level,omitempty" toml:"noise_level" yaml:"noise_level,omitempty"`
	ClampAmbient       *bool    `json:"clamp_ambient,omitempty" toml:"clamp_ambient" yaml:"clamp_ambient,omitempty"`
	RandomSeed         *uint64  `json:"random_seed,omitempty" toml:"random_seed" yaml:"random_seed,omitempty"`

	// Scheduling
	TickInterval    *string `json:"tick_interval,omitempty" toml:"tick_interval" yaml:"tick_interval,omitempty"`       // duration string like "100ms"
	SampleInterval  *string `json:"sample_interval,omitempty" toml:"sample_interval" yaml:"sample_interval,omitempty"` // duration string like "5s"
	HistoryCapacity *int    `json:"history_capacity,omitempty" toml:"history_capacity" yaml:"history_capacity,omitempty"`

	// Estimator
	KalmanInitialEstimate     *float64 `json:"kalman_initial_estimate,omitempty" toml:"kalman_initial_estimate" yaml:"kalman_initial_estimate,omitempty"`
	KalmanInitialVariance     *float64 `json:"kalman_initial_variance,omitempty" toml:"kalman_initial_variance" yaml:"kalman_initial_variance,omitempty"`
	KalmanProcessVariance     *float64 `json:"kalman_process_variance,omitempty" toml:"kalman_process_variance" yaml:"kalman_process_variance,omitempty"`
	KalmanMeasurementVariance *float64 `json:"kalman_measurement_variance,omitempty" toml:"kalman_measurement_variance" yaml:"kalman_measurement_variance,omitempty"`

	// Export
	TemperatureUnit *string `json:"temperature_unit,omitempty" toml:"temperature_unit" yaml:"temperature_unit,omitempty"`
	Timezone        *string `json:"timezone,omitempty" toml:"timezone" yaml:"timezone,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySimulationConfig returns a SimulationConfig with all fields nil.
func EmptySimulationConfig() *SimulationConfig {
	return &SimulationConfig{}
}

// DefaultSimulationConfig returns a config with every field set to its
// default value.
func DefaultSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		AmbientTemperature:        ptrFloat64(thermal.DefaultAmbient),
		ResponseTime:              ptrFloat64(thermal.DefaultResponseTime),
		NoiseLevel:                ptrFloat64(thermal.DefaultNoiseLevel),
		ClampAmbient:              ptrBool(true),
		TickInterval:              ptrString("100ms"),
		SampleInterval:            ptrString("5s"),
		HistoryCapacity:           ptrInt(telemetry.DefaultCapacity),
		KalmanInitialEstimate:     ptrFloat64(kalman.DefaultInitialEstimate),
		KalmanInitialVariance:     ptrFloat64(kalman.DefaultInitialVariance),
		KalmanProcessVariance:     ptrFloat64(kalman.DefaultProcessVariance),
		KalmanMeasurementVariance: ptrFloat64(kalman.DefaultMeasurementVariance),
		TemperatureUnit:           ptrString(units.Celsius),
		Timezone:                  ptrString("UTC"),
	}
}

// LoadSimulationConfig loads a SimulationConfig from a .json, .toml, .yaml
// or .yml file and validates it.
func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	return LoadSimulationConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadSimulationConfigFS is LoadSimulationConfig reading through fsys.
func LoadSimulationConfigFS(fsys fsutil.FileSystem, path string) (*SimulationConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".toml", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .toml or .yaml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySimulationConfig()
	switch ext {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfigFS loads DefaultConfigPath from fsys when it exists. A
// missing file yields an empty config, so every accessor returns its
// built-in default.
func LoadDefaultConfigFS(fsys fsutil.FileSystem) (*SimulationConfig, error) {
	if _, err := fsys.Stat(DefaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return EmptySimulationConfig(), nil
	}
	return LoadSimulationConfigFS(fsys, DefaultConfigPath)
}

// Validate checks that the configuration values are valid.
func (c *SimulationConfig) Validate() error {
	if c.AmbientTemperature != nil {
		v := *c.AmbientTemperature
		if v < thermal.MinAmbient || v > thermal.MaxAmbient {
			return fmt.Errorf("ambient_temperature must be between %.0f and %.0f, got %f", thermal.MinAmbient, thermal.MaxAmbient, v)
		}
	}
	if c.ResponseTime != nil && *c.ResponseTime <= 0 {
		return fmt.Errorf("response_time must be positive, got %f", *c.ResponseTime)
	}
	if c.NoiseLevel != nil && *c.NoiseLevel < 0 {
		return fmt.Errorf("noise_level must be non-negative, got %f", *c.NoiseLevel)
	}
	if c.HistoryCapacity != nil && *c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be at least 1, got %d", *c.HistoryCapacity)
	}

	for name, v := range map[string]*string{"tick_interval": c.TickInterval, "sample_interval": c.SampleInterval} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if c.KalmanInitialVariance != nil && *c.KalmanInitialVariance < 0 {
		return fmt.Errorf("kalman_initial_variance must be non-negative, got %f", *c.KalmanInitialVariance)
	}
	if c.KalmanProcessVariance != nil && *c.KalmanProcessVariance <= 0 {
		return fmt.Errorf("kalman_process_variance must be positive, got %f", *c.KalmanProcessVariance)
	}
	if c.KalmanMeasurementVariance != nil && *c.KalmanMeasurementVariance <= 0 {
		return fmt.Errorf("kalman_measurement_variance must be positive, got %f", *c.KalmanMeasurementVariance)
	}

	if c.TemperatureUnit != nil && !units.IsValid(*c.TemperatureUnit) {
		return fmt.Errorf("temperature_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.TemperatureUnit)
	}
	if c.Timezone != nil && *c.Timezone != "" && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("unknown timezone %q", *c.Timezone)
	}
	return nil
}

// Parameters returns the initial thermal parameters.
func (c *SimulationConfig) Parameters() thermal.Parameters {
	p := thermal.DefaultParameters()
	if c.AmbientTemperature != nil {
		p.AmbientTemperature = *c.AmbientTemperature
	}
	if c.ResponseTime != nil {
		p.ResponseTimeConstant = *c.ResponseTime
	}
	if c.NoiseLevel != nil {
		p.NoiseLevel = *c.NoiseLevel
	}
	return p
}

// KalmanConfig returns the estimator starting constants.
func (c *SimulationConfig) KalmanConfig() kalman.Config {
	k := kalman.DefaultConfig()
	if c.KalmanInitialEstimate != nil {
		k.InitialEstimate = *c.KalmanInitialEstimate
	}
	if c.KalmanInitialVariance != nil {
		k.InitialVariance = *c.KalmanInitialVariance
	}
	if c.KalmanProcessVariance != nil {
		k.ProcessVariance = *c.KalmanProcessVariance
	}
	if c.KalmanMeasurementVariance != nil {
		k.MeasurementVariance = *c.KalmanMeasurementVariance
	}
	return k
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *SimulationConfig) GetTickInterval() time.Duration {
	return parseDurationOr(c.TickInterval, 100*time.Millisecond)
}

// GetSampleInterval parses and returns the SampleInterval as a time.Duration.
func (c *SimulationConfig) GetSampleInterval() time.Duration {
	return parseDurationOr(c.SampleInterval, 5*time.Second)
}

// GetHistoryCapacity returns the history_capacity value or the default.
func (c *SimulationConfig) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return telemetry.DefaultCapacity
	}
	return *c.HistoryCapacity
}

// GetClampAmbient returns the clamp_ambient value or the default.
func (c *SimulationConfig) GetClampAmbient() bool {
	if c.ClampAmbient == nil {
		return true
	}
	return *c.ClampAmbient
}

// GetRandomSeed returns the random_seed value; zero means time-seeded.
func (c *SimulationConfig) GetRandomSeed() uint64 {
	if c.RandomSeed == nil {
		return 0
	}
	return *c.RandomSeed
}

// GetTemperatureUnit returns the temperature_unit value or the default.
func (c *SimulationConfig) GetTemperatureUnit() string {
	if c.TemperatureUnit == nil || *c.TemperatureUnit == "" {
		return units.Celsius
	}
	return *c.TemperatureUnit
}

// GetTimezone returns the timezone value or UTC.
func (c *SimulationConfig) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "UTC"
	}
	return *c.Timezone
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}
