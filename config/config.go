// Package config loads the entitypool application configuration.
//
// Values come from an optional YAML file, then ENTITYPOOL_* environment
// variables (ENTITYPOOL_MIGRATION_AB_RATIO overrides migration.ab_ratio),
// on top of the defaults below.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlexsanderHamir/entitypool/logger"
	"github.com/AlexsanderHamir/entitypool/migration"
	"github.com/AlexsanderHamir/entitypool/pool"

	"github.com/spf13/viper"
)

const EnvPrefix = "ENTITYPOOL"

var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	Logging    logger.Config    `mapstructure:"logging" yaml:"logging"`
	Migration  MigrationConfig  `mapstructure:"migration" yaml:"migration"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	Pools      []PoolSpec       `mapstructure:"pools" yaml:"pools"`
}

// MigrationConfig seeds the migration manager.
type MigrationConfig struct {
	Implementation    string  `mapstructure:"implementation" yaml:"implementation"`
	ABTesting         bool    `mapstructure:"ab_testing" yaml:"ab_testing"`
	ABRatio           float64 `mapstructure:"ab_ratio" yaml:"ab_ratio"`
	PassThreshold     float64 `mapstructure:"pass_threshold" yaml:"pass_threshold"`
	ValidationSamples int     `mapstructure:"validation_samples" yaml:"validation_samples"`
	CompareIterations int     `mapstructure:"compare_iterations" yaml:"compare_iterations"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Runtime bool   `mapstructure:"runtime" yaml:"runtime"`
}

// SimulationConfig drives the simulate command's synthetic workload.
type SimulationConfig struct {
	Workers    int `mapstructure:"workers" yaml:"workers"`
	Iterations int `mapstructure:"iterations" yaml:"iterations"`
	BatchSize  int `mapstructure:"batch_size" yaml:"batch_size"`
	Seed       int `mapstructure:"seed" yaml:"seed"`
}

// PoolSpec declares one pooled entity type. When Template names a pool
// preset, the preset supplies the starting values and every non-zero field
// here overrides it.
type PoolSpec struct {
	Type              string `mapstructure:"type" yaml:"type"`
	Template          string `mapstructure:"template" yaml:"template,omitempty"`
	InitialSize       int    `mapstructure:"initial_size" yaml:"initial_size"`
	HardLimit         int    `mapstructure:"hard_limit" yaml:"hard_limit"`
	PrewarmOnRegister bool   `mapstructure:"prewarm_on_register" yaml:"prewarm_on_register,omitempty"`
	Verbose           bool   `mapstructure:"verbose" yaml:"verbose,omitempty"`
}

// PoolConfig builds and validates the pool configuration for this entry.
func (s PoolSpec) PoolConfig() (*pool.Config, error) {
	if s.Template == "" {
		return pool.NewConfigBuilder().
			SetInitialSize(s.InitialSize).
			SetHardLimit(s.HardLimit).
			SetPrewarmOnRegister(s.PrewarmOnRegister).
			SetVerbose(s.Verbose).
			Build()
	}

	b, err := pool.NewPresetBuilder(pool.Preset(s.Template))
	if err != nil {
		return nil, err
	}
	if s.InitialSize != 0 {
		b.SetInitialSize(s.InitialSize)
	}
	if s.HardLimit != 0 {
		b.SetHardLimit(s.HardLimit)
	}
	if s.PrewarmOnRegister {
		b.SetPrewarmOnRegister(true)
	}
	if s.Verbose {
		b.SetVerbose(true)
	}
	return b.Build()
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Logging: logger.DefaultConfig(),
		Migration: MigrationConfig{
			Implementation:    "auto",
			ABRatio:           0.5,
			PassThreshold:     migration.DefaultPassThreshold,
			ValidationSamples: 100,
			CompareIterations: 1000,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Simulation: SimulationConfig{
			Workers:    4,
			Iterations: 1000,
			BatchSize:  8,
		},
	}
}

// Example is Default with a few pools, used by `config init`.
func Example() Config {
	cfg := Default()
	cfg.Pools = []PoolSpec{
		{Type: "enemy.grunt", InitialSize: 32, HardLimit: 128, PrewarmOnRegister: true},
		{Type: "projectile.bolt", InitialSize: 64, HardLimit: 512, PrewarmOnRegister: true},
		{Type: "fx.spark", InitialSize: 0, HardLimit: 0},
		{Type: "pickup.coin", Template: string(pool.PresetMemoryOptimized)},
	}
	return cfg
}

// Load reads path (optional) and the environment into a validated Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// every scalar key needs a default so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.encoding", d.Logging.Encoding)

	v.SetDefault("migration.implementation", d.Migration.Implementation)
	v.SetDefault("migration.ab_testing", d.Migration.ABTesting)
	v.SetDefault("migration.ab_ratio", d.Migration.ABRatio)
	v.SetDefault("migration.pass_threshold", d.Migration.PassThreshold)
	v.SetDefault("migration.validation_samples", d.Migration.ValidationSamples)
	v.SetDefault("migration.compare_iterations", d.Migration.CompareIterations)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.runtime", d.Metrics.Runtime)

	v.SetDefault("simulation.workers", d.Simulation.Workers)
	v.SetDefault("simulation.iterations", d.Simulation.Iterations)
	v.SetDefault("simulation.batch_size", d.Simulation.BatchSize)
	v.SetDefault("simulation.seed", d.Simulation.Seed)
}

// Validate reports every problem found, joined, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error

	if _, err := migration.ParseImplementationType(c.Migration.Implementation); err != nil {
		errs = append(errs, fmt.Errorf("migration.implementation: %w", err))
	}
	if c.Migration.ABRatio < 0 || c.Migration.ABRatio > 1 {
		errs = append(errs, fmt.Errorf("migration.ab_ratio %v outside [0, 1]", c.Migration.ABRatio))
	}
	if c.Migration.PassThreshold <= 0 || c.Migration.PassThreshold > 1 {
		errs = append(errs, fmt.Errorf("migration.pass_threshold %v outside (0, 1]", c.Migration.PassThreshold))
	}
	if c.Migration.ValidationSamples < 0 {
		errs = append(errs, errors.New("migration.validation_samples is negative"))
	}
	if c.Migration.CompareIterations < 0 {
		errs = append(errs, errors.New("migration.compare_iterations is negative"))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}

	if c.Simulation.Workers < 0 || c.Simulation.Iterations < 0 || c.Simulation.BatchSize < 0 {
		errs = append(errs, errors.New("simulation values must not be negative"))
	}

	seen := make(map[string]bool, len(c.Pools))
	for i, p := range c.Pools {
		if p.Type == "" {
			errs = append(errs, fmt.Errorf("pools[%d]: type is required", i))
			continue
		}
		if seen[p.Type] {
			errs = append(errs, fmt.Errorf("pools[%d]: duplicate type %q", i, p.Type))
		}
		seen[p.Type] = true
		if _, err := p.PoolConfig(); err != nil {
			errs = append(errs, fmt.Errorf("pools[%d] %s: %w", i, p.Type, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Implementation returns the parsed initial implementation type.
func (c *Config) Implementation() migration.ImplementationType {
	t, err := migration.ParseImplementationType(c.Migration.Implementation)
	if err != nil {
		return migration.Auto
	}
	return t
}
