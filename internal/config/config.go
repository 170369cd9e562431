// Package config provides Viper-based configuration loading for the simulation server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings for the encounter log.
type DatabaseConfig struct {
	// Enabled turns encounter persistence on. When false the server runs without a database.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SimulationConfig holds the predator simulation settings.
type SimulationConfig struct {
	// TickInterval is the cadence at which every session is advanced.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// WaveInterval is how often a new wave starts on sessions that have begun spawning.
	WaveInterval time.Duration `mapstructure:"wave_interval"`
	// DifficultyStep is the per-wave difficulty increase when no pacing script supplies one.
	DifficultyStep float64 `mapstructure:"difficulty_step"`
	// HourDuration is the wall-clock length of one game hour.
	HourDuration time.Duration `mapstructure:"hour_duration"`
	StartHour    int32         `mapstructure:"start_hour"`

	BaseSpawnInterval time.Duration `mapstructure:"base_spawn_interval"`
	MinSpawnInterval  time.Duration `mapstructure:"min_spawn_interval"`
	WaveFactor        float64       `mapstructure:"wave_factor"`
	ApproachTime      time.Duration `mapstructure:"approach_time"`
	DespawnGrace      time.Duration `mapstructure:"despawn_grace"`
	ProtectionPeriod  time.Duration `mapstructure:"protection_period"`
	AttackInterval    time.Duration `mapstructure:"attack_interval"`
	RoamingChance     float64       `mapstructure:"roaming_chance"`

	// CatalogDir holds catalog YAML files; empty uses the built-in catalog.
	CatalogDir string `mapstructure:"catalog_dir"`
	// ScriptsDir holds the pacing Lua scripts; empty disables scripting.
	ScriptsDir       string `mapstructure:"scripts_dir"`
	InstructionLimit int    `mapstructure:"instruction_limit"`
	// Seed fixes the random source for reproducible runs; 0 uses crypto/rand.
	Seed uint64 `mapstructure:"seed"`
}

// HealthConfig holds gRPC health service settings.
type HealthConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Health     HealthConfig     `mapstructure:"health"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHealth(c.Health); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	positive := []struct {
		key string
		d   time.Duration
	}{
		{"simulation.tick_interval", s.TickInterval},
		{"simulation.wave_interval", s.WaveInterval},
		{"simulation.hour_duration", s.HourDuration},
		{"simulation.base_spawn_interval", s.BaseSpawnInterval},
		{"simulation.min_spawn_interval", s.MinSpawnInterval},
		{"simulation.protection_period", s.ProtectionPeriod},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0, got %s", p.key, p.d))
		}
	}
	if s.MinSpawnInterval > s.BaseSpawnInterval {
		errs = append(errs, "simulation.min_spawn_interval must not exceed simulation.base_spawn_interval")
	}
	if s.ApproachTime < 0 {
		errs = append(errs, "simulation.approach_time must not be negative")
	}
	if s.DespawnGrace < 0 {
		errs = append(errs, "simulation.despawn_grace must not be negative")
	}
	if s.AttackInterval < 0 {
		errs = append(errs, "simulation.attack_interval must not be negative")
	}
	if s.DifficultyStep < 0 {
		errs = append(errs, fmt.Sprintf("simulation.difficulty_step must be >= 0, got %v", s.DifficultyStep))
	}
	if s.WaveFactor < 0 {
		errs = append(errs, fmt.Sprintf("simulation.wave_factor must be >= 0, got %v", s.WaveFactor))
	}
	if s.RoamingChance < 0 || s.RoamingChance > 1 {
		errs = append(errs, fmt.Sprintf("simulation.roaming_chance must be in [0, 1], got %v", s.RoamingChance))
	}
	if s.StartHour < 0 || s.StartHour > 23 {
		errs = append(errs, fmt.Sprintf("simulation.start_hour must be 0-23, got %d", s.StartHour))
	}
	if s.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("simulation.instruction_limit must be >= 0, got %d", s.InstructionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHealth(h HealthConfig) error {
	var errs []string
	if h.Host == "" {
		errs = append(errs, "health.host must not be empty")
	}
	if h.Port < 1 || h.Port > 65535 {
		errs = append(errs, fmt.Sprintf("health.port must be 1-65535, got %d", h.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with HENHOUSE_ prefix
	v.SetEnvPrefix("HENHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "henhouse")
	v.SetDefault("database.password", "henhouse")
	v.SetDefault("database.name", "henhouse")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("simulation.tick_interval", "1s")
	v.SetDefault("simulation.wave_interval", "2m")
	v.SetDefault("simulation.difficulty_step", 0.1)
	v.SetDefault("simulation.hour_duration", "1m")
	v.SetDefault("simulation.start_hour", 6)
	v.SetDefault("simulation.base_spawn_interval", "60s")
	v.SetDefault("simulation.min_spawn_interval", "10s")
	v.SetDefault("simulation.wave_factor", 0.1)
	v.SetDefault("simulation.approach_time", "5s")
	v.SetDefault("simulation.despawn_grace", "8s")
	v.SetDefault("simulation.protection_period", "10s")
	v.SetDefault("simulation.attack_interval", "3s")
	v.SetDefault("simulation.roaming_chance", 0.3)
	v.SetDefault("simulation.catalog_dir", "")
	v.SetDefault("simulation.scripts_dir", "content/scripts")
	v.SetDefault("simulation.instruction_limit", 0)
	v.SetDefault("simulation.seed", 0)

	v.SetDefault("health.host", "127.0.0.1")
	v.SetDefault("health.port", 50061)
}
