// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Gantry
// controller.
//
// Configuration is loaded from a single file specified by:
//   - GANTRY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the Gantry controller.
type Config struct {
	// LogLevel controls log verbosity: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// SocketPath is the Unix socket the controller serves its action
	// API on.
	SocketPath string `yaml:"socket_path"`

	// MetricsAddress is the listen address for the Prometheus metrics
	// endpoint. Empty disables the endpoint.
	MetricsAddress string `yaml:"metrics_address"`

	// CartridgeCatalog is the path to the JSONC cartridge catalog.
	CartridgeCatalog string `yaml:"cartridge_catalog"`

	// BasePayload is prepended to every member's payload, in
	// "name=value,name=value" form. Member-specific parameters from a
	// start request follow it.
	BasePayload string `yaml:"base_payload"`

	// Registry configures snapshot persistence.
	Registry RegistryConfig `yaml:"registry"`

	// Events configures lifecycle event publishing.
	Events EventsConfig `yaml:"events"`

	// BackendClusters lists the container backends the controller may
	// deploy workloads to.
	BackendClusters []BackendClusterConfig `yaml:"backend_clusters"`

	// Partitions bind start requests to backend clusters.
	Partitions []PartitionConfig `yaml:"partitions"`

	// Timeouts configures lifecycle polling and watch cadence.
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// RegistryConfig configures controller state persistence.
type RegistryConfig struct {
	// Driver selects the snapshot store: "file" or "sqlite".
	// Default: file
	Driver string `yaml:"driver"`

	// Path is the snapshot file or database path.
	Path string `yaml:"path"`

	// Compression selects the snapshot body compression: "none",
	// "lz4", or "zstd".
	// Default: zstd
	Compression string `yaml:"compression"`
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	// RedisAddress is the host:port of the Redis server events are
	// published to. Empty disables Redis publishing; events still go
	// to the log.
	RedisAddress string `yaml:"redis_address"`

	// RedisPassword authenticates to the Redis server. Empty means
	// no authentication.
	RedisPassword string `yaml:"redis_password"`

	// RedisDB is the Redis database number.
	// Default: 0
	RedisDB int `yaml:"redis_db"`

	// ChannelPrefix is prepended to event type names to form the
	// Redis channel.
	// Default: gantry
	ChannelPrefix string `yaml:"channel_prefix"`
}

// BackendClusterConfig describes one container backend the controller
// may deploy to.
type BackendClusterConfig struct {
	// ID uniquely identifies the backend cluster.
	ID string `yaml:"id"`

	// MasterHost is the hostname or IP address of the backend master
	// API and the host advertised in member access URLs.
	MasterHost string `yaml:"master_host"`

	// MasterPort is the TCP port of the backend master API.
	MasterPort int `yaml:"master_port"`

	// PortRange is the range of proxy ports the controller allocates
	// service ports from. Inclusive on both ends.
	PortRange PortRangeConfig `yaml:"port_range"`
}

// PortRangeConfig is an inclusive port range.
type PortRangeConfig struct {
	Lower int `yaml:"lower"`
	Upper int `yaml:"upper"`
}

// PartitionConfig binds a partition ID to a backend cluster.
type PartitionConfig struct {
	// ID is the partition identifier carried in start requests.
	ID string `yaml:"id"`

	// BackendCluster is the ID of the backend cluster this partition
	// deploys to. Must match a BackendClusterConfig.ID.
	BackendCluster string `yaml:"backend_cluster"`
}

// TimeoutsConfig configures lifecycle timing. All values are duration
// strings ("5s", "2m").
type TimeoutsConfig struct {
	// ProvisioningPoll is the interval between instance queries while
	// waiting for a started member to be scheduled.
	// Default: 5s
	ProvisioningPoll string `yaml:"provisioning_poll"`

	// Provisioning is how long to wait for a started member to reach
	// exactly one scheduled instance before rolling back.
	// Default: 2m
	Provisioning string `yaml:"provisioning"`

	// WatchInitialDelay is how long the activation watcher waits
	// before its first instance check.
	// Default: 5s
	WatchInitialDelay string `yaml:"watch_initial_delay"`

	// WatchInterval is the interval between activation watcher
	// checks.
	// Default: 5s
	WatchInterval string `yaml:"watch_interval"`

	// WatchCeiling is how long the activation watcher runs before
	// giving up on a member.
	// Default: 10m
	WatchCeiling string `yaml:"watch_ceiling"`
}

// Durations holds the parsed timeout values.
type Durations struct {
	ProvisioningPoll  time.Duration
	Provisioning      time.Duration
	WatchInitialDelay time.Duration
	WatchInterval     time.Duration
	WatchCeiling      time.Duration
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "gantry")

	return &Config{
		LogLevel:         "info",
		SocketPath:       "/run/gantry/controller.sock",
		MetricsAddress:   "127.0.0.1:2112",
		CartridgeCatalog: filepath.Join(defaultRoot, "cartridges.jsonc"),
		Registry: RegistryConfig{
			Driver:      "file",
			Path:        filepath.Join(defaultRoot, "registry.snapshot"),
			Compression: "zstd",
		},
		Events: EventsConfig{
			ChannelPrefix: "gantry",
		},
		BackendClusters: []BackendClusterConfig{
			{
				ID:         "local",
				MasterHost: "127.0.0.1",
				MasterPort: 8080,
				PortRange:  PortRangeConfig{Lower: 4500, Upper: 4999},
			},
		},
		Partitions: []PartitionConfig{
			{ID: "default", BackendCluster: "local"},
		},
		Timeouts: TimeoutsConfig{
			ProvisioningPoll:  "5s",
			Provisioning:      "2m",
			WatchInitialDelay: "5s",
			WatchInterval:     "5s",
			WatchCeiling:      "10m",
		},
	}
}

// Load loads configuration from the GANTRY_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if GANTRY_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("GANTRY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("GANTRY_CONFIG environment variable not set; " +
			"set it to the path of your gantry.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.SocketPath = expandVars(c.SocketPath, vars)
	c.CartridgeCatalog = expandVars(c.CartridgeCatalog, vars)
	c.Registry.Path = expandVars(c.Registry.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	logLevels := []string{"debug", "info", "warn", "error"}
	if !contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of: %v", logLevels))
	}

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is required"))
	}

	if c.CartridgeCatalog == "" {
		errs = append(errs, fmt.Errorf("cartridge_catalog is required"))
	}

	registryDrivers := []string{"file", "sqlite"}
	if !contains(registryDrivers, c.Registry.Driver) {
		errs = append(errs, fmt.Errorf("registry.driver must be one of: %v", registryDrivers))
	}
	if c.Registry.Path == "" {
		errs = append(errs, fmt.Errorf("registry.path is required"))
	}
	compressions := []string{"none", "lz4", "zstd"}
	if !contains(compressions, c.Registry.Compression) {
		errs = append(errs, fmt.Errorf("registry.compression must be one of: %v", compressions))
	}

	if c.Events.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("events.redis_db must not be negative"))
	}
	if c.Events.ChannelPrefix == "" {
		errs = append(errs, fmt.Errorf("events.channel_prefix is required"))
	}

	if len(c.BackendClusters) == 0 {
		errs = append(errs, fmt.Errorf("at least one backend cluster is required"))
	}
	clusterIDs := make(map[string]bool, len(c.BackendClusters))
	for i, bc := range c.BackendClusters {
		if bc.ID == "" {
			errs = append(errs, fmt.Errorf("backend_clusters[%d].id is required", i))
		} else if clusterIDs[bc.ID] {
			errs = append(errs, fmt.Errorf("backend_clusters[%d].id %q is already defined", i, bc.ID))
		}
		clusterIDs[bc.ID] = true

		if bc.MasterHost == "" {
			errs = append(errs, fmt.Errorf("backend_clusters[%d].master_host is required", i))
		}
		if bc.MasterPort < 1 || bc.MasterPort > 65535 {
			errs = append(errs, fmt.Errorf("backend_clusters[%d].master_port must be in 1-65535", i))
		}
		if bc.PortRange.Lower < 1 || bc.PortRange.Lower > 65535 {
			errs = append(errs, fmt.Errorf("backend_clusters[%d].port_range.lower must be in 1-65535", i))
		}
		if bc.PortRange.Upper < 1 || bc.PortRange.Upper > 65535 {
			errs = append(errs, fmt.Errorf("backend_clusters[%d].port_range.upper must be in 1-65535", i))
		}
		if bc.PortRange.Lower > bc.PortRange.Upper {
			errs = append(errs, fmt.Errorf("backend_clusters[%d].port_range is inverted (%d > %d)",
				i, bc.PortRange.Lower, bc.PortRange.Upper))
		}
	}

	if len(c.Partitions) == 0 {
		errs = append(errs, fmt.Errorf("at least one partition is required"))
	}
	partitionIDs := make(map[string]bool, len(c.Partitions))
	for i, p := range c.Partitions {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("partitions[%d].id is required", i))
		} else if partitionIDs[p.ID] {
			errs = append(errs, fmt.Errorf("partitions[%d].id %q is already defined", i, p.ID))
		}
		partitionIDs[p.ID] = true

		if p.BackendCluster == "" {
			errs = append(errs, fmt.Errorf("partitions[%d].backend_cluster is required", i))
		} else if !clusterIDs[p.BackendCluster] {
			errs = append(errs, fmt.Errorf("partitions[%d].backend_cluster %q is not a defined backend cluster",
				i, p.BackendCluster))
		}
	}

	if _, err := c.ParseTimeouts(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ParseTimeouts parses the timeout strings into durations.
func (c *Config) ParseTimeouts() (Durations, error) {
	var errs []error

	parse := func(name, value string) time.Duration {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("timeouts.%s: invalid duration %q", name, value))
			return 0
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must be positive, got %q", name, value))
			return 0
		}
		return d
	}

	durations := Durations{
		ProvisioningPoll:  parse("provisioning_poll", c.Timeouts.ProvisioningPoll),
		Provisioning:      parse("provisioning", c.Timeouts.Provisioning),
		WatchInitialDelay: parse("watch_initial_delay", c.Timeouts.WatchInitialDelay),
		WatchInterval:     parse("watch_interval", c.Timeouts.WatchInterval),
		WatchCeiling:      parse("watch_ceiling", c.Timeouts.WatchCeiling),
	}

	if len(errs) > 0 {
		return Durations{}, errors.Join(errs...)
	}
	return durations, nil
}

// ParseLogLevel maps the configured log level to a slog level.
func (c *Config) ParseLogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}

// BackendCluster returns the backend cluster config with the given ID.
func (c *Config) BackendCluster(id string) (BackendClusterConfig, bool) {
	for _, bc := range c.BackendClusters {
		if bc.ID == id {
			return bc, true
		}
	}
	return BackendClusterConfig{}, false
}

// Partition returns the partition config with the given ID.
func (c *Config) Partition(id string) (PartitionConfig, bool) {
	for _, p := range c.Partitions {
		if p.ID == id {
			return p, true
		}
	}
	return PartitionConfig{}, false
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
