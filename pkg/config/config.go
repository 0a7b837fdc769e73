// Package config loads and validates the configuration for a set of
// named Broken-Sessions and Executive-Report cuckoo filter instances.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	Node             NodeConfig             `yaml:"node"`
	Logging          LoggingConfig          `yaml:"logging"`
	Persistence      PersistenceConfig      `yaml:"persistence"`
	BrokenSessions   []FilterInstanceConfig `yaml:"broken_sessions"`
	ExecutiveReports []FilterInstanceConfig `yaml:"executive_reports"`
}

// NodeConfig identifies the process hosting the filters.
type NodeConfig struct {
	ID      string `yaml:"id"`
	DataDir string `yaml:"data_dir"`
}

// FilterInstanceConfig names one filter and its logical capacity.
type FilterInstanceConfig struct {
	Name  string `yaml:"name"`
	Items uint64 `yaml:"items"`
}

// PersistenceConfig controls reload-script snapshotting.
type PersistenceConfig struct {
	Enabled          bool          `yaml:"enabled"`
	SnapshotDir      string        `yaml:"snapshot_dir"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	CompressionLevel int           `yaml:"compression_level"` // 0-9, gzip
	RetainSnapshots  int           `yaml:"retain_snapshots"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level         string `yaml:"level"`          // debug, info, warn, error, fatal
	EnableConsole bool   `yaml:"enable_console"` // enable console output
	EnableFile    bool   `yaml:"enable_file"`    // enable file output
	LogFile       string `yaml:"log_file"`       // log file path
	BufferSize    int    `yaml:"buffer_size"`    // async log buffer size
	LogDir        string `yaml:"log_dir"`        // log directory
}

// Load reads and parses the configuration file at path, falling back to
// defaults when the file does not exist.
func Load(path string) (*Config, error) {
	config := &Config{
		Node: NodeConfig{
			ID:      "fxfilter-node-1",
			DataDir: "/tmp/fxfilter",
		},
		Logging: LoggingConfig{
			Level:         "info",
			EnableConsole: true,
			EnableFile:    false,
			BufferSize:    1000,
			LogDir:        "logs",
		},
		Persistence: PersistenceConfig{
			Enabled:          true,
			SnapshotDir:      "snapshots",
			SnapshotInterval: 15 * time.Minute,
			CompressionLevel: 6,
			RetainSnapshots:  3,
		},
		BrokenSessions: []FilterInstanceConfig{
			{Name: "default", Items: 1 << 20},
		},
		ExecutiveReports: []FilterInstanceConfig{
			{Name: "default", Items: 1 << 20},
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("configuration file %s not found, using defaults\n", path)
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration can be used to construct every
// named filter instance.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id cannot be empty")
	}
	if len(c.BrokenSessions) == 0 && len(c.ExecutiveReports) == 0 {
		return fmt.Errorf("at least one broken_sessions or executive_reports filter must be configured")
	}
	if err := validateInstances("broken_sessions", c.BrokenSessions); err != nil {
		return err
	}
	if err := validateInstances("executive_reports", c.ExecutiveReports); err != nil {
		return err
	}
	if c.Persistence.Enabled {
		if c.Persistence.CompressionLevel < 0 || c.Persistence.CompressionLevel > 9 {
			return fmt.Errorf("persistence.compression_level must be between 0 and 9")
		}
		if c.Persistence.SnapshotDir == "" {
			return fmt.Errorf("persistence.snapshot_dir cannot be empty when persistence is enabled")
		}
	}
	return nil
}

func validateInstances(section string, instances []FilterInstanceConfig) error {
	seen := make(map[string]bool, len(instances))
	for _, inst := range instances {
		if inst.Name == "" {
			return fmt.Errorf("%s: filter name cannot be empty", section)
		}
		if seen[inst.Name] {
			return fmt.Errorf("%s: duplicate filter name %q", section, inst.Name)
		}
		seen[inst.Name] = true
		if inst.Items <= 4 {
			return fmt.Errorf("%s[%s]: items must be greater than 4", section, inst.Name)
		}
	}
	return nil
}
