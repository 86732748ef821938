// Package config holds the controller's tunables (spec §6.3), loadable
// from a YAML file and overridable by CLI flags, following the teacher's
// gopkg.in/yaml.v2 config-loading convention (see
// lxd/cluster/member_state.go).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the reconciler's tunables.
type Config struct {
	// ProvisioningTimeout is how long a node may sit in Provisioning
	// without a heartbeat before being drained. Default 15m.
	ProvisioningTimeout time.Duration `yaml:"provisioning_timeout"`

	// HeartbeatTimeout is how long a Running node may go without a
	// heartbeat before being drained. Default 3m.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`

	// NodeIdleTimeout is how long a Running node may be continuously
	// reported idle before being drained. Default 180s.
	NodeIdleTimeout time.Duration `yaml:"node_idle_timeout"`

	// ReconcileInterval is the reconciler tick cadence. Fixed at 5s per
	// spec but kept configurable for tests.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`

	// NodeGroup is the caller-specified target node group; empty means
	// unused.
	NodeGroup string `yaml:"node_group"`

	// HeadNodeURL is the base URL of the HPC head-node REST service.
	HeadNodeURL string `yaml:"head_node_url"`

	// ListenAddress, if non-empty, serves the read-only inspection API
	// (internal/httpapi) on this address.
	ListenAddress string `yaml:"listen_address"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// Default returns a Config populated with the spec's documented defaults.
func Default() Config {
	return Config{
		ProvisioningTimeout: 15 * time.Minute,
		HeartbeatTimeout:    3 * time.Minute,
		NodeIdleTimeout:     180 * time.Second,
		ReconcileInterval:   5 * time.Second,
		NodeGroup:           "",
		LogLevel:            "info",
	}
}

// Load reads a YAML config file at path and overlays it on top of Default.
// A missing file is not an error; Default is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return cfg, fmt.Errorf("Failed reading config file %q: %w", path, err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("Failed parsing config file %q: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the config for obviously invalid values.
func (c Config) Validate() error {
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile_interval must be positive")
	}

	if c.ProvisioningTimeout <= 0 {
		return fmt.Errorf("provisioning_timeout must be positive")
	}

	if c.HeartbeatTimeout <= 0 {
		return fmt.Errorf("heartbeat_timeout must be positive")
	}

	if c.NodeIdleTimeout <= 0 {
		return fmt.Errorf("node_idle_timeout must be positive")
	}

	return nil
}
