// Package container builds and enters the layered, namespaced root an
// ebuild command runs inside: an ordered stack of directory/tarball/
// durable-tree layers merged with overlayfs, a minimal set of essential
// mounts, and a set of caller-requested bind mounts.
package container

import (
	"encoding/json"
	"fmt"
	"os"
)

// BindMount mirrors a host path into the container at Target, optionally
// remounted read-only immediately after binding.
type BindMount struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	ReadOnly bool   `json:"rw_false_is_ro,omitempty"`
}

// Config is the structured record the two run phases hand off across the
// re-exec boundary: everything phase 2 needs to build the rootfs and run
// the command, serialized to a self-describing on-disk JSON file since
// that's the exec boundary the process's own environment can't carry
// structured data across cleanly.
type Config struct {
	LayerPaths []string `json:"layer_paths"`

	BindMounts []BindMount `json:"bind_mounts"`
	Envs       []string    `json:"envs"`
	Chdir      string      `json:"chdir"`

	AllowNetworkAccess bool `json:"allow_network_access"`
	Privileged         bool `json:"privileged"`
	KeepHostMount      bool `json:"keep_host_mount"`

	Args []string `json:"args"`
}

// WriteConfig serializes cfg to path for the re-exec handoff.
func WriteConfig(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing container config: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("writing container config: %w", err)
	}
	return nil
}

// ReadConfig deserializes a Config written by WriteConfig.
func ReadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading container config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("reading container config: %w", err)
	}
	return &cfg, nil
}
