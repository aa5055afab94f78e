// Package config loads the busfsd daemon's configuration from a
// JSON-with-comments file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/mnunberg/busfs/internal/bus"
)

// Config is busfsd's runtime configuration: where it mounts, which real
// directory backs it, and the bus sizing parameters new buses are
// created with.
type Config struct {
	// LogFile is where the daemon appends startup/operational messages.
	LogFile string `json:"logFile"`

	// RealFSRoot is the host directory metadata operations delegate to.
	RealFSRoot string `json:"realfsRoot"`

	// Mountpoint is where the FUSE filesystem is mounted.
	Mountpoint string `json:"mountpoint"`

	// RingSize is N, the number of slots per Bus.
	RingSize int `json:"ringSize"`

	// SlotCapacity is the per-slot byte capacity.
	SlotCapacity int `json:"slotCapacity"`

	// Delim is the message delimiter byte, given as a single-character
	// string in the config file (JSON has no byte literal).
	Delim string `json:"delim"`

	// Debug enables go-fuse's request-level debug logging.
	Debug bool `json:"debug"`

	// AllowOther sets the FUSE allow_other mount option.
	AllowOther bool `json:"allowOther"`
}

// Default returns the built-in configuration, used when no config file is
// given and as the base that flag overrides apply on top of.
func Default() Config {
	return Config{
		LogFile:      "busfs.log",
		RealFSRoot:   "/tmp/busfs",
		Mountpoint:   "",
		RingSize:     bus.DefaultRingSize,
		SlotCapacity: bus.DefaultSlotCapacity,
		Delim:        "\n",
	}
}

// Load reads and parses a JSON-with-comments config file at path, layered
// on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("busfs: read config %s: %w", path, err)
	}

	standard, err := hujson.Standardize(raw)
	if err != nil {
		return cfg, fmt.Errorf("busfs: parse config %s: %w", path, err)
	}

	if err := json.Unmarshal(standard, &cfg); err != nil {
		return cfg, fmt.Errorf("busfs: decode config %s: %w", path, err)
	}

	return cfg, nil
}

// DelimByte returns the configured delimiter as a byte, defaulting to
// '\n' if the config left it empty. A longer string yields its first byte.
func (c Config) DelimByte() byte {
	if len(c.Delim) == 0 {
		return '\n'
	}
	return c.Delim[0]
}

// BusOptions projects the ring-related fields into bus.Options.
func (c Config) BusOptions() bus.Options {
	return bus.Options{
		RingSize:     c.RingSize,
		SlotCapacity: c.SlotCapacity,
		Delim:        c.DelimByte(),
	}
}
