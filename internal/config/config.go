// Package config loads the nvim-mcp TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/nvtools/nvim-mcp/internal/paths"
)

// Config is the on-disk nvim-mcp configuration. Timeouts are duration
// strings ("2s", "1500ms"); zero values take the defaults in Resolve.
type Config struct {
	Socket        string `toml:"socket"`
	AttachTimeout string `toml:"attach_timeout"`
	CallTimeout   string `toml:"call_timeout"`
	ProbeTimeout  string `toml:"probe_timeout"`
	IdleTimeout   string `toml:"idle_timeout"`
	ContextRadius int    `toml:"context_radius"`
}

// Load reads the config file from the default location. A missing file
// returns an empty Config (no error); defaults apply at Resolve time.
func Load() (*Config, error) {
	return LoadFrom(paths.ConfigFile())
}

// LoadFrom reads and parses a config file at the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}
