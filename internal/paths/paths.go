// Package paths resolves the config file location and normalizes the editor
// socket path supplied at startup.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

// ConfigDir returns the nvim-mcp config directory ($XDG_CONFIG_HOME/nvim-mcp).
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "nvim-mcp")
	}
	return filepath.Join(homeDir(), ".config", "nvim-mcp")
}

// ConfigFile returns the path to config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// NormalizeSocket expands a leading ~ and absolutizes the editor socket path.
// The result is immutable for the life of the process; the editor owns the
// file itself.
func NormalizeSocket(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("socket path is empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home := homeDir()
		if home == "" {
			return "", fmt.Errorf("expanding ~ in %q: home directory unknown", path)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("normalizing socket path %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
