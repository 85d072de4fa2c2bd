package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flemzord/toolguard/internal/config"
)

// ErrNoConfig is returned when no configuration file is found.
var ErrNoConfig = errors.New("no configuration file found")

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/toolguard/toolguard.yaml → ~/.config/toolguard/toolguard.yaml → ./toolguard.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "toolguard", "toolguard.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "toolguard", "toolguard.yaml"))
	}

	candidates = append(candidates, "toolguard.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfig, candidates)
}

// LoadConfig loads and validates the configuration at path. With an empty
// path it searches the standard locations and falls back to defaults when
// nothing is found, so toolguard can run from environment variables alone.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if errors.Is(err, ErrNoConfig) {
			return config.Default(), nil
		}
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
