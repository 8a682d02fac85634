// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"campaignsim/internal/types"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SimulationDefaults reads the engine defaults from CAMPAIGNSIM_* variables.
func SimulationDefaults() (types.SimulationConfig, error) {
	var cfg types.SimulationConfig
	if err := ParseEnv(&cfg); err != nil {
		return types.SimulationConfig{}, err
	}
	return cfg, nil
}

// LoadDotEnv merges a .env file into the environment. A missing file is not
// an error; variables already set win over the file.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
