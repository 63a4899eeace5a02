package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"conduit/internal/mcperr"
	"conduit/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/conduit"
	configFileName = "config.yaml"
)

// DefaultConfigPath returns the user-level configuration directory,
// ~/.config/conduit.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load reads config.yaml from the given directory, merges it onto the
// built-in defaults and resolves environment overrides. A missing file is
// not an error; the defaults (plus environment) are returned.
//
// Environment resolution happens here, once: ANTHROPIC_API_KEY fills
// Model.APIKey when the file did not set it, and CONDUIT_MODEL overrides
// the model identifier. Nothing else in the program reads the environment.
func Load(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	cfg := defaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return applyEnvOverrides(cfg), nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return applyEnvOverrides(cfg), nil
}

func applyEnvOverrides(cfg Config) Config {
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model := os.Getenv("CONDUIT_MODEL"); model != "" {
		cfg.Model.Model = model
	}
	return cfg
}

// Validate checks every server entry and returns one error per offending
// server, joined. A valid config has uniquely named servers with
// well-formed transport descriptors.
func (c Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)

	for i, server := range c.Servers {
		name := strings.TrimSpace(server.Name)
		if name == "" {
			errs = append(errs, &mcperr.ValidationError{
				Field:  fmt.Sprintf("servers[%d].name", i),
				Reason: "name is required",
			})
			continue
		}
		if seen[name] {
			errs = append(errs, &mcperr.ValidationError{
				Field:  fmt.Sprintf("servers[%d].name", i),
				Reason: fmt.Sprintf("duplicate server name %q", name),
			})
			continue
		}
		seen[name] = true

		if err := server.Descriptor().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
