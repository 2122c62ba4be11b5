package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const ConfigFileName = "claimmatrix.json"

// Environment represents one ClaimMatrix API deployment
type Environment struct {
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// Config represents the CLI configuration file
type Config struct {
	Environments []Environment `json:"environments"`
}

// DefaultConfig returns a default configuration with an example environment
func DefaultConfig() *Config {
	return &Config{
		Environments: []Environment{
			{
				URL:   "",
				Alias: "e.g. staging",
			},
		},
	}
}

// Validate checks an environment URL is usable
func (e *Environment) Validate() error {
	if e.URL == "" {
		return fmt.Errorf("environment URL is empty. Please edit %s and add a valid URL", ConfigFileName)
	}
	parsed, err := url.Parse(e.URL)
	if err != nil || parsed.Host == "" || !strings.HasPrefix(parsed.Scheme, "http") {
		return fmt.Errorf("invalid environment URL %q, expected http(s)://host[:port]", e.URL)
	}
	return nil
}

// APIBaseURL returns the versioned API root for the environment
func (e *Environment) APIBaseURL() string {
	return strings.TrimRight(e.URL, "/") + "/api/v1"
}

// Profile returns a stable keyring profile name for the environment
func (e *Environment) Profile() string {
	parsed, err := url.Parse(e.URL)
	if err != nil || parsed.Host == "" {
		return e.URL
	}
	return parsed.Host
}

// FindConfigFile searches for claimmatrix.json in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Search upwards until we find claimmatrix.json or reach root
	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, currentDir)
}

// Load reads the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetEnvironmentByAlias returns an environment by its alias
func (c *Config) GetEnvironmentByAlias(alias string) (*Environment, error) {
	for _, env := range c.Environments {
		if env.Alias == alias {
			return &env, nil
		}
	}
	return nil, fmt.Errorf("environment with alias '%s' not found", alias)
}

// GetDefaultEnvironment returns the first environment in the list
func (c *Config) GetDefaultEnvironment() (*Environment, error) {
	if len(c.Environments) == 0 {
		return nil, fmt.Errorf("no environments configured in %s", ConfigFileName)
	}
	return &c.Environments[0], nil
}
