package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds persisted CLI defaults. Flags and environment variables
// take precedence over these.
type Config struct {
	AWSProfile  string `yaml:"aws_profile,omitempty"`
	AWSRegion   string `yaml:"aws_region,omitempty"`
	AutoApprove bool   `yaml:"auto_approve,omitempty"`
}

// GetConfigPath returns the config file path (~/.stratus.yaml)
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stratus.yaml"
	}
	return filepath.Join(home, ".stratus.yaml")
}

// LoadConfig loads the configuration from ~/.stratus.yaml
func LoadConfig() (*Config, error) {
	configPath := GetConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to ~/.stratus.yaml
func SaveConfig(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetSavedProfile returns the saved AWS profile from config
func GetSavedProfile() string {
	cfg, err := LoadConfig()
	if err != nil {
		return ""
	}
	return cfg.AWSProfile
}

// GetSavedRegion returns the saved AWS region from config
func GetSavedRegion() string {
	cfg, err := LoadConfig()
	if err != nil {
		return ""
	}
	return cfg.AWSRegion
}

// GetSavedAutoApprove returns the saved auto-approve default
func GetSavedAutoApprove() bool {
	cfg, err := LoadConfig()
	if err != nil {
		return false
	}
	return cfg.AutoApprove
}
