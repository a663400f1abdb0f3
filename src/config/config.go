package config

import (
	"fmt"
	"os"
	"time"

	"stock-dashboard/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills fields the YAML file may omit.
func (c *Config) applyDefaults() {
	if c.Window.Width <= 0 {
		c.Window.Width = 1200
	}
	if c.Window.Height <= 0 {
		c.Window.Height = 800
	}
	if c.Window.Title == "" {
		c.Window.Title = c.Name
	}
	if c.Source.DefaultSymbol == "" {
		c.Source.DefaultSymbol = "AAPL"
	}
	if c.Source.DefaultStartDate == "" {
		c.Source.DefaultStartDate = "2020-01-01"
	}
	if c.Source.SMAWindow <= 0 {
		c.Source.SMAWindow = 20
	}
	if c.Source.MaxListingRows <= 0 {
		c.Source.MaxListingRows = 100
	}
	if c.Storage.DataRetentionDays <= 0 {
		c.Storage.DataRetentionDays = 30
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Validate Source configuration
	if c.Source.ListingURL == "" {
		return fmt.Errorf("listing URL cannot be empty")
	}
	if c.Source.HistoryURL == "" {
		return fmt.Errorf("history URL cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", c.Source.DefaultStartDate); err != nil {
		return fmt.Errorf("invalid default start date '%s': %w", c.Source.DefaultStartDate, err)
	}
	if c.Source.RefreshSeconds < 0 {
		return fmt.Errorf("refresh interval cannot be negative")
	}

	// Validate Window configuration
	if c.Window.Width < 320 || c.Window.Height < 240 {
		return fmt.Errorf("window size %dx%d too small", c.Window.Width, c.Window.Height)
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
