//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "claims-analyst.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/fleetiq/" + ConfigFileName
)

// Load loads the configuration from the specified path, or searches
// default locations if path is empty.
//
// Search order:
//  1. Explicit path (if provided)
//  2. /etc/fleetiq/claims-analyst.yaml
//  3. claims-analyst.yaml in the binary's directory
func Load(path string) (*Config, error) {
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	return loadFromFile(configPath)
}

// findConfigFile finds the configuration file using the search order.
func findConfigFile(explicitPath string) (string, error) {
	// If explicit path provided, use it
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Search order for config file
	searchPaths := []string{
		SystemConfigPath,
		getBinaryDirConfigPath(),
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no configuration file found; searched: %v", searchPaths)
}

// getBinaryDirConfigPath returns the path to config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}

	// Resolve symlinks to get the actual binary location
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}

	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile loads and parses the configuration from a YAML file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults applies default values where the file left fields unset.
func applyDefaults(cfg *Config) {
	if cfg.Warehouse.Port == 0 {
		cfg.Warehouse.Port = 5432
	}
	if cfg.Warehouse.SSLMode == "" {
		cfg.Warehouse.SSLMode = "prefer"
	}

	if cfg.Indexes.KPITable == "" {
		cfg.Indexes.KPITable = "kpi_index"
	}
	if cfg.Indexes.CatalogTable == "" {
		cfg.Indexes.CatalogTable = "column_catalog"
	}

	p := &cfg.Pipeline
	if p.ClaimsTable == "" {
		p.ClaimsTable = "claims"
	}
	if p.DefaultDateColumn == "" {
		p.DefaultDateColumn = "Occurrence Date"
	}
	if p.OpenedDateColumn == "" {
		p.OpenedDateColumn = "Opened Date"
	}
	if p.ClosedDateColumn == "" {
		p.ClosedDateColumn = "Close Date"
	}
	if p.KPITopK == 0 {
		p.KPITopK = 3
	}
	if p.ProbeTopK == 0 {
		p.ProbeTopK = 4
	}
	if p.ProbeWorkers == 0 {
		p.ProbeWorkers = 4
	}
	if p.ProbeTimeoutSecs == 0 {
		p.ProbeTimeoutSecs = 45
	}
}
