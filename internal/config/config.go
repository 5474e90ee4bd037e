//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// FleetIQ Claims Analyst service.
package config

// Config is the root configuration structure for the service.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	APIKeys   APIKeysConfig  `yaml:"api_keys"`
	Warehouse DatabaseConfig `yaml:"warehouse"`
	Indexes   IndexesConfig  `yaml:"indexes"`
	LLM       LLMSet         `yaml:"llm"`
	Pipeline  PipelineConfig `yaml:"pipeline"`
}

// APIKeysConfig contains paths to files containing API keys for LLM providers.
// If not specified, keys are loaded from environment variables or default
// file locations (~/.anthropic-api-key, ~/.openai-api-key, ~/.voyage-api-key).
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"` // Path to file containing Anthropic API key
	OpenAI    string `yaml:"openai"`    // Path to file containing OpenAI API key
	Voyage    string `yaml:"voyage"`    // Path to file containing Voyage API key
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress string     `yaml:"listen_address"`
	Port          int        `yaml:"port"`
	TLS           TLSConfig  `yaml:"tls"`
	CORS          CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig contains PostgreSQL connection settings. The warehouse
// hosts both the analytical claims table and the vector indexes.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Certificate-based authentication
	SSLCert   string `yaml:"ssl_cert"`
	SSLKey    string `yaml:"ssl_key"`
	SSLRootCA string `yaml:"ssl_root_ca"`
}

// IndexesConfig names the vector-index tables used for retrieval.
type IndexesConfig struct {
	KPITable     string `yaml:"kpi_table"`     // Known-metrics index (name, description, SQL, embedding)
	CatalogTable string `yaml:"catalog_table"` // Column-catalog index (column descriptions, embedding)
}

// LLMSet contains the providers used by the pipeline. A single chat
// provider serves every decision and generation stage.
type LLMSet struct {
	Embedding LLMConfig `yaml:"embedding"`
	Chat      LLMConfig `yaml:"chat"`
}

// LLMConfig contains settings for an LLM provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// PipelineConfig contains tunables for the analysis pipeline.
type PipelineConfig struct {
	ClaimsTable       string `yaml:"claims_table"`        // Analytical table queries run against
	DefaultDateColumn string `yaml:"default_date_column"` // Sentinel date column (default "Occurrence Date")
	OpenedDateColumn  string `yaml:"opened_date_column"`  // Date column for "opened" questions
	ClosedDateColumn  string `yaml:"closed_date_column"`  // Date column for "closed" questions
	KPITopK           int    `yaml:"kpi_top_k"`            // Candidates fetched per KPI search
	ProbeTopK         int    `yaml:"probe_top_k"`          // Columns fetched per metadata probe
	ProbeWorkers      int    `yaml:"probe_workers"`        // Bounded fan-out width for probes
	ProbeTimeoutSecs  int    `yaml:"probe_timeout_seconds"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			Port:          8080,
			TLS: TLSConfig{
				Enabled: false,
			},
		},
		Indexes: IndexesConfig{
			KPITable:     "kpi_index",
			CatalogTable: "column_catalog",
		},
		Pipeline: PipelineConfig{
			ClaimsTable:       "claims",
			DefaultDateColumn: "Occurrence Date",
			OpenedDateColumn:  "Opened Date",
			ClosedDateColumn:  "Close Date",
			KPITopK:           3,
			ProbeTopK:         4,
			ProbeWorkers:      4,
			ProbeTimeoutSecs:  45,
		},
	}
}
