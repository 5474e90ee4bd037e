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
	"strings"
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateWarehouse()...)
	errs = append(errs, c.validateIndexes()...)
	errs = append(errs, c.validateLLMs()...)
	errs = append(errs, c.validatePipeline()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(expandPath(c.Server.TLS.CertFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.CertFile),
			})
		}

		if c.Server.TLS.KeyFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(expandPath(c.Server.TLS.KeyFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.KeyFile),
			})
		}
	}

	return errs
}

// validateWarehouse validates the warehouse connection configuration.
func (c *Config) validateWarehouse() ValidationErrors {
	var errs ValidationErrors
	db := c.Warehouse

	if db.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "warehouse.host",
			Message: "required",
		})
	}

	if db.Database == "" {
		errs = append(errs, ValidationError{
			Field:   "warehouse.database",
			Message: "required",
		})
	}

	if db.Port < 1 || db.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "warehouse.port",
			Message: "must be between 1 and 65535",
		})
	}

	// Validate SSL mode
	validSSLModes := map[string]bool{
		"disable":     true,
		"allow":       true,
		"prefer":      true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if db.SSLMode != "" && !validSSLModes[db.SSLMode] {
		errs = append(errs, ValidationError{
			Field:   "warehouse.ssl_mode",
			Message: "must be one of: disable, allow, prefer, require, verify-ca, verify-full",
		})
	}

	return errs
}

// validateIndexes validates the vector-index table configuration.
func (c *Config) validateIndexes() ValidationErrors {
	var errs ValidationErrors

	if c.Indexes.KPITable == "" {
		errs = append(errs, ValidationError{
			Field:   "indexes.kpi_table",
			Message: "required",
		})
	}

	if c.Indexes.CatalogTable == "" {
		errs = append(errs, ValidationError{
			Field:   "indexes.catalog_table",
			Message: "required",
		})
	}

	return errs
}

// validateLLMs validates the embedding and chat provider configuration.
func (c *Config) validateLLMs() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, c.validateLLM("llm.embedding", c.LLM.Embedding,
		[]string{"openai", "voyage", "ollama"})...)
	errs = append(errs, c.validateLLM("llm.chat", c.LLM.Chat,
		[]string{"anthropic", "openai", "ollama"})...)

	return errs
}

// validatePipeline validates pipeline tunables.
func (c *Config) validatePipeline() ValidationErrors {
	var errs ValidationErrors
	p := c.Pipeline

	if p.ClaimsTable == "" {
		errs = append(errs, ValidationError{
			Field:   "pipeline.claims_table",
			Message: "required",
		})
	}

	if p.KPITopK < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.kpi_top_k",
			Message: "must be positive",
		})
	}

	if p.ProbeTopK < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.probe_top_k",
			Message: "must be positive",
		})
	}

	if p.ProbeWorkers < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.probe_workers",
			Message: "must be positive",
		})
	}

	if p.ProbeTimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.probe_timeout_seconds",
			Message: "must be positive",
		})
	}

	return errs
}

// validateLLM validates a single LLM configuration.
func (c *Config) validateLLM(prefix string, llm LLMConfig, validProviders []string) ValidationErrors {
	var errs ValidationErrors

	if llm.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".provider",
			Message: "required",
		})
	} else {
		provider := strings.ToLower(llm.Provider)
		valid := false
		for _, vp := range validProviders {
			if provider == vp {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, ValidationError{
				Field:   prefix + ".provider",
				Message: fmt.Sprintf("must be one of: %s", strings.Join(validProviders, ", ")),
			})
		}
	}

	if llm.Model == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".model",
			Message: "required",
		})
	}

	return errs
}
