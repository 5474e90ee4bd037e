//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package database

import (
	"testing"
)

func TestParseTableIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		expected string
	}{
		{
			name:     "bare table",
			table:    "kpi_index",
			expected: `"kpi_index"`,
		},
		{
			name:     "schema qualified",
			table:    "analytics.kpi_index",
			expected: `"analytics"."kpi_index"`,
		},
		{
			name:     "quoting disarms injection",
			table:    `kpi_index"; DROP TABLE claims; --`,
			expected: `"kpi_index""; DROP TABLE claims; --"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTableIdentifier(tt.table).Sanitize()
			if result != tt.expected {
				t.Errorf("parseTableIdentifier(%q).Sanitize() = %q, want %q",
					tt.table, result, tt.expected)
			}
		})
	}
}

func TestFormatVector(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float32
		expected  string
	}{
		{
			name:      "simple values",
			embedding: []float32{0.1, 0.2, 0.3},
			expected:  "[0.1,0.2,0.3]",
		},
		{
			name:      "single value",
			embedding: []float32{1},
			expected:  "[1]",
		},
		{
			name:      "negative values",
			embedding: []float32{-0.5, 0.5},
			expected:  "[-0.5,0.5]",
		},
		{
			name:      "empty",
			embedding: nil,
			expected:  "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatVector(tt.embedding)
			if result != tt.expected {
				t.Errorf("formatVector(%v) = %q, want %q",
					tt.embedding, result, tt.expected)
			}
		})
	}
}
