//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import "testing"

func TestStripSQLFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "sql fence",
			in:   "```sql\nSELECT 1\n```",
			want: "SELECT 1",
		},
		{
			name: "bare fence",
			in:   "```\nSELECT 1\n```",
			want: "SELECT 1",
		},
		{
			name: "no fence",
			in:   "SELECT 1",
			want: "SELECT 1",
		},
		{
			name: "surrounding whitespace",
			in:   "  \n```sql\nSELECT 1\n```\n  ",
			want: "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripSQLFences(tt.in); got != tt.want {
				t.Errorf("stripSQLFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsPlausibleSelect(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"select count(*) from claims", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"", false},
		{"DROP TABLE claims", false},
		{"I cannot write that query", false},
	}

	for _, tt := range tests {
		if got := isPlausibleSelect(tt.sql); got != tt.want {
			t.Errorf("isPlausibleSelect(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}
