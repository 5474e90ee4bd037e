//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import "strings"

// stripSQLFences removes leading/trailing markdown code-fence markers from
// a model response and trims whitespace.
func stripSQLFences(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line (```sql or bare ```)
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}

// isPlausibleSelect is the intentionally shallow validity check: non-empty
// and contains SELECT, case-insensitive. Not a parser.
func isPlausibleSelect(sql string) bool {
	return sql != "" && strings.Contains(strings.ToUpper(sql), "SELECT")
}
