//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// GenerateInsights produces the deterministic post-execution summary. No
// LLM is involved; the same result always yields the same insights.
func GenerateInsights(result *ExecutionResult) *Insights {
	if result == nil || !result.Success {
		return &Insights{
			Summary:  "The query could not be executed.",
			Findings: []string{"No data is available for this question."},
			Recommendations: []string{
				"Try rephrasing the question with more specific terms.",
			},
		}
	}

	if result.RowCount == 0 {
		return &Insights{
			Summary:  "The query executed successfully but returned no rows.",
			Findings: []string{"No records match the requested criteria."},
			Recommendations: []string{
				"Widen the time window or relax the filters and try again.",
			},
		}
	}

	insights := &Insights{
		Summary: fmt.Sprintf("Query returned %d rows with %d columns in %.2fs",
			result.RowCount, len(result.Columns), result.ElapsedSeconds),
	}

	if finding, recommendation, ok := dominantCategory(result); ok {
		insights.Findings = append(insights.Findings, finding)
		insights.Recommendations = append(insights.Recommendations, recommendation)
	}

	insights.Recommendations = append(insights.Recommendations,
		"Drill into a specific category for a detailed breakdown.",
		"Compare against the previous period to spot trends.",
		"Export the result set for further analysis.",
	)

	return insights
}

// dominantCategory looks for a (text category, numeric measure) column
// pair and reports the total and the largest contributor. The measure is
// the first numeric column whose name mentions a count or total, falling
// back to the first numeric column.
func dominantCategory(result *ExecutionResult) (finding, recommendation string, ok bool) {
	if len(result.Columns) < 2 || len(result.Rows) == 0 {
		return "", "", false
	}

	categoryIdx := -1
	measureIdx := -1
	fallbackMeasure := -1

	for i := range result.Columns {
		value := firstNonNil(result.Rows, i)
		if value == nil {
			continue
		}
		if _, isNum := toFloat(value); isNum {
			name := strings.ToLower(result.Columns[i])
			if measureIdx < 0 && (strings.Contains(name, "count") || strings.Contains(name, "total")) {
				measureIdx = i
			}
			if fallbackMeasure < 0 {
				fallbackMeasure = i
			}
		} else if categoryIdx < 0 {
			if _, isStr := value.(string); isStr {
				categoryIdx = i
			}
		}
	}

	if measureIdx < 0 {
		measureIdx = fallbackMeasure
	}
	if categoryIdx < 0 || measureIdx < 0 || categoryIdx == measureIdx {
		return "", "", false
	}

	var total float64
	var maxValue float64
	var maxCategory string
	seen := false

	for _, row := range result.Rows {
		if measureIdx >= len(row) || categoryIdx >= len(row) {
			continue
		}
		v, isNum := toFloat(row[measureIdx])
		if !isNum {
			continue
		}
		total += v
		label, _ := row[categoryIdx].(string)
		if !seen || v > maxValue {
			maxValue = v
			maxCategory = label
			seen = true
		}
	}

	if !seen || maxCategory == "" {
		return "", "", false
	}

	measureName := result.Columns[measureIdx]
	categoryName := result.Columns[categoryIdx]

	finding = fmt.Sprintf("Total %s across all %s values: %s. The largest is %q with %s.",
		measureName, categoryName, formatNumber(total), maxCategory, formatNumber(maxValue))
	recommendation = fmt.Sprintf("Investigate %q, the leading %s by %s.",
		maxCategory, categoryName, measureName)
	return finding, recommendation, true
}

// firstNonNil returns the first non-nil value in a column.
func firstNonNil(rows [][]interface{}, idx int) interface{} {
	for _, row := range rows {
		if idx < len(row) && row[idx] != nil {
			return row[idx]
		}
	}
	return nil
}

// toFloat coerces the numeric types pgx produces into float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int16:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// formatNumber renders whole numbers without decimals and everything else
// with two.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
