// Package testutil provides deterministic clocks and artifact fixtures
// shared by package tests.
package testutil

import (
	"fmt"
	"strings"
)

// TemplateBasic is the reference 7-iron template used across tests.
// Its identity is TemplateBasicHash.
const TemplateBasic = `{
  "schema_version": "1.0",
  "club": "7i",
  "metrics": {
    "spin_rate": { "direction": "lower_is_better", "b_max": 8000, "a_max": 7000.0 },
    "ball_speed": { "a_min": 118, "b_min": 112.5, "direction": "higher_is_better" },
    "smash_factor": { "b_min": 1.30, "a_min": 1.33, "direction": "higher_is_better" }
  },
  "aggregation_method": "worst_metric",
  "created_at": "2026-01-15T00:00:00Z"
}`

// TemplateBasicReordered is TemplateBasic with different key order and
// number spellings; it has the same identity.
const TemplateBasicReordered = `{"created_at":"2026-01-15T00:00:00Z","aggregation_method":"worst_metric",
"metrics":{"smash_factor":{"direction":"higher_is_better","a_min":1.33,"b_min":1.3},
"ball_speed":{"direction":"higher_is_better","b_min":112.5,"a_min":118.0},
"spin_rate":{"a_max":7000,"b_max":8.0e3,"direction":"lower_is_better"}},
"club":"7i","schema_version":"1.0"}`

// TemplateBasicHash is the SHA-256 of the canonical form of TemplateBasic.
const TemplateBasicHash = "0a9af2d8e305b8c6e7f7bcdc29e7f205de0d1d93d8cb3d615a652c8f12a251b0"

// Template returns a single-metric higher-is-better template for club.
func Template(club string, aMin, bMin float64) string {
	return fmt.Sprintf(`{"schema_version":"1.0","club":%q,"metrics":{"ball_speed":{"direction":"higher_is_better","a_min":%v,"b_min":%v}},"aggregation_method":"worst_metric","created_at":"2026-01-15T00:00:00Z"}`,
		club, aMin, bMin)
}

// Snapshot returns a course snapshot of holeCount holes, all par 4 with
// handicap index equal to the hole number.
func Snapshot(course string, holeCount int) string {
	parts := make([]string, 0, holeCount)
	for i := 1; i <= holeCount; i++ {
		parts = append(parts, fmt.Sprintf(`{"hole_number":%d,"par":4,"handicap_index":%d}`, i, i))
	}
	return fmt.Sprintf(`{"course_name":%q,"tee_set":"White","hole_count":%d,"holes":[%s]}`,
		course, holeCount, strings.Join(parts, ","))
}

// F returns a pointer to v, for optional shot metrics.
func F(v float64) *float64 {
	return &v
}

// I returns a pointer to v, for optional putts.
func I(v int) *int {
	return &v
}
