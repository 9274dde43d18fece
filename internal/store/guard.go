package store

import (
	"regexp"
	"strings"

	"github.com/roach88/golfkpi/internal/kernel"
)

// factTables are the append-only tables. template_aliases and
// projection_club_stats are deliberately absent.
var factTables = map[string]bool{
	"templates":             true,
	"course_snapshots":      true,
	"course_snapshot_holes": true,
	"sessions":              true,
	"shots":                 true,
	"club_subsessions":      true,
	"rounds":                true,
	"round_players":         true,
	"round_events":          true,
	"hole_scores":           true,
}

// IsFactTable reports whether table is append-only.
func IsFactTable(table string) bool {
	return factTables[strings.ToLower(table)]
}

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

	mutatingStatement = regexp.MustCompile(`(?is)^\s*` +
		`(UPDATE(?:\s+OR\s+\w+)?|DELETE\s+FROM|REPLACE\s+INTO|INSERT\s+OR\s+REPLACE\s+INTO|TRUNCATE(?:\s+TABLE)?|DROP\s+TABLE(?:\s+IF\s+EXISTS)?|ALTER\s+TABLE)` +
		`\s+(?:ONLY\s+)?(?:\w+\.)?["` + "`" + `]?(\w+)`)

	upsertStatement = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+(?:\w+\.)?["` + "`" + `]?(\w+).*\bON\s+CONFLICT\b.*\bDO\s+UPDATE\b`)
)

// guardStatement rejects any statement in query that would modify or
// remove existing rows of a fact table. Plain INSERTs, including ON
// CONFLICT DO NOTHING, pass.
func guardStatement(query string) error {
	cleaned := blockComment.ReplaceAllString(query, " ")
	cleaned = lineComment.ReplaceAllString(cleaned, " ")

	for _, stmt := range strings.Split(cleaned, ";") {
		if m := mutatingStatement.FindStringSubmatch(stmt); m != nil {
			table := strings.ToLower(m[2])
			if factTables[table] {
				return &kernel.ImmutabilityViolation{Table: table, Operation: operationName(m[1])}
			}
			continue
		}
		if m := upsertStatement.FindStringSubmatch(stmt); m != nil {
			table := strings.ToLower(m[1])
			if factTables[table] {
				return &kernel.ImmutabilityViolation{Table: table, Operation: "UPSERT"}
			}
		}
	}
	return nil
}

func operationName(verb string) string {
	fields := strings.Fields(strings.ToUpper(verb))
	switch fields[0] {
	case "INSERT":
		return "REPLACE"
	case "DROP", "ALTER":
		return fields[0] + " TABLE"
	default:
		return fields[0]
	}
}
