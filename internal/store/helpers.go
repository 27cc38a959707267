package store

import (
	"strings"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// joinTags serializes a tag set for the tags column; empty input maps to NULL.
func joinTags(tags []string) interface{} {
	if len(tags) == 0 {
		return nil
	}
	return strings.Join(tags, ",")
}

// splitTags parses the comma-joined tags column.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// normalizeSeverity applies the schema default for an unset severity.
func normalizeSeverity(s models.Severity) models.Severity {
	if s == "" {
		return models.SeverityMedium
	}
	return s
}

// formatTime renders a timestamp for the SQLite TEXT columns. RFC3339 in UTC
// sorts lexically, which keeps COALESCE ordering and the due-time comparison
// correct.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime reads a timestamp written by formatTime. It tolerates the plain
// CURRENT_TIMESTAMP layout in case a row predates the application default.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
