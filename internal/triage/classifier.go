// Package triage classifies error logs and looks up related tickets and
// documentation for them.
package triage

import (
	"strings"

	"github.com/tuannvm/devhub/internal/models"
)

const maxContextLines = 10

type errorPattern struct {
	pattern  string
	category string
	severity models.Severity
}

// patterns are matched in order; the first substring hit wins, so the
// specific network codes precede the bare HTTP status codes.
var patterns = []errorPattern{
	{"ECONNREFUSED", "connection", models.SeverityHigh},
	{"ETIMEDOUT", "timeout", models.SeverityMedium},
	{"ENOTFOUND", "dns", models.SeverityHigh},
	{"ECONNRESET", "connection", models.SeverityMedium},
	{"PostgreSQL", "database", models.SeverityHigh},
	{"MySQL", "database", models.SeverityHigh},
	{"ORA-", "database", models.SeverityHigh},
	{"OutOfMemoryError", "memory", models.SeverityHigh},
	{"StackOverflow", "memory", models.SeverityHigh},
	{"401", "authentication", models.SeverityMedium},
	{"403", "authorization", models.SeverityMedium},
	{"404", "not_found", models.SeverityLow},
	{"500", "server_error", models.SeverityHigh},
	{"503", "service_unavailable", models.SeverityHigh},
	{"NullPointerException", "null_reference", models.SeverityMedium},
	{"TypeError", "type_error", models.SeverityMedium},
	{"SyntaxError", "syntax", models.SeverityLow},
}

// Classify returns the category of the first known pattern found in
// message, or unknown/low.
func Classify(message string) models.ClassifiedError {
	for _, p := range patterns {
		if strings.Contains(message, p.pattern) {
			return models.ClassifiedError{Category: p.category, Severity: p.severity, Pattern: p.pattern}
		}
	}
	return models.ClassifiedError{Category: "unknown", Severity: models.SeverityLow}
}

// ExtractErrorContext returns the first non-blank lines of an error log,
// trimmed.
func ExtractErrorContext(log string) []string {
	lines := make([]string, 0, maxContextLines)
	for _, line := range strings.Split(log, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == maxContextLines {
			break
		}
	}
	return lines
}
