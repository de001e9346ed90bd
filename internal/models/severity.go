package models

import "strings"

// Severity is the risk level the backend assigns to a finding.
type Severity string

const (
	SeverityCritical      Severity = "Critical"
	SeverityHigh          Severity = "High"
	SeverityMedium        Severity = "Medium"
	SeverityLow           Severity = "Low"
	SeverityInformational Severity = "Informational"
	SeverityGas           Severity = "Gas"
	SeverityOptimization  Severity = "Optimization"
)

// Severities lists every accepted severity in schema order.
var Severities = []Severity{
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInformational,
	SeverityGas,
	SeverityOptimization,
	SeverityCritical,
}

// ParseSeverity matches s against the known severities ignoring case.
func ParseSeverity(s string) (Severity, bool) {
	s = strings.TrimSpace(s)
	for _, sev := range Severities {
		if strings.EqualFold(s, string(sev)) {
			return sev, true
		}
	}
	return "", false
}

// Rank orders severities for summaries; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 6
	case SeverityHigh:
		return 5
	case SeverityMedium:
		return 4
	case SeverityLow:
		return 3
	case SeverityInformational:
		return 2
	case SeverityGas, SeverityOptimization:
		return 1
	default:
		return 0
	}
}

// NeedsPoC reports whether a proof of concept is requested for this severity.
func (s Severity) NeedsPoC() bool {
	return s == SeverityHigh || s == SeverityCritical
}
