package models

import (
	"fmt"
	"strings"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
)

// FailedAnalysisSummary is the summary of the degraded report returned when the
// backend cannot be reached or its answer does not match the report schema.
const FailedAnalysisSummary = "Analysis failed: the model returned no usable report. Static analysis results are available in the logs."

// AnalysisMode selects the prompt family.
type AnalysisMode string

const (
	ModeSecurity AnalysisMode = "SECURITY"
	ModeGas      AnalysisMode = "GAS"
)

// ParseMode parses a mode case-insensitively. Empty input means SECURITY.
func ParseMode(s string) (AnalysisMode, error) {
	switch AnalysisMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", ModeSecurity:
		return ModeSecurity, nil
	case ModeGas:
		return ModeGas, nil
	default:
		return "", fmt.Errorf("%w: unknown analysis mode %q (supported: SECURITY, GAS)", config.ErrConfiguration, s)
	}
}

// Vulnerability is a single finding as returned by the backend.
type Vulnerability struct {
	Name             string   `json:"name" jsonschema:"description=Short name of the vulnerability"`
	Line             int      `json:"line" jsonschema:"minimum=1,description=Line number in the analyzed code where the issue occurs"`
	Severity         Severity `json:"severity" jsonschema:"enum=High,enum=Medium,enum=Low,enum=Informational,enum=Gas,enum=Optimization,enum=Critical,description=Risk level of the finding"`
	Description      string   `json:"description" jsonschema:"description=Explanation of the issue and how it can be exploited"`
	FixSuggestion    string   `json:"fix_suggestion" jsonschema:"description=How to fix the issue"`
	FixedCodeSnippet string   `json:"fixed_code_snippet" jsonschema:"description=Corrected version of the affected code"`
	PocCode          *string  `json:"poc_code,omitempty" jsonschema:"description=Proof of concept exploit as a Foundry or Hardhat test. Only for High and Critical findings"`
}

// AuditReport is the structured result of one audit. Vulnerabilities keep the
// order the backend produced.
type AuditReport struct {
	AnalysisSummary string          `json:"analysis_summary" jsonschema:"minLength=1,description=Overall summary of the audit"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities" jsonschema:"description=Findings ordered as reported"`
}

// NewFailedReport returns the degraded report.
func NewFailedReport() *AuditReport {
	return &AuditReport{
		AnalysisSummary: FailedAnalysisSummary,
		Vulnerabilities: []Vulnerability{},
	}
}

// Failed reports whether r is the degraded report.
func (r *AuditReport) Failed() bool {
	return r != nil && r.AnalysisSummary == FailedAnalysisSummary && len(r.Vulnerabilities) == 0
}

// WithoutPoC returns a copy of the report with every poc_code cleared.
func (r *AuditReport) WithoutPoC() *AuditReport {
	out := &AuditReport{
		AnalysisSummary: r.AnalysisSummary,
		Vulnerabilities: make([]Vulnerability, len(r.Vulnerabilities)),
	}
	for i, v := range r.Vulnerabilities {
		v.PocCode = nil
		out.Vulnerabilities[i] = v
	}
	return out
}

// HighestSeverity returns the worst severity in the report, or "" when empty.
func (r *AuditReport) HighestSeverity() Severity {
	var worst Severity
	for _, v := range r.Vulnerabilities {
		if v.Severity.Rank() > worst.Rank() {
			worst = v.Severity
		}
	}
	return worst
}

// CountBySeverity counts findings per severity.
func (r *AuditReport) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, v := range r.Vulnerabilities {
		counts[v.Severity]++
	}
	return counts
}
