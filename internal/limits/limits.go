package limits

import (
	"fmt"
	"strconv"
)

// AnalysisLimits bounds the tool output that ends up in a prompt.
type AnalysisLimits struct {
	MaxSummaryChars    int `json:"max_summary_chars" yaml:"maxSummaryChars"`         // whole analyzer summary
	MaxToolOutputChars int `json:"max_tool_output_chars" yaml:"maxToolOutputChars"` // raw text tool logs (Soteria)
	MaxStderrChars     int `json:"max_stderr_chars" yaml:"maxStderrChars"`
	MaxPreviewChars    int `json:"max_preview_chars" yaml:"maxPreviewChars"` // unparseable output excerpts
}

// DefaultAnalysisLimits returns the default limits.
func DefaultAnalysisLimits() *AnalysisLimits {
	return &AnalysisLimits{
		MaxSummaryChars:    6000,
		MaxToolOutputChars: 2000,
		MaxStderrChars:     300,
		MaxPreviewChars:    200,
	}
}

// Limiter applies AnalysisLimits to tool output.
type Limiter struct {
	limits *AnalysisLimits
}

// NewLimiter creates a limiter, falling back to defaults when limits is nil.
func NewLimiter(limits *AnalysisLimits) *Limiter {
	if limits == nil {
		limits = DefaultAnalysisLimits()
	}
	return &Limiter{
		limits: limits,
	}
}

// GetLimits returns the current limits.
func (l *Limiter) GetLimits() *AnalysisLimits {
	return l.limits
}

// UpdateLimits replaces the limits after checking that every value is positive.
func (l *Limiter) UpdateLimits(limits *AnalysisLimits) error {
	if limits.MaxSummaryChars <= 0 {
		return fmt.Errorf("MaxSummaryChars must be positive")
	}
	if limits.MaxToolOutputChars <= 0 {
		return fmt.Errorf("MaxToolOutputChars must be positive")
	}
	if limits.MaxStderrChars <= 0 {
		return fmt.Errorf("MaxStderrChars must be positive")
	}
	if limits.MaxPreviewChars <= 0 {
		return fmt.Errorf("MaxPreviewChars must be positive")
	}

	l.limits = limits
	return nil
}

// ValidateLimits rejects limits large enough to blow up the prompt.
func (l *Limiter) ValidateLimits() error {
	if l.limits.MaxSummaryChars > 50000 {
		return fmt.Errorf("MaxSummaryChars too large (> 50000)")
	}
	if l.limits.MaxToolOutputChars > l.limits.MaxSummaryChars {
		return fmt.Errorf("MaxToolOutputChars exceeds MaxSummaryChars")
	}
	if l.limits.MaxStderrChars > 5000 {
		return fmt.Errorf("MaxStderrChars too large (> 5000)")
	}
	if l.limits.MaxPreviewChars > 5000 {
		return fmt.Errorf("MaxPreviewChars too large (> 5000)")
	}
	return nil
}

// Summary caps a complete analyzer summary.
func (l *Limiter) Summary(s string) string {
	return Truncate(s, l.limits.MaxSummaryChars)
}

// ToolOutput caps raw tool logs.
func (l *Limiter) ToolOutput(s string) string {
	return Truncate(s, l.limits.MaxToolOutputChars)
}

// Stderr caps stderr excerpts.
func (l *Limiter) Stderr(s string) string {
	return Truncate(s, l.limits.MaxStderrChars)
}

// Preview caps excerpts of unparseable output.
func (l *Limiter) Preview(s string) string {
	return Truncate(s, l.limits.MaxPreviewChars)
}

// Truncate cuts s to maxLen bytes on a rune boundary and appends a marker.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	// step back to the start of a UTF-8 sequence
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	omitted := len(s) - cut
	return s[:cut] + "\n... [TRUNCATED: " + strconv.Itoa(omitted) + " bytes omitted]"
}
