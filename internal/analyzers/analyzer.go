// Package analyzers wraps external static-analysis tools. Every failure is
// reported as text so the audit can continue without the tool.
package analyzers

import (
	"context"
	"fmt"
	"time"

	"github.com/BetterCallFirewall/CertiAudit/internal/limits"
)

// DefaultTimeout bounds a tool run when no timeout is configured.
const DefaultTimeout = 300 * time.Second

// StaticAnalyzer runs one ecosystem's analysis tool and summarizes its output
// for a prompt. RunAnalysis never fails; problems become part of the summary.
type StaticAnalyzer interface {
	Name() string
	CheckInstalled() bool
	RunAnalysis(ctx context.Context, filePath string) string
}

// NoFindingsSummary is the summary reported when a tool finds nothing.
func NoFindingsSummary(tool string) string {
	return fmt.Sprintf("✅ %s analysis completed: no known high-risk vulnerability patterns found.", tool)
}

func notInstalledSummary(tool, binary string) string {
	return fmt.Sprintf("⚠️ Warning: the '%s' command was not found on this system, %s analysis skipped.", binary, tool)
}

func missingFileSummary(filePath string) string {
	return fmt.Sprintf("Error: file does not exist: %s", filePath)
}

func timeoutSummary(tool string, timeout time.Duration) string {
	return fmt.Sprintf("⏱️ %s analysis timed out after %s.", tool, timeout)
}

func failureSummary(tool string, err error) string {
	return fmt.Sprintf("❌ %s analyzer failed: %v", tool, err)
}

type toolOptions struct {
	binary  string
	timeout time.Duration
	limiter *limits.Limiter
	run     RunFunc
}

// Option configures an analyzer.
type Option func(*toolOptions)

// WithBinary overrides the executable name or path.
func WithBinary(binary string) Option {
	return func(o *toolOptions) {
		if binary != "" {
			o.binary = binary
		}
	}
}

// WithTimeout bounds a single tool run.
func WithTimeout(d time.Duration) Option {
	return func(o *toolOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLimiter sets the caps applied to summaries.
func WithLimiter(l *limits.Limiter) Option {
	return func(o *toolOptions) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithRunner replaces the process runner.
func WithRunner(run RunFunc) Option {
	return func(o *toolOptions) {
		if run != nil {
			o.run = run
		}
	}
}

func newToolOptions(binary string, opts []Option) toolOptions {
	o := toolOptions{
		binary:  binary,
		timeout: DefaultTimeout,
		limiter: limits.NewLimiter(nil),
		run:     Run,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
