package limits

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAnalysisLimits(t *testing.T) {
	limits := DefaultAnalysisLimits()

	assert.Equal(t, 6000, limits.MaxSummaryChars, "Default MaxSummaryChars should be 6000")
	assert.Equal(t, 2000, limits.MaxToolOutputChars, "Default MaxToolOutputChars should be 2000")
	assert.Equal(t, 300, limits.MaxStderrChars, "Default MaxStderrChars should be 300")
	assert.Equal(t, 200, limits.MaxPreviewChars, "Default MaxPreviewChars should be 200")
}

func TestNewLimiter(t *testing.T) {
	limiter := NewLimiter(nil)
	require.NotNil(t, limiter, "Limiter should not be nil")
	require.NotNil(t, limiter.limits, "Limits should not be nil")

	custom := &AnalysisLimits{
		MaxSummaryChars:    1000,
		MaxToolOutputChars: 500,
		MaxStderrChars:     100,
		MaxPreviewChars:    50,
	}

	limiter = NewLimiter(custom)
	require.NotNil(t, limiter)
	assert.Equal(t, custom.MaxSummaryChars, limiter.GetLimits().MaxSummaryChars)
}

func TestLimiter_UpdateLimits(t *testing.T) {
	limiter := NewLimiter(nil)

	valid := &AnalysisLimits{
		MaxSummaryChars:    3000,
		MaxToolOutputChars: 1000,
		MaxStderrChars:     200,
		MaxPreviewChars:    100,
	}

	err := limiter.UpdateLimits(valid)
	assert.NoError(t, err, "Valid limits should be updated without error")
	assert.Equal(t, valid.MaxSummaryChars, limiter.GetLimits().MaxSummaryChars)

	invalid := &AnalysisLimits{
		MaxSummaryChars: -1,
	}

	err = limiter.UpdateLimits(invalid)
	assert.Error(t, err, "Invalid limits should return error")
	assert.Contains(t, err.Error(), "MaxSummaryChars must be positive")
	assert.Equal(t, 3000, limiter.GetLimits().MaxSummaryChars, "rejected limits must not be applied")
}

func TestLimiter_ValidateLimits(t *testing.T) {
	limiter := NewLimiter(nil)
	assert.NoError(t, limiter.ValidateLimits(), "Default limits should be valid")

	limiter.limits = &AnalysisLimits{
		MaxSummaryChars:    100000,
		MaxToolOutputChars: 2000,
		MaxStderrChars:     300,
		MaxPreviewChars:    200,
	}
	err := limiter.ValidateLimits()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "MaxSummaryChars too large")

	limiter.limits = &AnalysisLimits{
		MaxSummaryChars:    1000,
		MaxToolOutputChars: 2000,
		MaxStderrChars:     300,
		MaxPreviewChars:    200,
	}
	err = limiter.ValidateLimits()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "MaxToolOutputChars exceeds MaxSummaryChars")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "anything", Truncate("anything", 0), "non-positive cap disables truncation")

	long := strings.Repeat("a", 50)
	out := Truncate(long, 20)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 20)))
	assert.Contains(t, out, "[TRUNCATED: 30 bytes omitted]")
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// "é" is two bytes; a cut at byte 1 must not split it
	out := Truncate("éé", 1)
	assert.True(t, strings.HasPrefix(out, "\n... [TRUNCATED"), "got %q", out)
	assert.Contains(t, out, "4 bytes omitted")
}

func TestLimiter_Caps(t *testing.T) {
	limiter := NewLimiter(&AnalysisLimits{
		MaxSummaryChars:    10,
		MaxToolOutputChars: 5,
		MaxStderrChars:     3,
		MaxPreviewChars:    4,
	})
	s := strings.Repeat("x", 20)

	assert.True(t, strings.HasPrefix(limiter.Summary(s), strings.Repeat("x", 10)+"\n"))
	assert.True(t, strings.HasPrefix(limiter.ToolOutput(s), strings.Repeat("x", 5)+"\n"))
	assert.True(t, strings.HasPrefix(limiter.Stderr(s), "xxx\n"))
	assert.True(t, strings.HasPrefix(limiter.Preview(s), "xxxx\n"))
}
