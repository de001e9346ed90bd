package main

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/models"
)

// ollamaServer answers every chat completion with content and counts the calls.
func ollamaServer(t *testing.T, content string) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "llama3",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)

	t.Setenv("LLM_MODEL_NAME", "llama3")
	t.Setenv("OLLAMA_BASE_URL", srv.URL+"/v1")
	t.Setenv("SLITHER_BIN", "certi-audit-no-such-slither")
	return &calls
}

const okReport = `{"analysis_summary": "ok", "vulnerabilities": []}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAudit_MissingFile(t *testing.T) {
	_, err := execute(t, "audit", filepath.Join(t.TempDir(), "Missing.sol"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestAudit_ConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "A.sol")
	b := filepath.Join(dir, "B.sol")
	require.NoError(t, os.WriteFile(a, []byte("contract A {}"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("contract B {}"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"audit", "--mode", "fast", a}},
		{"unknown format", []string{"audit", "--format", "pdf", a}},
		{"unknown type", []string{"audit", "--type", "cosmos", a}},
		{"out with several files", []string{"audit", "--out", "r.json", a, b}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

func TestAudit_UnknownModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Token.sol")
	require.NoError(t, os.WriteFile(path, []byte("contract T {}"), 0o644))
	t.Setenv("LLM_MODEL_NAME", "foo-model-9000")

	_, err := execute(t, "audit", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Contains(t, err.Error(), "ollama")
}

func TestAudit_MoveNotImplemented(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coin.move")
	require.NoError(t, os.WriteFile(path, []byte("module 0x1::coin {}"), 0o644))
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := execute(t, "audit", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNotImplemented)
}

func TestCheck_ListsAnalyzers(t *testing.T) {
	t.Setenv("SLITHER_BIN", "certi-audit-no-such-slither")
	t.Setenv("SOTERIA_BIN", "certi-audit-no-such-soteria")
	t.Setenv("LLM_MODEL_NAME", "foo-model-9000")

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "EVM")
	assert.Contains(t, out, "Slither")
	assert.Contains(t, out, "SOLANA")
	assert.Contains(t, out, "Soteria")
	assert.Contains(t, out, "not installed")
	assert.Contains(t, out, "supported keywords")
}

func TestAudit_UnsupportedFileStopsBeforeAnyAnalysis(t *testing.T) {
	calls := ollamaServer(t, okReport)
	dir := t.TempDir()
	a := filepath.Join(dir, "A.sol")
	b := filepath.Join(dir, "B.move")
	require.NoError(t, os.WriteFile(a, []byte("contract A {}"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("module 0x1::b {}"), 0o644))

	for _, format := range []string{"console", "json"} {
		t.Run(format, func(t *testing.T) {
			out, err := execute(t, "audit", "--format", format, "--parallel", "2", a, b)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrNotImplemented)
			assert.Empty(t, out, "nothing is printed")
			assert.NoFileExists(t, a+".audit.json")
			assert.Zero(t, calls.Load(), "no backend call is made")
		})
	}
}

func TestAudit_MissingSecondFileStopsBeforeAnyAnalysis(t *testing.T) {
	calls := ollamaServer(t, okReport)
	a := filepath.Join(t.TempDir(), "A.sol")
	require.NoError(t, os.WriteFile(a, []byte("contract A {}"), 0o644))

	_, err := execute(t, "audit", a, filepath.Join(t.TempDir(), "Missing.sol"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Zero(t, calls.Load())
}

func TestAudit_WritesJSONReport(t *testing.T) {
	calls := ollamaServer(t, okReport)
	a := filepath.Join(t.TempDir(), "A.sol")
	require.NoError(t, os.WriteFile(a, []byte("contract A {}"), 0o644))

	_, err := execute(t, "audit", "--format", "json", a)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	data, err := os.ReadFile(a + ".audit.json")
	require.NoError(t, err)
	var r models.AuditReport
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "ok", r.AnalysisSummary)
	assert.Empty(t, r.Vulnerabilities)
}

func TestLoad_InvalidLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certi-audit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  maxSummaryChars: 100000\n"), 0o644))
	t.Setenv("LLM_MODEL_NAME", "foo-model-9000")

	_, err := execute(t, "--config", path, "check")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Contains(t, err.Error(), "MaxSummaryChars too large")

	require.NoError(t, os.WriteFile(path, []byte("limits:\n  maxStderrChars: -1\n"), 0o644))
	_, err = execute(t, "--config", path, "check")
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestNewLimiter_UsesConfiguredLimits(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxToolOutputChars = 1234

	limiter, err := newLimiter(&cfg)
	require.NoError(t, err)
	assert.Equal(t, 1234, limiter.GetLimits().MaxToolOutputChars)
	assert.Equal(t, 6000, limiter.GetLimits().MaxSummaryChars)
}

func TestNewPipelineFactory(t *testing.T) {
	calls := ollamaServer(t, okReport)
	cfg, err := config.Load("")
	require.NoError(t, err)
	limiter, err := newLimiter(cfg)
	require.NoError(t, err)

	factory, err := newPipelineFactory(cfg, limiter)
	require.NoError(t, err)

	evm, err := factory(config.ProjectEVM, nil)
	require.NoError(t, err)
	assert.NotNil(t, evm)
	_, err = factory(config.ProjectMove, nil)
	assert.ErrorIs(t, err, config.ErrNotImplemented)
	assert.Zero(t, calls.Load())

	t.Setenv("LLM_MODEL_NAME", "gemini-2.5-flash")
	t.Setenv("GEMINI_API_KEY", "")
	cfg, err = config.Load("")
	require.NoError(t, err)
	_, err = newPipelineFactory(cfg, limiter)
	assert.ErrorIs(t, err, config.ErrConfiguration, "credentials are checked at startup")
}
