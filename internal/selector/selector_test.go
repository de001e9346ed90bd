package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/CertiAudit/internal/analyzers"
	"github.com/BetterCallFirewall/CertiAudit/internal/config"
)

func newSelector(model string) *Selector {
	cfg := config.Default()
	cfg.LLM.ModelName = model
	cfg.LLM.OpenAIAPIKey = "sk-test"
	cfg.LLM.GeminiAPIKey = "g-test"
	return New(&cfg, nil)
}

func TestGenerativeBackend_Dispatch(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o", "openai"},
		{"GPT-4o-mini", "openai"},
		{"openai/o1", "openai"},
		{"gemini-2.5-flash", "gemini"},
		{"llama3.1:8b", "ollama"},
		{"qwen2.5-coder", "ollama"},
		{"mistral-nemo", "ollama"},
		{"deepseek-r1", "ollama"},
		{"ollama-custom", "ollama"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			backend, err := newSelector(tt.model).GenerativeBackend()
			require.NoError(t, err)
			assert.Equal(t, tt.want, backend.Name())
		})
	}
}

func TestGenerativeBackend_FirstMatchWins(t *testing.T) {
	// contains both "gpt" and "llama"; gpt comes first in the table
	backend, err := newSelector("llama-gpt-distill").GenerativeBackend()
	require.NoError(t, err)
	assert.Equal(t, "openai", backend.Name())
}

func TestGenerativeBackend_UnknownModel(t *testing.T) {
	_, err := newSelector("foo-model-9000").GenerativeBackend()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	for _, kw := range BackendKeywords() {
		assert.Contains(t, err.Error(), kw)
	}
}

func TestGenerativeBackend_MissingCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.ModelName = "gpt-4o"
	_, err := New(&cfg, nil).GenerativeBackend()
	assert.ErrorIs(t, err, config.ErrConfiguration)

	cfg.LLM.ModelName = "gemini-2.5-pro"
	_, err = New(&cfg, nil).GenerativeBackend()
	assert.ErrorIs(t, err, config.ErrConfiguration)

	// ollama needs no key
	cfg.LLM.ModelName = "llama3"
	backend, err := New(&cfg, nil).GenerativeBackend()
	require.NoError(t, err)
	assert.Equal(t, "ollama", backend.Name())
}

func TestBackendKeywords_Order(t *testing.T) {
	assert.Equal(t, []string{"gpt", "openai", "gemini", "llama", "qwen", "mistral", "deepseek", "ollama"}, BackendKeywords())
}

func TestStaticAnalyzerFor(t *testing.T) {
	s := newSelector("gpt-4o")

	a, err := s.StaticAnalyzerFor(config.ProjectEVM)
	require.NoError(t, err)
	assert.IsType(t, &analyzers.Slither{}, a)

	a, err = s.StaticAnalyzerFor(config.ProjectSolana)
	require.NoError(t, err)
	assert.IsType(t, &analyzers.Soteria{}, a)

	_, err = s.StaticAnalyzerFor(config.ProjectMove)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNotImplemented)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestStaticAnalyzer_UsesConfiguredType(t *testing.T) {
	cfg := config.Default().WithProjectType(config.ProjectSolana)
	a, err := New(cfg, nil).StaticAnalyzer()
	require.NoError(t, err)
	assert.Equal(t, "Soteria", a.Name())
}

func TestRegisteredAnalyzers(t *testing.T) {
	all := newSelector("gpt-4o").RegisteredAnalyzers()
	assert.Len(t, all, 2)
	assert.Equal(t, "Slither", all[config.ProjectEVM].Name())
	assert.Equal(t, "Soteria", all[config.ProjectSolana].Name())
}

func TestPipeline(t *testing.T) {
	p, err := newSelector("gpt-4o").Pipeline()
	require.NoError(t, err)
	assert.NotNil(t, p)

	cfg := config.Default().WithProjectType(config.ProjectMove)
	cfg.LLM.OpenAIAPIKey = "sk-test"
	_, err = New(cfg, nil).Pipeline()
	assert.ErrorIs(t, err, config.ErrNotImplemented)

	_, err = newSelector("foo-model-9000").Pipeline()
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestPipelineFor_SharesBackend(t *testing.T) {
	sel := newSelector("gpt-4o")
	backend, err := sel.GenerativeBackend()
	require.NoError(t, err)

	evm, err := sel.PipelineFor(backend, config.ProjectEVM)
	require.NoError(t, err)
	solana, err := sel.PipelineFor(backend, config.ProjectSolana)
	require.NoError(t, err)
	assert.NotSame(t, evm, solana)

	_, err = sel.PipelineFor(backend, config.ProjectMove)
	assert.ErrorIs(t, err, config.ErrNotImplemented)
}
