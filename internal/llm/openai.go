package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
)

// Ollama ignores the key but the client requires one.
const ollamaAPIKey = "ollama"

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint.
type OpenAIBackend struct {
	name        string
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewOpenAIBackend creates the OpenAI backend. OPENAI_API_KEY is required.
func NewOpenAIBackend(cfg config.LLMConfig) (*OpenAIBackend, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: the OpenAI backend requires OPENAI_API_KEY", config.ErrConfiguration)
	}
	return newOpenAICompatible("openai", cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg, cfg.Timeout), nil
}

// NewOllamaBackend creates a backend for a local Ollama server. Local
// inference is slow, so the timeout is doubled.
func NewOllamaBackend(cfg config.LLMConfig) (*OpenAIBackend, error) {
	if cfg.OllamaBaseURL == "" {
		return nil, fmt.Errorf("%w: the Ollama backend requires OLLAMA_BASE_URL", config.ErrConfiguration)
	}
	return newOpenAICompatible("ollama", ollamaAPIKey, cfg.OllamaBaseURL, cfg, 2*cfg.Timeout), nil
}

func newOpenAICompatible(name, apiKey, baseURL string, cfg config.LLMConfig, timeout time.Duration) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIBackend{
		name:        name,
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.ModelName,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
	}
}

func (b *OpenAIBackend) Name() string { return b.name }


func (b *OpenAIBackend) GenerateResponse(ctx context.Context, systemPrompt, userPrompt string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	log.Info().Str("backend", b.name).Str("model", b.model).Msg("🧠 Calling model")

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: b.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if b.name == "ollama" {
			return nil, fmt.Errorf("%w: ollama: %v (is Ollama running and the model pulled? try `ollama pull %s`)", ErrBackendInvocation, err, b.model)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendInvocation, b.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s: response has no choices", ErrBackendInvocation, b.name)
	}

	obj, err := ParseJSONObject(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendInvocation, b.name, err)
	}
	return obj, nil
}
