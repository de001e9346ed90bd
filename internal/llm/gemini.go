package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	genkitcore "github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
)

// AuditRequest is the input of the Gemini audit flow.
type AuditRequest struct {
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

// GeminiBackend calls Gemini through a Genkit flow.
type GeminiBackend struct {
	apiKey      string
	model       string
	temperature float32
	timeout     time.Duration

	initOnce sync.Once
	flow     *genkitcore.Flow[*AuditRequest, map[string]any, struct{}]
}

// NewGeminiBackend creates the Gemini backend. GEMINI_API_KEY is required.
// Genkit itself is initialised on first use.
func NewGeminiBackend(cfg config.LLMConfig) (*GeminiBackend, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: the Gemini backend requires GEMINI_API_KEY", config.ErrConfiguration)
	}
	return &GeminiBackend{
		apiKey:      cfg.GeminiAPIKey,
		model:       cfg.ModelName,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
	}, nil
}

func (b *GeminiBackend) Name() string { return "gemini" }

// ModelName is the Genkit model reference used for generation.
func (b *GeminiBackend) ModelName() string { return "googleai/" + b.model }

func (b *GeminiBackend) init(ctx context.Context) {
	g := genkit.Init(
		ctx,
		genkit.WithPlugins(
			&googlegenai.GoogleAI{
				APIKey: b.apiKey,
			},
		),
		genkit.WithDefaultModel(b.ModelName()),
	)
	b.flow = DefineAuditFlow(g, b.ModelName(), b.temperature)
}

func (b *GeminiBackend) GenerateResponse(ctx context.Context, systemPrompt, userPrompt string) (map[string]any, error) {
	// genkit keeps the init context for background work
	b.initOnce.Do(func() { b.init(context.Background()) })

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	obj, err := b.flow.Run(ctx, &AuditRequest{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", ErrBackendInvocation, err)
	}
	return obj, nil
}

// DefineAuditFlow creates the Genkit flow that asks the model for a JSON audit report.
func DefineAuditFlow(
	g *genkit.Genkit,
	modelName string,
	temperature float32,
) *genkitcore.Flow[*AuditRequest, map[string]any, struct{}] {
	return genkit.DefineFlow(
		g,
		"auditReportFlow",
		func(ctx context.Context, req *AuditRequest) (map[string]any, error) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled before audit generation: %w", err)
			}

			log.Info().Str("backend", "gemini").Str("model", modelName).Msg("🧠 Calling model")

			resp, err := genkit.Generate(
				ctx,
				g,
				ai.WithModelName(modelName),
				ai.WithMessages(
					ai.NewSystemTextMessage(req.SystemPrompt),
					ai.NewUserTextMessage(req.UserPrompt),
				),
				ai.WithConfig(&genai.GenerateContentConfig{
					Temperature:      genai.Ptr(temperature),
					ResponseMIMEType: "application/json",
				}),
			)
			if err != nil {
				return nil, fmt.Errorf("gemini generation failed: %w", err)
			}

			return ParseJSONObject(resp.Text())
		},
	)
}
