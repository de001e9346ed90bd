// Package selector picks the generative backend and the static analyzer from
// the configuration.
package selector

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/CertiAudit/internal/analyzers"
	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/driven"
	"github.com/BetterCallFirewall/CertiAudit/internal/limits"
	"github.com/BetterCallFirewall/CertiAudit/internal/llm"
)

type backendEntry struct {
	keyword string
	create  func(config.LLMConfig) (llm.Backend, error)
}

func openAI(cfg config.LLMConfig) (llm.Backend, error) {
	b, err := llm.NewOpenAIBackend(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func gemini(cfg config.LLMConfig) (llm.Backend, error) {
	b, err := llm.NewGeminiBackend(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func ollama(cfg config.LLMConfig) (llm.Backend, error) {
	b, err := llm.NewOllamaBackend(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// backendTable is matched in order against the lowercased model name; the
// first keyword contained in the name wins.
var backendTable = []backendEntry{
	{"gpt", openAI},
	{"openai", openAI},
	{"gemini", gemini},
	{"llama", ollama},
	{"qwen", ollama},
	{"mistral", ollama},
	{"deepseek", ollama},
	{"ollama", ollama},
}

type analyzerFactory func(opts ...analyzers.Option) analyzers.StaticAnalyzer

var analyzerTable = map[config.ProjectType]analyzerFactory{
	config.ProjectEVM:    func(opts ...analyzers.Option) analyzers.StaticAnalyzer { return analyzers.NewSlither(opts...) },
	config.ProjectSolana: func(opts ...analyzers.Option) analyzers.StaticAnalyzer { return analyzers.NewSoteria(opts...) },
}

// BackendKeywords returns the model keywords in match order.
func BackendKeywords() []string {
	keywords := make([]string, len(backendTable))
	for i, e := range backendTable {
		keywords[i] = e.keyword
	}
	return keywords
}

// Selector builds services from an immutable configuration.
type Selector struct {
	cfg     *config.Config
	limiter *limits.Limiter
}

// New creates a selector. A nil limiter means default limits.
func New(cfg *config.Config, limiter *limits.Limiter) *Selector {
	if limiter == nil {
		limiter = limits.NewLimiter(nil)
	}
	return &Selector{cfg: cfg, limiter: limiter}
}

// Config returns the configuration the selector was built from.
func (s *Selector) Config() *config.Config { return s.cfg }

// GenerativeBackend returns the backend whose keyword first matches the model name.
func (s *Selector) GenerativeBackend() (llm.Backend, error) {
	model := strings.ToLower(s.cfg.LLM.ModelName)
	for _, e := range backendTable {
		if strings.Contains(model, e.keyword) {
			log.Debug().Str("model", model).Str("keyword", e.keyword).Msg("🏭 Selected generative backend")
			return e.create(s.cfg.LLM)
		}
	}
	return nil, fmt.Errorf("%w: unknown model %q, supported keywords: %s",
		config.ErrConfiguration, s.cfg.LLM.ModelName, strings.Join(BackendKeywords(), ", "))
}

// StaticAnalyzer returns the analyzer for the configured project type.
func (s *Selector) StaticAnalyzer() (analyzers.StaticAnalyzer, error) {
	return s.StaticAnalyzerFor(s.cfg.Project.Type)
}

// StaticAnalyzerFor returns the analyzer registered for pt.
func (s *Selector) StaticAnalyzerFor(pt config.ProjectType) (analyzers.StaticAnalyzer, error) {
	factory, ok := analyzerTable[pt]
	if !ok {
		return nil, fmt.Errorf("%w: no static analyzer registered for project type %q", config.ErrNotImplemented, pt)
	}
	a := factory(s.analyzerOptions(pt)...)
	log.Debug().Str("project_type", string(pt)).Str("analyzer", a.Name()).Msg("🏭 Selected static analyzer")
	return a, nil
}

func (s *Selector) analyzerOptions(pt config.ProjectType) []analyzers.Option {
	opts := []analyzers.Option{
		analyzers.WithTimeout(s.cfg.Analyzer.Timeout),
		analyzers.WithLimiter(s.limiter),
	}
	switch pt {
	case config.ProjectEVM:
		opts = append(opts, analyzers.WithBinary(s.cfg.Analyzer.SlitherBinary))
	case config.ProjectSolana:
		opts = append(opts, analyzers.WithBinary(s.cfg.Analyzer.SoteriaBinary))
	}
	return opts
}

// RegisteredAnalyzers returns one analyzer per supported project type.
func (s *Selector) RegisteredAnalyzers() map[config.ProjectType]analyzers.StaticAnalyzer {
	out := make(map[config.ProjectType]analyzers.StaticAnalyzer, len(analyzerTable))
	for pt, factory := range analyzerTable {
		out[pt] = factory(s.analyzerOptions(pt)...)
	}
	return out
}

// Pipeline assembles an audit pipeline for the configured model and project
// type. Configuration errors are returned before anything runs.
func (s *Selector) Pipeline(opts ...driven.Option) (*driven.AuditAnalyzer, error) {
	backend, err := s.GenerativeBackend()
	if err != nil {
		return nil, err
	}
	all := append([]driven.Option{driven.WithBestPracticesPath(s.cfg.Project.BestPracticesPath)}, opts...)
	return s.PipelineFor(backend, s.cfg.Project.Type, all...)
}

// PipelineFor assembles a pipeline for pt around an existing backend, so one
// backend serves audits of several files and ecosystems.
func (s *Selector) PipelineFor(backend llm.Backend, pt config.ProjectType, opts ...driven.Option) (*driven.AuditAnalyzer, error) {
	analyzer, err := s.StaticAnalyzerFor(pt)
	if err != nil {
		return nil, err
	}
	return driven.NewAuditAnalyzer(backend, analyzer, opts...), nil
}
