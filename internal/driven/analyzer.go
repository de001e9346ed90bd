package driven

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/CertiAudit/internal/analyzers"
	"github.com/BetterCallFirewall/CertiAudit/internal/flatten"
	"github.com/BetterCallFirewall/CertiAudit/internal/knowledge"
	"github.com/BetterCallFirewall/CertiAudit/internal/llm"
	"github.com/BetterCallFirewall/CertiAudit/internal/models"
)

// AnalyzeRequest is one audit of one file.
type AnalyzeRequest struct {
	FilePath     string
	ContractCode string // used verbatim when flattening fails
	Mode         models.AnalysisMode
	Intent       string
	GeneratePoC  bool
}

// FlattenFunc inlines the imports of a file; false means use the original source.
type FlattenFunc func(path string) (string, bool)

// AuditAnalyzer runs the audit pipeline: static analysis, flattening, schema
// shaping, prompt assembly, generation and validation. It holds no state that
// changes between Analyze calls.
type AuditAnalyzer struct {
	backend       llm.Backend
	analyzer      analyzers.StaticAnalyzer
	bestPractices string
	flatten       FlattenFunc
	events        Broadcaster
}

// Option configures an AuditAnalyzer.
type Option func(*AuditAnalyzer)

// WithBestPracticesPath loads the best-practice reference when the option is
// created, so one option can be shared by several pipelines. A missing or
// unreadable file leaves the prompt with a placeholder.
func WithBestPracticesPath(path string) Option {
	text, err := knowledge.LoadBestPractices(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("⚠️ No best-practice context available")
		text = ""
	}
	return WithBestPractices(text)
}

// WithBestPractices sets the best-practice reference text directly.
func WithBestPractices(text string) Option {
	return func(a *AuditAnalyzer) {
		a.bestPractices = text
	}
}

// WithFlattener replaces the import flattener.
func WithFlattener(fn FlattenFunc) Option {
	return func(a *AuditAnalyzer) {
		if fn != nil {
			a.flatten = fn
		}
	}
}

// WithBroadcaster publishes stage events to b.
func WithBroadcaster(b Broadcaster) Option {
	return func(a *AuditAnalyzer) {
		a.events = b
	}
}

// NewAuditAnalyzer wires a backend and a static analyzer into a pipeline.
func NewAuditAnalyzer(backend llm.Backend, analyzer analyzers.StaticAnalyzer, opts ...Option) *AuditAnalyzer {
	a := &AuditAnalyzer{
		backend:  backend,
		analyzer: analyzer,
		flatten:  flatten.Flatten,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze audits one file. Backend and validation failures yield the degraded
// report with a nil error; only an invalid mode is returned as an error.
func (a *AuditAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*models.AuditReport, error) {
	mode, err := models.ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	started := time.Now()

	// STEP 1: static analysis, never fails
	log.Info().Str("file", req.FilePath).Str("analyzer", a.analyzer.Name()).Str("mode", string(mode)).
		Msg("🔍 Running static analysis")
	stepStart := time.Now()
	staticResult := a.analyzer.RunAnalysis(ctx, req.FilePath)
	log.Info().Dur("duration", time.Since(stepStart)).Str("summary", preview(staticResult, 50)).
		Msg("✅ Static analysis complete")
	a.emit(req.FilePath, StageStaticAnalysis, preview(staticResult, 200), time.Since(stepStart))

	// STEP 2: flatten imports, fall back to the source as given
	stepStart = time.Now()
	code := req.ContractCode
	if flat, ok := a.flatten(req.FilePath); ok {
		code = flat
		a.emit(req.FilePath, StageFlatten, "imports flattened", time.Since(stepStart))
	} else {
		a.emit(req.FilePath, StageFlatten, "flattening failed, using original source", time.Since(stepStart))
	}

	// STEP 3: shape the schema
	var schemaOpts []models.SchemaOption
	if !req.GeneratePoC {
		schemaOpts = append(schemaOpts, models.WithoutPoC())
	}
	schema := models.DescribeReport(schemaOpts...)

	// STEP 4: prompts
	systemPrompt, userPrompt := llm.BuildPrompts(mode, llm.PromptInput{
		Intent:         req.Intent,
		BestPractices:  a.bestPractices,
		StaticAnalysis: staticResult,
		Schema:         schema,
		Code:           code,
		GeneratePoC:    req.GeneratePoC,
	})
	log.Debug().Int("system_chars", len(systemPrompt)).Int("user_chars", len(userPrompt)).Msg("📝 Prompt assembled")
	a.emit(req.FilePath, StagePrompt, "prompt assembled", 0)

	// STEP 5: generation
	stepStart = time.Now()
	log.Info().Str("backend", a.backend.Name()).Msg("🧠 Requesting semantic analysis")
	raw, err := a.backend.GenerateResponse(ctx, systemPrompt, userPrompt)
	if err != nil {
		log.Error().Err(err).Str("file", req.FilePath).Msg("❌ Generative backend failed")
		return a.degraded(req.FilePath, err.Error(), started), nil
	}
	a.emit(req.FilePath, StageGenerate, "response received", time.Since(stepStart))

	// STEP 6: validation and repair
	result := models.ValidateReport(raw)
	if !result.OK() {
		log.Warn().Err(result.Err).Str("file", req.FilePath).Msg("❌ Report validation failed")
		return a.degraded(req.FilePath, result.Err.Error(), started), nil
	}
	report := result.Report
	if !req.GeneratePoC {
		report = report.WithoutPoC()
	}
	a.emit(req.FilePath, StageValidate, "report validated", 0)

	log.Info().Int("vulnerabilities", len(report.Vulnerabilities)).Dur("duration", time.Since(started)).
		Msg("✅ Audit complete")
	a.emit(req.FilePath, StageCompleted, report.AnalysisSummary, time.Since(started))
	return report, nil
}

func (a *AuditAnalyzer) degraded(file, reason string, started time.Time) *models.AuditReport {
	a.emit(file, StageDegraded, reason, time.Since(started))
	return models.NewFailedReport()
}

func (a *AuditAnalyzer) emit(file, stage, message string, d time.Duration) {
	if a.events == nil {
		return
	}
	a.events.Broadcast(MessageAuditStage, AuditEvent{
		Stage:    stage,
		File:     file,
		Message:  message,
		Duration: d,
	})
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
