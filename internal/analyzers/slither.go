package analyzers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Slither analyzes Solidity sources for EVM projects.
type Slither struct {
	opts toolOptions
}

// NewSlither creates the EVM analyzer.
func NewSlither(opts ...Option) *Slither {
	return &Slither{opts: newToolOptions("slither", opts)}
}

func (s *Slither) Name() string { return "Slither" }

func (s *Slither) CheckInstalled() bool {
	_, err := exec.LookPath(s.opts.binary)
	return err == nil
}

func (s *Slither) RunAnalysis(ctx context.Context, filePath string) string {
	if !s.CheckInstalled() {
		return notInstalledSummary(s.Name(), s.opts.binary)
	}
	if _, err := os.Stat(filePath); err != nil {
		return missingFileSummary(filePath)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	log.Debug().Str("tool", s.opts.binary).Str("file", filePath).Msg("running static analyzer")
	res, err := s.opts.run(ctx, s.opts.binary, []string{filePath, "--json", "-"}, "")
	log.Debug().Dur("duration", res.Duration).Int("exit_code", res.ExitCode).Msg("static analyzer finished")

	// slither exits non-zero whenever it has findings, so only these codes are fatal
	switch res.ExitCode {
	case ExitTimeout:
		return timeoutSummary(s.Name(), s.opts.timeout)
	case ExitNotFound:
		return notInstalledSummary(s.Name(), s.opts.binary)
	}

	return s.opts.limiter.Summary(s.summarize(res, err))
}

func (s *Slither) summarize(res Result, runErr error) string {
	raw := strings.TrimSpace(res.Stdout)
	if raw == "" {
		if runErr != nil && strings.TrimSpace(res.Stderr) == "" {
			return failureSummary(s.Name(), runErr)
		}
		return "Slither returned no output. Stderr: " + s.opts.limiter.Stderr(strings.TrimSpace(res.Stderr))
	}

	detectors, err := ParseSlitherOutput(raw)
	if errors.Is(err, ErrToolReported) {
		return fmt.Sprintf("❌ Slither reported an error: %s", strings.TrimPrefix(err.Error(), ErrToolReported.Error()+": "))
	}
	if err != nil {
		return "Slither output is not valid JSON, skipping parsing.\nExcerpt: " + s.opts.limiter.Preview(raw)
	}
	if len(detectors) == 0 {
		return NoFindingsSummary(s.Name())
	}
	return SummarizeDetectors(detectors)
}
