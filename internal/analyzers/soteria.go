package analyzers

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/CertiAudit/internal/limits"
)

// projectRootDepth is how many directories, starting with the file's own, are
// searched for Cargo.toml.
const projectRootDepth = 3

// Soteria analyzes Solana programs written in Rust. It runs on the whole crate,
// not on a single file.
type Soteria struct {
	opts toolOptions
}

// NewSoteria creates the Solana analyzer.
func NewSoteria(opts ...Option) *Soteria {
	return &Soteria{opts: newToolOptions("soteria", opts)}
}

func (s *Soteria) Name() string { return "Soteria" }

func (s *Soteria) CheckInstalled() bool {
	_, err := exec.LookPath(s.opts.binary)
	return err == nil
}

func (s *Soteria) RunAnalysis(ctx context.Context, filePath string) string {
	if !s.CheckInstalled() {
		return notInstalledSummary(s.Name(), s.opts.binary)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return failureSummary(s.Name(), err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return missingFileSummary(filePath)
	}
	projectDir := FindProjectRoot(absPath)

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	log.Debug().Str("tool", s.opts.binary).Str("dir", projectDir).Msg("running static analyzer")
	res, err := s.opts.run(ctx, s.opts.binary, []string{"."}, projectDir)
	log.Debug().Dur("duration", res.Duration).Int("exit_code", res.ExitCode).Msg("static analyzer finished")

	switch res.ExitCode {
	case ExitTimeout:
		return timeoutSummary(s.Name(), s.opts.timeout)
	case ExitNotFound:
		return notInstalledSummary(s.Name(), s.opts.binary)
	}
	if err != nil && strings.TrimSpace(res.Stdout) == "" && strings.TrimSpace(res.Stderr) == "" {
		return failureSummary(s.Name(), err)
	}

	return s.opts.limiter.Summary(SummarizeSoteriaOutput(res.Stdout, res.Stderr, s.opts.limiter))
}

// FindProjectRoot returns the nearest directory holding Cargo.toml among the
// file's directory and its parents, or the file's directory when none does.
func FindProjectRoot(absFilePath string) string {
	fileDir := filepath.Dir(absFilePath)
	dir := fileDir
	for range projectRootDepth {
		if _, err := os.Stat(filepath.Join(dir, "Cargo.toml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return fileDir
}

// SummarizeSoteriaOutput turns Soteria's text log into a prompt section.
func SummarizeSoteriaOutput(stdout, stderr string, limiter *limits.Limiter) string {
	raw := strings.TrimSpace(stdout)
	errOut := strings.TrimSpace(stderr)

	if strings.Contains(raw, "No vulnerabilities found") {
		return NoFindingsSummary("Soteria")
	}
	if raw == "" && errOut != "" {
		return "Soteria failed (stderr): " + limiter.Stderr(errOut)
	}

	var relevant []string
	for _, line := range strings.Split(raw, "\n") {
		// build progress is noise for the model
		if strings.Contains(line, "Checking") || strings.Contains(line, "Compiling") {
			continue
		}
		relevant = append(relevant, line)
	}

	var b strings.Builder
	b.WriteString("### 🔍 Soteria static analysis report (Solana):\n")
	b.WriteString("Note: the following is the raw tool log, focus on lines containing 'VULNERABILITY'.\n")
	b.WriteString("---\n")
	b.WriteString(limiter.ToolOutput(strings.Join(relevant, "\n")))
	return b.String()
}
