package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/driven"
	"github.com/BetterCallFirewall/CertiAudit/internal/limits"
	"github.com/BetterCallFirewall/CertiAudit/internal/models"
	"github.com/BetterCallFirewall/CertiAudit/internal/report"
	"github.com/BetterCallFirewall/CertiAudit/internal/selector"
)

type auditOptions struct {
	projectType string
	mode        string
	intent      string
	poc         bool
	format      string
	out         string
	parallel    int
}

func newAuditCmd(root *rootOptions) *cobra.Command {
	opts := &auditOptions{}
	cmd := &cobra.Command{
		Use:   "audit <file>...",
		Short: "Audit one or more contract files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, limiter, err := root.load()
			if err != nil {
				return err
			}
			return runAudit(cmd, cfg, limiter, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.projectType, "type", "t", "", "Project type override: EVM|SOLANA|MOVE")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(models.ModeSecurity), "Analysis mode: SECURITY|GAS")
	cmd.Flags().StringVar(&opts.intent, "intent", "", "What the contract is supposed to do")
	cmd.Flags().BoolVar(&opts.poc, "poc", false, "Ask for proof-of-concept code on High and Critical findings")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(report.FormatConsole), "Output format: console|json|markdown")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output path for json/markdown (single file only)")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 1, "Number of files audited concurrently")
	return cmd
}

// auditJob is one file with its source read and its pipeline built.
type auditJob struct {
	path        string
	projectType config.ProjectType
	code        string
	pipeline    *driven.AuditAnalyzer
}

func runAudit(cmd *cobra.Command, cfg *config.Config, limiter *limits.Limiter, opts *auditOptions, files []string) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	mode, err := models.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	var explicit config.ProjectType
	if opts.projectType != "" {
		if explicit, err = config.ParseProjectType(opts.projectType); err != nil {
			return err
		}
	}
	if opts.out != "" && len(files) > 1 {
		return fmt.Errorf("%w: --out can only be used with a single file", config.ErrConfiguration)
	}

	jobs, err := resolveJobs(cfg, limiter, explicit, files)
	if err != nil {
		return err
	}

	var outMu sync.Mutex
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(opts.parallel, 1))
	for _, job := range jobs {
		g.Go(func() error {
			log.Info().Str("file", job.path).Str("project_type", string(job.projectType)).Str("mode", string(mode)).
				Msg("🚀 Starting audit")
			r, err := job.pipeline.Analyze(ctx, driven.AnalyzeRequest{
				FilePath:     job.path,
				ContractCode: job.code,
				Mode:         mode,
				Intent:       opts.intent,
				GeneratePoC:  opts.poc,
			})
			if err != nil {
				return err
			}
			// a cancelled run produces a degraded report that must not be written
			if err := ctx.Err(); err != nil {
				return err
			}

			meta := report.Meta{
				FilePath:    job.path,
				ProjectType: job.projectType,
				Mode:        mode,
				Timestamp:   time.Now(),
			}
			outMu.Lock()
			defer outMu.Unlock()
			return writeReport(cmd.OutOrStdout(), format, opts.out, meta, r)
		})
	}
	return g.Wait()
}

// resolveJobs reads every file and builds every pipeline before any audit
// starts, so a missing file or an unsupported ecosystem fails the whole run.
func resolveJobs(cfg *config.Config, limiter *limits.Limiter, explicit config.ProjectType, files []string) ([]auditJob, error) {
	sel := selector.New(cfg, limiter)
	backend, err := sel.GenerativeBackend()
	if err != nil {
		return nil, err
	}
	practices := driven.WithBestPracticesPath(cfg.Project.BestPracticesPath)

	jobs := make([]auditJob, 0, len(files))
	for _, path := range files {
		code, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("file not found: %s: %w", path, err)
			}
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		pt := config.DetectProjectType(path, explicit, cfg.Project.Type)
		pipeline, err := sel.PipelineFor(backend, pt, practices)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		jobs = append(jobs, auditJob{
			path:        path,
			projectType: pt,
			code:        string(code),
			pipeline:    pipeline,
		})
	}
	return jobs, nil
}

func writeReport(w io.Writer, format report.Format, out string, meta report.Meta, r *models.AuditReport) error {
	if format == report.FormatConsole {
		report.Console(w, meta, r)
		return nil
	}
	if out == "" {
		out = report.DefaultOutputPath(meta.FilePath, format)
	}
	if err := report.Save(out, format, meta, r); err != nil {
		return fmt.Errorf("failed to save report for %s: %w", meta.FilePath, err)
	}
	log.Info().Str("path", out).Int("vulnerabilities", len(r.Vulnerabilities)).Msg("💾 Report saved")
	return nil
}
