package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/limits"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "certi-audit",
		Short:         "Audit smart contracts with static analysis and a generative model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.verbose)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file (default $CERTI_AUDIT_CONFIG)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newAuditCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newServeCmd(opts))
	return root
}

func setupLogging(verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// load reads the configuration and builds the output limiter from it.
func (o *rootOptions) load() (*config.Config, *limits.Limiter, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	limiter, err := newLimiter(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().
		Str("model", cfg.LLM.ModelName).
		Str("project_type", string(cfg.Project.Type)).
		Int("max_summary_chars", cfg.Limits.MaxSummaryChars).
		Msg("⚙️ Configuration loaded")
	return cfg, limiter, nil
}

func newLimiter(cfg *config.Config) (*limits.Limiter, error) {
	limiter := limits.NewLimiter(nil)
	custom := cfg.Limits
	if err := limiter.UpdateLimits(&custom); err != nil {
		return nil, fmt.Errorf("%w: limits: %v", config.ErrConfiguration, err)
	}
	if err := limiter.ValidateLimits(); err != nil {
		return nil, fmt.Errorf("%w: limits: %v", config.ErrConfiguration, err)
	}
	return limiter, nil
}
