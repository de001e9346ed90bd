package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/selector"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show which static analyzers are installed and which backend the model selects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, limiter, err := root.load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			sel := selector.New(cfg, limiter)

			registered := sel.RegisteredAnalyzers()
			types := make([]config.ProjectType, 0, len(registered))
			for pt := range registered {
				types = append(types, pt)
			}
			slices.Sort(types)

			fmt.Fprintln(w, "Static analyzers:")
			for _, pt := range types {
				a := registered[pt]
				status := "❌ not installed"
				if a.CheckInstalled() {
					status = "✅ installed"
				}
				fmt.Fprintf(w, "  %-7s %-8s %s\n", pt, a.Name(), status)
			}

			fmt.Fprintf(w, "\nModel %q: ", cfg.LLM.ModelName)
			backend, err := sel.GenerativeBackend()
			if err != nil {
				fmt.Fprintf(w, "❌ %v\n", err)
				return nil
			}
			fmt.Fprintf(w, "✅ %s backend\n", backend.Name())
			return nil
		},
	}
}
