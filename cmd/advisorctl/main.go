/*
Package main is advisorctl, the operator CLI for the advisor service.

Usage:

	advisorctl rlhf run [--since 2024-01-01T00:00:00Z]
	advisorctl index rebuild
	advisorctl review list [--status pending_review] [--limit 20]

It reads the same environment (and .env file) as the REST server.
*/
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"wealthadvisor-ai/internal/config"
	"wealthadvisor-ai/internal/pkg/logger"
)

var version = "dev"

type env struct {
	cfg *config.Config
	log logger.ILogger
	out io.Writer
}

func main() {
	e := &env{out: os.Stdout}

	rootCmd := &cobra.Command{
		Use:           "advisorctl",
		Short:         "Operate the advisor's index, learning loop and review queue",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			e.cfg = config.Load()
			e.log = logger.NewZapLogger(e.cfg.App.LogFilePath, e.cfg.IsProduction())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}

	rootCmd.AddCommand(newRLHFCmd(e))
	rootCmd.AddCommand(newIndexCmd(e))
	rootCmd.AddCommand(newReviewCmd(e))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
