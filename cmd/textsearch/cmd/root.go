// Package cmd provides the textsearch CLI commands.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/logger"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "textsearch",
		Short: "Index and search text documents",
		Long: `textsearch builds an in-memory inverted index over a set of documents
and answers ranked keyword queries against it.

Documents come from files (--file, --dir), from line-per-document files
(--lines), or from a small built-in demo corpus when none are given.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), logLevel, "text"))
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newTermsCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newLookupCmd())
	cmd.AddCommand(newLoadTestCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}
