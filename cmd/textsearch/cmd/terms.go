package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/tokenizer"
)

func newTermsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terms TEXT",
		Short: "Print the index terms produced for a text",
		Long: `Runs TEXT through the same pipeline documents and queries use:
lower-casing, tokenizing, stop-word removal and suffix stripping.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			terms := tokenizer.New().Process(strings.Join(args, " "))
			_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(terms, " "))
			return err
		},
	}
}
