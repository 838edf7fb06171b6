package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/searcher/ranker"
)

func newSnapshotCmd() *cobra.Command {
	var corpus corpusFlags
	var outDir string

	cmd := &cobra.Command{
		Use:   "snapshot --out DIR",
		Short: "Build an index and write it as a segment file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outDir == "" {
				return errors.New("--out is required")
			}
			ix := indexer.New()
			if _, err := corpus.load(ix); err != nil {
				return err
			}
			ix.BuildIndex()

			name, err := segment.NewWriter(outDir).Write(ix.Snapshot())
			if err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			st := ix.Stats()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d terms, %d documents)\n",
				filepath.Join(outDir, name), st.Terms, st.IndexedDocuments)
			return err
		},
	}
	corpus.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to write the segment into")
	return cmd
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup SEGMENT QUERY",
		Short: "Rank documents of a snapshot segment against a query",
		Long: `Opens a segment written by 'textsearch snapshot', verifies its checksum
and ranks its documents against QUERY. Segments hold postings only, so
results show document ids and scores without text.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := segment.OpenReader(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			terms := tokenizer.New().Process(strings.Join(args[1:], " "))
			perTerm := make([]index.Postings, 0, len(terms))
			for _, term := range terms {
				postings, err := r.Search(term)
				if err != nil {
					return fmt.Errorf("reading postings for %q: %w", term, err)
				}
				perTerm = append(perTerm, postings)
			}

			out := cmd.OutOrStdout()
			docs := ranker.Rank(perTerm, 0)
			if len(docs) == 0 {
				_, err := fmt.Fprintln(out, "No matching documents.")
				return err
			}
			for _, d := range docs {
				if _, err := fmt.Fprintf(out, "Doc %d (score=%d)\n", d.DocID, d.Score); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
