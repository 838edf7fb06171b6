package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
)

// SearchHit is one line of search output.
type SearchHit struct {
	DocID  int64  `json:"doc_id"`
	Score  int    `json:"score"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

func newSearchCmd() *cobra.Command {
	var corpus corpusFlags
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search [flags] QUERY",
		Short: "Rank documents against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix := indexer.New()
			labels, err := corpus.load(ix)
			if err != nil {
				return err
			}
			ix.BuildIndex()

			res := ix.SearchLimit(strings.Join(args, " "), limit)
			hits := make([]SearchHit, 0, len(res.Docs))
			for _, d := range res.Docs {
				text, _ := ix.Document(d.DocID)
				hits = append(hits, SearchHit{
					DocID:  int64(d.DocID),
					Score:  d.Score,
					Source: labels[d.DocID],
					Text:   text,
				})
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"terms":      res.Terms,
					"total_hits": res.TotalHits,
					"results":    hits,
				})
			}
			if len(hits) == 0 {
				_, err := fmt.Fprintln(out, "No matching documents.")
				return err
			}
			for _, h := range hits {
				if _, err := fmt.Fprintf(out, "Doc %d (score=%d): %s\n", h.DocID, h.Score, oneLine(h.Text)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	corpus.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

const maxLineRunes = 120

// oneLine collapses whitespace and shortens long texts for terminal output.
// Truncation counts runes, so multi-byte characters are never split.
func oneLine(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxLineRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLineRunes-3]) + "..."
}
