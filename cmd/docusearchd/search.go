package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contextd/internal/httpapi"
)

var (
	searchMode     string
	searchNResults int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the corpus",
	Long: `Search the corpus using docusearchd's two-stage hybrid retrieval.

Examples:
  docusearchd search "quarterly revenue breakdown"
  docusearchd search --mode text_only --n-results 5 "appendix B"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "", "search mode: hybrid, visual_only, or text_only")
	searchCmd.Flags().IntVar(&searchNResults, "n-results", 0, "maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL)
	req := httpapi.SearchRequest{
		Query:    args[0],
		Mode:     searchMode,
		NResults: searchNResults,
	}

	var resp httpapi.SearchResponse
	if err := client.do("POST", "/api/v1/search", req, &resp); err != nil {
		return err
	}

	for i, hit := range resp.Results {
		page := 0
		if hit.Page != nil {
			page = *hit.Page
		}
		fmt.Printf("%d. [%s] doc=%s page=%d score=%.4f section=%q\n",
			i+1, hit.Origin, hit.DocID, page, hit.Score, hit.SectionPath)
	}
	if resp.Partial {
		fmt.Println("(partial results: search deadline elapsed before every candidate was re-ranked)")
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
