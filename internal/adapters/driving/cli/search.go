package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

var (
	searchLimit         int
	searchMinSimilarity float64
	searchClient        string
	searchKinds         []string
	searchHybrid        bool
	searchJSON          bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested sources",
	Long: `Ranks ingested chunks by semantic similarity to the query.

With --hybrid (the configured default), sources whose name or text contains
the query literally are added after the semantic matches with a fixed score.
Sources excluded from retrieval are never returned.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default retrieval.limit)")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", 0, "drop semantic matches below this score (default retrieval.min_similarity)")
	searchCmd.Flags().StringVar(&searchClient, "client", "", "restrict to one client")
	searchCmd.Flags().StringSliceVar(&searchKinds, "kind", nil, "restrict to source kinds")
	searchCmd.Flags().BoolVar(&searchHybrid, "hybrid", true, "add literal matches after semantic ones")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	query := domain.SearchQuery{
		Text:     args[0],
		OwnerID:  ownerID(),
		ClientID: domain.StringPtr(strings.TrimSpace(searchClient)),
		Limit:    searchLimit,
		Hybrid:   searchHybrid,
	}
	if !cmd.Flags().Changed("hybrid") && settingsService != nil {
		query.Hybrid = settingsService.Get().Retrieval.Hybrid
	}
	if cmd.Flags().Changed("min-similarity") {
		v := searchMinSimilarity
		query.MinSimilarity = &v
	}
	for _, k := range searchKinds {
		kind, err := domain.ParseKind(k)
		if err != nil {
			return err
		}
		query.Kinds = append(query.Kinds, kind)
	}

	resp, err := retrievalService.Search(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, resp)
	}
	return outputSearchTable(cmd, resp)
}

func outputSearchJSON(cmd *cobra.Command, resp *domain.SearchResponse) error {
	if resp.Results == nil {
		resp.Results = []domain.SearchResult{}
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) error {
	if resp.Notice != "" {
		cmd.Println(mutedStyle.Render(resp.Notice))
	}
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println(headingStyle.Render("Results:"))
	cmd.Println()
	for i := range resp.Results {
		r := &resp.Results[i]
		cmd.Printf("  [%d] %s (%.2f, %s)\n", i+1, r.SourceName, r.Score, r.MatchType)
		cmd.Printf("      %s %s  %s %d\n",
			labelStyle.Render("Kind:"), r.Kind, labelStyle.Render("Chunk:"), r.Provenance.ChunkIndex)
		if r.Provenance.Origin != "" {
			cmd.Printf("      %s %s\n", labelStyle.Render("Origin:"), r.Provenance.Origin)
		}
		if text := oneLine(r.Text, 240); text != "" {
			cmd.Printf("      %s\n", text)
		}
		cmd.Println()
	}
	return nil
}

// oneLine collapses whitespace and truncates to max runes.
func oneLine(s string, maxRunes int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
