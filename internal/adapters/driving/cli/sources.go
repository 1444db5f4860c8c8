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
	listClient   string
	listKinds    []string
	listStatuses []string
	listLimit    int
	listJSON     bool

	excludeCategory string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage ingested sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sources, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a source with its summary and insights",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesShow,
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess [id]",
	Short: "Extract, chunk and embed a source again",
	Args:  cobra.ExactArgs(1),
	RunE:  runReprocess,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a source with its chunks and insights",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var excludeCmd = &cobra.Command{
	Use:   "exclude [id]",
	Short: "Exclude a source from retrieval",
	Long: `Exclude a source from every retrieval path. Its chunks are kept so it
can be included again without reprocessing.`,
	Args: cobra.ExactArgs(1),
	RunE: runExclude,
}

var includeCmd = &cobra.Command{
	Use:   "include [id]",
	Short: "Make an excluded source retrievable again",
	Args:  cobra.ExactArgs(1),
	RunE:  runInclude,
}

func init() {
	sourcesListCmd.Flags().StringVar(&listClient, "client", "", "restrict to one client")
	sourcesListCmd.Flags().StringSliceVar(&listKinds, "kind", nil, "restrict to source kinds")
	sourcesListCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "restrict to statuses")
	sourcesListCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "maximum number of sources")
	sourcesListCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	sourcesCmd.AddCommand(sourcesListCmd, sourcesShowCmd)

	excludeCmd.Flags().StringVar(&excludeCategory, "category", "",
		fmt.Sprintf("reason for exclusion, e.g. %s or %s", domain.CategoryLegalHold, domain.CategoryConfidential))

	rootCmd.AddCommand(sourcesCmd, reprocessCmd, deleteCmd, excludeCmd, includeCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	filter := domain.SourceFilter{
		OwnerID:  ownerID(),
		ClientID: domain.StringPtr(strings.TrimSpace(listClient)),
		Limit:    listLimit,
	}
	for _, k := range listKinds {
		kind, err := domain.ParseKind(k)
		if err != nil {
			return err
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	for _, s := range listStatuses {
		status := domain.SourceStatus(strings.ToLower(strings.TrimSpace(s)))
		if !status.IsValid() {
			return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, s)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	sources, err := ingestionService.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	if listJSON {
		if sources == nil {
			sources = []domain.Source{}
		}
		data, err := json.MarshalIndent(sources, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(sources) == 0 {
		cmd.Println("No sources found.")
		return nil
	}
	for i := range sources {
		s := &sources[i]
		line := fmt.Sprintf("%s  %-10s  %-9s  %s", s.ID, statusBadge(s.Status), s.Kind, s.Name)
		if badge := excludedBadge(s); badge != "" {
			line += "  " + badge
		}
		cmd.Println(line)
	}
	return nil
}

func runSourcesShow(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	details, err := ingestionService.Get(cmd.Context(), args[0], ownerID())
	if err != nil {
		return fmt.Errorf("get source: %w", err)
	}
	s := &details.Source

	cmd.Println(headingStyle.Render(s.Name))
	field := func(label, value string) {
		cmd.Printf("  %s %s\n", labelStyle.Render(label), value)
	}
	field("ID:      ", s.ID)
	field("Kind:    ", s.Kind.String())
	field("Status:  ", statusBadge(s.Status))
	field("Origin:  ", s.Origin)
	if s.ClientID != nil {
		field("Client:  ", *s.ClientID)
	}
	if s.MIMEType != "" {
		field("MIME:    ", s.MIMEType)
	}
	field("Chunks:  ", fmt.Sprintf("%d (%d embedded)", details.ChunkCount, details.EmbeddedChunks))
	field("Updated: ", s.UpdatedAt.Format("2006-01-02 15:04:05"))
	if badge := excludedBadge(s); badge != "" {
		field("RAG:     ", badge)
	}
	if s.LastError != nil {
		field("Error:   ", *s.LastError)
	}

	if s.Summary != nil {
		cmd.Println()
		cmd.Println(headingStyle.Render("Summary"))
		cmd.Printf("  %s\n", *s.Summary)
	}
	if len(details.Insights) > 0 {
		cmd.Println()
		cmd.Println(headingStyle.Render("Insights"))
		for _, in := range details.Insights {
			cmd.Printf("  - %s\n", in.Text)
		}
	}
	return nil
}

func runReprocess(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	source, err := ingestionService.Reprocess(cmd.Context(), args[0], ownerID())
	if err != nil {
		return fmt.Errorf("reprocess: %w", err)
	}
	cmd.Printf("Reprocessing %s\n", source.Name)
	return reportQueued(cmd, []*domain.Source{source})
}

func runDelete(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestionService.Delete(cmd.Context(), args[0], ownerID()); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runExclude(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestionService.SetGovernance(cmd.Context(), args[0], ownerID(), true, excludeCategory); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}
	cmd.Printf("Excluded %s from retrieval\n", args[0])
	return nil
}

func runInclude(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestionService.SetGovernance(cmd.Context(), args[0], ownerID(), false, ""); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	cmd.Printf("Included %s in retrieval\n", args[0])
	return nil
}
