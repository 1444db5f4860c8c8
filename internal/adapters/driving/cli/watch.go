package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/connectors/filesystem"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/logger"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files dropped into an inbox directory",
	Long: `Watch a directory and ingest files as they appear. A file that changes
after it was ingested is reprocessed. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", filesystem.DefaultDebounce, "quiet period before a file is ingested")
	watchCmd.Flags().StringVar(&ingestClient, "client", "", "client id to scope the sources to")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}
	w, err := filesystem.NewWatcher(dir, filesystem.WithDebounce(watchDebounce), filesystem.WithFilter(supportedFile))
	if err != nil {
		return err
	}
	defer w.Close()

	ctx := cmd.Context()
	events, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	known, err := knownOrigins(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	for ev := range events {
		if err := handleWatchEvent(cmd, known, ev); err != nil {
			logger.Error("watch %s: %v", ev.Path, err)
		}
	}
	return nil
}

// knownOrigins maps file origins to the ids of sources already ingested from them.
func knownOrigins(ctx context.Context) (map[string]string, error) {
	sources, err := ingestionService.List(ctx, domain.SourceFilter{OwnerID: ownerID()})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	known := make(map[string]string, len(sources))
	for i := range sources {
		if filesystem.IsPathOrigin(sources[i].Origin) {
			known[filesystem.ResolvePath(sources[i].Origin)] = sources[i].ID
		}
	}
	return known, nil
}

func handleWatchEvent(cmd *cobra.Command, known map[string]string, ev filesystem.Event) error {
	ctx := cmd.Context()
	if id, ok := known[ev.Path]; ok {
		source, err := ingestionService.Reprocess(ctx, id, ownerID())
		if err == nil {
			cmd.Printf("Reprocessing %s\n", source.Name)
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		delete(known, ev.Path)
	}

	req, err := fileRequest(ev.Path, "")
	if err != nil {
		return err
	}
	source, err := ingestionService.Ingest(ctx, req)
	if err != nil {
		return err
	}
	known[ev.Path] = source.ID
	cmd.Printf("Queued %s (%s) as %s\n", source.Name, source.Kind, source.ID)
	return nil
}
