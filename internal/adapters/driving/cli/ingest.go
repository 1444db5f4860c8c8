package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/connectors/filesystem"
	"github.com/custodia-labs/dossier/internal/connectors/github"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/extractors"
)

var (
	ingestClient   string
	ingestKind     string
	ingestName     string
	ingestExclude  bool
	ingestCategory string
	ingestNoWait   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a file, URL or text",
	Long: `Queue material for extraction, chunking and embedding.

Processing runs in the background; by default the command waits for it to
finish and reports the final status of each source.`,
}

var ingestFileCmd = &cobra.Command{
	Use:   "file [path...]",
	Short: "Ingest local files",
	Long: `Ingest one or more local files. The kind and MIME type are inferred
from the file extension unless --kind is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngestFile,
}

var ingestURLCmd = &cobra.Command{
	Use:   "url [url]",
	Short: "Ingest a website or GitHub repository",
	Long: `Ingest a website or a GitHub repository. GitHub repository URLs are
ingested as repositories; anything else is crawled as a website.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestURL,
}

var ingestTextCmd = &cobra.Command{
	Use:   "text [text]",
	Short: "Ingest pasted text, a transcript or an email",
	Long: `Ingest text given as an argument, or read from stdin when the argument
is "-" or omitted.

Examples:
  dossier ingest text "Call notes: client wants a May launch" --name "Call 3"
  pbpaste | dossier ingest text --kind recording --name "Workshop transcript"
  dossier ingest text --kind email < message.eml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestText,
}

func init() {
	for _, c := range []*cobra.Command{ingestFileCmd, ingestURLCmd, ingestTextCmd} {
		c.Flags().StringVar(&ingestClient, "client", "", "client id to scope the source to")
		c.Flags().BoolVar(&ingestExclude, "exclude", false, "exclude the source from retrieval")
		c.Flags().StringVar(&ingestCategory, "category", "", "exclusion category (e.g. legal_hold)")
		c.Flags().BoolVar(&ingestNoWait, "no-wait", false, "return once queued")
		ingestCmd.AddCommand(c)
	}
	ingestFileCmd.Flags().StringVar(&ingestKind, "kind", "", "override the inferred source kind")
	ingestTextCmd.Flags().StringVar(&ingestKind, "kind", string(domain.KindNote), "note, recording or email")
	ingestTextCmd.Flags().StringVar(&ingestName, "name", "", "display name")
	ingestURLCmd.Flags().StringVar(&ingestName, "name", "", "display name")
	rootCmd.AddCommand(ingestCmd)
}

func baseRequest() domain.IngestRequest {
	return domain.IngestRequest{
		OwnerID:        ownerID(),
		ClientID:       domain.StringPtr(strings.TrimSpace(ingestClient)),
		ExcludeFromRag: ingestExclude,
		Category:       ingestCategory,
	}
}

// fileRequest builds the request for a local file. The content is read by
// the pipeline's blob reader so the source can be reprocessed later.
func fileRequest(path, kindOverride string) (domain.IngestRequest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.IngestRequest{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return domain.IngestRequest{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.IngestRequest{}, fmt.Errorf("%w: %s is a directory, use import", domain.ErrInvalidInput, path)
	}

	kind, mimeType, ok := extractors.DetectFile(abs)
	if kindOverride != "" {
		k, err := domain.ParseKind(kindOverride)
		if err != nil {
			return domain.IngestRequest{}, err
		}
		kind = k
	} else if !ok {
		return domain.IngestRequest{}, fmt.Errorf("%w: cannot infer kind of %s, pass --kind", domain.ErrUnsupportedType, path)
	}

	req := baseRequest()
	req.Kind = kind
	req.Name = extractors.TitleFromPath(abs)
	req.Origin = abs
	req.MIMEType = mimeType
	return req, nil
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	var queued []*domain.Source
	var errs []error
	for _, path := range args {
		req, err := fileRequest(path, ingestKind)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		source, err := ingestionService.Ingest(cmd.Context(), req)
		if err != nil {
			errs = append(errs, fmt.Errorf("ingest %s: %w", path, err))
			continue
		}
		cmd.Printf("Queued %s (%s) as %s\n", source.Name, source.Kind, source.ID)
		queued = append(queued, source)
	}

	if err := reportQueued(cmd, queued); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func runIngestURL(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	locator := strings.TrimSpace(args[0])
	req := baseRequest()
	req.Name = ingestName
	req.Origin = locator
	req.Kind = domain.KindWebsite
	if github.IsRepoURL(locator) {
		req.Kind = domain.KindRepo
		if req.Name == "" {
			owner, repo, _ := github.ParseRepoURL(locator)
			req.Name = owner + "/" + repo
		}
	} else if !strings.Contains(locator, "://") {
		req.Origin = "https://" + locator
	}

	source, err := ingestionService.Ingest(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", locator, err)
	}
	cmd.Printf("Queued %s (%s) as %s\n", source.Name, source.Kind, source.ID)
	return reportQueued(cmd, []*domain.Source{source})
}

func runIngestText(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	kind, err := domain.ParseKind(ingestKind)
	if err != nil {
		return err
	}

	var content []byte
	if len(args) == 1 && args[0] != "-" {
		content = []byte(args[0])
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}
	if strings.TrimSpace(string(content)) == "" {
		return fmt.Errorf("%w: no text given", domain.ErrInvalidInput)
	}

	req := baseRequest()
	req.Kind = kind
	req.Name = ingestName
	req.Content = content
	switch kind {
	case domain.KindEmail:
		req.MIMEType = "message/rfc822"
	default:
		req.MIMEType = "text/plain"
	}

	source, err := ingestionService.Ingest(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("ingest text: %w", err)
	}
	cmd.Printf("Queued %s (%s) as %s\n", source.Name, source.Kind, source.ID)
	return reportQueued(cmd, []*domain.Source{source})
}

// reportQueued waits for the pipeline and prints the outcome of each source.
func reportQueued(cmd *cobra.Command, sources []*domain.Source) error {
	if ingestNoWait || len(sources) == 0 {
		return nil
	}
	if err := ingestionService.Drain(cmd.Context()); err != nil {
		return fmt.Errorf("wait for processing: %w", err)
	}

	var failed int
	for _, s := range sources {
		details, err := ingestionService.Get(context.WithoutCancel(cmd.Context()), s.ID, s.OwnerID)
		if err != nil {
			return fmt.Errorf("get %s: %w", s.ID, err)
		}
		line := fmt.Sprintf("  %s  %s  %d chunks (%d embedded)",
			statusBadge(details.Source.Status), details.Source.Name, details.ChunkCount, details.EmbeddedChunks)
		if details.Source.LastError != nil {
			line += "  " + mutedStyle.Render(*details.Source.LastError)
			failed++
		}
		cmd.Println(line)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(sources))
	}
	return nil
}

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Bulk import every supported file in a directory",
	Long: `Walk a directory and ingest every file with a supported extension.
Items are submitted one at a time with the configured pipeline.bulk_delay
between them so downstream providers are not flooded.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&ingestClient, "client", "", "client id to scope the sources to")
	importCmd.Flags().BoolVar(&ingestNoWait, "no-wait", false, "return once queued")
	rootCmd.AddCommand(importCmd)
}

func supportedFile(path string) bool {
	_, _, ok := extractors.DetectFile(path)
	return ok
}

func runImport(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	files, err := filesystem.ListFiles(args[0], supportedFile)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		cmd.Println("No supported files found.")
		return nil
	}

	reqs := make([]domain.IngestRequest, 0, len(files))
	for _, f := range files {
		req, err := fileRequest(f, "")
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}

	cmd.Printf("Importing %d files...\n", len(reqs))
	sources, importErr := ingestionService.BulkImport(cmd.Context(), reqs)
	cmd.Printf("Queued %d of %d files\n", len(sources), len(reqs))

	return errors.Join(importErr, reportQueued(cmd, sources))
}
