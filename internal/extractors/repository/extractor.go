// Package repository summarises a code repository from its README and
// manifest files.
package repository

import (
	"context"
	"path"
	"strings"

	"github.com/custodia-labs/dossier/internal/connectors/github"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

var _ driven.Extractor = (*Extractor)(nil)

const (
	// MaxFileBytes skips larger top-level files.
	MaxFileBytes = 512 << 10

	// MaxFiles caps fetched files per repository.
	MaxFiles = 12
)

// Manifests are the build and dependency files fetched after READMEs, in
// output order.
var Manifests = []string{
	"go.mod",
	"package.json",
	"Cargo.toml",
	"pyproject.toml",
	"requirements.txt",
	"pom.xml",
	"build.gradle",
	"Gemfile",
	"composer.json",
	"Dockerfile",
}

var log = logger.With("extract.repository")

// Extractor reads repositories through a hosting API.
type Extractor struct {
	host driven.RepositoryHost
}

// New creates a repository extractor.
func New(host driven.RepositoryHost) *Extractor {
	return &Extractor{host: host}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "repository"
}

// Kinds returns the kinds handled.
func (e *Extractor) Kinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindRepo}
}

// MIMETypes returns nil: repository origins are locators.
func (e *Extractor) MIMETypes() []string {
	return nil
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract fetches the README-like and manifest files at the repository root
// and concatenates them under "## path" headers.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	owner, repo, err := github.ParseRepoURL(raw.Origin)
	if err != nil {
		return domain.ExtractionFailure("%v", err), nil
	}

	info, err := e.host.Repository(ctx, owner, repo)
	if err != nil {
		return e.failure(ctx, owner, repo, err)
	}

	entries, err := e.host.ListTopLevel(ctx, owner, repo)
	if err != nil {
		return e.failure(ctx, owner, repo, err)
	}

	var b strings.Builder
	writeHeader(&b, owner, repo, info)

	fetched := 0
	for _, entry := range SelectFiles(entries) {
		content, err := e.host.FileContent(ctx, owner, repo, entry.Path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.ExtractionResult{}, ctxErr
			}
			log.Warn("skipping %s/%s/%s: %v", owner, repo, entry.Path, err)
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}

		b.WriteString("\n\n## ")
		b.WriteString(entry.Path)
		b.WriteString("\n\n")
		b.WriteString(content)
		fetched++
	}

	if fetched == 0 && strings.TrimSpace(info.Description) == "" {
		return domain.Unsupported("repository %s/%s has no README or manifest files", owner, repo), nil
	}
	return domain.Extracted(b.String()), nil
}

func (e *Extractor) failure(ctx context.Context, owner, repo string, err error) (domain.ExtractionResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.ExtractionResult{}, ctxErr
	}
	switch {
	case github.IsNotFound(err):
		return domain.ExtractionFailure("repository %s/%s not found or not accessible", owner, repo), nil
	case github.IsRateLimited(err):
		return domain.ExtractionFailure("%v", err), nil
	default:
		return domain.ExtractionFailure("read repository %s/%s: %v", owner, repo, err), nil
	}
}

func writeHeader(b *strings.Builder, owner, repo string, info *driven.RepoInfo) {
	name := info.FullName
	if name == "" {
		name = owner + "/" + repo
	}
	b.WriteString("# ")
	b.WriteString(name)

	if desc := strings.TrimSpace(info.Description); desc != "" {
		b.WriteString("\n\n")
		b.WriteString(desc)
	}

	var meta []string
	if info.HTMLURL != "" {
		meta = append(meta, "URL: "+info.HTMLURL)
	}
	if info.Language != "" {
		meta = append(meta, "Language: "+info.Language)
	}
	if len(info.Topics) > 0 {
		meta = append(meta, "Topics: "+strings.Join(info.Topics, ", "))
	}
	if info.DefaultBranch != "" {
		meta = append(meta, "Default branch: "+info.DefaultBranch)
	}
	if len(meta) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(meta, "\n"))
	}
}

// SelectFiles picks README-like files first, then manifests in Manifests
// order, skipping directories and oversized files.
func SelectFiles(entries []driven.RepoEntry) []driven.RepoEntry {
	var readmes []driven.RepoEntry
	manifests := make(map[string]driven.RepoEntry)

	for _, entry := range entries {
		if entry.Type != "file" || entry.Size > MaxFileBytes {
			continue
		}
		name := path.Base(entry.Path)
		if isReadme(name) {
			readmes = append(readmes, entry)
			continue
		}
		for _, m := range Manifests {
			if strings.EqualFold(name, m) {
				manifests[m] = entry
			}
		}
	}

	selected := readmes
	for _, m := range Manifests {
		if entry, ok := manifests[m]; ok {
			selected = append(selected, entry)
		}
	}
	if len(selected) > MaxFiles {
		selected = selected[:MaxFiles]
	}
	return selected
}

func isReadme(name string) bool {
	stem := strings.ToLower(strings.TrimSuffix(name, path.Ext(name)))
	return stem == "readme"
}
