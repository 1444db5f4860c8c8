package driven

import "context"

// RepoEntry is one top-level entry of a repository.
type RepoEntry struct {
	Path string
	Type string // "file" or "dir"
	Size int
}

// RepoInfo describes a repository.
type RepoInfo struct {
	FullName      string
	Description   string
	DefaultBranch string
	Language      string
	Topics        []string
	HTMLURL       string
}

// RepositoryHost reads repository metadata and files from a hosting API.
type RepositoryHost interface {
	// Repository returns repository metadata.
	Repository(ctx context.Context, owner, repo string) (*RepoInfo, error)

	// ListTopLevel returns the entries at the repository root.
	ListTopLevel(ctx context.Context, owner, repo string) ([]RepoEntry, error)

	// FileContent returns the decoded content of a file.
	FileContent(ctx context.Context, owner, repo, path string) (string, error)
}
