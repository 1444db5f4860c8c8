package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

var _ driven.BlobReader = (*BlobReader)(nil)

// DefaultMaxBytes caps files read for extraction.
const DefaultMaxBytes = 64 << 20

// BlobReader loads file-backed sources from local paths and file:// URIs.
type BlobReader struct {
	maxBytes int64
}

// NewBlobReader creates a reader that refuses files larger than maxBytes.
// Zero uses DefaultMaxBytes.
func NewBlobReader(maxBytes int64) *BlobReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &BlobReader{maxBytes: maxBytes}
}

// CanRead reports whether origin is a local path.
func (r *BlobReader) CanRead(origin string) bool {
	return IsPathOrigin(origin)
}

// Read returns the file contents at origin.
func (r *BlobReader) Read(ctx context.Context, origin string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.CanRead(origin) {
		return nil, fmt.Errorf("%w: %q is not a local path", domain.ErrUnsupportedType, origin)
	}

	path := ResolvePath(origin)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read blob %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read blob %s: %w: is a directory", path, domain.ErrInvalidInput)
	}
	if info.Size() > r.maxBytes {
		return nil, fmt.Errorf("read blob %s: %w: %d bytes exceeds limit of %d",
			path, domain.ErrInvalidInput, info.Size(), r.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	return data, nil
}
