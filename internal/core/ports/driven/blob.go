package driven

import "context"

// BlobReader loads raw bytes from an origin locator such as a file path.
type BlobReader interface {
	// CanRead reports whether the origin is a locator this reader resolves.
	CanRead(origin string) bool

	// Read returns the bytes at origin.
	Read(ctx context.Context, origin string) ([]byte, error)
}
