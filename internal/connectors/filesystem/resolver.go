package filesystem

import (
	"net/url"
	"strings"
)

// ResolvePath converts a file:// URI or bare path to a local path.
// Percent-encoded file URIs are decoded; malformed ones are returned with
// the scheme stripped.
func ResolvePath(origin string) string {
	if !strings.HasPrefix(origin, "file://") {
		return origin
	}
	if u, err := url.Parse(origin); err == nil && u.Path != "" {
		return u.Path
	}
	return strings.TrimPrefix(origin, "file://")
}

// IsPathOrigin reports whether origin names a local file rather than a
// remote locator such as an http URL.
func IsPathOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if strings.HasPrefix(origin, "file://") {
		return true
	}
	return !strings.Contains(origin, "://")
}
