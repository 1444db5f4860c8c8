package github

import (
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// ErrInvalidRepoURL indicates a locator that names no owner/repo pair.
var ErrInvalidRepoURL = errors.New("github: invalid repository URL")

// RateLimitError represents a rate limit exceeded error with reset time.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Unwrap lets callers match domain.ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// APIError represents a GitHub API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
	Operation  string
}

func (e *APIError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("github: %s: API error %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github: %s: API error %d: %s (URL: %s)", e.Operation, e.StatusCode, e.Message, e.URL)
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 401
}
