package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies what kind of material a source holds.
type SourceKind string

// Supported source kinds.
const (
	KindDocument  SourceKind = "document"
	KindImage     SourceKind = "image"
	KindWebsite   SourceKind = "website"
	KindRepo      SourceKind = "repo"
	KindEmail     SourceKind = "email"
	KindRecording SourceKind = "recording"
	KindNote      SourceKind = "note"
)

// AllKinds returns every supported source kind.
func AllKinds() []SourceKind {
	return []SourceKind{
		KindDocument, KindImage, KindWebsite, KindRepo,
		KindEmail, KindRecording, KindNote,
	}
}

// IsValid returns true if the kind is recognised.
func (k SourceKind) IsValid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// IsRemote returns true if the kind is fetched from its origin URL
// rather than carried as raw bytes.
func (k SourceKind) IsRemote() bool {
	return k == KindWebsite || k == KindRepo
}

// String returns the string representation.
func (k SourceKind) String() string {
	return string(k)
}

// ParseKind converts a user supplied string into a SourceKind.
func ParseKind(s string) (SourceKind, error) {
	k := SourceKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: source kind %q", ErrUnsupportedType, s)
	}
	return k, nil
}

// SourceStatus is the processing state of a source.
type SourceStatus string

// Processing states.
const (
	StatusPending    SourceStatus = "pending"
	StatusProcessing SourceStatus = "processing"
	StatusCompleted  SourceStatus = "completed"
	StatusFailed     SourceStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s SourceStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states that are only left via reprocess.
func (s SourceStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether a regular status update may move
// from s to next. Leaving a terminal state requires BeginReprocess.
func (s SourceStatus) CanTransitionTo(next SourceStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// AllowedPredecessors returns the states from which next may be reached
// by a regular status update.
func AllowedPredecessors(next SourceStatus) []SourceStatus {
	var out []SourceStatus
	for _, s := range []SourceStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// String returns the string representation.
func (s SourceStatus) String() string {
	return string(s)
}

// Governance categories for content that must never be retrieved.
const (
	CategoryConfidential     = "confidential"
	CategoryLegalHold        = "legal_hold"
	CategoryPersonal         = "personal"
	CategoryClientRestricted = "client_restricted"
)

// Source is a top-level ingested document or record.
// It owns zero or more Chunks and Insights.
type Source struct {
	// ID is the unique identifier for the source.
	ID string `json:"id"`

	// OwnerID is the consultant who owns the material.
	OwnerID string `json:"owner_id"`

	// ClientID scopes the source to a client. Nil means personal knowledge.
	ClientID *string `json:"client_id,omitempty"`

	// Kind identifies the source material.
	Kind SourceKind `json:"kind"`

	// Name is the human-readable name.
	Name string `json:"name"`

	// Origin locates the raw material: blob reference, file path or URL.
	Origin string `json:"origin"`

	// MIMEType of the raw material, when known.
	MIMEType string `json:"mime_type,omitempty"`

	// Content is the extracted text. Nil until processed.
	Content *string `json:"content,omitempty"`

	// Summary is the generated summary, if any.
	Summary *string `json:"summary,omitempty"`

	// Status is the processing state.
	Status SourceStatus `json:"status"`

	// LastError is the most recent failure message.
	LastError *string `json:"last_error,omitempty"`

	// ExcludeFromRag hides the source from every retrieval path.
	ExcludeFromRag bool `json:"exclude_from_rag"`

	// Category records why the source is excluded.
	Category *string `json:"category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientKey returns the client id or an empty string for personal sources.
func (s *Source) ClientKey() string {
	if s.ClientID == nil {
		return ""
	}
	return *s.ClientID
}

// ContentText returns the extracted content or an empty string.
func (s *Source) ContentText() string {
	if s.Content == nil {
		return ""
	}
	return *s.Content
}

// Validate checks the status invariants.
func (s *Source) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: source id is required", ErrInvalidInput)
	case s.OwnerID == "":
		return fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	case !s.Kind.IsValid():
		return fmt.Errorf("%w: source kind %q", ErrUnsupportedType, s.Kind)
	case !s.Status.IsValid():
		return fmt.Errorf("%w: status %q", ErrInvalidInput, s.Status)
	case s.Status == StatusCompleted && s.Content == nil && !s.ExcludeFromRag:
		return fmt.Errorf("%w: completed source has no content", ErrInvalidInput)
	case s.Status == StatusFailed && s.LastError == nil:
		return fmt.Errorf("%w: failed source has no error", ErrInvalidInput)
	}
	return nil
}

// SourceFilter narrows source listings.
type SourceFilter struct {
	OwnerID  string
	ClientID *string
	Kinds    []SourceKind
	Statuses []SourceStatus
	Limit    int
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
