package driven

import "context"

// VisionInput is material handed to a vision-capable model.
type VisionInput struct {
	// Data is the raw image or document bytes.
	Data []byte

	// MIMEType of Data, e.g. image/png or application/pdf.
	MIMEType string

	// Prompt instructs the model what to describe.
	Prompt string

	// MaxTokens caps the description length. Zero uses the adapter default.
	MaxTokens int
}

// VisionProvider describes images and documents as text.
// This is an optional provider - when nil, image sources are unsupported
// and PDFs are extracted as text only.
type VisionProvider interface {
	// Describe returns a textual description of the input.
	// Implementations return domain.ErrUnsupportedType for MIME types
	// the model cannot read.
	Describe(ctx context.Context, input VisionInput) (string, error)

	// SupportsMIMEType reports whether Describe accepts the MIME type.
	SupportsMIMEType(mimeType string) bool

	// ModelName returns the name of the model being used.
	ModelName() string
}
