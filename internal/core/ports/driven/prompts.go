package driven

// PromptStore provides access to model prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return the embedded default
	// or an error when no default exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptSummarise creates summaries of source content.
	// The template expects %d (max length) and %s (content) placeholders.
	PromptSummarise = "summarise"

	// PromptInsights extracts key facts from source content.
	// The template expects %d (max insights) and %s (content) placeholders.
	PromptInsights = "insights"

	// PromptDescribeImage asks a vision model for a structured image description.
	// This prompt has no format placeholders.
	PromptDescribeImage = "describe_image"

	// PromptDescribeDocument asks a vision model to describe charts and
	// diagrams in a document. This prompt has no format placeholders.
	PromptDescribeDocument = "describe_document"
)
