package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings, vision or text generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// SupportsEmbeddings returns true if the provider offers an embedding endpoint.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// ModelSettings configures one model capability (embedding, vision or text generation).
type ModelSettings struct {
	// Provider is the service provider.
	Provider AIProvider

	// Model is the model name. Empty uses the provider default.
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string
}

// IsConfigured returns true if the capability is set up.
func (m ModelSettings) IsConfigured() bool {
	if !m.Provider.IsValid() {
		return false
	}
	if m.Provider.RequiresAPIKey() && m.APIKey == "" {
		return false
	}
	return true
}

// ChunkerSettings configures the sliding window.
type ChunkerSettings struct {
	Size    int
	Overlap int
}

// PipelineSettings configures background processing.
type PipelineSettings struct {
	// Workers is the worker pool capacity.
	Workers int

	// QueueSize bounds jobs waiting for a worker before Submit blocks.
	QueueSize int

	// BulkDelay is the pause between bulk-import items.
	BulkDelay time.Duration

	// SummaryMaxLength caps generated summaries in characters.
	SummaryMaxLength int

	// MaxInsights caps insights kept per source.
	MaxInsights int
}

// RetrievalSettings configures the retrieval engine defaults.
type RetrievalSettings struct {
	Limit         int
	MinSimilarity float64
	Hybrid        bool
}

// WebsiteSettings bounds website crawling.
type WebsiteSettings struct {
	MaxDiscovered int
	MaxFetched    int
	Timeout       time.Duration
	UserAgent     string
	MaxPageBytes  int64
}

// GitHubSettings configures repository extraction.
type GitHubSettings struct {
	// Token is an optional personal access token.
	Token string
}

// Settings holds all application settings.
type Settings struct {
	DataDir   string
	Embedding ModelSettings
	Vision    ModelSettings
	TextGen   ModelSettings
	Chunker   ChunkerSettings
	Pipeline  PipelineSettings
	Retrieval RetrievalSettings
	Website   WebsiteSettings
	GitHub    GitHubSettings
}

// DefaultSettings returns settings with sensible defaults.
// AI capabilities are left unconfigured.
func DefaultSettings() Settings {
	return Settings{
		Chunker: ChunkerSettings{
			Size:    1000,
			Overlap: 200,
		},
		Pipeline: PipelineSettings{
			Workers:          4,
			QueueSize:        64,
			BulkDelay:        500 * time.Millisecond,
			SummaryMaxLength: 600,
			MaxInsights:      8,
		},
		Retrieval: RetrievalSettings{
			Limit:         DefaultSearchLimit,
			MinSimilarity: DefaultMinSimilarity,
			Hybrid:        true,
		},
		Website: WebsiteSettings{
			MaxDiscovered: 50,
			MaxFetched:    20,
			Timeout:       30 * time.Second,
			UserAgent:     "dossier/1.0 (+https://github.com/custodia-labs/dossier)",
			MaxPageBytes:  5 << 20,
		},
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultGenerationModels returns default text/vision models for each provider.
func DefaultGenerationModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2-vision",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}
