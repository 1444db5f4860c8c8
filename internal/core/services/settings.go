package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyDataDir = "data_dir"

	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"

	keyVisionProvider = "vision.provider"
	keyVisionModel    = "vision.model"
	keyVisionBaseURL  = "vision.base_url"
	keyVisionAPIKey   = "vision.api_key"

	keyTextGenProvider = "textgen.provider"
	keyTextGenModel    = "textgen.model"
	keyTextGenBaseURL  = "textgen.base_url"
	keyTextGenAPIKey   = "textgen.api_key"

	keyChunkSize    = "chunker.size"
	keyChunkOverlap = "chunker.overlap"

	keyWorkers          = "pipeline.workers"
	keyQueueSize        = "pipeline.queue_size"
	keyBulkDelay        = "pipeline.bulk_delay"
	keySummaryMaxLength = "pipeline.summary_max_length"
	keyMaxInsights      = "pipeline.max_insights"

	keySearchLimit   = "retrieval.limit"
	keyMinSimilarity = "retrieval.min_similarity"
	keyHybrid        = "retrieval.hybrid"

	keyMaxDiscovered = "website.max_discovered"
	keyMaxFetched    = "website.max_fetched"
	keyWebTimeout    = "website.timeout"
	keyUserAgent     = "website.user_agent"
	keyMaxPageBytes  = "website.max_page_bytes"

	keyGitHubToken = "github.token"
)

type valueKind int

const (
	kindString valueKind = iota
	kindSecret
	kindProvider
	kindInt
	kindFloat
	kindBool
	kindDuration
)

// settingKeys lists every key Set accepts.
var settingKeys = map[string]valueKind{
	keyDataDir:          kindString,
	keyEmbedProvider:    kindProvider,
	keyEmbedModel:       kindString,
	keyEmbedBaseURL:     kindString,
	keyEmbedAPIKey:      kindSecret,
	keyVisionProvider:   kindProvider,
	keyVisionModel:      kindString,
	keyVisionBaseURL:    kindString,
	keyVisionAPIKey:     kindSecret,
	keyTextGenProvider:  kindProvider,
	keyTextGenModel:     kindString,
	keyTextGenBaseURL:   kindString,
	keyTextGenAPIKey:    kindSecret,
	keyChunkSize:        kindInt,
	keyChunkOverlap:     kindInt,
	keyWorkers:          kindInt,
	keyQueueSize:        kindInt,
	keyBulkDelay:        kindDuration,
	keySummaryMaxLength: kindInt,
	keyMaxInsights:      kindInt,
	keySearchLimit:      kindInt,
	keyMinSimilarity:    kindFloat,
	keyHybrid:           kindBool,
	keyMaxDiscovered:    kindInt,
	keyMaxFetched:       kindInt,
	keyWebTimeout:       kindDuration,
	keyUserAgent:        kindString,
	keyMaxPageBytes:     kindInt,
	keyGitHubToken:      kindSecret,
}

// SettingsService reads and writes application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// LoadSettings reads settings from store, falling back to defaults for
// unset or invalid values.
func LoadSettings(store driven.ConfigStore) domain.Settings {
	return NewSettingsService(store).Get()
}

// Get returns the current settings.
func (s *SettingsService) Get() domain.Settings {
	d := domain.DefaultSettings()

	return domain.Settings{
		DataDir:   s.configStore.GetString(keyDataDir),
		Embedding: s.model(keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey),
		Vision:    s.model(keyVisionProvider, keyVisionModel, keyVisionBaseURL, keyVisionAPIKey),
		TextGen:   s.model(keyTextGenProvider, keyTextGenModel, keyTextGenBaseURL, keyTextGenAPIKey),
		Chunker: domain.ChunkerSettings{
			Size:    s.getInt(keyChunkSize, d.Chunker.Size),
			Overlap: s.getInt(keyChunkOverlap, d.Chunker.Overlap),
		},
		Pipeline: domain.PipelineSettings{
			Workers:          s.getInt(keyWorkers, d.Pipeline.Workers),
			QueueSize:        s.getInt(keyQueueSize, d.Pipeline.QueueSize),
			BulkDelay:        s.getDuration(keyBulkDelay, d.Pipeline.BulkDelay),
			SummaryMaxLength: s.getInt(keySummaryMaxLength, d.Pipeline.SummaryMaxLength),
			MaxInsights:      s.getInt(keyMaxInsights, d.Pipeline.MaxInsights),
		},
		Retrieval: domain.RetrievalSettings{
			Limit:         s.getInt(keySearchLimit, d.Retrieval.Limit),
			MinSimilarity: s.getFloat(keyMinSimilarity, d.Retrieval.MinSimilarity),
			Hybrid:        s.getBool(keyHybrid, d.Retrieval.Hybrid),
		},
		Website: domain.WebsiteSettings{
			MaxDiscovered: s.getInt(keyMaxDiscovered, d.Website.MaxDiscovered),
			MaxFetched:    s.getInt(keyMaxFetched, d.Website.MaxFetched),
			Timeout:       s.getDuration(keyWebTimeout, d.Website.Timeout),
			UserAgent:     s.getString(keyUserAgent, d.Website.UserAgent),
			MaxPageBytes:  int64(s.getInt(keyMaxPageBytes, int(d.Website.MaxPageBytes))),
		},
		GitHub: domain.GitHubSettings{
			Token: s.configStore.GetString(keyGitHubToken),
		},
	}
}

// Set parses value for key and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseValue(kind, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	if err := s.validate(key, parsed); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetModel configures one AI capability in a single step. An empty model
// selects the provider default.
func (s *SettingsService) SetModel(capability string, provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid provider: %s", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	var defaults map[domain.AIProvider]string
	switch capability {
	case "embedding":
		if !provider.SupportsEmbeddings() {
			return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
		}
		defaults = domain.DefaultEmbeddingModels()
	case "vision", "textgen":
		defaults = domain.DefaultGenerationModels()
	default:
		return fmt.Errorf("%w: unknown capability %q", domain.ErrInvalidInput, capability)
	}

	if model == "" {
		model = defaults[provider]
	}

	if err := s.configStore.Set(capability+".provider", provider.String()); err != nil {
		return fmt.Errorf("save %s provider: %w", capability, err)
	}
	if err := s.configStore.Set(capability+".model", model); err != nil {
		return fmt.Errorf("save %s model: %w", capability, err)
	}
	if apiKey != "" {
		if err := s.configStore.Set(capability+".api_key", apiKey); err != nil {
			return fmt.Errorf("save %s api_key: %w", capability, err)
		}
	}
	return nil
}

// Entries returns every known setting with its effective value, secrets masked.
func (s *SettingsService) Entries() []driving.SettingEntry {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	effective := flattenSettings(s.Get())
	entries := make([]driving.SettingEntry, 0, len(keys))
	for _, k := range keys {
		_, set := s.configStore.Get(k)
		value := effective[k]
		if settingKeys[k] == kindSecret {
			value = MaskAPIKey(value)
		}
		entries = append(entries, driving.SettingEntry{Key: k, Value: value, Default: !set})
	}
	return entries
}

// MaskAPIKey hides all but the last four characters of a key.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func parseValue(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", value)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", value)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", value)
		}
		return b, nil
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("expected a duration such as 500ms, got %q", value)
		}
		return d.String(), nil
	case kindProvider:
		p := domain.AIProvider(strings.ToLower(value))
		if value != "" && !p.IsValid() {
			return nil, fmt.Errorf("unknown provider %q", value)
		}
		return p.String(), nil
	default:
		return value, nil
	}
}

func (s *SettingsService) validate(key string, value any) error {
	current := s.Get()

	switch key {
	case keyEmbedProvider:
		p := domain.AIProvider(value.(string))
		if p != "" && !p.SupportsEmbeddings() {
			return fmt.Errorf("provider %s does not support embeddings", p)
		}
	case keyChunkSize:
		if n := value.(int); n <= current.Chunker.Overlap {
			return fmt.Errorf("size must exceed overlap (%d)", current.Chunker.Overlap)
		}
	case keyChunkOverlap:
		if n := value.(int); n < 0 || n >= current.Chunker.Size {
			return fmt.Errorf("overlap must be between 0 and size (%d)", current.Chunker.Size)
		}
	case keyWorkers, keySearchLimit, keySummaryMaxLength, keyMaxDiscovered, keyMaxFetched, keyMaxPageBytes:
		if value.(int) < 1 {
			return fmt.Errorf("must be at least 1")
		}
	case keyQueueSize, keyMaxInsights:
		if value.(int) < 0 {
			return fmt.Errorf("must not be negative")
		}
	case keyMinSimilarity:
		if f := value.(float64); f < 0 || f > 1 {
			return fmt.Errorf("must be between 0 and 1")
		}
	}
	return nil
}

func flattenSettings(st domain.Settings) map[string]string {
	return map[string]string{
		keyDataDir:          st.DataDir,
		keyEmbedProvider:    st.Embedding.Provider.String(),
		keyEmbedModel:       st.Embedding.Model,
		keyEmbedBaseURL:     st.Embedding.BaseURL,
		keyEmbedAPIKey:      st.Embedding.APIKey,
		keyVisionProvider:   st.Vision.Provider.String(),
		keyVisionModel:      st.Vision.Model,
		keyVisionBaseURL:    st.Vision.BaseURL,
		keyVisionAPIKey:     st.Vision.APIKey,
		keyTextGenProvider:  st.TextGen.Provider.String(),
		keyTextGenModel:     st.TextGen.Model,
		keyTextGenBaseURL:   st.TextGen.BaseURL,
		keyTextGenAPIKey:    st.TextGen.APIKey,
		keyChunkSize:        strconv.Itoa(st.Chunker.Size),
		keyChunkOverlap:     strconv.Itoa(st.Chunker.Overlap),
		keyWorkers:          strconv.Itoa(st.Pipeline.Workers),
		keyQueueSize:        strconv.Itoa(st.Pipeline.QueueSize),
		keyBulkDelay:        st.Pipeline.BulkDelay.String(),
		keySummaryMaxLength: strconv.Itoa(st.Pipeline.SummaryMaxLength),
		keyMaxInsights:      strconv.Itoa(st.Pipeline.MaxInsights),
		keySearchLimit:      strconv.Itoa(st.Retrieval.Limit),
		keyMinSimilarity:    strconv.FormatFloat(st.Retrieval.MinSimilarity, 'f', -1, 64),
		keyHybrid:           strconv.FormatBool(st.Retrieval.Hybrid),
		keyMaxDiscovered:    strconv.Itoa(st.Website.MaxDiscovered),
		keyMaxFetched:       strconv.Itoa(st.Website.MaxFetched),
		keyWebTimeout:       st.Website.Timeout.String(),
		keyUserAgent:        st.Website.UserAgent,
		keyMaxPageBytes:     strconv.FormatInt(st.Website.MaxPageBytes, 10),
		keyGitHubToken:      st.GitHub.Token,
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) model(providerKey, modelKey, baseURLKey, apiKeyKey string) domain.ModelSettings {
	return domain.ModelSettings{
		Provider: s.getProvider(providerKey),
		Model:    s.configStore.GetString(modelKey),
		BaseURL:  s.configStore.GetString(baseURLKey),
		APIKey:   s.configStore.GetString(apiKeyKey),
	}
}

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return ""
	}
	return provider
}
