package driving

import "github.com/custodia-labs/dossier/internal/core/domain"

// SettingsService reads and updates application settings.
type SettingsService interface {
	// Get returns the effective settings, defaults filled in.
	Get() domain.Settings

	// Set parses and stores a single setting.
	Set(key, value string) error

	// SetModel configures an AI capability ("embedding", "vision" or "textgen").
	SetModel(capability string, provider domain.AIProvider, model, apiKey string) error

	// Entries lists every setting for display with secrets masked.
	Entries() []SettingEntry
}

// SettingEntry is one displayed setting.
type SettingEntry struct {
	Key     string
	Value   string
	Default bool
}
