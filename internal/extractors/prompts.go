package extractors

import (
	"strings"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// LoadPrompt reads a prompt from store, returning fallback when the store is
// nil or has nothing usable.
func LoadPrompt(store driven.PromptStore, name, fallback string) string {
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}
