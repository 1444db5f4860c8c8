// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the dossier home directory (~/.dossier).
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable model prompt templates
package file
