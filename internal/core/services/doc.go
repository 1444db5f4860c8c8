// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The Pipeline runs ingestion jobs on a worker pool; Retrieval ranks
// stored chunks; SettingsService maps the config store onto domain.Settings.
package services
