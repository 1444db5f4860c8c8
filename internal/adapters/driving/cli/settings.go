package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

var (
	modelProvider string
	modelName     string
	modelAPIKey   string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings. Values are stored in the config file and
apply from the next command.

Use "settings show" to list every key with its current value.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting. Invalid values are rejected and nothing is stored.

Examples:
  dossier settings set chunker.size 1200
  dossier settings set retrieval.min_similarity 0.6
  dossier settings set pipeline.bulk_delay 1s`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsModelCmd = &cobra.Command{
	Use:   "set-key [embedding|vision|textgen]",
	Short: "Configure the AI provider for a capability",
	Long: `Configure the provider and model used for embeddings, image and scanned
page description, or summaries and insights. Cloud providers prompt for an
API key when --api-key is not given. An empty --model uses the provider's
default model.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"embedding", "vision", "textgen"},
	RunE:      runSettingsModel,
}

func init() {
	settingsModelCmd.Flags().StringVar(&modelProvider, "provider", "", "ollama, openai or anthropic")
	settingsModelCmd.Flags().StringVar(&modelName, "model", "", "model name")
	settingsModelCmd.Flags().StringVar(&modelAPIKey, "api-key", "", "API key (prompted when omitted)")
	_ = settingsModelCmd.MarkFlagRequired("provider")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsModelCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println(headingStyle.Render("Current Settings"))
	section := ""
	for _, e := range settingsService.Entries() {
		group, _, _ := strings.Cut(e.Key, ".")
		if group != section {
			section = group
			cmd.Println()
			cmd.Printf("[%s]\n", group)
		}
		value := e.Value
		if value == "" {
			value = "(not set)"
		}
		if e.Default {
			value += " " + mutedStyle.Render("(default)")
		}
		cmd.Printf("  %-28s %s\n", e.Key, value)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("%s updated\n", args[0])
	return nil
}

func runSettingsModel(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	capability := strings.ToLower(args[0])
	provider := domain.AIProvider(strings.ToLower(strings.TrimSpace(modelProvider)))
	if !provider.IsValid() {
		return fmt.Errorf("%w: provider %q", domain.ErrInvalidInput, modelProvider)
	}

	apiKey := modelAPIKey
	if provider.RequiresAPIKey() && apiKey == "" {
		cmd.Printf("Enter %s API key: ", provider.Description())
		apiKey = readPassword(cmd.InOrStdin())
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetModel(capability, provider, modelName, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", capability, err)
	}

	model := modelName
	if model == "" {
		model = "default model"
	}
	cmd.Printf("%s provider configured: %s (%s)\n", capability, provider.Description(), model)
	return nil
}

func readPassword(in io.Reader) string {
	// Try to read the key without echo.
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
