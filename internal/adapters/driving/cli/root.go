// Package cli provides the dossier command line interface.
package cli

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// defaultOwner is used when neither --owner nor DOSSIER_OWNER is set.
const defaultOwner = "local"

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

// Services are the driving ports the commands use.
type Services struct {
	Ingestion driving.IngestionService
	Retrieval driving.RetrievalService
	Settings  driving.SettingsService

	// Warnings describe capabilities that were disabled at startup.
	Warnings []string

	// Close drains background work and releases resources.
	Close func() error
}

// Bootstrap builds the services for a data directory. An empty dataDir
// uses the configured default.
type Bootstrap func(ctx context.Context, dataDir string) (*Services, error)

var (
	version = "dev"

	bootstrap Bootstrap

	ingestionService driving.IngestionService
	retrievalService driving.RetrievalService
	settingsService  driving.SettingsService
	startupWarnings  []string

	closeMu       sync.Mutex
	closeServices func() error

	verbose    bool
	ownerFlag  string
	dataDirArg string
)

var rootCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Ingest client material and search it semantically",
	Long: `dossier turns client material into a searchable knowledge base.

Documents, images, websites, repositories, emails and notes are extracted,
chunked and embedded in the background, then retrieved by semantic
similarity with a literal-match fallback.`,
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug, info and warning logs")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "owner id (default $DOSSIER_OWNER or \"local\")")
	rootCmd.PersistentFlags().StringVar(&dataDirArg, "data-dir", "", "data directory (default ~/.dossier)")
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetBootstrap sets how services are built before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// Execute runs the root command and shuts services down afterwards.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := Shutdown(); err == nil {
		err = closeErr
	}
	return err
}

// Shutdown closes the services built by the bootstrap. It is safe to call
// more than once.
func Shutdown() error {
	closeMu.Lock()
	fn := closeServices
	closeServices = nil
	closeMu.Unlock()

	if fn == nil {
		return nil
	}
	return fn()
}

func preRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if cmd.Annotations[skipBootstrap] == "true" || ingestionService != nil {
		return nil
	}
	if bootstrap == nil {
		return errors.New("services not configured")
	}

	svc, err := bootstrap(cmd.Context(), dataDirArg)
	if err != nil {
		return err
	}
	useServices(svc)
	for _, w := range startupWarnings {
		logger.Warn("%s", w)
	}
	return nil
}

func useServices(svc *Services) {
	ingestionService = svc.Ingestion
	retrievalService = svc.Retrieval
	settingsService = svc.Settings
	startupWarnings = svc.Warnings

	closeMu.Lock()
	closeServices = svc.Close
	closeMu.Unlock()
}

// ownerID resolves the owner for the current invocation.
func ownerID() string {
	if o := strings.TrimSpace(ownerFlag); o != "" {
		return o
	}
	if o := strings.TrimSpace(os.Getenv("DOSSIER_OWNER")); o != "" {
		return o
	}
	return defaultOwner
}
