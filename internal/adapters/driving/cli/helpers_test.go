package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dossier/internal/connectors/filesystem"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/services"
	"github.com/custodia-labs/dossier/internal/extractors"
	"github.com/custodia-labs/dossier/internal/extractors/text"
	"github.com/custodia-labs/dossier/internal/postprocessors"
)

// testEnv holds memory-backed services wired the way main wires them.
type testEnv struct {
	store    *memory.Store
	pipeline *services.Pipeline
	settings *services.SettingsService
}

// setupTestServices installs real services over in-memory stores and
// returns a cleanup function restoring the package state.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()
	resetFlags(rootCmd)

	store := memory.NewStore()
	settings := services.NewSettingsService(memory.NewConfigStore())

	pipelineSettings := domain.DefaultSettings().Pipeline
	pipelineSettings.BulkDelay = time.Millisecond
	pipeline, err := services.NewPipeline(
		store.SourceStore(), store.ChunkStore(), store.InsightStore(),
		extractors.NewRegistry(text.New()),
		postprocessors.NewDefaultPipeline(1000, 200),
		services.WithBlobReader(filesystem.NewBlobReader(1<<20)),
		services.WithPipelineSettings(pipelineSettings),
	)
	require.NoError(t, err)

	useServices(&Services{
		Ingestion: pipeline,
		Retrieval: services.NewRetrieval(store.ChunkStore()),
		Settings:  settings,
		Close:     pipeline.Close,
	})

	t.Cleanup(func() {
		_ = Shutdown()
		ingestionService = nil
		retrievalService = nil
		settingsService = nil
		startupWarnings = nil
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	})
	return &testEnv{store: store, pipeline: pipeline, settings: settings}
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// onlySource returns the single source stored for the default owner.
func (e *testEnv) onlySource(t *testing.T) *domain.Source {
	t.Helper()
	sources, err := e.pipeline.List(context.Background(), domain.SourceFilter{OwnerID: defaultOwner})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	return &sources[0]
}
