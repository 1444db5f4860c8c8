// Command dossier ingests client material and searches it semantically.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/dossier/internal/adapters/driven/ai"
	"github.com/custodia-labs/dossier/internal/adapters/driven/config/file"
	"github.com/custodia-labs/dossier/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/dossier/internal/adapters/driving/cli"
	"github.com/custodia-labs/dossier/internal/connectors/filesystem"
	"github.com/custodia-labs/dossier/internal/connectors/github"
	"github.com/custodia-labs/dossier/internal/connectors/web"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/services"
	"github.com/custodia-labs/dossier/internal/extractors"
	"github.com/custodia-labs/dossier/internal/extractors/email"
	"github.com/custodia-labs/dossier/internal/extractors/image"
	"github.com/custodia-labs/dossier/internal/extractors/office"
	"github.com/custodia-labs/dossier/internal/extractors/pdf"
	"github.com/custodia-labs/dossier/internal/extractors/repository"
	"github.com/custodia-labs/dossier/internal/extractors/text"
	"github.com/custodia-labs/dossier/internal/extractors/website"
	"github.com/custodia-labs/dossier/internal/logger"
	"github.com/custodia-labs/dossier/internal/postprocessors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// maxBlobBytes caps local files read by the pipeline.
const maxBlobBytes = 64 << 20

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// homeDir resolves the directory holding config, prompts and data.
// An empty result lets each store use its ~/.dossier default.
func homeDir(flagDir string) string {
	if flagDir != "" {
		return flagDir
	}
	return os.Getenv("DOSSIER_HOME")
}

func bootstrap(ctx context.Context, flagDir string) (*cli.Services, error) {
	home := homeDir(flagDir)

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings := settingsService.Get()

	dataDir := settings.DataDir
	promptDir := ""
	if home != "" {
		promptDir = filepath.Join(home, "prompts")
		if dataDir == "" {
			dataDir = filepath.Join(home, "data")
		}
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store opened at %s", store.Path())

	prompts, err := file.NewPromptStore(promptDir,
		file.WithDefault(driven.PromptSummarise, services.DefaultSummarisePrompt),
		file.WithDefault(driven.PromptInsights, services.DefaultInsightsPrompt),
		file.WithDefault(driven.PromptDescribeImage, image.DefaultPrompt),
		file.WithDefault(driven.PromptDescribeDocument, pdf.DefaultPrompt),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open prompts: %w", err)
	}

	providers := ai.Init(ctx, settings)

	converter := web.NewConverter()
	fetcher := web.NewFetcher(settings.Website.Timeout,
		web.WithUserAgent(settings.Website.UserAgent),
		web.WithMaxBodyBytes(settings.Website.MaxPageBytes),
	)
	repos, err := github.NewClient(ctx, settings.GitHub.Token)
	if err != nil {
		providers.Close()
		_ = store.Close()
		return nil, fmt.Errorf("create github client: %w", err)
	}

	registry := extractors.NewRegistry(
		text.New(),
		office.New(),
		pdf.New(providers.Vision, prompts),
		image.New(providers.Vision, prompts),
		email.New(converter),
		website.New(fetcher, converter, website.WithLimits(settings.Website.MaxDiscovered, settings.Website.MaxFetched)),
		repository.New(repos),
	)

	pipeline, err := services.NewPipeline(
		store.SourceStore(), store.ChunkStore(), store.InsightStore(),
		registry,
		postprocessors.NewDefaultPipeline(settings.Chunker.Size, settings.Chunker.Overlap),
		services.WithEmbedder(providers.Embedding),
		services.WithTextGen(providers.TextGen),
		services.WithPromptStore(prompts),
		services.WithBlobReader(filesystem.NewBlobReader(maxBlobBytes)),
		services.WithPipelineSettings(settings.Pipeline),
	)
	if err != nil {
		providers.Close()
		_ = store.Close()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	retrieval := services.NewRetrieval(store.ChunkStore(),
		services.WithQueryEmbedder(providers.Embedding),
		services.WithRetrievalDefaults(settings.Retrieval),
	)

	return &cli.Services{
		Ingestion: pipeline,
		Retrieval: retrieval,
		Settings:  settingsService,
		Warnings:  providers.Warnings,
		Close: func() error {
			err := pipeline.Close()
			providers.Close()
			return errors.Join(err, store.Close())
		},
	}, nil
}
