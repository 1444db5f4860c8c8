package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/extractors"
	"github.com/custodia-labs/dossier/internal/logger"
	"github.com/custodia-labs/dossier/internal/metrics"
)

// Ensure Pipeline implements the interface.
var _ driving.IngestionService = (*Pipeline)(nil)

// ErrNothingToReprocess is returned when a source has neither a readable
// origin nor usable content.
var ErrNothingToReprocess = errors.New("original content unavailable, ingest the source again")

// Pipeline runs sources through extraction and enrichment on a worker pool.
// Extraction is mandatory: its failure marks the source failed. Summary,
// embedding and insight generation run concurrently and never affect the
// final status.
type Pipeline struct {
	sources    driven.SourceStore
	chunks     driven.ChunkStore
	insights   driven.InsightStore
	extractors driven.ExtractorRegistry
	chunker    driven.ChunkPipeline

	embedder driven.EmbeddingProvider
	textgen  driven.TextGenProvider
	prompts  driven.PromptStore
	blobs    []driven.BlobReader

	settings domain.PipelineSettings
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time

	pool   *ants.Pool
	queue  chan func()
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	closeMu sync.RWMutex
	closed  bool
	jobs    sync.WaitGroup

	locks *keyedMutex

	activeMu sync.Mutex
	active   map[uint64]*driving.JobStatus
	nextJob  uint64
	// idle is closed when the last tracked job finishes.
	idle chan struct{}
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithEmbedder enables chunk embeddings.
func WithEmbedder(e driven.EmbeddingProvider) PipelineOption {
	return func(p *Pipeline) {
		p.embedder = e
	}
}

// WithTextGen enables summary and insight generation.
func WithTextGen(t driven.TextGenProvider) PipelineOption {
	return func(p *Pipeline) {
		p.textgen = t
	}
}

// WithPromptStore sets where summary and insight prompts are loaded from.
func WithPromptStore(s driven.PromptStore) PipelineOption {
	return func(p *Pipeline) {
		p.prompts = s
	}
}

// WithBlobReader adds a reader for origins of file-backed sources.
func WithBlobReader(r driven.BlobReader) PipelineOption {
	return func(p *Pipeline) {
		p.blobs = append(p.blobs, r)
	}
}

// WithPipelineSettings overrides the worker, queue and enrichment settings.
func WithPipelineSettings(s domain.PipelineSettings) PipelineOption {
	return func(p *Pipeline) {
		p.settings = s
	}
}

// WithPipelineClock overrides the clock used for job timestamps.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline and starts its worker pool.
func NewPipeline(
	sources driven.SourceStore,
	chunks driven.ChunkStore,
	insights driven.InsightStore,
	registry driven.ExtractorRegistry,
	chunker driven.ChunkPipeline,
	opts ...PipelineOption,
) (*Pipeline, error) {
	if sources == nil || chunks == nil || insights == nil || registry == nil || chunker == nil {
		return nil, fmt.Errorf("%w: pipeline requires stores, extractor registry and chunker", domain.ErrInvalidInput)
	}

	p := &Pipeline{
		sources:    sources,
		chunks:     chunks,
		insights:   insights,
		extractors: registry,
		chunker:    chunker,
		settings:   domain.DefaultSettings().Pipeline,
		metrics:    metrics.Get(),
		log:        logger.With("pipeline"),
		now:        time.Now,
		locks:      newKeyedMutex(),
		active:     make(map[uint64]*driving.JobStatus),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.settings.Workers < 1 {
		p.settings.Workers = 1
	}
	if p.settings.QueueSize < 0 {
		p.settings.QueueSize = 0
	}

	pool, err := ants.NewPool(p.settings.Workers, ants.WithPanicHandler(func(v any) {
		p.log.Error("job panicked: %v", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	p.pool = pool
	p.queue = make(chan func(), p.settings.QueueSize)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	go p.dispatch()
	return p, nil
}

// dispatch hands queued jobs to the pool, blocking while every worker is busy.
func (p *Pipeline) dispatch() {
	defer close(p.done)
	for job := range p.queue {
		if err := p.pool.Submit(job); err != nil {
			// Only a released pool refuses work; run inline so the job's
			// bookkeeping still completes.
			p.log.Warn("pool refused job: %v", err)
			job()
		}
	}
}

// rawJob is one scheduled pipeline run.
type rawJob struct {
	source domain.Source
	raw    []byte

	// reuse skips extraction and re-chunks the stored content.
	reuse bool
}

// Ingest validates the request, stores the source as processing and
// schedules it.
func (p *Pipeline) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.Source, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	source := &domain.Source{
		ID:             uuid.New().String(),
		OwnerID:        req.OwnerID,
		ClientID:       req.ClientID,
		Kind:           req.Kind,
		Name:           req.Name,
		Origin:         req.Origin,
		MIMEType:       req.MIMEType,
		Status:         domain.StatusProcessing,
		ExcludeFromRag: req.ExcludeFromRag,
		Category:       domain.StringPtr(strings.TrimSpace(req.Category)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.sources.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	if err := p.enqueue(ctx, rawJob{source: *source, raw: req.Content}); err != nil {
		msg := "not scheduled: " + err.Error()
		if setErr := p.sources.SetError(context.WithoutCancel(ctx), source.ID, source.OwnerID, msg); setErr != nil {
			p.log.Error("mark source %s failed: %v", source.ID, setErr)
		}
		return nil, err
	}

	p.log.Info("source %s (%s) queued", source.ID, source.Kind)
	return source, nil
}

func validateRequest(req *domain.IngestRequest) error {
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	if req.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if !req.Kind.IsValid() {
		return fmt.Errorf("%w: source kind %q", domain.ErrUnsupportedType, req.Kind)
	}
	if req.ClientID != nil && strings.TrimSpace(*req.ClientID) == "" {
		req.ClientID = nil
	}
	req.Origin = strings.TrimSpace(req.Origin)
	if len(req.Content) == 0 && req.Origin == "" {
		return fmt.Errorf("%w: content or origin is required", domain.ErrInvalidInput)
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = req.Origin
	}
	if req.Name == "" {
		req.Name = "Untitled " + string(req.Kind)
	}
	req.MIMEType = extractors.NormaliseMIME(req.MIMEType)
	return nil
}

// BulkImport ingests requests in order, waiting the configured delay
// between items. Item failures are joined and do not stop the import.
func (p *Pipeline) BulkImport(ctx context.Context, reqs []domain.IngestRequest) ([]*domain.Source, error) {
	limit := rate.Inf
	if p.settings.BulkDelay > 0 {
		limit = rate.Every(p.settings.BulkDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	accepted := make([]*domain.Source, 0, len(reqs))
	var errs []error
	for i, req := range reqs {
		if err := limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("import stopped at item %d: %w", i, err))
			break
		}

		source, err := p.Ingest(ctx, req)
		if err != nil {
			name := req.Name
			if name == "" {
				name = req.Origin
			}
			errs = append(errs, fmt.Errorf("item %d (%s): %w", i, name, err))
			continue
		}
		accepted = append(accepted, source)
	}

	p.log.Info("bulk import accepted %d of %d", len(accepted), len(reqs))
	return accepted, errors.Join(errs...)
}

// Reprocess resets the source to processing and schedules it again.
// File-backed sources are re-read from their origin, remote sources are
// fetched again and inline sources are re-chunked from stored content.
func (p *Pipeline) Reprocess(ctx context.Context, id, ownerID string) (*domain.Source, error) {
	source, err := p.sources.Get(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}

	job := rawJob{}
	switch {
	case source.Kind.IsRemote() || p.blobReader(source.Origin) != nil:
	case source.Content != nil && !domain.IsMarker(*source.Content) && strings.TrimSpace(*source.Content) != "":
		job.reuse = true
	default:
		return nil, fmt.Errorf("%w: source %s: %w", domain.ErrInvalidInput, id, ErrNothingToReprocess)
	}

	if err := p.sources.BeginReprocess(ctx, id, ownerID); err != nil {
		return nil, fmt.Errorf("reset source: %w", err)
	}
	source, err = p.sources.Get(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}

	job.source = *source
	if err := p.enqueue(ctx, job); err != nil {
		return nil, err
	}

	p.log.Info("source %s requeued", id)
	return source, nil
}

// Get returns a source with chunk counts and insights.
func (p *Pipeline) Get(ctx context.Context, id, ownerID string) (*driving.SourceDetails, error) {
	source, err := p.sources.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	total, embedded, err := p.chunks.CountBySource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	insights, err := p.insights.ListBySource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}

	return &driving.SourceDetails{
		Source:         *source,
		ChunkCount:     total,
		EmbeddedChunks: embedded,
		Insights:       insights,
	}, nil
}

// List returns the owner's sources matching the filter.
func (p *Pipeline) List(ctx context.Context, filter domain.SourceFilter) ([]domain.Source, error) {
	if strings.TrimSpace(filter.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	return p.sources.List(ctx, filter)
}

// SetGovernance includes or excludes a source from retrieval.
func (p *Pipeline) SetGovernance(ctx context.Context, id, ownerID string, exclude bool, category string) error {
	return p.sources.SetGovernance(ctx, id, ownerID, exclude, strings.TrimSpace(category))
}

// Delete removes a source. A job still running for it finds the source
// gone and stops at its next write.
func (p *Pipeline) Delete(ctx context.Context, id, ownerID string) error {
	if err := p.sources.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	p.log.Info("source %s deleted", id)
	return nil
}

// Active returns the queued and running jobs, oldest first.
func (p *Pipeline) Active() []driving.JobStatus {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()

	out := make([]driving.JobStatus, 0, len(p.active))
	for _, s := range p.active {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Drain blocks until no job is queued or running, or ctx is done.
func (p *Pipeline) Drain(ctx context.Context) error {
	p.activeMu.Lock()
	if len(p.active) == 0 {
		p.activeMu.Unlock()
		return nil
	}
	idle := p.idle
	p.activeMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, waits for scheduled jobs and releases the pool.
func (p *Pipeline) Close() error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.closeMu.Unlock()

	<-p.done
	p.jobs.Wait()
	p.pool.Release()
	p.cancel()
	return nil
}

// enqueue schedules a job. A full queue blocks until a slot frees or ctx is done.
func (p *Pipeline) enqueue(ctx context.Context, job rawJob) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return domain.ErrPoolClosed
	}

	jobID := p.track(job.source.ID)
	p.jobs.Add(1)
	task := func() {
		defer p.jobs.Done()
		defer p.untrack(jobID)
		p.run(jobID, job)
	}

	select {
	case p.queue <- task:
		return nil
	default:
	}

	p.log.Debug("queue full, waiting to schedule %s", job.source.ID)
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		p.untrack(jobID)
		p.jobs.Done()
		return fmt.Errorf("schedule source: %w", ctx.Err())
	}
}

func (p *Pipeline) track(sourceID string) uint64 {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	if len(p.active) == 0 {
		p.idle = make(chan struct{})
	}
	p.nextJob++
	p.active[p.nextJob] = &driving.JobStatus{
		SourceID:  sourceID,
		Stage:     driving.StageQueued,
		StartedAt: p.now().UTC(),
	}
	p.metrics.ActiveJobs.Inc()
	return p.nextJob
}

func (p *Pipeline) setStage(jobID uint64, stage string) {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	if s, ok := p.active[jobID]; ok {
		s.Stage = stage
	}
}

func (p *Pipeline) untrack(jobID uint64) {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	if _, ok := p.active[jobID]; ok {
		delete(p.active, jobID)
		p.metrics.ActiveJobs.Dec()
		if len(p.active) == 0 {
			close(p.idle)
		}
	}
}

func (p *Pipeline) blobReader(origin string) driven.BlobReader {
	if origin == "" {
		return nil
	}
	for _, r := range p.blobs {
		if r.CanRead(origin) {
			return r
		}
	}
	return nil
}

// ==================== Job ====================

func (p *Pipeline) run(jobID uint64, job rawJob) {
	source := job.source
	release := p.locks.Lock(source.ID)
	defer release()

	ctx := p.ctx
	defer func() {
		if r := recover(); r != nil {
			p.abort(ctx, &source, metrics.StageExtraction, fmt.Errorf("panic: %v", r))
		}
	}()
	p.setStage(jobID, driving.StageExtracting)

	result := p.extract(ctx, &source, job)
	if !result.OK() {
		p.fail(ctx, &source, result)
		return
	}

	text := result.Text
	if err := p.sources.UpdateContent(ctx, source.ID, source.OwnerID, text); err != nil {
		p.abort(ctx, &source, metrics.StageExtraction, fmt.Errorf("persist content: %w", err))
		return
	}
	source.Content = &text

	p.setStage(jobID, driving.StageEnriching)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := p.summarise(ctx, &source); err != nil {
			p.stageFailed(metrics.StageSummary, source.ID, err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := p.embed(ctx, &source); err != nil {
			p.stageFailed(metrics.StageEmbedding, source.ID, err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := p.extractInsights(ctx, &source); err != nil {
			p.stageFailed(metrics.StageInsights, source.ID, err)
		}
	}()
	wg.Wait()

	if err := p.sources.SetStatus(ctx, source.ID, source.OwnerID, domain.StatusCompleted); err != nil {
		p.stageFailed(metrics.StageStatus, source.ID, fmt.Errorf("mark completed: %w", err))
		return
	}
	p.metrics.SourcesProcessed.WithLabelValues(string(source.Kind), string(domain.StatusCompleted)).Inc()
	p.log.Info("source %s completed", source.ID)
}

// extract loads the raw material and dispatches it to the registry.
// Errors are folded into a failed result.
func (p *Pipeline) extract(ctx context.Context, source *domain.Source, job rawJob) domain.ExtractionResult {
	if job.reuse {
		return domain.Extracted(source.ContentText())
	}

	raw := &domain.RawSource{
		SourceID: source.ID,
		OwnerID:  source.OwnerID,
		ClientID: source.ClientID,
		Kind:     source.Kind,
		Name:     source.Name,
		Origin:   source.Origin,
		MIMEType: source.MIMEType,
		Content:  job.raw,
	}

	if len(raw.Content) == 0 && !source.Kind.IsRemote() {
		reader := p.blobReader(source.Origin)
		if reader == nil {
			return domain.ExtractionFailure("no content and origin %q is not readable", source.Origin)
		}
		data, err := reader.Read(ctx, source.Origin)
		if err != nil {
			return domain.ExtractionFailure("read origin: %v", err)
		}
		raw.Content = data
	}
	if raw.MIMEType == "" && len(raw.Content) > 0 {
		raw.MIMEType = extractors.SniffMIME("", raw.Content)
	}

	start := time.Now()
	result, err := p.extractors.Extract(ctx, raw)
	p.metrics.ExtractionDuration.WithLabelValues(string(source.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.ExtractionFailure("%v", err)
	}
	return result
}

// fail records the marker and error and drops chunks from earlier runs.
func (p *Pipeline) fail(ctx context.Context, source *domain.Source, result domain.ExtractionResult) {
	msg := result.Message()
	p.log.Warn("source %s extraction failed: %s", source.ID, msg)
	p.metrics.StageFailures.WithLabelValues(metrics.StageExtraction).Inc()

	if err := p.sources.UpdateContent(ctx, source.ID, source.OwnerID, result.Marker()); err != nil {
		p.log.Error("store marker for %s: %v", source.ID, err)
	}
	if err := p.chunks.Replace(ctx, source.ID, nil); err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.log.Error("clear chunks for %s: %v", source.ID, err)
	}
	if err := p.sources.SetError(ctx, source.ID, source.OwnerID, msg); err != nil {
		p.log.Error("mark source %s failed: %v", source.ID, err)
		return
	}
	p.metrics.SourcesProcessed.WithLabelValues(string(source.Kind), string(domain.StatusFailed)).Inc()
}

// abort ends a run on an unexpected error and marks the source failed.
// It survives pipeline shutdown so the source never stays processing.
func (p *Pipeline) abort(ctx context.Context, source *domain.Source, stage string, cause error) {
	p.stageFailed(stage, source.ID, cause)
	if errors.Is(cause, domain.ErrNotFound) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := p.sources.SetError(ctx, source.ID, source.OwnerID, cause.Error()); err != nil {
		p.log.Error("mark source %s failed: %v", source.ID, err)
		return
	}
	p.metrics.SourcesProcessed.WithLabelValues(string(source.Kind), string(domain.StatusFailed)).Inc()
}

func (p *Pipeline) stageFailed(stage, sourceID string, err error) {
	p.metrics.StageFailures.WithLabelValues(stage).Inc()
	if errors.Is(err, domain.ErrNotFound) {
		p.log.Debug("source %s gone during %s", sourceID, stage)
		return
	}
	p.log.Warn("source %s %s failed: %v", sourceID, stage, err)
}

// ==================== Enrichment ====================

// summarise generates and stores a summary. Skipped without a text model.
func (p *Pipeline) summarise(ctx context.Context, source *domain.Source) error {
	if p.textgen == nil {
		return nil
	}

	maxLen := p.settings.SummaryMaxLength
	template := extractors.LoadPrompt(p.prompts, driven.PromptSummarise, DefaultSummarisePrompt)
	prompt := fmt.Sprintf(template, maxLen, truncateRunes(source.ContentText(), maxPromptContent))

	summary, err := p.textgen.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   maxLen/3 + 32,
		Temperature: 0.3,
	})
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	summary = truncateRunes(strings.TrimSpace(summary), maxLen)
	if summary == "" {
		return fmt.Errorf("generate summary: empty reply")
	}
	return p.sources.SetSummary(ctx, source.ID, source.OwnerID, summary)
}

// embed chunks the content, embeds each chunk and replaces stored chunks.
// A chunk whose embedding fails is stored without a vector.
func (p *Pipeline) embed(ctx context.Context, source *domain.Source) error {
	chunks, err := p.chunker.Process(ctx, source)
	if err != nil {
		if clearErr := p.chunks.Replace(ctx, source.ID, nil); clearErr != nil {
			err = errors.Join(err, fmt.Errorf("clear stale chunks: %w", clearErr))
		}
		return fmt.Errorf("chunk content: %w", err)
	}

	if p.embedder != nil {
		var failed int
		for i := range chunks {
			vec, err := p.embedder.Embed(ctx, chunks[i].Text)
			if err != nil || len(vec) == 0 {
				failed++
				chunks[i].Embedding = nil
				p.metrics.ChunksEmbedded.WithLabelValues("null").Inc()
				p.log.Debug("source %s chunk %d not embedded: %v", source.ID, i, err)
				continue
			}
			chunks[i].Embedding = vec
			p.metrics.ChunksEmbedded.WithLabelValues("ok").Inc()
		}
		if failed > 0 {
			p.log.Warn("source %s: %d of %d chunks stored without embeddings", source.ID, failed, len(chunks))
		}
	} else {
		p.metrics.ChunksEmbedded.WithLabelValues("null").Add(float64(len(chunks)))
	}

	if err := p.chunks.Replace(ctx, source.ID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}

// extractInsights asks the text model for key statements. Skipped without a text model.
func (p *Pipeline) extractInsights(ctx context.Context, source *domain.Source) error {
	if p.textgen == nil || p.settings.MaxInsights <= 0 {
		return nil
	}

	template := extractors.LoadPrompt(p.prompts, driven.PromptInsights, DefaultInsightsPrompt)
	prompt := fmt.Sprintf(template, p.settings.MaxInsights, truncateRunes(source.ContentText(), maxPromptContent))

	reply, err := p.textgen.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   64 * p.settings.MaxInsights,
		Temperature: 0.2,
	})
	if err != nil {
		return fmt.Errorf("generate insights: %w", err)
	}

	now := p.now().UTC()
	lines := parseInsights(reply, p.settings.MaxInsights)
	insights := make([]domain.Insight, len(lines))
	for i, line := range lines {
		insights[i] = domain.Insight{
			ID:        uuid.New().String(),
			SourceID:  source.ID,
			OwnerID:   source.OwnerID,
			ClientID:  source.ClientID,
			Index:     i,
			Text:      line,
			CreatedAt: now,
		}
	}
	if err := p.insights.Replace(ctx, source.ID, insights); err != nil {
		return fmt.Errorf("store insights: %w", err)
	}
	return nil
}
