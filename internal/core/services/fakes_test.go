package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/dossier/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/extractors"
	"github.com/custodia-labs/dossier/internal/postprocessors"
)

const testOwner = "owner-1"

// vocabEmbedder maps text to term counts over a fixed vocabulary. The
// first dimension is always 1 so every text has a non-zero vector.
type vocabEmbedder struct {
	vocab  []string
	failOn string

	mu    sync.Mutex
	calls int
}

func (e *vocabEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding service timeout")
	}

	lower := strings.ToLower(text)
	vec := make([]float32, len(e.vocab)+1)
	vec[0] = 1
	for i, word := range e.vocab {
		vec[i+1] = float32(strings.Count(lower, word))
	}
	return vec, nil
}

func (e *vocabEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *vocabEmbedder) Dimensions() int            { return len(e.vocab) + 1 }
func (e *vocabEmbedder) ModelName() string          { return "vocab" }
func (e *vocabEmbedder) Ping(_ context.Context) error { return nil }
func (e *vocabEmbedder) Close() error               { return nil }

func (e *vocabEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// scriptedTextGen answers summary and insight prompts with fixed replies.
type scriptedTextGen struct {
	summary  string
	insights string
	err      error
}

func (g *scriptedTextGen) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if strings.HasPrefix(prompt, "List at most") {
		return g.insights, nil
	}
	return g.summary, nil
}

func (g *scriptedTextGen) ModelName() string          { return "scripted" }
func (g *scriptedTextGen) Ping(_ context.Context) error { return nil }
func (g *scriptedTextGen) Close() error               { return nil }

// echoExtractor returns the raw bytes as text, or the scripted result.
type echoExtractor struct {
	kinds  []domain.SourceKind
	result *domain.ExtractionResult
	err    error
	panic  string
	delay  time.Duration
	gate   chan struct{}

	mu      sync.Mutex
	running int
	peak    int
}

func (e *echoExtractor) Name() string               { return "echo" }
func (e *echoExtractor) Kinds() []domain.SourceKind { return e.kinds }
func (e *echoExtractor) MIMETypes() []string        { return nil }
func (e *echoExtractor) Priority() int              { return 1 }

func (e *echoExtractor) Extract(_ context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	e.mu.Lock()
	e.running++
	if e.running > e.peak {
		e.peak = e.running
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running--
		e.mu.Unlock()
	}()

	if e.gate != nil {
		<-e.gate
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.panic != "" {
		panic(e.panic)
	}
	if e.err != nil {
		return domain.ExtractionResult{}, e.err
	}
	if e.result != nil {
		return *e.result, nil
	}
	return domain.Extracted(string(raw.Content)), nil
}

func (e *echoExtractor) peakConcurrency() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}

// contentFailStore refuses content writes.
type contentFailStore struct {
	driven.SourceStore
	err error
}

func (s *contentFailStore) UpdateContent(_ context.Context, _, _, _ string) error {
	return s.err
}

// switchChunker fails every Process call once failing is set.
type switchChunker struct {
	next    driven.ChunkPipeline
	failing atomic.Bool
}

func (c *switchChunker) Process(ctx context.Context, source *domain.Source) ([]domain.Chunk, error) {
	if c.failing.Load() {
		return nil, errors.New("tokenizer crashed")
	}
	return c.next.Process(ctx, source)
}

// mapBlobs serves origins from a map.
type mapBlobs map[string][]byte

func (m mapBlobs) CanRead(origin string) bool {
	_, ok := m[origin]
	return ok
}

func (m mapBlobs) Read(_ context.Context, origin string) ([]byte, error) {
	data, ok := m[origin]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

type harness struct {
	store     *memory.Store
	extractor *echoExtractor
	pipeline  *Pipeline
}

func newHarness(extractor *echoExtractor, opts ...PipelineOption) (*harness, error) {
	if extractor == nil {
		extractor = &echoExtractor{kinds: []domain.SourceKind{domain.KindNote, domain.KindDocument}}
	}
	store := memory.NewStore()
	p, err := NewPipeline(
		store.SourceStore(),
		store.ChunkStore(),
		store.InsightStore(),
		extractors.NewRegistry(extractor),
		postprocessors.NewDefaultPipeline(1000, 200),
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return &harness{store: store, extractor: extractor, pipeline: p}, nil
}

func (h *harness) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.pipeline.Drain(ctx)
}

// textWithPhrase builds n characters of filler with phrase starting at offset.
func textWithPhrase(n, offset int, phrase string) string {
	var b strings.Builder
	filler := "lorem ipsum dolor sit amet "
	for b.Len() < n {
		b.WriteString(filler)
	}
	runes := []rune(b.String())[:n]
	if phrase != "" {
		copy(runes[offset:], []rune(phrase))
	}
	return string(runes)
}
