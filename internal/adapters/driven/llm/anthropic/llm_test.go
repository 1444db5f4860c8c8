package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	p, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.ModelName())
}

func TestProvider_Generate(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		assert.Equal(t, "be brief", req.System)
		assert.Equal(t, []string{"END"}, req.StopSeqs)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "summarise this", req.Messages[0].Content[0].Text)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":" part one"},{"type":"text","text":" two "}]}`))
	})

	out, err := p.Generate(context.Background(), "summarise this", driven.GenerateOptions{
		System:    "be brief",
		StopWords: []string{"END"},
	})
	require.NoError(t, err)
	assert.Equal(t, "part one two", out)
}

func TestProvider_Describe(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G'}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		blocks := req.Messages[0].Content
		require.Len(t, blocks, 2)
		assert.Equal(t, "document", blocks[0].Type)
		require.NotNil(t, blocks[0].Source)
		assert.Equal(t, "application/pdf", blocks[0].Source.MediaType)
		assert.Equal(t, base64.StdEncoding.EncodeToString(data), blocks[0].Source.Data)
		assert.Equal(t, "describe", blocks[1].Text)
		assert.Equal(t, 300, req.MaxTokens)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"A bar chart."}]}`))
	})

	out, err := p.Describe(context.Background(), driven.VisionInput{
		Data: data, MIMEType: "application/pdf", Prompt: "describe", MaxTokens: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, "A bar chart.", out)
}

func TestProvider_DescribeUnsupported(t *testing.T) {
	p, err := New(Config{APIKey: "k"})
	require.NoError(t, err)

	assert.True(t, p.SupportsMIMEType("image/webp"))
	assert.True(t, p.SupportsMIMEType("application/pdf"))
	assert.False(t, p.SupportsMIMEType("image/tiff"))

	_, err = p.Describe(context.Background(), driven.VisionInput{MIMEType: "image/tiff"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestProvider_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"too long"}}`))
		})
		_, err := p.Generate(context.Background(), "x", driven.GenerateOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too long")
	})

	t.Run("rate limited", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := p.Generate(context.Background(), "x", driven.GenerateOptions{})
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("empty content", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"content":[]}`))
		})
		_, err := p.Generate(context.Background(), "x", driven.GenerateOptions{})
		assert.Error(t, err)
	})
}

func TestProvider_Ping(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid x-api-key"))
	})
	err := p.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
