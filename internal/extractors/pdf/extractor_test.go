package pdf

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

type fakeVision struct {
	description string
	err         error
	calls       int
}

func (f *fakeVision) Describe(context.Context, driven.VisionInput) (string, error) {
	f.calls++
	return f.description, f.err
}

func (f *fakeVision) SupportsMIMEType(m string) bool { return m == "application/pdf" }

func (f *fakeVision) ModelName() string { return "fake" }

func invalidPDF() *domain.RawSource {
	return &domain.RawSource{Kind: domain.KindDocument, Name: "deck.pdf", MIMEType: "application/pdf", Content: []byte("not a pdf")}
}

func TestExtractor_Metadata(t *testing.T) {
	e := New(nil, nil)
	assert.Equal(t, "pdf", e.Name())
	assert.Equal(t, []string{"application/pdf"}, e.MIMETypes())
	assert.Equal(t, []domain.SourceKind{domain.KindDocument}, e.Kinds())
}

func TestExtractor_UnreadableWithoutVisionFails(t *testing.T) {
	res, err := New(nil, nil).Extract(context.Background(), invalidPDF())
	require.NoError(t, err)

	assert.Equal(t, domain.ExtractionFailed, res.Outcome)
	assert.Contains(t, res.Reason, "read PDF")
}

func TestExtractor_VisionOnly(t *testing.T) {
	vision := &fakeVision{description: "A funnel diagram with four stages."}

	res, err := New(vision, nil).Extract(context.Background(), invalidPDF())
	require.NoError(t, err)

	require.True(t, res.OK())
	assert.Equal(t, VisualHeading+"\n\nA funnel diagram with four stages.", res.Text)
	assert.Equal(t, 1, vision.calls)
}

func TestExtractor_VisionNoneIsIgnored(t *testing.T) {
	res, err := New(&fakeVision{description: "none"}, nil).Extract(context.Background(), invalidPDF())
	require.NoError(t, err)
	assert.Equal(t, domain.ExtractionFailed, res.Outcome)
}

func TestExtractor_VisionFailureDegrades(t *testing.T) {
	res, err := New(&fakeVision{err: errors.New("timeout")}, nil).Extract(context.Background(), invalidPDF())
	require.NoError(t, err)

	// The text pass has nothing either, so the outcome reflects it, not the vision error.
	assert.Equal(t, domain.ExtractionFailed, res.Outcome)
	assert.NotContains(t, res.Reason, "timeout")
}

func TestExtractText_Invalid(t *testing.T) {
	_, _, err := ExtractText([]byte("%PDF-garbage"))
	assert.Error(t, err)
}

func TestBytesReaderAt(t *testing.T) {
	r := newBytesReaderAt([]byte("hello"))

	buf := make([]byte, 3)
	n, err := r.ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "ell", string(buf))

	n, err = r.ReadAt(buf, 3)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = r.ReadAt(buf, 10)
	assert.ErrorIs(t, err, io.EOF)

	_, err = r.ReadAt(buf, -1)
	assert.Error(t, err)
}
