package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractionResult_OK(t *testing.T) {
	assert.True(t, Extracted("hello").OK())
	assert.False(t, Extracted("   ").OK())
	assert.False(t, Extracted("[Unsupported file type]").OK())
	assert.False(t, Unsupported("binary").OK())
	assert.False(t, ExtractionFailure("timeout").OK())
}

func TestExtractionResult_Marker(t *testing.T) {
	assert.Equal(t, "[Unsupported: legacy spreadsheet]", Unsupported("legacy %s", "spreadsheet").Marker())
	assert.Equal(t, "[Error: fetch failed]", ExtractionFailure("fetch failed").Marker())
	assert.Equal(t, "body", Extracted("body").Marker())
	assert.Equal(t, "[Error: extraction produced no text]", Extracted("").Marker())
}

func TestExtractionResult_MarkersAreSniffed(t *testing.T) {
	assert.True(t, IsMarker(Unsupported("x").Marker()))
	assert.True(t, IsMarker(ExtractionFailure("x").Marker()))
}

func TestExtractionResult_Message(t *testing.T) {
	assert.Equal(t, "unsupported content: zip", Unsupported("zip").Message())
	assert.Equal(t, "extraction failed: eof", ExtractionFailure("eof").Message())
	assert.Equal(t, "extraction returned marker content: [Unsupported file type]",
		Extracted("[Unsupported file type]\nmore").Message())
	assert.Equal(t, "extraction produced no text", Extracted("").Message())
	assert.Empty(t, Extracted("fine").Message())
}

func TestIsMarker(t *testing.T) {
	tests := []struct {
		text   string
		marker bool
	}{
		{"[Error extracting PDF]", true},
		{"  [Unsupported file type]", true},
		{"[Extraction failed: timeout]", true},
		{"[No text content]", true},
		{"[Note] this is fine", false},
		{"Regular content", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.marker, IsMarker(tt.text))
		})
	}
}
