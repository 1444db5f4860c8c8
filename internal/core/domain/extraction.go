package domain

import (
	"fmt"
	"strings"
)

// ExtractionOutcome tags an ExtractionResult.
type ExtractionOutcome string

// Extraction outcomes.
const (
	ExtractionOK          ExtractionOutcome = "ok"
	ExtractionUnsupported ExtractionOutcome = "unsupported"
	ExtractionFailed      ExtractionOutcome = "failed"
)

// ExtractionResult is the outcome of turning raw material into text.
// Only an OK result carries text that may be chunked, embedded or summarised.
type ExtractionResult struct {
	Outcome ExtractionOutcome
	Text    string
	Reason  string
}

// Extracted returns a successful result.
func Extracted(text string) ExtractionResult {
	return ExtractionResult{Outcome: ExtractionOK, Text: text}
}

// Unsupported returns a result for material that cannot be read.
func Unsupported(format string, args ...any) ExtractionResult {
	return ExtractionResult{Outcome: ExtractionUnsupported, Reason: fmt.Sprintf(format, args...)}
}

// ExtractionFailure returns a result for material that could not be read
// because of an error.
func ExtractionFailure(format string, args ...any) ExtractionResult {
	return ExtractionResult{Outcome: ExtractionFailed, Reason: fmt.Sprintf(format, args...)}
}

// OK reports whether the result carries usable text.
func (r ExtractionResult) OK() bool {
	return r.Outcome == ExtractionOK && strings.TrimSpace(r.Text) != "" && !IsMarker(r.Text)
}

// Marker renders a failed result in the bracketed form stored in the
// content column, e.g. "[Unsupported: legacy spreadsheet]".
func (r ExtractionResult) Marker() string {
	switch r.Outcome {
	case ExtractionOK:
		if strings.TrimSpace(r.Text) == "" {
			return "[Error: extraction produced no text]"
		}
		return r.Text
	case ExtractionUnsupported:
		return "[Unsupported: " + r.Reason + "]"
	default:
		return "[Error: " + r.Reason + "]"
	}
}

// Message returns a human-readable description for the source's lastError.
func (r ExtractionResult) Message() string {
	switch {
	case r.Outcome == ExtractionUnsupported:
		return "unsupported content: " + r.Reason
	case r.Outcome == ExtractionFailed:
		return "extraction failed: " + r.Reason
	case IsMarker(r.Text):
		return "extraction returned marker content: " + firstLine(r.Text)
	case strings.TrimSpace(r.Text) == "":
		return "extraction produced no text"
	default:
		return ""
	}
}

// markerPrefixes are the bracketed prefixes written by degraded extractions.
var markerPrefixes = []string{
	"[Error",
	"[Unsupported",
	"[Extraction failed",
	"[No text",
}

// IsMarker reports whether text is a bracketed degradation marker rather
// than extracted content.
func IsMarker(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, p := range markerPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
