package services

import (
	"regexp"
	"strings"
)

// DefaultSummarisePrompt takes the maximum length and the content.
const DefaultSummarisePrompt = `Summarise the following content in %d characters or less.
Be concise and capture the key points, names and decisions.

Content:
%s

Summary:`

// DefaultInsightsPrompt takes the maximum number of insights and the content.
const DefaultInsightsPrompt = `List at most %d key facts, decisions, risks or commitments stated in the content below.
Write one per line as a short standalone sentence. Do not number them or add commentary.
If there are none, reply with exactly: NONE

Content:
%s

Facts:`

// maxPromptContent bounds the content sent to the text model, in characters.
const maxPromptContent = 24000

var listPrefix = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// parseInsights splits a model reply into at most limit statements,
// dropping list markers and blank lines.
func parseInsights(reply string, limit int) []string {
	reply = strings.TrimSpace(reply)
	if reply == "" || strings.EqualFold(reply, "NONE") {
		return nil
	}

	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		if line == "" || strings.EqualFold(line, "NONE") {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
