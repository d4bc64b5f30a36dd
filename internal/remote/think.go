package remote

import (
	"regexp"
	"strings"
)

// Reasoning models wrap their scratch work in these markers.
const (
	ThinkStart = "<think>"
	ThinkEnd   = "</think>"
)

var thinkBlock = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(ThinkStart) + `.*?` + regexp.QuoteMeta(ThinkEnd))

// StripThinking removes every paired reasoning block and trims the result.
// An unpaired start marker is left alone.
func StripThinking(text string) string {
	if text == "" {
		return text
	}
	return strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
}
