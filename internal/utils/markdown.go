package utils

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	// comments get links and basic formatting, no images
	commentPolicy = bluemonday.UGCPolicy().
			AddTargetBlankToFullyQualifiedLinks(true).
			RequireNoReferrerOnLinks(true)
	strictPolicy = bluemonday.StrictPolicy()
)

// RenderMarkdown converts comment markdown into sanitized HTML.
func RenderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return strictPolicy.Sanitize(source)
	}
	return commentPolicy.SanitizeReader(&buf).String()
}

// StripTags removes every HTML tag from s. Comment bodies are stored this way
// and rendered as markdown on the way out.
func StripTags(s string) string {
	return strictPolicy.Sanitize(s)
}
