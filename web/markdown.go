package web

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ashureev/unichat/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// md escapes raw HTML in model output.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderMarkdown converts markdown to HTML safe for embedding in the page.
func RenderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	//nolint:gosec // goldmark escapes raw HTML unless WithUnsafe is set.
	return template.HTML(buf.String()), nil
}

// EntryMarkdown formats an entry as "**Speaker:** text".
func EntryMarkdown(e domain.ConversationEntry) string {
	return fmt.Sprintf("**%s:** %s", e.Speaker.Label(), e.Text)
}
