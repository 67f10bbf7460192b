package output

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders markdown documents, such as the final run
// summary, for the terminal.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer wrapping at width columns. With
// styled false the document is rendered with glamour's plain ASCII style.
func NewMarkdownRenderer(width int, styled bool) *MarkdownRenderer {
	if width <= 0 {
		width = 80
	}

	var (
		r   *glamour.TermRenderer
		err error
	)
	if styled {
		r, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
			glamour.WithEnvironmentConfig(),
		)
	}
	if r == nil || err != nil {
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle("ascii"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			r = nil
		}
	}
	return &MarkdownRenderer{renderer: r}
}

// Render returns the rendered document, or the markdown source if rendering
// is unavailable or fails.
func (m *MarkdownRenderer) Render(markdown string) string {
	if m.renderer != nil {
		rendered, err := m.renderer.Render(markdown)
		if err == nil && strings.TrimSpace(rendered) != "" {
			return rendered
		}
	}
	return markdown
}
