package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Printer writes semantic output lines in plain, styled or JSON form.
// It is safe for concurrent use.
type Printer struct {
	styleProvider StyleProvider
	writer        io.Writer
	mode          Mode
	forcePlain    bool
	silent        bool

	mu sync.Mutex
}

// NewPrinter creates a new Printer with the given options.
// By default, it writes to os.Stdout with automatic mode detection.
func NewPrinter(options ...Option) *Printer {
	p := &Printer{
		writer: os.Stdout,
		mode:   ModeAuto,
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Info outputs informational text.
func (p *Printer) Info(text string) {
	p.output(SemanticInfo, text, true)
}

// Success outputs success text.
func (p *Printer) Success(text string) {
	p.output(SemanticSuccess, text, true)
}

// Warning outputs warning text.
func (p *Printer) Warning(text string) {
	p.output(SemanticWarning, text, true)
}

// Error outputs error text.
func (p *Printer) Error(text string) {
	p.output(SemanticError, text, true)
}

// Progress outputs a progress line.
func (p *Printer) Progress(text string) {
	p.output(SemanticProgress, text, true)
}

// Muted outputs secondary text on its own line.
func (p *Printer) Muted(text string) {
	p.output(SemanticMuted, text, true)
}

func (p *Printer) output(semantic SemanticType, text string, addNewline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.silent {
		return
	}

	var finalText string
	switch p.mode {
	case ModeJSON:
		finalText = renderJSON(semantic, text)
	default:
		finalText = p.renderText(semantic, text, addNewline)
	}

	_, _ = fmt.Fprint(p.writer, finalText)
}

func (p *Printer) stylable() bool {
	return !p.forcePlain && p.styleProvider != nil && p.styleProvider.IsAvailable()
}

// renderText styles when possible and falls back to plain prefixes.
func (p *Printer) renderText(semantic SemanticType, text string, addNewline bool) string {
	var result string
	if p.stylable() {
		result = p.styleProvider.GetStyle(string(semantic)).Render(text)
	} else {
		result = plainStyles.GetStyle(string(semantic)).Render(text)
	}
	return withNewline(result, addNewline)
}

func renderJSON(semantic SemanticType, text string) string {
	jsonBytes, err := json.Marshal(map[string]interface{}{
		"type":    semantic,
		"message": strings.TrimRight(text, "\n"),
	})
	if err != nil {
		return text + "\n"
	}
	return string(jsonBytes) + "\n"
}

func withNewline(s string, addNewline bool) string {
	if addNewline && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}
