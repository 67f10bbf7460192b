// Package ui draws the evaluation state and turns keyboard and terminal
// events into UI actions for the orchestrator.
package ui

import (
	"io"
	"strings"
	"sync"

	"preval/internal/state"
	"preval/pkg/evaltypes"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	minHeight     = 5
	ellipsis      = "…"

	cursorHome     = "\x1b[H"
	clearScreen    = "\x1b[2J"
	clearLineRight = "\x1b[K"
	clearBelow     = "\x1b[J"
)

type frameStyles struct {
	header     lipgloss.Style
	title      lipgloss.Style
	subtitle   lipgloss.Style
	section    lipgloss.Style
	bar        lipgloss.Style
	current    lipgloss.Style
	completed  lipgloss.Style
	failed     lipgloss.Style
	processing lipgloss.Style
	muted      lipgloss.Style
	paused     lipgloss.Style
}

func newFrameStyles(r *lipgloss.Renderer) frameStyles {
	return frameStyles{
		header: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("51")).
			Align(lipgloss.Center),
		title:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		subtitle:   r.NewStyle().Foreground(lipgloss.Color("250")),
		section:    r.NewStyle().Bold(true),
		bar:        r.NewStyle().Foreground(lipgloss.Color("51")),
		current:    r.NewStyle().Foreground(lipgloss.Color("220")),
		completed:  r.NewStyle().Foreground(lipgloss.Color("42")),
		failed:     r.NewStyle().Foreground(lipgloss.Color("196")),
		processing: r.NewStyle().Foreground(lipgloss.Color("220")),
		muted:      r.NewStyle().Foreground(lipgloss.Color("244")),
		paused:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	}
}

// TerminalOption configures a TerminalRenderer.
type TerminalOption func(*TerminalRenderer)

// WithColorProfile overrides the detected color profile.
func WithColorProfile(p termenv.Profile) TerminalOption {
	return func(t *TerminalRenderer) { t.profile = &p }
}

// TerminalRenderer draws a full-screen frame of the evaluation state. The
// terminal is expected to be in raw mode, so lines end with "\r\n".
type TerminalRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	width   int
	height  int
	profile *termenv.Profile
	styles  frameStyles

	lastFrame   string
	invalidated bool
}

// NewTerminalRenderer creates a renderer for a terminal of the given size.
// Non-positive sizes fall back to 80x24.
func NewTerminalRenderer(out io.Writer, width, height int, opts ...TerminalOption) *TerminalRenderer {
	t := &TerminalRenderer{out: out, invalidated: true}
	for _, opt := range opts {
		opt(t)
	}
	t.setSize(width, height)

	r := lipgloss.NewRenderer(out)
	if t.profile != nil {
		r.SetColorProfile(*t.profile)
	}
	t.styles = newFrameStyles(r)
	return t
}

func (t *TerminalRenderer) setSize(width, height int) {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	t.width, t.height = width, height
}

// Resize records new terminal geometry and forces a full redraw.
func (t *TerminalRenderer) Resize(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setSize(width, height)
	t.invalidated = true
}

// Invalidate forces the next Render to clear and redraw the screen.
func (t *TerminalRenderer) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidated = true
}

// Render draws view. Identical consecutive frames are written once.
func (t *TerminalRenderer) Render(view state.View) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame := strings.Join(t.frameLines(view), clearLineRight+"\r\n")
	if frame == t.lastFrame && !t.invalidated {
		return nil
	}

	var b strings.Builder
	if t.invalidated {
		b.WriteString(clearScreen)
	}
	b.WriteString(cursorHome)
	b.WriteString(frame)
	b.WriteString(clearLineRight)
	b.WriteString(clearBelow)

	if _, err := io.WriteString(t.out, b.String()); err != nil {
		return err
	}
	t.lastFrame = frame
	t.invalidated = false
	return nil
}

// frameLines lays out the frame: header box, body, footer on the last row.
func (t *TerminalRenderer) frameLines(view state.View) []string {
	if t.height < minHeight {
		return []string{t.fit(t.styles.failed.Render("Terminal too small!"))}
	}

	header := t.headerLines(view)
	footer := t.footerLine(view)

	if len(header) > t.height-1 {
		header = header[:t.height-1]
	}

	bodyRows := max(t.height-len(header)-1, 0)
	body := t.bodyLines(view)
	if len(body) > bodyRows {
		body = body[:bodyRows]
	}

	lines := make([]string, 0, t.height)
	lines = append(lines, header...)
	for _, line := range body {
		lines = append(lines, t.fit(line))
	}
	for len(lines) < t.height-1 {
		lines = append(lines, "")
	}
	return append(lines, footer)
}

func (t *TerminalRenderer) headerLines(view state.View) []string {
	inner := max(t.width-2, 1)
	content := t.styles.title.Render(oneLine(HeaderTitle(view), inner))
	if sub := HeaderSubtitle(view); sub != "" {
		content += "\n" + t.styles.subtitle.Render(oneLine(sub, inner))
	}
	box := t.styles.header.Width(inner).Render(content)

	lines := strings.Split(box, "\n")
	for i := range lines {
		lines[i] = t.fit(lines[i])
	}
	return lines
}

func (t *TerminalRenderer) bodyLines(view state.View) []string {
	progress := view.Progress()
	lines := []string{
		t.styles.section.Render(ProgressLine(view)),
		t.styles.bar.Render(ProgressBar(progress.Percentage, max(t.width-2, 1))),
		"",
		t.styles.current.Render(CurrentLine(view)),
		"",
		t.styles.section.Render("Recent Samples:"),
	}

	recent := view.RecentSamples()
	if len(recent) == 0 {
		lines = append(lines, t.styles.muted.Render("  No samples completed yet..."))
	}
	for i := len(recent) - 1; i >= 0; i-- {
		lines = append(lines, t.sampleStyle(recent[i].Status).Render("  "+SampleLine(recent[i])))
	}

	lines = append(lines, "", t.summaryStyle(view).Render(SummaryLine(view)))
	lines = append(lines, t.statusStyle(view.Status()).Render(StatusLine(view.Status())))
	return lines
}

func (t *TerminalRenderer) footerLine(view state.View) string {
	footer := t.styles.muted.Render(FooterLine(view.IsPaused()))
	if view.IsPaused() {
		footer = t.styles.paused.Render("PAUSED") + "  " + footer
	}
	return t.fit(footer)
}

func (t *TerminalRenderer) sampleStyle(status evaltypes.SampleStatus) lipgloss.Style {
	switch status {
	case evaltypes.SampleCompleted:
		return t.styles.completed
	case evaltypes.SampleFailed:
		return t.styles.failed
	default:
		return t.styles.processing
	}
}

func (t *TerminalRenderer) summaryStyle(view state.View) lipgloss.Style {
	if view.SummaryStats().Failed > 0 {
		return t.styles.current
	}
	return t.styles.completed
}

func (t *TerminalRenderer) statusStyle(status evaltypes.EvaluationStatus) lipgloss.Style {
	switch status.Phase {
	case evaltypes.PhaseFailed:
		return t.styles.failed
	case evaltypes.PhaseCompleted:
		return t.styles.completed
	default:
		return t.styles.current
	}
}

// fit truncates line to the terminal width, keeping escape sequences intact.
func (t *TerminalRenderer) fit(line string) string {
	if ansi.StringWidth(line) <= t.width {
		return line
	}
	return ansi.Truncate(line, t.width, ellipsis)
}

// oneLine flattens s and truncates it to width cells so the header box
// never wraps.
func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, ellipsis)
}
