// Package output provides the console output used outside the full-screen
// view: plain progress lines, the final run summary and CLI messages.
package output

// StyleProvider supplies TextStyles per semantic type. The printer falls
// back to plain prefixes when no provider is available.
type StyleProvider interface {
	// GetStyle returns a TextStyle for the given semantic type.
	GetStyle(semantic string) TextStyle

	// IsAvailable returns true if the provider can style text right now.
	IsAvailable() bool
}

// TextStyle renders text with styling. lipgloss.Style satisfies it.
type TextStyle interface {
	Render(text ...string) string
}

// Mode defines different output modes the printer can operate in.
type Mode int

const (
	// ModeAuto styles output when a provider is available
	ModeAuto Mode = iota

	// ModePlain forces plain text output
	ModePlain

	// ModeJSON outputs one JSON object per line for machine consumption
	ModeJSON
)

// SemanticType defines the semantic meaning of output for consistent styling.
type SemanticType string

const (
	// SemanticInfo represents informational text.
	SemanticInfo SemanticType = "info"
	// SemanticSuccess represents success or completion text.
	SemanticSuccess SemanticType = "success"
	// SemanticWarning represents warning text.
	SemanticWarning SemanticType = "warning"
	// SemanticError represents error text.
	SemanticError SemanticType = "error"
	// SemanticProgress represents progress updates.
	SemanticProgress SemanticType = "progress"
	// SemanticMuted represents secondary text.
	SemanticMuted SemanticType = "muted"
)
