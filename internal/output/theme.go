package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme maps semantic types to lipgloss styles.
type Theme struct {
	Name     string
	Info     lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Progress lipgloss.Style
	Muted    lipgloss.Style
}

// DefaultTheme returns the colored theme used on capable terminals.
func DefaultTheme() *Theme {
	return &Theme{
		Name:     "default",
		Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Progress: lipgloss.NewStyle().Foreground(lipgloss.Color("99")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// ThemeStyleProvider serves a Theme as a StyleProvider. It reports itself
// unavailable when the terminal has no color support.
type ThemeStyleProvider struct {
	theme   *Theme
	profile termenv.Profile
}

// NewThemeStyleProvider creates a provider for theme, detecting the color
// profile of the current environment.
func NewThemeStyleProvider(theme *Theme) *ThemeStyleProvider {
	return NewThemeStyleProviderWithProfile(theme, lipgloss.ColorProfile())
}

// NewThemeStyleProviderWithProfile creates a provider with an explicit
// color profile.
func NewThemeStyleProviderWithProfile(theme *Theme, profile termenv.Profile) *ThemeStyleProvider {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &ThemeStyleProvider{theme: theme, profile: profile}
}

// GetStyle implements StyleProvider.
func (t *ThemeStyleProvider) GetStyle(semantic string) TextStyle {
	switch SemanticType(semantic) {
	case SemanticInfo:
		return t.theme.Info
	case SemanticSuccess:
		return t.theme.Success
	case SemanticWarning:
		return t.theme.Warning
	case SemanticError:
		return t.theme.Error
	case SemanticProgress:
		return t.theme.Progress
	case SemanticMuted:
		return t.theme.Muted
	default:
		return lipgloss.NewStyle()
	}
}

// IsAvailable implements StyleProvider.
func (t *ThemeStyleProvider) IsAvailable() bool {
	return t.profile != termenv.Ascii
}
