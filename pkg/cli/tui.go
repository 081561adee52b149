package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
	Warn    lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#ffb000"),
	Error:   lipgloss.Color("#ff5f5f"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Border lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Foreground(t.Dim),
		Value:  lipgloss.NewStyle(),
		Border: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
	}
}

// Field is one labeled line of a [Summary].
type Field struct {
	Label string
	Value string
}

// Summary renders a titled, bordered block of aligned label/value lines.
type Summary struct {
	Styles Styles
	Title  string
	Fields []Field
}

// Render renders the summary to a string.
func (s Summary) Render() string {
	width := 0
	for _, f := range s.Fields {
		width = max(width, lipgloss.Width(f.Label))
	}

	lines := make([]string, 0, len(s.Fields)+1)
	if s.Title != "" {
		lines = append(lines, s.Styles.Title.Render(s.Title))
	}
	for _, f := range s.Fields {
		pad := strings.Repeat(" ", width-lipgloss.Width(f.Label))
		lines = append(lines, s.Styles.Label.Render(f.Label+pad)+"  "+s.Styles.Value.Render(f.Value))
	}
	return s.Styles.Border.Render(strings.Join(lines, "\n"))
}
