// Package ui renders terminal output for the jellylink command-line tools.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Name    string
	Accent  lipgloss.Style
	Dim     lipgloss.Style
	Title   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
}

// themeRegistry maps theme names to constructors.
var themeRegistry = map[string]func() Theme{
	"default": Default,
	"mono":    Monochrome,
	"nocolor": NoColor,
}

// ThemeNames returns the list of available theme names.
func ThemeNames() []string {
	return []string{"default", "mono", "nocolor"}
}

// GetTheme returns a theme by name, falling back to Default. noColor wins
// over name.
func GetTheme(name string, noColor bool) Theme {
	if noColor {
		return NoColor()
	}
	if fn, ok := themeRegistry[name]; ok {
		return fn()
	}
	return Default()
}

// ValidTheme reports whether name is a registered theme.
func ValidTheme(name string) bool {
	_, ok := themeRegistry[name]
	return ok
}

func Default() Theme {
	return Theme{
		Name:    "default",
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("#AA5CC3")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6F93")),
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00A4DC")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F56")).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#5CFF5C")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD166")).Bold(true),
	}
}

// Monochrome is a grayscale theme.
func Monochrome() Theme {
	return Theme{
		Name:    "mono",
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true).Underline(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Bold(true),
	}
}

// NoColor is used when NO_COLOR is set. Only bold and underline.
func NoColor() Theme {
	reset := lipgloss.NewStyle()
	return Theme{
		Name:    "nocolor",
		Accent:  reset.Bold(true),
		Dim:     reset,
		Title:   reset.Bold(true),
		Error:   reset.Bold(true).Underline(true),
		Success: reset.Bold(true),
		Warning: reset.Bold(true),
	}
}

// Status is the outcome of one doctor check.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarn:
		return "WARN"
	default:
		return "FAIL"
	}
}

// Check formats a single "label: STATUS detail" line.
func (t Theme) Check(label string, s Status, detail string) string {
	var tag lipgloss.Style
	switch s {
	case StatusOK:
		tag = t.Success
	case StatusWarn:
		tag = t.Warning
	default:
		tag = t.Error
	}
	line := fmt.Sprintf("%s: %s", t.Accent.Render(label), tag.Render(s.String()))
	if detail = strings.TrimSpace(detail); detail != "" {
		line += " " + t.Dim.Render(detail)
	}
	return line
}
