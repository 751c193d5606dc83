// Package ui renders human-facing terminal output: the lock wait spinner and tables.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	colorAccent  = "#5F5FD7"
	colorSuccess = "#2ECC71"
	colorWarning = "#F1C40F"
	colorError   = "#FF5F5F"
	colorMuted   = "#808080"
)

// Styles groups the lipgloss styles used across commands.
type Styles struct {
	Spinner lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Header  lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns colored styles, or plain ones when color is off.
func DefaultStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{Spinner: plain, Success: plain, Warning: plain, Error: plain, Muted: plain, Header: plain, Border: plain}
	}
	return Styles{
		Spinner: lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorError)),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)),
		Header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Border:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// UseColor decides coloring for f from a mode of "auto", "always" or "never".
// NO_COLOR disables color in auto mode.
func UseColor(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return os.Getenv("NO_COLOR") == "" && IsTerminal(f)
	}
}

// Title capitalizes each word of s, e.g. "cache writer" becomes "Cache Writer".
func Title(s string) string {
	// A Caser keeps state and cannot be shared between goroutines.
	return cases.Title(language.English).String(s)
}
