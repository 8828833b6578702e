package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorPrimary   = lipgloss.Color("39")  // Blue
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorText      = lipgloss.Color("252") // White/Gray
	ColorAccent    = lipgloss.Color("205") // Pink for automation picks

	// Base Styles
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)
	StyleAccent  = lipgloss.NewStyle().Foreground(ColorAccent)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	StyleSectionTitle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)

	// Tag shown next to a case label
	StyleTag = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	StyleMainTag = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	StyleBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(0, 1)

	StyleWarningBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarning).
			Padding(0, 1)

	// Select lists
	StyleSelectTitle  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleSelectNormal = lipgloss.NewStyle().Foreground(ColorText)
	StyleSelectActive = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleSelectDim    = lipgloss.NewStyle().Foreground(ColorSecondary)
)

// Icon returns a styled icon string
func Icon(icon string, style lipgloss.Style) string {
	return style.Render(icon)
}
