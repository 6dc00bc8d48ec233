package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/freedom_case_2/servicedesk/internal/desk"
)

// Theme uses ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Accent     lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	StatusRed    lipgloss.Color
	StatusYellow lipgloss.Color
	StatusGreen  lipgloss.Color
	StatusGray   lipgloss.Color

	NotifyOK    lipgloss.Color
	NotifyError lipgloss.Color

	BorderColor lipgloss.Color
}

var DefaultTheme = Theme{
	NormalText:         lipgloss.Color("252"),
	FaintText:          lipgloss.Color("243"),
	Accent:             lipgloss.Color("39"),
	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),
	StatusRed:          lipgloss.Color("203"),
	StatusYellow:       lipgloss.Color("221"),
	StatusGreen:        lipgloss.Color("114"),
	StatusGray:         lipgloss.Color("245"),
	NotifyOK:           lipgloss.Color("114"),
	NotifyError:        lipgloss.Color("203"),
	BorderColor:        lipgloss.Color("240"),
}

func (theme Theme) StatusColor(c desk.Color) lipgloss.Color {
	switch c {
	case desk.ColorRed:
		return theme.StatusRed
	case desk.ColorYellow:
		return theme.StatusYellow
	case desk.ColorGreen:
		return theme.StatusGreen
	}
	return theme.StatusGray
}
