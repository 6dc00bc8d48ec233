package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// field is a small rune editor. Multiline fields take enter as a line
// break; single-line fields ignore it.
type field struct {
	label     string
	value     []rune
	cursor    int
	multiline bool
	masked    bool
}

func newField(label string, multiline bool) field {
	return field{label: label, multiline: multiline}
}

func (f field) Value() string {
	return string(f.value)
}

func (f *field) SetValue(s string) {
	f.value = []rune(s)
	f.cursor = len(f.value)
}

func (f *field) Reset() {
	f.value = nil
	f.cursor = 0
}

func (f *field) Update(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		runes := msg.Runes
		if msg.Type == tea.KeySpace {
			runes = []rune{' '}
		}
		for _, r := range runes {
			f.insert(r)
		}
	case tea.KeyEnter:
		if f.multiline {
			f.insert('\n')
		}
	case tea.KeyBackspace:
		if f.cursor > 0 {
			f.value = append(f.value[:f.cursor-1], f.value[f.cursor:]...)
			f.cursor--
		}
	case tea.KeyDelete:
		if f.cursor < len(f.value) {
			f.value = append(f.value[:f.cursor], f.value[f.cursor+1:]...)
		}
	case tea.KeyLeft:
		if f.cursor > 0 {
			f.cursor--
		}
	case tea.KeyRight:
		if f.cursor < len(f.value) {
			f.cursor++
		}
	case tea.KeyHome, tea.KeyCtrlA:
		f.cursor = 0
	case tea.KeyEnd, tea.KeyCtrlE:
		f.cursor = len(f.value)
	case tea.KeyCtrlU:
		f.Reset()
	}
}

func (f *field) insert(r rune) {
	line := make([]rune, len(f.value)+1)
	copy(line, f.value[:f.cursor])
	line[f.cursor] = r
	copy(line[f.cursor+1:], f.value[f.cursor:])
	f.value = line
	f.cursor++
}

func (f field) Render(theme Theme, focused bool, width int) string {
	text := f.value
	if f.masked {
		text = []rune(strings.Repeat("•", len(f.value)))
	}

	var b strings.Builder
	if focused {
		cursor := lipgloss.NewStyle().Reverse(true)
		b.WriteString(string(text[:f.cursor]))
		if f.cursor < len(text) && text[f.cursor] != '\n' {
			b.WriteString(cursor.Render(string(text[f.cursor])))
			b.WriteString(string(text[f.cursor+1:]))
		} else {
			b.WriteString(cursor.Render(" "))
			b.WriteString(string(text[f.cursor:]))
		}
	} else {
		b.WriteString(string(text))
	}

	border := theme.BorderColor
	if focused {
		border = theme.Accent
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Foreground(theme.NormalText).
		Padding(0, 1)
	if width > 4 {
		box = box.Width(width - 2)
	}
	label := lipgloss.NewStyle().Bold(true).Foreground(theme.FaintText).Render(f.label)
	return label + "\n" + box.Render(b.String())
}
