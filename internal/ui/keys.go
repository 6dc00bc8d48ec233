package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the bindings used outside text fields. While a field has
// focus, printable keys are typed into it and only Submit, NextField,
// PrevField, Blur and ForceQuit act.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding

	TabPrev key.Binding
	TabNext key.Binding
	Tab1    key.Binding
	Tab2    key.Binding

	Assign  key.Binding
	Details key.Binding
	Confirm key.Binding
	Return  key.Binding
	Accept  key.Binding
	Edit    key.Binding
	Refresh key.Binding

	Submit    key.Binding
	NextField key.Binding
	PrevField key.Binding
	Blur      key.Binding

	Logout    key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "вверх"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "вниз"),
	),
	TabPrev: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "вкладка"),
	),
	TabNext: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "вкладка"),
	),
	Tab1: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "вкладка 1"),
	),
	Tab2: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "вкладка 2"),
	),
	Assign: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "взять"),
	),
	Details: key.NewBinding(
		key.WithKeys("enter", "d"),
		key.WithHelp("enter", "подробнее"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "подтвердить"),
	),
	Return: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "вернуть в работу"),
	),
	Accept: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "принять рекомендацию"),
	),
	Edit: key.NewBinding(
		key.WithKeys("i", "s"),
		key.WithHelp("i", "ввод"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "обновить"),
	),
	Submit: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("C-s", "отправить"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "след. поле"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("S-Tab", "пред. поле"),
	),
	Blur: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "назад"),
	),
	Logout: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "выйти"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "закрыть"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
	),
}
