package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/freedom_case_2/servicedesk/internal/desk"
	"github.com/freedom_case_2/servicedesk/internal/models"
)

const (
	appTitle = "Система управления заявками"

	// Approximate height of one rendered ticket card.
	ticketRowHeight = 5
)

// View implements tea.Model.
func (m Model) View() string {
	if m.screen == screenLogin {
		return m.renderLogin()
	}

	sections := []string{
		m.renderHeader(),
		m.renderTabBar(),
		m.renderPanel(),
	}
	if notes := m.renderNotes(); notes != "" {
		sections = append(sections, notes)
	}
	separator := lipgloss.NewStyle().
		Foreground(m.theme.BorderColor).
		Render(strings.Repeat("─", max(m.width, 20)))
	sections = append(sections, separator, m.renderHelp())
	return strings.Join(sections, "\n")
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m Model) renderLogin() string {
	width := min(m.contentWidth(), 60)
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Accent).Render(appTitle)

	var b strings.Builder
	b.WriteString(title + "\n\n")
	if m.login.restoring {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("Восстановление сессии...") + "\n\n")
	}
	b.WriteString(m.login.email.Render(m.theme, m.login.focus == 0, width) + "\n")
	b.WriteString(m.login.password.Render(m.theme, m.login.focus == 1, width) + "\n\n")

	hint := "enter: войти · tab: след. поле · ctrl+c: выход"
	if m.login.pending {
		hint = "Вход..."
	}
	b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(hint))
	if notes := m.renderNotes(); notes != "" {
		b.WriteString("\n\n" + notes)
	}
	return b.String()
}

func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Accent).Render(appTitle)
	s := m.mgr.Current()
	if s == nil {
		return title
	}
	who := lipgloss.NewStyle().Foreground(m.theme.NormalText).
		Render(fmt.Sprintf("%s (%s)", s.User.FullName, desk.RoleName(s.User.Role)))
	return title + "  " + who
}

func (m Model) renderTabBar() string {
	active := lipgloss.NewStyle().Bold(true).
		Foreground(m.theme.SelectedForeground).
		Background(m.theme.SelectedBackground).
		Padding(0, 1)
	inactive := lipgloss.NewStyle().Foreground(m.theme.FaintText).Padding(0, 1)

	var parts []string
	for i, tab := range m.tabs.Visible() {
		label := fmt.Sprintf("%d %s", i+1, tab)
		if tab == m.tabs.ActiveButton() {
			parts = append(parts, active.Render(label))
		} else {
			parts = append(parts, inactive.Render(label))
		}
	}
	if m.tabs.InDetails() {
		parts = append(parts, active.Render(desk.TabDetails.String()))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderPanel() string {
	switch panel := m.tabs.ActivePanel(); panel {
	case desk.TabCreate:
		return m.renderCreate()
	case desk.TabMy, desk.TabOpen, desk.TabAssigned:
		return m.renderTickets(panel)
	case desk.TabKnowledge:
		return m.kbView.View()
	case desk.TabStats:
		return m.renderStats()
	case desk.TabDetails:
		return m.renderDetails()
	}
	return ""
}

func (m Model) renderCreate() string {
	width := m.contentWidth()
	var b strings.Builder
	b.WriteString(m.create.description.Render(m.theme, m.editing && m.create.focus == 0, width) + "\n")
	b.WriteString(m.create.contact.Render(m.theme, m.editing && m.create.focus == 1, width) + "\n")
	if m.create.pending {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("Отправка..."))
	}
	return b.String()
}

func (m Model) badge(status models.Status) string {
	return lipgloss.NewStyle().Bold(true).
		Foreground(m.theme.StatusColor(desk.StatusColor(status))).
		Render("[" + desk.StatusText(status) + "]")
}

func (m Model) renderTickets(tab desk.Tab) string {
	list := m.tickets[listLoad(tab)]
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	if len(list) == 0 {
		return faint.Render(desk.EmptyTickets)
	}

	role := models.Role("")
	if s := m.mgr.Current(); s != nil {
		role = s.User.Role
	}

	perPage := max((m.height-chromeHeight)/ticketRowHeight, 1)
	cursor := m.cursor[tab]
	start := max(cursor-perPage+1, 0)
	end := min(start+perPage, len(list))

	bold := lipgloss.NewStyle().Bold(true)
	marker := lipgloss.NewStyle().Foreground(m.theme.Accent)

	var rows []string
	for i := start; i < end; i++ {
		t := list[i]
		lines := []string{
			bold.Render(fmt.Sprintf("Заявка #%d", t.ID)) + " " + m.badge(t.StatusID),
			"Описание: " + desk.Truncate(t.Description, desk.TicketPreviewLen),
			"Контакты: " + t.ContactInfo,
		}
		if hints := m.actionHints(desk.TicketActions(role, tab, t)); hints != "" {
			lines = append(lines, faint.Render(hints))
		}

		prefix := "  "
		if i == cursor {
			prefix = marker.Render("▌ ")
		}
		for j := range lines {
			lines[j] = prefix + lines[j]
		}
		rows = append(rows, strings.Join(lines, "\n"))
	}
	return strings.Join(rows, "\n\n")
}

func (m Model) actionHints(actions []desk.Action) string {
	var hints []string
	for _, a := range actions {
		var b key.Binding
		switch a {
		case desk.ActionAssign:
			b = m.keys.Assign
		case desk.ActionDetails:
			b = m.keys.Details
		case desk.ActionConfirm:
			b = m.keys.Confirm
		case desk.ActionReturn:
			b = m.keys.Return
		}
		hints = append(hints, fmt.Sprintf("[%s] %s", b.Help().Key, a))
	}
	return strings.Join(hints, "  ")
}

// renderKnowledge builds the knowledge base listing shown in kbView.
func (m Model) renderKnowledge() string {
	if len(m.knowledge) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(desk.EmptyKnowledge)
	}
	bold := lipgloss.NewStyle().Bold(true)
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)

	var entries []string
	for _, k := range m.knowledge {
		entries = append(entries, strings.Join([]string{
			bold.Render(fmt.Sprintf("Запись #%d", k.ID)) + " " + faint.Render(fmt.Sprintf("Использовано: %d", k.Frequency)),
			"Проблема: " + desk.Truncate(k.Problem, desk.KnowledgePreviewLen),
			"Решение: " + desk.Truncate(k.Solution, desk.KnowledgePreviewLen),
		}, "\n"))
	}
	return lipgloss.NewStyle().Width(m.kbView.Width).Render(strings.Join(entries, "\n\n"))
}

func (m Model) renderStats() string {
	if m.stats == nil {
		return ""
	}
	st := m.stats
	bold := lipgloss.NewStyle().Bold(true)
	return strings.Join([]string{
		bold.Render("Всего заявок:") + fmt.Sprintf(" %d", st.TicketsTotal),
		bold.Render("Открытых:") + fmt.Sprintf(" %d", st.TicketsOpen),
		bold.Render("Записей базы знаний:") + fmt.Sprintf(" %d", st.KnowledgeTotal),
		bold.Render("Использований решений:") + fmt.Sprintf(" %d", st.KnowledgeUsage),
	}, "\n")
}

func (m Model) renderDetails() string {
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	bold := lipgloss.NewStyle().Bold(true)
	d := m.details.data
	if d == nil {
		if m.details.loading {
			return faint.Render("Загрузка...")
		}
		return faint.Render(desk.EmptyRecs)
	}

	width := m.contentWidth()
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	b.WriteString(bold.Render(fmt.Sprintf("Заявка #%d", d.TicketID)) + "\n\n")
	b.WriteString(bold.Render("Описание проблемы:") + "\n")
	b.WriteString(wrap.Render(d.Description) + "\n\n")
	b.WriteString(bold.Render("Контакты клиента:") + " " + d.ContactInfo + "\n")
	b.WriteString(bold.Render("Статус заявки:") + " " + m.badge(d.StatusID) + "\n")
	b.WriteString(bold.Render("Тип проблемы:") + " " + desk.NoveltyLabel(d.IsNovel) + "\n\n")

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(m.theme.Accent).
		Render("Интеллектуальный модуль рекомендаций") + "\n")
	if len(d.Recommendations) == 0 {
		b.WriteString(faint.Render(desk.EmptyRecs) + "\n")
	}
	marker := lipgloss.NewStyle().Foreground(m.theme.Accent)
	accepted := lipgloss.NewStyle().Foreground(m.theme.StatusGreen)
	for i, r := range d.Recommendations {
		prefix := "  "
		if i == m.details.selected {
			prefix = marker.Render("▌ ")
		}
		title := bold.Render(fmt.Sprintf("Рекомендация №%d", r.Rank)) + fmt.Sprintf(" (%d%%)", r.Similarity)
		if id := m.details.acceptedKBID; m.details.usedKB && id != nil && *id == r.KBID {
			title += " " + accepted.Render("✓ принята")
		}
		b.WriteString(prefix + title + "\n")
		b.WriteString(prefix + "Проблема: " + r.Problem + "\n")
		b.WriteString(prefix + "Решение: " + r.Solution + "\n\n")
	}

	b.WriteString(m.details.solution.Render(m.theme, m.editing, width) + "\n")
	used := "[ ]"
	if m.details.usedKB {
		used = "[x]"
	}
	b.WriteString(used + " Использовано решение из базы знаний")
	if m.details.pending {
		b.WriteString("\n" + faint.Render("Отправка..."))
	}
	return b.String()
}

func (m Model) renderNotes() string {
	if len(m.notes) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.notes))
	for _, n := range m.notes {
		color := m.theme.NotifyOK
		if n.err {
			color = m.theme.NotifyError
		}
		lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(color).Render(n.text))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp() string {
	var bindings []key.Binding
	switch {
	case m.editing:
		bindings = []key.Binding{m.keys.Submit, m.keys.NextField, m.keys.Blur}
		if m.tabs.InDetails() {
			bindings = []key.Binding{m.keys.Submit, m.keys.Blur}
		}
	case m.tabs.InDetails():
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Accept, m.keys.Edit, m.keys.Submit, m.keys.Blur}
	case m.tabs.ActivePanel() == desk.TabCreate:
		bindings = []key.Binding{m.keys.Edit, m.keys.Submit, m.keys.TabNext}
	default:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.TabNext, m.keys.Refresh}
	}
	if !m.editing {
		bindings = append(bindings, m.keys.Logout, m.keys.Quit)
	}

	keyStyle := lipgloss.NewStyle().Foreground(m.theme.Accent)
	descStyle := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, keyStyle.Render(h.Key)+" "+descStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
