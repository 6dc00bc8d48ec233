package desk

import (
	"slices"

	"github.com/freedom_case_2/servicedesk/internal/models"
)

const (
	TicketPreviewLen    = 140
	KnowledgePreviewLen = 160
)

// Truncate cuts s to n runes and always appends "...", as the list
// previews do.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}

// SortKnowledge returns a copy of items ordered by descending id.
func SortKnowledge(items []models.KnowledgeEntry) []models.KnowledgeEntry {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b models.KnowledgeEntry) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return out
}

func RoleName(role models.Role) string {
	switch role {
	case models.RoleUser:
		return "Пользователь"
	case models.RoleSpecialist:
		return "Специалист"
	case models.RoleAdmin:
		return "Администратор"
	}
	return string(role)
}

func StatusText(s models.Status) string {
	switch s {
	case models.StatusOpen:
		return "Открыта"
	case models.StatusInProgress:
		return "В работе"
	case models.StatusResolved:
		return "Выполнена"
	case models.StatusClosed:
		return "Закрыта"
	}
	return "Неизвестно"
}

type Color string

const (
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorGray   Color = "gray"
)

func StatusColor(s models.Status) Color {
	switch s {
	case models.StatusOpen:
		return ColorRed
	case models.StatusInProgress:
		return ColorYellow
	case models.StatusResolved:
		return ColorGreen
	}
	return ColorGray
}

func NoveltyLabel(novel bool) string {
	if novel {
		return "Новая"
	}
	return "Известная"
}
