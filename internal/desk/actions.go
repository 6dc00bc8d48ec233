package desk

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/freedom_case_2/servicedesk/internal/models"
)

type Action int

const (
	ActionAssign Action = iota + 1
	ActionDetails
	ActionConfirm
	ActionReturn
)

var actionTitles = map[Action]string{
	ActionAssign:  "Взять",
	ActionDetails: "Подробнее",
	ActionConfirm: "Подтвердить",
	ActionReturn:  "Вернуть в работу",
}

func (a Action) String() string {
	return actionTitles[a]
}

// TicketActions lists what role may do with ticket as rendered in list.
func TicketActions(role models.Role, list Tab, t models.Ticket) []Action {
	var out []Action
	switch list {
	case TabOpen:
		out = append(out, ActionAssign)
	case TabAssigned:
		out = append(out, ActionDetails)
	}
	if role == models.RoleUser && t.StatusID == models.StatusResolved {
		out = append(out, ActionConfirm, ActionReturn)
	}
	return out
}

const minSolutionLen = 5

var ErrSolutionRequired = errors.New(MsgSolutionRequired)

// ValidateResolution blocks a free-text resolution shorter than five
// characters. Accepting a recommendation needs no text.
func ValidateResolution(usedKB bool, solution string) error {
	if usedKB {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(solution)) < minSolutionLen {
		return ErrSolutionRequired
	}
	return nil
}
