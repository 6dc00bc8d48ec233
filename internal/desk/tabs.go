// Package desk holds the role and tab rules of the client, independent
// of how they are drawn.
package desk

import (
	"errors"
	"slices"

	"github.com/freedom_case_2/servicedesk/internal/models"
)

type Tab int

const (
	TabNone Tab = iota
	TabCreate
	TabMy
	TabOpen
	TabAssigned
	TabKnowledge
	TabStats
	TabDetails
)

var tabTitles = map[Tab]string{
	TabCreate:    "Создать заявку",
	TabMy:        "Мои заявки",
	TabOpen:      "Открытые заявки",
	TabAssigned:  "Мои задачи",
	TabKnowledge: "База знаний",
	TabStats:     "Статистика",
	TabDetails:   "Карточка заявки",
}

func (t Tab) String() string {
	return tabTitles[t]
}

var ErrTabHidden = errors.New("tab is not available for this role")

// RoleTabs lists the tab buttons shown to role, in display order.
func RoleTabs(role models.Role) []Tab {
	switch role {
	case models.RoleUser:
		return []Tab{TabCreate, TabMy}
	case models.RoleSpecialist:
		return []Tab{TabOpen, TabAssigned}
	case models.RoleAdmin:
		return []Tab{TabKnowledge, TabStats}
	}
	return nil
}

func DefaultTab(role models.Role) Tab {
	switch role {
	case models.RoleUser:
		return TabCreate
	case models.RoleSpecialist:
		return TabOpen
	case models.RoleAdmin:
		return TabKnowledge
	}
	return TabNone
}

// Tabs tracks which tab button and which panel are active. At most one
// of each is active at a time; while the details panel is shown no tab
// button is active.
type Tabs struct {
	visible []Tab
	button  Tab
	panel   Tab
}

func NewTabs(role models.Role) Tabs {
	t := Tabs{visible: RoleTabs(role)}
	if def := DefaultTab(role); def != TabNone {
		t.button, t.panel = def, def
	}
	return t
}

func (t Tabs) Visible() []Tab { return t.visible }

func (t Tabs) ActiveButton() Tab { return t.button }

func (t Tabs) ActivePanel() Tab { return t.panel }

func (t Tabs) InDetails() bool { return t.panel == TabDetails }

func (t *Tabs) Activate(tab Tab) error {
	if !slices.Contains(t.visible, tab) {
		return ErrTabHidden
	}
	t.button, t.panel = tab, tab
	return nil
}

func (t *Tabs) EnterDetails() {
	t.button = TabNone
	t.panel = TabDetails
}

// ExitDetails returns to the list the details panel was opened from and
// reports the tab now active.
func (t *Tabs) ExitDetails(role models.Role) Tab {
	back := TabMy
	if role == models.RoleSpecialist {
		back = TabAssigned
	}
	t.button, t.panel = back, back
	return back
}

// Cycle moves the active tab by delta within the visible tabs, wrapping
// around. From the details panel it starts at the first tab.
func (t *Tabs) Cycle(delta int) Tab {
	n := len(t.visible)
	if n == 0 {
		return TabNone
	}
	i := slices.Index(t.visible, t.button)
	if i < 0 {
		i = 0
	} else {
		i = ((i+delta)%n + n) % n
	}
	t.button, t.panel = t.visible[i], t.visible[i]
	return t.button
}

type Load int

const (
	LoadMy Load = iota + 1
	LoadOpen
	LoadAssigned
	LoadKnowledge
	LoadStats
)

// Loads returns the data a tab needs when it becomes active.
func Loads(tab Tab) []Load {
	switch tab {
	case TabMy:
		return []Load{LoadMy}
	case TabOpen:
		return []Load{LoadOpen}
	case TabAssigned:
		return []Load{LoadAssigned}
	case TabKnowledge:
		return []Load{LoadKnowledge}
	case TabStats:
		return []Load{LoadStats}
	}
	return nil
}

// InitialLoads is what a fresh session fetches for role.
func InitialLoads(role models.Role) []Load {
	switch role {
	case models.RoleSpecialist:
		return []Load{LoadOpen, LoadAssigned}
	case models.RoleAdmin:
		return []Load{LoadKnowledge}
	}
	return nil
}
