package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/freedom_case_2/servicedesk/internal/desk"
	"github.com/freedom_case_2/servicedesk/internal/identity"
	"github.com/freedom_case_2/servicedesk/internal/models"
)

// Client is the part of the REST API the interface drives.
type Client interface {
	CreateTicket(ctx context.Context, userID int64, req models.CreateTicketRequest) (models.Ticket, error)
	MyTickets(ctx context.Context, userID int64) ([]models.Ticket, error)
	OpenTickets(ctx context.Context, userID int64) ([]models.Ticket, error)
	AssignedTickets(ctx context.Context, userID int64) ([]models.Ticket, error)
	AssignTicket(ctx context.Context, userID, ticketID int64) (models.MessageResponse, error)
	ConfirmTicket(ctx context.Context, userID, ticketID int64) (models.MessageResponse, error)
	ReturnTicket(ctx context.Context, userID, ticketID int64) (models.MessageResponse, error)
	Recommendations(ctx context.Context, userID, ticketID int64) (models.TicketDetails, error)
	ResolveTicket(ctx context.Context, userID, ticketID int64, req models.ResolveRequest) (models.ResolveResponse, error)
	Knowledge(ctx context.Context, userID int64, limit int) ([]models.KnowledgeEntry, error)
	Stats(ctx context.Context, userID int64) (models.Stats, error)
}

type loginResultMsg struct {
	user models.User
	err  error
}

type restoreResultMsg struct {
	user models.User
	ok   bool
	err  error
}

// loadedMsg carries one list load. Exactly one of the payload fields is
// set, according to load.
type loadedMsg struct {
	session uint64
	load    desk.Load
	seq     uint64

	tickets   []models.Ticket
	knowledge []models.KnowledgeEntry
	stats     models.Stats
	err       error
}

// reloadMsg groups loads that were issued together.
type reloadMsg struct {
	results []loadedMsg
}

type createdMsg struct {
	session uint64
	ticket  models.Ticket
	err     error
}

type actionDoneMsg struct {
	session  uint64
	action   desk.Action
	ticketID int64
	err      error
}

type detailsMsg struct {
	session  uint64
	ticketID int64
	details  models.TicketDetails
	err      error
}

type resolvedMsg struct {
	session  uint64
	ticketID int64
	resp     models.ResolveResponse
	err      error
}

type pollTickMsg struct {
	gen uint64
}

type notifyExpireMsg struct {
	id int
}

type identityMsg struct {
	event identity.Event
	open  bool
}

type loadRequest struct {
	load desk.Load
	seq  uint64
}

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	if m.opts.RequestTimeout > 0 {
		return context.WithTimeout(context.Background(), m.opts.RequestTimeout)
	}
	return context.WithCancel(context.Background())
}

func (m Model) fetch(ctx context.Context, sessionID uint64, userID int64, req loadRequest) loadedMsg {
	out := loadedMsg{session: sessionID, load: req.load, seq: req.seq}
	switch req.load {
	case desk.LoadMy:
		out.tickets, out.err = m.client.MyTickets(ctx, userID)
	case desk.LoadOpen:
		out.tickets, out.err = m.client.OpenTickets(ctx, userID)
	case desk.LoadAssigned:
		out.tickets, out.err = m.client.AssignedTickets(ctx, userID)
	case desk.LoadKnowledge:
		out.knowledge, out.err = m.client.Knowledge(ctx, userID, m.opts.KBLimit)
	case desk.LoadStats:
		out.stats, out.err = m.client.Stats(ctx, userID)
	}
	return out
}

// reload fetches every load concurrently. Each result is sequenced on
// its own, so one failing load does not hide the others.
func (m *Model) reload(loads ...desk.Load) tea.Cmd {
	s := m.mgr.Current()
	if s == nil || len(loads) == 0 {
		return nil
	}
	reqs := make([]loadRequest, len(loads))
	for i, l := range loads {
		reqs[i] = loadRequest{load: l, seq: s.Next(l)}
	}
	sessionID, userID := s.ID, s.User.ID
	model := *m

	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()

		results := make([]loadedMsg, len(reqs))
		var g errgroup.Group
		for i, req := range reqs {
			g.Go(func() error {
				results[i] = model.fetch(ctx, sessionID, userID, req)
				return nil
			})
		}
		_ = g.Wait()
		return reloadMsg{results: results}
	}
}

func (m Model) signIn(email, password string) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		u, err := mgr.Login(ctx, email, password)
		return loginResultMsg{user: u, err: err}
	}
}

func (m Model) restoreSession() tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		u, ok, err := mgr.Restore(ctx)
		return restoreResultMsg{user: u, ok: ok, err: err}
	}
}

func (m Model) restoreUser(id int64) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		u, ok, err := mgr.RestoreID(ctx, id)
		return restoreResultMsg{user: u, ok: ok, err: err}
	}
}

func (m Model) createTicket(sessionID uint64, userID int64, req models.CreateTicketRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		t, err := m.client.CreateTicket(ctx, userID, req)
		return createdMsg{session: sessionID, ticket: t, err: err}
	}
}

func (m Model) ticketAction(sessionID uint64, userID int64, action desk.Action, ticketID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		var err error
		switch action {
		case desk.ActionAssign:
			_, err = m.client.AssignTicket(ctx, userID, ticketID)
		case desk.ActionConfirm:
			_, err = m.client.ConfirmTicket(ctx, userID, ticketID)
		case desk.ActionReturn:
			_, err = m.client.ReturnTicket(ctx, userID, ticketID)
		}
		return actionDoneMsg{session: sessionID, action: action, ticketID: ticketID, err: err}
	}
}

func (m Model) loadDetails(sessionID uint64, userID, ticketID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		d, err := m.client.Recommendations(ctx, userID, ticketID)
		return detailsMsg{session: sessionID, ticketID: ticketID, details: d, err: err}
	}
}

func (m Model) resolveTicket(sessionID uint64, userID, ticketID int64, req models.ResolveRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		resp, err := m.client.ResolveTicket(ctx, userID, ticketID, req)
		return resolvedMsg{session: sessionID, ticketID: ticketID, resp: resp, err: err}
	}
}

func pollAfter(d time.Duration, gen uint64) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return pollTickMsg{gen: gen}
	})
}

func waitIdentity(events <-chan identity.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		return identityMsg{event: ev, open: ok}
	}
}
