// Package ui is the terminal client: a bubbletea model that renders the
// role tabs and drives the REST API through commands.
package ui

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/freedom_case_2/servicedesk/internal/api"
	"github.com/freedom_case_2/servicedesk/internal/desk"
	"github.com/freedom_case_2/servicedesk/internal/identity"
	"github.com/freedom_case_2/servicedesk/internal/models"
	"github.com/freedom_case_2/servicedesk/internal/session"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultNotifyTTL    = 5 * time.Second
	defaultKBLimit      = 200

	// Lines taken by the header, tab bar, help line and notifications.
	chromeHeight = 8
)

type Options struct {
	PollInterval   time.Duration
	NotifyTTL      time.Duration
	RequestTimeout time.Duration
	KBLimit        int

	// Identity, when set, reports identity changes made by other
	// clients.
	Identity <-chan identity.Event

	Logger zerolog.Logger
}

type screen int

const (
	screenLogin screen = iota
	screenDesk
)

type notification struct {
	id   int
	text string
	err  bool
}

type loginForm struct {
	email     field
	password  field
	focus     int
	pending   bool
	restoring bool
}

type createForm struct {
	description field
	contact     field
	focus       int
	pending     bool
}

type detailsView struct {
	ticketID int64
	data     *models.TicketDetails
	loading  bool
	selected int

	// Resolution form. formTicket is the ticket it was filled for.
	solution     field
	usedKB       bool
	acceptedKBID *int64
	formTicket   int64
	pending      bool
}

type Model struct {
	client Client
	mgr    *session.Manager
	opts   Options
	keys   KeyMap
	theme  Theme

	width  int
	height int

	screen  screen
	login   loginForm
	tabs    desk.Tabs
	editing bool

	tickets   map[desk.Load][]models.Ticket
	knowledge []models.KnowledgeEntry
	stats     *models.Stats
	cursor    map[desk.Tab]int
	kbView    viewport.Model

	create  createForm
	details detailsView

	notes    []notification
	nextNote int
}

func New(client Client, mgr *session.Manager, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.NotifyTTL <= 0 {
		opts.NotifyTTL = defaultNotifyTTL
	}
	if opts.KBLimit <= 0 {
		opts.KBLimit = defaultKBLimit
	}

	password := newField("Пароль", false)
	password.masked = true

	return Model{
		client: client,
		mgr:    mgr,
		opts:   opts,
		keys:   DefaultKeyMap,
		theme:  DefaultTheme,
		login: loginForm{
			email:     newField("Email", false),
			password:  password,
			restoring: true,
		},
		tickets: map[desk.Load][]models.Ticket{},
		cursor:  map[desk.Tab]int{},
		kbView:  viewport.New(80, 20),
		create: createForm{
			description: newField("Описание проблемы", true),
			contact:     newField("Контактная информация", false),
		},
		details: detailsView{solution: newField("Решение специалиста", true)},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.restoreSession(), waitIdentity(m.opts.Identity))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizeKnowledge()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case notifyExpireMsg:
		m.notes = slices.DeleteFunc(m.notes, func(n notification) bool {
			return n.id == msg.id
		})
		return m, nil

	case loginResultMsg:
		return m.handleLogin(msg)

	case restoreResultMsg:
		m.login.restoring = false
		if msg.err != nil {
			m.opts.Logger.Info().Err(msg.err).Msg("session restore failed")
		}
		if !msg.ok || m.mgr.Current() != nil {
			return m, nil
		}
		return m, m.startSession(msg.user)

	case reloadMsg:
		var cmds []tea.Cmd
		for _, r := range msg.results {
			cmds = append(cmds, m.applyLoad(r))
		}
		return m, tea.Batch(cmds...)

	case createdMsg:
		if !m.mgr.Is(msg.session) {
			return m, nil
		}
		m.create.pending = false
		if msg.err != nil {
			return m, m.fail(msg.err, desk.MsgCreateFailed)
		}
		m.create.description.Reset()
		m.create.contact.Reset()
		m.create.focus = 0
		return m, tea.Batch(m.notify(desk.MsgTicketCreated, false), m.reload(desk.LoadMy))

	case actionDoneMsg:
		if !m.mgr.Is(msg.session) {
			return m, nil
		}
		return m, m.handleAction(msg)

	case detailsMsg:
		s := m.mgr.Current()
		if s == nil || s.ID != msg.session || s.CurrentTicketID != msg.ticketID {
			return m, nil
		}
		m.details.loading = false
		if msg.err != nil {
			return m, m.fail(msg.err, desk.MsgRecsFailed)
		}
		d := msg.details
		m.details.data = &d
		m.details.selected = 0
		return m, nil

	case resolvedMsg:
		if !m.mgr.Is(msg.session) {
			return m, nil
		}
		return m, m.handleResolved(msg)

	case pollTickMsg:
		if !m.mgr.Poller().Accept(msg.gen) {
			return m, nil
		}
		return m, tea.Batch(
			m.reload(desk.LoadOpen, desk.LoadAssigned),
			pollAfter(m.opts.PollInterval, msg.gen),
		)

	case identityMsg:
		if !msg.open {
			return m, nil
		}
		return m.handleIdentity(msg.event)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}
	if m.screen == screenLogin {
		return m.loginKey(msg)
	}
	if m.editing {
		return m.editKey(msg)
	}
	return m.commandKey(msg)
}

func (m Model) loginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEnter || key.Matches(msg, m.keys.Submit):
		if m.login.pending {
			return m, nil
		}
		if m.login.focus == 0 && msg.Type == tea.KeyEnter {
			m.login.focus = 1
			return m, nil
		}
		m.login.pending = true
		email := strings.TrimSpace(m.login.email.Value())
		password := strings.TrimSpace(m.login.password.Value())
		return m, m.signIn(email, password)
	case key.Matches(msg, m.keys.NextField, m.keys.PrevField) || msg.Type == tea.KeyUp || msg.Type == tea.KeyDown:
		m.login.focus = 1 - m.login.focus
	case m.login.focus == 0:
		m.login.email.Update(msg)
	default:
		m.login.password.Update(msg)
	}
	return m, nil
}

func (m Model) editKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inDetails := m.tabs.InDetails()
	switch {
	case key.Matches(msg, m.keys.Blur):
		m.editing = false
	case key.Matches(msg, m.keys.Submit):
		if inDetails {
			return m, m.submitResolution()
		}
		return m, m.submitCreate()
	case !inDetails && key.Matches(msg, m.keys.NextField, m.keys.PrevField):
		m.create.focus = 1 - m.create.focus
	case inDetails:
		m.details.solution.Update(msg)
	case m.create.focus == 0:
		m.create.description.Update(msg)
	default:
		m.create.contact.Update(msg)
	}
	return m, nil
}

func (m Model) commandKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Logout):
		return m.logout(), nil
	case key.Matches(msg, m.keys.Tab1, m.keys.Tab2):
		i := 0
		if key.Matches(msg, m.keys.Tab2) {
			i = 1
		}
		if visible := m.tabs.Visible(); i < len(visible) {
			return m, m.activate(visible[i])
		}
		return m, nil
	case key.Matches(msg, m.keys.TabPrev):
		return m, m.cycle(-1)
	case key.Matches(msg, m.keys.TabNext):
		return m, m.cycle(1)
	case key.Matches(msg, m.keys.Refresh):
		if m.tabs.InDetails() {
			return m, m.openTicket(m.details.ticketID)
		}
		return m, m.reload(desk.Loads(m.tabs.ActivePanel())...)
	}

	switch panel := m.tabs.ActivePanel(); panel {
	case desk.TabDetails:
		return m.detailsKey(msg)
	case desk.TabCreate:
		switch {
		case key.Matches(msg, m.keys.Edit, m.keys.Details):
			m.editing = true
		case key.Matches(msg, m.keys.Submit):
			return m, m.submitCreate()
		}
	case desk.TabKnowledge:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.kbView.LineUp(1)
		case key.Matches(msg, m.keys.Down):
			m.kbView.LineDown(1)
		}
	case desk.TabMy, desk.TabOpen, desk.TabAssigned:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.moveCursor(panel, -1)
		case key.Matches(msg, m.keys.Down):
			m.moveCursor(panel, 1)
		case key.Matches(msg, m.keys.Assign):
			return m, m.act(desk.ActionAssign)
		case key.Matches(msg, m.keys.Details):
			return m, m.act(desk.ActionDetails)
		case key.Matches(msg, m.keys.Confirm):
			return m, m.act(desk.ActionConfirm)
		case key.Matches(msg, m.keys.Return):
			return m, m.act(desk.ActionReturn)
		}
	}
	return m, nil
}

func (m Model) detailsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Blur):
		return m, m.exitDetails()
	case key.Matches(msg, m.keys.Up):
		if m.details.selected > 0 {
			m.details.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if d := m.details.data; d != nil && m.details.selected < len(d.Recommendations)-1 {
			m.details.selected++
		}
	case key.Matches(msg, m.keys.Accept):
		return m, m.acceptRecommendation()
	case key.Matches(msg, m.keys.Edit):
		m.editing = true
	case key.Matches(msg, m.keys.Submit):
		return m, m.submitResolution()
	}
	return m, nil
}

func (m Model) handleLogin(msg loginResultMsg) (tea.Model, tea.Cmd) {
	if !m.login.pending {
		return m, nil
	}
	m.login.pending = false
	if m.mgr.Current() != nil {
		return m, nil
	}
	if msg.err != nil {
		m.opts.Logger.Info().Err(msg.err).Msg("login failed")
		switch {
		case errors.Is(msg.err, session.ErrProfile):
			m.login.email.Reset()
			m.login.password.Reset()
			m.login.focus = 0
			return m, nil
		case api.StatusCode(msg.err) != 0 || errors.Is(msg.err, api.ErrValidation):
			return m, m.notify(desk.MsgLoginFailed, true)
		default:
			return m, m.notify(desk.MsgServerDown, true)
		}
	}
	start := m.startSession(msg.user)
	return m, tea.Batch(start, m.notify(desk.MsgLoginOK, false))
}

func (m *Model) startSession(u models.User) tea.Cmd {
	m.mgr.Begin(u)
	m.screen = screenDesk
	m.tabs = desk.NewTabs(u.Role)
	m.editing = m.tabs.ActivePanel() == desk.TabCreate
	m.tickets = map[desk.Load][]models.Ticket{}
	m.cursor = map[desk.Tab]int{}
	m.knowledge = nil
	m.stats = nil
	m.create.description.Reset()
	m.create.contact.Reset()
	m.create.focus = 0
	m.details = detailsView{solution: newField("Решение специалиста", true)}
	m.login.password.Reset()
	m.refreshKnowledge()

	cmds := []tea.Cmd{m.reload(desk.InitialLoads(u.Role)...)}
	if p := m.mgr.Poller(); p.Active() {
		cmds = append(cmds, pollAfter(m.opts.PollInterval, p.Generation()))
	}
	return tea.Batch(cmds...)
}

// logout clears the identity and returns a fresh login screen.
func (m Model) logout() Model {
	ctx, cancel := m.requestContext()
	defer cancel()
	if err := m.mgr.Logout(ctx); err != nil {
		m.opts.Logger.Warn().Err(err).Msg("clear identity")
	}
	return m.reset()
}

// reset discards all session state. The identity subscription already
// in flight keeps running, so it is not re-armed here.
func (m Model) reset() Model {
	fresh := New(m.client, m.mgr, m.opts)
	fresh.login.restoring = false
	fresh.nextNote = m.nextNote
	fresh.width, fresh.height = m.width, m.height
	fresh.resizeKnowledge()
	return fresh
}

func (m Model) handleIdentity(ev identity.Event) (tea.Model, tea.Cmd) {
	next := waitIdentity(m.opts.Identity)
	s := m.mgr.Current()
	switch {
	case !ev.Present && s != nil:
		m.opts.Logger.Info().Int64("user_id", s.User.ID).Msg("identity cleared elsewhere")
		m.mgr.End()
		return m.reset(), next
	case ev.Present && s != nil && ev.UserID != s.User.ID:
		m.opts.Logger.Info().Int64("user_id", ev.UserID).Msg("identity switched elsewhere")
		m.mgr.End()
		fresh := m.reset()
		return fresh, tea.Batch(next, fresh.restoreUser(ev.UserID))
	case ev.Present && s == nil && !m.login.pending:
		return m, tea.Batch(next, m.restoreUser(ev.UserID))
	}
	return m, next
}

func (m *Model) activate(tab desk.Tab) tea.Cmd {
	if err := m.tabs.Activate(tab); err != nil {
		return nil
	}
	m.editing = tab == desk.TabCreate
	if s := m.mgr.Current(); s != nil {
		s.CurrentTicketID = 0
	}
	return m.reload(desk.Loads(tab)...)
}

func (m *Model) cycle(delta int) tea.Cmd {
	probe := m.tabs
	return m.activate(probe.Cycle(delta))
}

func (m *Model) applyLoad(r loadedMsg) tea.Cmd {
	s := m.mgr.Current()
	if s == nil || s.ID != r.session {
		return nil
	}
	if r.err != nil {
		if api.IsTransport(r.err) {
			m.opts.Logger.Warn().Err(r.err).Int("load", int(r.load)).Msg("load failed")
			return m.notify(loadFailure(r.load), true)
		}
		m.opts.Logger.Debug().Err(r.err).Int("load", int(r.load)).Msg("load rejected")
		return nil
	}
	if !s.Apply(r.load, r.seq) {
		m.opts.Logger.Debug().Int("load", int(r.load)).Uint64("seq", r.seq).Msg("stale response dropped")
		return nil
	}
	switch r.load {
	case desk.LoadKnowledge:
		m.knowledge = desk.SortKnowledge(r.knowledge)
		m.refreshKnowledge()
	case desk.LoadStats:
		st := r.stats
		m.stats = &st
	default:
		m.tickets[r.load] = r.tickets
		tab := listTab(r.load)
		if n := len(r.tickets); m.cursor[tab] >= n {
			m.cursor[tab] = max(n-1, 0)
		}
	}
	return nil
}

func loadFailure(l desk.Load) string {
	switch l {
	case desk.LoadKnowledge:
		return desk.MsgKBFailed
	case desk.LoadStats:
		return desk.MsgStatsFailed
	}
	return desk.MsgTicketsFailed
}

func listTab(l desk.Load) desk.Tab {
	switch l {
	case desk.LoadMy:
		return desk.TabMy
	case desk.LoadOpen:
		return desk.TabOpen
	case desk.LoadAssigned:
		return desk.TabAssigned
	}
	return desk.TabNone
}

func listLoad(tab desk.Tab) desk.Load {
	switch tab {
	case desk.TabMy:
		return desk.LoadMy
	case desk.TabOpen:
		return desk.LoadOpen
	case desk.TabAssigned:
		return desk.LoadAssigned
	}
	return 0
}

func (m *Model) moveCursor(tab desk.Tab, delta int) {
	n := len(m.tickets[listLoad(tab)])
	if n == 0 {
		return
	}
	m.cursor[tab] = min(max(m.cursor[tab]+delta, 0), n-1)
}

func (m Model) selectedTicket() (models.Ticket, bool) {
	tab := m.tabs.ActivePanel()
	list := m.tickets[listLoad(tab)]
	i := m.cursor[tab]
	if i < 0 || i >= len(list) {
		return models.Ticket{}, false
	}
	return list[i], true
}

func (m *Model) act(action desk.Action) tea.Cmd {
	s := m.mgr.Current()
	t, ok := m.selectedTicket()
	if s == nil || !ok {
		return nil
	}
	if !slices.Contains(desk.TicketActions(s.User.Role, m.tabs.ActivePanel(), t), action) {
		return nil
	}
	if action == desk.ActionDetails {
		return m.openTicket(t.ID)
	}
	return m.ticketAction(s.ID, s.User.ID, action, t.ID)
}

var actionMessages = map[desk.Action][2]string{
	desk.ActionAssign:  {desk.MsgTicketAssigned, desk.MsgAssignFailed},
	desk.ActionConfirm: {desk.MsgTicketClosed, desk.MsgConfirmFailed},
	desk.ActionReturn:  {desk.MsgTicketReturned, desk.MsgReturnFailed},
}

func (m *Model) handleAction(msg actionDoneMsg) tea.Cmd {
	texts := actionMessages[msg.action]
	if msg.err != nil {
		return m.fail(msg.err, texts[1])
	}
	reload := m.reload(desk.LoadMy)
	if msg.action == desk.ActionAssign {
		reload = m.reload(desk.LoadOpen, desk.LoadAssigned)
	}
	return tea.Batch(m.notify(texts[0], false), reload)
}

func (m *Model) openTicket(ticketID int64) tea.Cmd {
	s := m.mgr.Current()
	if s == nil || ticketID == 0 {
		return nil
	}
	s.CurrentTicketID = ticketID
	m.tabs.EnterDetails()
	m.editing = false
	if m.details.formTicket != ticketID {
		m.details.solution.Reset()
		m.details.usedKB = false
		m.details.acceptedKBID = nil
		m.details.formTicket = ticketID
	}
	m.details.ticketID = ticketID
	m.details.data = nil
	m.details.loading = true
	m.details.selected = 0
	return m.loadDetails(s.ID, s.User.ID, ticketID)
}

func (m *Model) exitDetails() tea.Cmd {
	s := m.mgr.Current()
	if s == nil {
		return nil
	}
	s.CurrentTicketID = 0
	m.editing = false
	back := m.tabs.ExitDetails(s.User.Role)
	return m.reload(desk.Loads(back)...)
}

func (m *Model) acceptRecommendation() tea.Cmd {
	d := m.details.data
	if d == nil || m.details.selected >= len(d.Recommendations) {
		return nil
	}
	kbID := d.Recommendations[m.details.selected].KBID
	m.details.usedKB = true
	m.details.acceptedKBID = &kbID
	return m.notify(desk.MsgRecAccepted, false)
}

func (m *Model) submitCreate() tea.Cmd {
	s := m.mgr.Current()
	if s == nil || m.create.pending || m.tabs.ActivePanel() != desk.TabCreate {
		return nil
	}
	m.create.pending = true
	req := models.CreateTicketRequest{
		Description: m.create.description.Value(),
		ContactInfo: m.create.contact.Value(),
	}
	return m.createTicket(s.ID, s.User.ID, req)
}

func (m *Model) submitResolution() tea.Cmd {
	s := m.mgr.Current()
	if s == nil || m.details.pending || !m.tabs.InDetails() {
		return nil
	}
	solution := m.details.solution.Value()
	if err := desk.ValidateResolution(m.details.usedKB, solution); err != nil {
		return m.notify(err.Error(), true)
	}
	m.details.pending = true
	req := models.ResolveRequest{
		AppliedSolution: solution,
		UsedKB:          m.details.usedKB,
		AcceptedKBID:    m.details.acceptedKBID,
	}
	return m.resolveTicket(s.ID, s.User.ID, s.CurrentTicketID, req)
}

func (m *Model) handleResolved(msg resolvedMsg) tea.Cmd {
	m.details.pending = false
	if msg.err != nil {
		return m.fail(msg.err, desk.MsgResolveFailed)
	}
	text := desk.MsgTicketResolved
	if msg.resp.AddedToKB {
		text = desk.MsgAddedToKB
	}
	if m.details.formTicket == msg.ticketID {
		m.details.solution.Reset()
		m.details.usedKB = false
		m.details.acceptedKBID = nil
		m.details.formTicket = 0
	}
	note := m.notify(text, false)
	// Navigate back only while the resolved ticket is still on screen.
	if s := m.mgr.Current(); !m.tabs.InDetails() || s == nil || s.CurrentTicketID != msg.ticketID {
		return note
	}
	return tea.Batch(note, m.exitDetails())
}

// fail reports err under text, or as a connection error when the request
// never reached the server.
func (m *Model) fail(err error, text string) tea.Cmd {
	if api.IsTransport(err) {
		text = desk.MsgConnection
	}
	m.opts.Logger.Warn().Err(err).Str("notice", text).Msg("request failed")
	return m.notify(text, true)
}

func (m *Model) notify(text string, isErr bool) tea.Cmd {
	m.nextNote++
	id := m.nextNote
	m.notes = append(m.notes, notification{id: id, text: text, err: isErr})
	return tea.Tick(m.opts.NotifyTTL, func(time.Time) tea.Msg {
		return notifyExpireMsg{id: id}
	})
}

func (m *Model) resizeKnowledge() {
	m.kbView.Width = max(m.width, 20)
	m.kbView.Height = max(m.height-chromeHeight, 3)
	m.refreshKnowledge()
}

func (m *Model) refreshKnowledge() {
	m.kbView.SetContent(m.renderKnowledge())
}
