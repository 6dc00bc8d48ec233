package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/freedom_case_2/servicedesk/internal/ai"
	"github.com/freedom_case_2/servicedesk/internal/api"
	"github.com/freedom_case_2/servicedesk/internal/config"
	"github.com/freedom_case_2/servicedesk/internal/db"
	"github.com/freedom_case_2/servicedesk/internal/desk"
	httpapi "github.com/freedom_case_2/servicedesk/internal/http"
	"github.com/freedom_case_2/servicedesk/internal/identity"
	"github.com/freedom_case_2/servicedesk/internal/models"
	"github.com/freedom_case_2/servicedesk/internal/service"
	"github.com/freedom_case_2/servicedesk/internal/session"
)

type harness struct {
	svc      *service.TicketService
	identity *identity.MemoryStore
	client   *api.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith lets wrap intercept requests before they reach the
// stub router.
func newHarnessWith(t *testing.T, wrap func(http.Handler) http.Handler) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := db.New()
	if err := store.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := &service.TicketService{Store: store, Recommender: ai.OverlapRecommender{}, Logger: zerolog.Nop()}
	var handler http.Handler = httpapi.Router(config.Config{}, svc, zerolog.Nop())
	if wrap != nil {
		handler = wrap(handler)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &harness{
		svc:      svc,
		identity: &identity.MemoryStore{},
		client:   api.New(srv.URL+"/api", 5*time.Second, zerolog.Nop()),
	}
}

func (h *harness) model(t *testing.T) Model {
	t.Helper()
	mgr := &session.Manager{Backend: h.client, Identity: h.identity, Logger: zerolog.Nop()}
	m := New(h.client, mgr, Options{
		PollInterval:   time.Millisecond,
		NotifyTTL:      time.Millisecond,
		RequestTimeout: 5 * time.Second,
		Logger:         zerolog.Nop(),
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return drain(t, m, m.Init())
}

func (h *harness) user(t *testing.T, email string) db.User {
	t.Helper()
	u, err := h.svc.Store.UserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("user %s: %v", email, err)
	}
	return u
}

// resolvedTicket creates a ticket for the client and walks it to resolved.
func (h *harness) resolvedTicket(t *testing.T) models.Ticket {
	t.Helper()
	ctx := context.Background()
	ticket := h.openTicket(t)
	specialist := h.user(t, "specialist@example.com")
	if _, err := h.svc.Assign(ctx, specialist, ticket.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := h.svc.Resolve(ctx, specialist, ticket.ID, models.ResolveRequest{AppliedSolution: "Заменить блок питания"}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return ticket
}

func (h *harness) openTicket(t *testing.T) models.Ticket {
	t.Helper()
	ticket, err := h.svc.Create(context.Background(), h.user(t, "user@example.com"), models.CreateTicketRequest{
		Description: "Не включается компьютер в бухгалтерии",
		ContactInfo: "доб. 120",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return ticket
}

// drain runs cmd and every command it produces, feeding the messages
// back into the model. Poll ticks and notification expiry are skipped
// so the loop ends.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			t.Fatalf("command loop did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, pollTickMsg, notifyExpireMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			next, more := m.Update(msg)
			m = next.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	return drain(t, next.(Model), cmd)
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		m = update(t, m, k)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter  = tea.KeyMsg{Type: tea.KeyEnter}
	tab    = tea.KeyMsg{Type: tea.KeyTab}
	esc    = tea.KeyMsg{Type: tea.KeyEsc}
	submit = tea.KeyMsg{Type: tea.KeyCtrlS}
)

func login(t *testing.T, m Model, email string) Model {
	t.Helper()
	return press(t, m, runes(email), enter, runes(db.DemoPassword), enter)
}

func noteTexts(m Model) []string {
	out := make([]string, 0, len(m.notes))
	for _, n := range m.notes {
		out = append(out, n.text)
	}
	return out
}

func expectNote(t *testing.T, m Model, text string) {
	t.Helper()
	if !slices.Contains(noteTexts(m), text) {
		t.Fatalf("expected notification %q, got %q", text, noteTexts(m))
	}
}

func TestUserLoginOpensCreateTab(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "user@example.com")

	if m.screen != screenDesk {
		t.Fatalf("expected desk screen after login")
	}
	if got := m.tabs.ActivePanel(); got != desk.TabCreate {
		t.Fatalf("expected create tab, got %v", got)
	}
	if !m.editing {
		t.Fatalf("create tab should focus the description field")
	}
	expectNote(t, m, desk.MsgLoginOK)
	if id, ok, _ := h.identity.Load(context.Background()); !ok || id != 3 {
		t.Fatalf("expected stored identity 3, got %d %v", id, ok)
	}
	if view := m.View(); !strings.Contains(view, "Пользователь") {
		t.Fatalf("expected role in header, got:\n%s", view)
	}
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)
	m := press(t, h.model(t), runes("user@example.com"), enter, runes("wrong"), enter)

	if m.screen != screenLogin {
		t.Fatalf("rejected login must stay on the login screen")
	}
	expectNote(t, m, desk.MsgLoginFailed)
	if _, ok, _ := h.identity.Load(context.Background()); ok {
		t.Fatalf("rejected login must not persist an identity")
	}
}

func TestLoginServerDown(t *testing.T) {
	h := newHarness(t)
	h.client = api.New("http://127.0.0.1:1/api", time.Second, zerolog.Nop())
	m := login(t, h.model(t), "user@example.com")
	expectNote(t, m, desk.MsgServerDown)
}

func TestRestoreFromStoredIdentity(t *testing.T) {
	h := newHarness(t)
	_ = h.identity.Save(context.Background(), 2)
	m := h.model(t)

	s := m.mgr.Current()
	if s == nil || s.User.Role != models.RoleSpecialist {
		t.Fatalf("expected restored specialist session, got %+v", s)
	}
	if m.tabs.ActivePanel() != desk.TabOpen {
		t.Fatalf("expected open tickets tab, got %v", m.tabs.ActivePanel())
	}
}

func TestRestoreRejectedIdentityIsCleared(t *testing.T) {
	h := newHarness(t)
	_ = h.identity.Save(context.Background(), 99)
	m := h.model(t)

	if m.screen != screenLogin || m.login.restoring {
		t.Fatalf("expected idle login screen")
	}
	if _, ok, _ := h.identity.Load(context.Background()); ok {
		t.Fatalf("unknown identity should be cleared")
	}
}

func TestCreateTicket(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "user@example.com")
	m = press(t, m, runes("Не открывается корпоративная почта"), tab, runes("каб. 5"), submit)

	expectNote(t, m, desk.MsgTicketCreated)
	if m.create.description.Value() != "" || m.create.contact.Value() != "" {
		t.Fatalf("form should be cleared after create")
	}
	if got := m.tickets[desk.LoadMy]; len(got) != 1 {
		t.Fatalf("expected my tickets reloaded, got %+v", got)
	}

	m = press(t, m, esc, runes("2"))
	if m.tabs.ActivePanel() != desk.TabMy {
		t.Fatalf("expected my tickets tab, got %v", m.tabs.ActivePanel())
	}
	if view := m.View(); !strings.Contains(view, "Не открывается корпоративная почта...") {
		t.Fatalf("expected truncated description in list, got:\n%s", view)
	}
}

func TestCreateRejectedByServerKeepsForm(t *testing.T) {
	h := newHarnessWith(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && r.URL.Path == "/api/tickets" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"detail":"Внутренняя ошибка"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	m := login(t, h.model(t), "user@example.com")
	m = press(t, m, runes("Не работает сканер на третьем этаже"), tab, runes("доб. 301"), submit)

	expectNote(t, m, desk.MsgCreateFailed)
	if got := m.create.description.Value(); got != "Не работает сканер на третьем этаже" {
		t.Fatalf("description must be kept, got %q", got)
	}
	if got := m.create.contact.Value(); got != "доб. 301" {
		t.Fatalf("contact must be kept, got %q", got)
	}
	if m.create.pending {
		t.Fatalf("form must accept a retry")
	}
}

func TestCreateFailureKeepsForm(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "user@example.com")
	m = press(t, m, runes("коротко"), submit)

	expectNote(t, m, desk.MsgCreateFailed)
	if got := m.create.description.Value(); got != "коротко" {
		t.Fatalf("form must keep its input, got %q", got)
	}
	if m.create.pending {
		t.Fatalf("form must accept a retry")
	}
}

func TestSpecialistAssignReloadsBothLists(t *testing.T) {
	h := newHarness(t)
	h.openTicket(t)
	m := login(t, h.model(t), "specialist@example.com")

	if got := m.tickets[desk.LoadOpen]; len(got) != 1 {
		t.Fatalf("expected one open ticket, got %+v", got)
	}
	if !m.mgr.Poller().Active() {
		t.Fatalf("specialist session should poll")
	}

	m = press(t, m, runes("a"))
	expectNote(t, m, desk.MsgTicketAssigned)
	if got := m.tickets[desk.LoadOpen]; len(got) != 0 {
		t.Fatalf("expected open list emptied, got %+v", got)
	}
	if got := m.tickets[desk.LoadAssigned]; len(got) != 1 {
		t.Fatalf("expected assigned list filled, got %+v", got)
	}
}

func TestAssignConflictShowsFailure(t *testing.T) {
	h := newHarness(t)
	ticket := h.openTicket(t)
	m := login(t, h.model(t), "specialist@example.com")

	if _, err := h.svc.Assign(context.Background(), h.user(t, "admin@example.com"), ticket.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	m = press(t, m, runes("a"))
	expectNote(t, m, desk.MsgAssignFailed)
}

func TestResolveWithAcceptedRecommendation(t *testing.T) {
	h := newHarness(t)
	h.openTicket(t)
	m := login(t, h.model(t), "specialist@example.com")
	m = press(t, m, runes("a"), runes("2"), enter)

	if !m.tabs.InDetails() {
		t.Fatalf("expected details panel")
	}
	d := m.details.data
	if d == nil || len(d.Recommendations) == 0 {
		t.Fatalf("expected recommendations, got %+v", d)
	}
	if view := m.View(); !strings.Contains(view, "Рекомендация №1") {
		t.Fatalf("expected recommendation in view, got:\n%s", view)
	}

	m = press(t, m, submit)
	expectNote(t, m, desk.MsgSolutionRequired)
	if !m.tabs.InDetails() {
		t.Fatalf("blocked resolution must stay on details")
	}

	m = press(t, m, runes("u"))
	if !m.details.usedKB || m.details.acceptedKBID == nil || *m.details.acceptedKBID != d.Recommendations[0].KBID {
		t.Fatalf("expected accepted recommendation, got %+v", m.details)
	}

	m = press(t, m, submit)
	expectNote(t, m, desk.MsgTicketResolved)
	if m.tabs.ActivePanel() != desk.TabAssigned {
		t.Fatalf("expected return to assigned tab, got %v", m.tabs.ActivePanel())
	}
	if got := m.tickets[desk.LoadAssigned]; len(got) != 0 {
		t.Fatalf("resolved ticket should leave the assigned list, got %+v", got)
	}
	if s := m.mgr.Current(); s.CurrentTicketID != 0 {
		t.Fatalf("current ticket should be cleared, got %d", s.CurrentTicketID)
	}
}

func TestResolveWithFreeTextAddsKnowledge(t *testing.T) {
	h := newHarness(t)
	ticket, _ := h.svc.Create(context.Background(), h.user(t, "user@example.com"), models.CreateTicketRequest{
		Description: "Сломался стул в переговорной",
		ContactInfo: "офис 2",
	})
	m := login(t, h.model(t), "specialist@example.com")
	m = press(t, m, runes("a"), runes("2"), enter)

	if m.details.ticketID != ticket.ID || m.details.data == nil || !m.details.data.IsNovel {
		t.Fatalf("expected novel ticket details, got %+v", m.details)
	}
	m = press(t, m, runes("i"), runes("Заменить стул"), submit)
	expectNote(t, m, desk.MsgAddedToKB)
	if st := h.svc.Stats(context.Background()); st.KnowledgeTotal != 4 {
		t.Fatalf("expected new knowledge entry, got %d", st.KnowledgeTotal)
	}
}

func TestUserConfirmsResolvedTicket(t *testing.T) {
	h := newHarness(t)
	h.resolvedTicket(t)
	m := login(t, h.model(t), "user@example.com")
	m = press(t, m, esc, runes("2"))

	if view := m.View(); !strings.Contains(view, "Подтвердить") {
		t.Fatalf("expected confirm action on resolved ticket, got:\n%s", view)
	}
	m = press(t, m, runes("c"))
	expectNote(t, m, desk.MsgTicketClosed)
	if got := m.tickets[desk.LoadMy]; len(got) != 1 || got[0].StatusID != models.StatusClosed {
		t.Fatalf("expected closed ticket, got %+v", got)
	}
}

func TestUserReturnsResolvedTicket(t *testing.T) {
	h := newHarness(t)
	h.resolvedTicket(t)
	m := login(t, h.model(t), "user@example.com")
	m = press(t, m, esc, runes("2"), runes("r"))

	expectNote(t, m, desk.MsgTicketReturned)
	if got := m.tickets[desk.LoadMy]; len(got) != 1 || got[0].StatusID != models.StatusInProgress {
		t.Fatalf("expected ticket back in work, got %+v", got)
	}
}

func TestAdminKnowledgeNewestFirst(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "admin@example.com")

	ids := make([]int64, 0, len(m.knowledge))
	for _, k := range m.knowledge {
		ids = append(ids, k.ID)
	}
	if !slices.Equal(ids, []int64{3, 2, 1}) {
		t.Fatalf("expected descending ids, got %v", ids)
	}
	view := m.View()
	if i, j := strings.Index(view, "Запись #3"), strings.Index(view, "Запись #1"); i < 0 || j < 0 || i > j {
		t.Fatalf("expected newest entry first, got:\n%s", view)
	}

	m = press(t, m, runes("2"))
	if m.stats == nil || m.stats.KnowledgeTotal != 3 {
		t.Fatalf("expected stats loaded, got %+v", m.stats)
	}
	if view := m.View(); !strings.Contains(view, "Записей базы знаний:") {
		t.Fatalf("expected stats labels, got:\n%s", view)
	}
}

func TestLogoutClearsIdentityAndStopsPolling(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "specialist@example.com")
	m = press(t, m, runes("L"))

	if m.screen != screenLogin {
		t.Fatalf("expected login screen after logout")
	}
	if m.mgr.Poller().Active() || m.mgr.Current() != nil {
		t.Fatalf("logout must end the session and polling")
	}
	if _, ok, _ := h.identity.Load(context.Background()); ok {
		t.Fatalf("logout must clear the identity")
	}
}

func TestStalePollTickIsDropped(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "specialist@example.com")
	old := m.mgr.Poller().Generation()

	m = press(t, m, runes("L"))
	m = login(t, m, "specialist@example.com")

	if _, cmd := m.Update(pollTickMsg{gen: old}); cmd != nil {
		t.Fatalf("tick from an earlier session must not reschedule")
	}
	if _, cmd := m.Update(pollTickMsg{gen: m.mgr.Poller().Generation()}); cmd == nil {
		t.Fatalf("current tick should reload and reschedule")
	}
}

func TestOlderLoadDoesNotOverwriteNewer(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "specialist@example.com")
	s := m.mgr.Current()

	first, second := s.Next(desk.LoadOpen), s.Next(desk.LoadOpen)
	newer := []models.Ticket{{ID: 2, StatusID: models.StatusOpen}}
	older := []models.Ticket{{ID: 1, StatusID: models.StatusOpen}}
	m = update(t, m, reloadMsg{results: []loadedMsg{{session: s.ID, load: desk.LoadOpen, seq: second, tickets: newer}}})
	m = update(t, m, reloadMsg{results: []loadedMsg{{session: s.ID, load: desk.LoadOpen, seq: first, tickets: older}}})

	if got := m.tickets[desk.LoadOpen]; len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected newer list to stay, got %+v", got)
	}
}

func TestResultFromEndedSessionIsIgnored(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "user@example.com")
	stale := m.mgr.Current().ID

	m = press(t, m, esc, runes("L"))
	m = login(t, m, "user@example.com")
	m.notes = nil

	m = update(t, m, createdMsg{session: stale})
	if len(m.notes) != 0 {
		t.Fatalf("stale result must not notify, got %q", noteTexts(m))
	}
}

func TestIdentityClearedElsewhereEndsSession(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "specialist@example.com")

	m = update(t, m, identityMsg{event: identity.Event{Present: false}, open: true})
	if m.screen != screenLogin || m.mgr.Current() != nil {
		t.Fatalf("expected session ended")
	}
	if m.mgr.Poller().Active() {
		t.Fatalf("polling must stop with the session")
	}
}

func TestIdentitySwitchedElsewhereRestoresOtherUser(t *testing.T) {
	h := newHarness(t)
	m := login(t, h.model(t), "specialist@example.com")

	m = update(t, m, identityMsg{event: identity.Event{UserID: 1, Present: true}, open: true})
	s := m.mgr.Current()
	if s == nil || s.User.Role != models.RoleAdmin {
		t.Fatalf("expected admin session, got %+v", s)
	}
	if m.tabs.ActivePanel() != desk.TabKnowledge {
		t.Fatalf("expected knowledge tab, got %v", m.tabs.ActivePanel())
	}
}

func TestNotificationIDsSurviveReset(t *testing.T) {
	h := newHarness(t)
	m := h.model(t)
	m.notify("old", false)
	m = m.reset()
	m.notify(desk.MsgLoginOK, false)

	m = update(t, m, notifyExpireMsg{id: 1})
	expectNote(t, m, desk.MsgLoginOK)
}

func TestLateResolveKeepsCurrentTab(t *testing.T) {
	h := newHarness(t)
	h.openTicket(t)
	m := login(t, h.model(t), "specialist@example.com")
	m = press(t, m, runes("a"), runes("2"), enter, runes("u"))

	next, resolve := m.Update(submit)
	m = next.(Model)
	if resolve == nil {
		t.Fatalf("expected resolve command")
	}
	m = press(t, m, esc, runes("1"))
	if m.tabs.ActivePanel() != desk.TabOpen {
		t.Fatalf("expected open tab, got %v", m.tabs.ActivePanel())
	}

	m = update(t, m, resolve())
	expectNote(t, m, desk.MsgTicketResolved)
	if m.tabs.ActivePanel() != desk.TabOpen {
		t.Fatalf("late resolve must not navigate, got %v", m.tabs.ActivePanel())
	}
}
