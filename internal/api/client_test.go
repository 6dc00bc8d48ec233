package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/freedom_case_2/servicedesk/internal/ai"
	"github.com/freedom_case_2/servicedesk/internal/config"
	"github.com/freedom_case_2/servicedesk/internal/db"
	httpapi "github.com/freedom_case_2/servicedesk/internal/http"
	"github.com/freedom_case_2/servicedesk/internal/models"
	"github.com/freedom_case_2/servicedesk/internal/service"
)

const (
	adminID      = 1
	specialistID = 2
	clientID     = 3
)

func newStub(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := db.New()
	if err := store.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := &service.TicketService{Store: store, Recommender: ai.OverlapRecommender{}, Logger: zerolog.Nop()}
	srv := httptest.NewServer(httpapi.Router(config.Config{}, svc, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", 5*time.Second, zerolog.Nop())
}

func TestLoginAndMe(t *testing.T) {
	c := newStub(t)
	ctx := context.Background()

	resp, err := c.Login(ctx, "user@example.com", db.DemoPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.UserID != clientID || resp.Role != models.RoleUser {
		t.Fatalf("unexpected login response: %+v", resp)
	}
	me, err := c.Me(ctx, resp.UserID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.FullName != "Петров Петр Петрович" {
		t.Fatalf("unexpected user: %+v", me)
	}

	_, err = c.Login(ctx, "user@example.com", "wrong")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if se.Detail != "Неверный email или пароль" {
		t.Fatalf("unexpected detail %q", se.Detail)
	}
}

func TestValidationFailsBeforeSending(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second, zerolog.Nop())

	_, err := c.CreateTicket(context.Background(), clientID, models.CreateTicketRequest{Description: "short"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := c.Login(context.Background(), "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty login, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no request, got %d", hits)
	}
}

func TestTicketFlow(t *testing.T) {
	c := newStub(t)
	ctx := context.Background()

	created, err := c.CreateTicket(ctx, clientID, models.CreateTicketRequest{
		Description: "Не включается компьютер в кабинете 12",
		ContactInfo: "доб. 112",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.StatusID != models.StatusOpen || created.CreatedAt.IsZero() {
		t.Fatalf("unexpected ticket: %+v", created)
	}

	open, err := c.OpenTickets(ctx, specialistID)
	if err != nil || len(open) != 1 {
		t.Fatalf("open tickets: %v %+v", err, open)
	}
	if _, err := c.AssignTicket(ctx, specialistID, created.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	assigned, err := c.AssignedTickets(ctx, specialistID)
	if err != nil || len(assigned) != 1 || assigned[0].StatusID != models.StatusInProgress {
		t.Fatalf("assigned tickets: %v %+v", err, assigned)
	}

	details, err := c.Recommendations(ctx, specialistID, created.ID)
	if err != nil {
		t.Fatalf("recommendations: %v", err)
	}
	if details.IsNovel || len(details.Recommendations) == 0 {
		t.Fatalf("expected known problem with recommendations, got %+v", details)
	}

	kbID := details.Recommendations[0].KBID
	res, err := c.ResolveTicket(ctx, specialistID, created.ID, models.ResolveRequest{UsedKB: true, AcceptedKBID: &kbID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.AddedToKB {
		t.Fatalf("accepted recommendation must not add to kb")
	}

	ret, err := c.ReturnTicket(ctx, clientID, created.ID)
	if err != nil || ret.Message != "Заявка возвращена в работу" {
		t.Fatalf("return: %v %+v", err, ret)
	}
	_, err = c.ConfirmTicket(ctx, clientID, created.ID)
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 confirming an in-progress ticket, got %v", err)
	}

	if _, err := c.ResolveTicket(ctx, specialistID, created.ID, models.ResolveRequest{AppliedSolution: "Заменить блок питания"}); err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	closed, err := c.ConfirmTicket(ctx, clientID, created.ID)
	if err != nil || closed.Message != "Заявка закрыта" {
		t.Fatalf("confirm: %v %+v", err, closed)
	}

	mine, err := c.MyTickets(ctx, clientID)
	if err != nil || len(mine) != 1 || mine[0].StatusID != models.StatusClosed {
		t.Fatalf("my tickets: %v %+v", err, mine)
	}
}

func TestKnowledgeAndStats(t *testing.T) {
	c := newStub(t)
	ctx := context.Background()

	kb, err := c.Knowledge(ctx, adminID, 200)
	if err != nil || len(kb) != 3 {
		t.Fatalf("knowledge: %v %+v", err, kb)
	}
	st, err := c.Stats(ctx, adminID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.KnowledgeTotal != 3 || st.KnowledgeUsage != 10 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if _, err := c.Stats(ctx, clientID); StatusCode(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, zerolog.Nop())
	_, err := c.MyTickets(context.Background(), clientID)
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if StatusCode(err) != 0 {
		t.Fatalf("transport error must not carry a status")
	}
}

func TestMalformedBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zerolog.Nop())
	if _, err := c.Stats(context.Background(), adminID); !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestIdenticalLoadsShareOneRequest(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":7,"description":"x","contact_info":"","status_id":1,"created_at":"2024-05-01T10:00:00"}]`))
	}))
	defer srv.Close()
	c := New(srv.URL, 5*time.Second, zerolog.Nop())

	var wg sync.WaitGroup
	results := make([][]models.Ticket, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.OpenTickets(context.Background(), specialistID)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected one request, got %d", n)
	}
	for i, r := range results {
		if len(r) != 1 || r[0].ID != 7 {
			t.Fatalf("result %d: %+v", i, r)
		}
	}
}

func TestLoadAfterWriteIsNotShared(t *testing.T) {
	var hits, assigned int32
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut {
			atomic.StoreInt32(&assigned, 1)
			_, _ = w.Write([]byte(`{"message":"Заявка взята в работу"}`))
			return
		}
		if atomic.AddInt32(&hits, 1) == 1 {
			close(started)
			<-release
		}
		if atomic.LoadInt32(&assigned) == 1 {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":42,"description":"x","contact_info":"","status_id":1}]`))
	}))
	defer srv.Close()
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()
	c := New(srv.URL, 5*time.Second, zerolog.Nop())
	ctx := context.Background()

	poll := make(chan []models.Ticket, 1)
	go func() {
		list, _ := c.OpenTickets(ctx, specialistID)
		poll <- list
	}()
	<-started

	if _, err := c.AssignTicket(ctx, specialistID, 42); err != nil {
		t.Fatalf("assign: %v", err)
	}
	after, err := c.OpenTickets(ctx, specialistID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("reload after assign must reach the server, got %+v", after)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected two list requests, got %d", n)
	}

	close(release)
	if stale := <-poll; len(stale) != 1 {
		t.Fatalf("in-flight load should still see the old list, got %+v", stale)
	}
}

func TestParseDetail(t *testing.T) {
	cases := []struct{ body, want string }{
		{`{"detail":"Заявка не найдена"}`, "Заявка не найдена"},
		{`{"detail":[{"msg":"field required","loc":["body"]}]}`, "field required"},
		{`{"error":{"message":"Invalid payload"}}`, "Invalid payload"},
		{`oops`, ""},
	}
	for _, tc := range cases {
		if got := parseDetail([]byte(tc.body)); got != tc.want {
			t.Fatalf("parseDetail(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}
