package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/freedom_case_2/servicedesk/internal/ai"
	"github.com/freedom_case_2/servicedesk/internal/db"
	"github.com/freedom_case_2/servicedesk/internal/models"
	"github.com/freedom_case_2/servicedesk/internal/utils"
)

const (
	recommendPool    = 100
	kbProblemMaxLen  = 1000
	solutionMatchLen = 50
)

// Error carries the HTTP status and user-facing detail of a rejected
// operation.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

func fail(status int, detail string) error {
	return &Error{Status: status, Detail: detail}
}

func AsError(err error) (*Error, bool) {
	var se *Error
	ok := errors.As(err, &se)
	return se, ok
}

type TicketService struct {
	Store       *db.Store
	Recommender ai.Recommender
	Logger      zerolog.Logger
}

func (s *TicketService) Authenticate(ctx context.Context, email, password string) (db.User, error) {
	u, err := s.Store.UserByEmail(ctx, email)
	if err != nil || u.PasswordHash != utils.HashPassword(password) {
		return db.User{}, fail(http.StatusUnauthorized, "Неверный email или пароль")
	}
	return u, nil
}

func (s *TicketService) User(ctx context.Context, id int64) (db.User, error) {
	u, err := s.Store.UserByID(ctx, id)
	if err != nil {
		return db.User{}, fail(http.StatusNotFound, "Пользователь не найден")
	}
	if !u.IsActive {
		return db.User{}, fail(http.StatusForbidden, "Аккаунт заблокирован")
	}
	return u, nil
}

// RequireRole admits the named role and admins.
func RequireRole(u db.User, role models.Role) error {
	if u.Role != role && u.Role != models.RoleAdmin {
		return fail(http.StatusForbidden, "Недостаточно прав")
	}
	return nil
}

func (s *TicketService) Create(ctx context.Context, u db.User, req models.CreateTicketRequest) (models.Ticket, error) {
	var created db.Ticket
	err := s.Store.WithTx(ctx, func(tx *db.Tx) error {
		created = tx.InsertTicket(db.Ticket{
			Ticket: models.Ticket{
				Description: req.Description,
				ContactInfo: req.ContactInfo,
				StatusID:    models.StatusOpen,
			},
			ClientUserID: u.ID,
		})
		return nil
	})
	if err != nil {
		return models.Ticket{}, err
	}
	s.Logger.Info().Int64("ticket_id", created.ID).Int64("user_id", u.ID).Msg("ticket created")
	return created.Ticket, nil
}

func (s *TicketService) MyTickets(ctx context.Context, u db.User) []models.Ticket {
	return s.Store.ListTickets(ctx, func(t db.Ticket) bool {
		return t.ClientUserID == u.ID
	})
}

func (s *TicketService) OpenTickets(ctx context.Context) []models.Ticket {
	return s.Store.ListTickets(ctx, func(t db.Ticket) bool {
		return t.StatusID == models.StatusOpen
	})
}

func (s *TicketService) AssignedTickets(ctx context.Context, u db.User) []models.Ticket {
	return s.Store.ListTickets(ctx, func(t db.Ticket) bool {
		return t.StatusID == models.StatusInProgress && t.SpecialistUserID != nil && *t.SpecialistUserID == u.ID
	})
}

func (s *TicketService) Assign(ctx context.Context, u db.User, ticketID int64) (models.MessageResponse, error) {
	err := s.Store.WithTx(ctx, func(tx *db.Tx) error {
		t, err := tx.Ticket(ticketID)
		if err != nil {
			return fail(http.StatusNotFound, "Заявка не найдена")
		}
		if t.StatusID != models.StatusOpen {
			return fail(http.StatusBadRequest, "Заявка уже в работе")
		}
		specialist := u.ID
		t.StatusID = models.StatusInProgress
		t.SpecialistUserID = &specialist
		tx.UpdateTicket(t)
		return nil
	})
	if err != nil {
		return models.MessageResponse{}, err
	}
	s.Logger.Info().Int64("ticket_id", ticketID).Int64("specialist_id", u.ID).Msg("ticket assigned")
	return models.MessageResponse{Message: "Заявка взята в работу"}, nil
}

func (s *TicketService) Recommend(ctx context.Context, ticketID int64) (models.TicketDetails, error) {
	var details models.TicketDetails
	err := s.Store.WithTx(ctx, func(tx *db.Tx) error {
		t, err := tx.Ticket(ticketID)
		if err != nil {
			return fail(http.StatusNotFound, "Заявка не найдена")
		}
		res, err := s.Recommender.Recommend(ctx, t.Description, tx.ListKnowledge(recommendPool))
		if err != nil {
			return err
		}
		recs := make([]db.Recommendation, 0, len(res.Recommendations))
		for _, r := range res.Recommendations {
			recs = append(recs, db.Recommendation{TicketID: t.ID, KBID: r.KBID, Similarity: r.Similarity, Rank: r.Rank})
		}
		tx.AddRecommendations(recs)

		details = models.TicketDetails{
			TicketID:        t.ID,
			Description:     t.Description,
			ContactInfo:     t.ContactInfo,
			StatusID:        t.StatusID,
			IsNovel:         res.IsNovel,
			MaxSimilarity:   res.MaxSimilarity,
			Recommendations: res.Recommendations,
		}
		if details.Recommendations == nil {
			details.Recommendations = []models.Recommendation{}
		}
		return nil
	})
	return details, err
}

func (s *TicketService) Resolve(ctx context.Context, u db.User, ticketID int64, req models.ResolveRequest) (models.ResolveResponse, error) {
	addedToKB := false
	err := s.Store.WithTx(ctx, func(tx *db.Tx) error {
		t, err := tx.Ticket(ticketID)
		if err != nil {
			return fail(http.StatusNotFound, "Заявка не найдена")
		}
		if t.StatusID != models.StatusInProgress {
			return fail(http.StatusBadRequest, "Заявка не в работе")
		}
		t.StatusID = models.StatusResolved
		tx.UpdateTicket(t)

		if req.UsedKB && req.AcceptedKBID != nil {
			if k, err := tx.Knowledge(*req.AcceptedKBID); err == nil {
				k.Frequency++
				tx.UpdateKnowledge(k)
			}
			tx.MarkAccepted(t.ID, *req.AcceptedKBID)
			return nil
		}

		solution := req.AppliedSolution
		if strings.TrimSpace(solution) == "" {
			return fail(http.StatusBadRequest, "Введите решение")
		}
		if _, exists := tx.KnowledgeBySolution(prefix(solution, solutionMatchLen)); exists {
			return nil
		}
		tx.InsertKnowledge(models.KnowledgeEntry{
			Problem:         prefix(t.Description, kbProblemMaxLen),
			Solution:        solution,
			Frequency:       1,
			IsAutoGenerated: true,
		})
		addedToKB = true
		return nil
	})
	if err != nil {
		return models.ResolveResponse{}, err
	}
	s.Logger.Info().Int64("ticket_id", ticketID).Int64("specialist_id", u.ID).Bool("added_to_kb", addedToKB).Msg("ticket resolved")
	return models.ResolveResponse{Message: "Заявка выполнена", AddedToKB: addedToKB}, nil
}

// Confirm closes a resolved ticket, or sends it back to work when the
// client rejects the resolution.
func (s *TicketService) Confirm(ctx context.Context, u db.User, ticketID int64, confirmed bool) (models.MessageResponse, error) {
	var msg string
	err := s.Store.WithTx(ctx, func(tx *db.Tx) error {
		t, err := tx.Ticket(ticketID)
		if err != nil {
			return fail(http.StatusNotFound, "Заявка не найдена")
		}
		if t.ClientUserID != u.ID {
			return fail(http.StatusForbidden, "Недостаточно прав")
		}
		if t.StatusID != models.StatusResolved {
			return fail(http.StatusBadRequest, "Заявка ещё не выполнена")
		}
		if confirmed {
			t.StatusID = models.StatusClosed
			msg = "Заявка закрыта"
		} else {
			t.StatusID = models.StatusInProgress
			t.SpecialistUserID = nil
			msg = "Заявка возвращена в работу"
		}
		tx.UpdateTicket(t)
		return nil
	})
	if err != nil {
		return models.MessageResponse{}, err
	}
	s.Logger.Info().Int64("ticket_id", ticketID).Bool("confirmed", confirmed).Msg("ticket confirmation")
	return models.MessageResponse{Message: msg}, nil
}

func (s *TicketService) Knowledge(ctx context.Context, limit int) []models.KnowledgeEntry {
	return s.Store.ListKnowledge(ctx, limit)
}

func (s *TicketService) Stats(ctx context.Context) models.Stats {
	return s.Store.Stats(ctx)
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
