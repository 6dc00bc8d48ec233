package db

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/freedom_case_2/servicedesk/internal/models"
)

var ErrNotFound = errors.New("not found")

type User struct {
	models.User
	PasswordHash string
	IsActive     bool
}

type Ticket struct {
	models.Ticket
	ClientUserID     int64
	SpecialistUserID *int64
	UpdatedAt        time.Time
}

type Recommendation struct {
	TicketID    int64
	KBID        int64
	Similarity  int
	Rank        int
	WasAccepted bool
}

// Store is the in-memory database behind the stub server. All access is
// serialized; WithTx restores the previous state when fn fails.
type Store struct {
	mu sync.Mutex

	users           map[int64]User
	tickets         map[int64]Ticket
	knowledge       map[int64]models.KnowledgeEntry
	recommendations []Recommendation

	nextUserID   int64
	nextTicketID int64
	nextKBID     int64

	Now func() time.Time
}

func New() *Store {
	return &Store{
		users:     map[int64]User{},
		tickets:   map[int64]Ticket{},
		knowledge: map[int64]models.KnowledgeEntry{},
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type Tx struct {
	s *Store
}

func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&Tx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	tickets         map[int64]Ticket
	knowledge       map[int64]models.KnowledgeEntry
	recommendations []Recommendation
	nextTicketID    int64
	nextKBID        int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		tickets:         make(map[int64]Ticket, len(s.tickets)),
		knowledge:       make(map[int64]models.KnowledgeEntry, len(s.knowledge)),
		recommendations: append([]Recommendation(nil), s.recommendations...),
		nextTicketID:    s.nextTicketID,
		nextKBID:        s.nextKBID,
	}
	for k, v := range s.tickets {
		snap.tickets[k] = v
	}
	for k, v := range s.knowledge {
		snap.knowledge[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.tickets = snap.tickets
	s.knowledge = snap.knowledge
	s.recommendations = snap.recommendations
	s.nextTicketID = snap.nextTicketID
	s.nextKBID = snap.nextKBID
}

func (s *Store) InsertUser(u User) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u.ID = s.nextUserID
	s.users[u.ID] = u
	return u
}

func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// ListTickets returns tickets matching keep, newest first.
func (s *Store) ListTickets(ctx context.Context, keep func(Ticket) bool) []models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []Ticket
	for _, t := range s.tickets {
		if keep(t) {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt.Time) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt.Time)
	})
	out := make([]models.Ticket, 0, len(rows))
	for _, t := range rows {
		out = append(out, t.Ticket)
	}
	return out
}

// ListKnowledge returns up to limit entries, most used first.
func (s *Store) ListKnowledge(ctx context.Context, limit int) []models.KnowledgeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listKnowledge(limit)
}

func (s *Store) listKnowledge(limit int) []models.KnowledgeEntry {
	out := make([]models.KnowledgeEntry, 0, len(s.knowledge))
	for _, k := range s.knowledge {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency == out[j].Frequency {
			return out[i].ID < out[j].ID
		}
		return out[i].Frequency > out[j].Frequency
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) Stats(ctx context.Context) models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.Stats
	for _, t := range s.tickets {
		st.TicketsTotal++
		if t.StatusID == models.StatusOpen {
			st.TicketsOpen++
		}
	}
	for _, k := range s.knowledge {
		st.KnowledgeTotal++
		st.KnowledgeUsage += int64(k.Frequency)
	}
	return st
}

func (tx *Tx) Ticket(id int64) (Ticket, error) {
	t, ok := tx.s.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

func (tx *Tx) InsertTicket(t Ticket) Ticket {
	tx.s.nextTicketID++
	t.ID = tx.s.nextTicketID
	now := tx.s.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = models.Timestamp{Time: now}
	}
	t.UpdatedAt = now
	tx.s.tickets[t.ID] = t
	return t
}

func (tx *Tx) UpdateTicket(t Ticket) {
	t.UpdatedAt = tx.s.Now()
	tx.s.tickets[t.ID] = t
}

func (tx *Tx) Knowledge(id int64) (models.KnowledgeEntry, error) {
	k, ok := tx.s.knowledge[id]
	if !ok {
		return models.KnowledgeEntry{}, ErrNotFound
	}
	return k, nil
}

func (tx *Tx) ListKnowledge(limit int) []models.KnowledgeEntry {
	return tx.s.listKnowledge(limit)
}

func (tx *Tx) InsertKnowledge(k models.KnowledgeEntry) models.KnowledgeEntry {
	tx.s.nextKBID++
	k.ID = tx.s.nextKBID
	if k.CreatedAt.IsZero() {
		k.CreatedAt = models.Timestamp{Time: tx.s.Now()}
	}
	tx.s.knowledge[k.ID] = k
	return k
}

func (tx *Tx) UpdateKnowledge(k models.KnowledgeEntry) {
	tx.s.knowledge[k.ID] = k
}

// KnowledgeBySolution finds an entry whose solution contains fragment,
// case-insensitively.
func (tx *Tx) KnowledgeBySolution(fragment string) (models.KnowledgeEntry, bool) {
	needle := strings.ToLower(fragment)
	for _, k := range tx.s.listKnowledge(0) {
		if strings.Contains(strings.ToLower(k.Solution), needle) {
			return k, true
		}
	}
	return models.KnowledgeEntry{}, false
}

func (tx *Tx) AddRecommendations(recs []Recommendation) {
	tx.s.recommendations = append(tx.s.recommendations, recs...)
}

func (tx *Tx) MarkAccepted(ticketID, kbID int64) int {
	n := 0
	for i := range tx.s.recommendations {
		r := &tx.s.recommendations[i]
		if r.TicketID == ticketID && r.KBID == kbID {
			r.WasAccepted = true
			n++
		}
	}
	return n
}

func (s *Store) Recommendations(ticketID int64) []Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Recommendation
	for _, r := range s.recommendations {
		if r.TicketID == ticketID {
			out = append(out, r)
		}
	}
	return out
}
