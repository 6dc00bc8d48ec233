// Package session owns the signed-in user and everything that lives only
// as long as that sign-in: the open ticket, list ordering and polling.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/freedom_case_2/servicedesk/internal/desk"
	"github.com/freedom_case_2/servicedesk/internal/identity"
	"github.com/freedom_case_2/servicedesk/internal/models"
)

// ErrProfile means the credentials were accepted but the user record
// could not be loaded. Nothing stays persisted in that case.
var ErrProfile = errors.New("user profile unavailable")

type Backend interface {
	Login(ctx context.Context, email, password string) (models.LoginResponse, error)
	Me(ctx context.Context, userID int64) (models.User, error)
}

type Session struct {
	ID              uint64
	User            models.User
	CurrentTicketID int64

	seq Sequencer
}

// Next issues a sequence number for a load of l.
func (s *Session) Next(l desk.Load) uint64 {
	return s.seq.Next(l)
}

// Apply reports whether a response carrying seq is newer than the last
// applied response for l, and records it if so.
func (s *Session) Apply(l desk.Load, seq uint64) bool {
	return s.seq.Apply(l, seq)
}

// Manager creates and disposes sessions. Login and Restore only perform
// I/O and may run off the UI goroutine; Begin and Logout mutate state
// and must not.
type Manager struct {
	Backend  Backend
	Identity identity.Store
	Logger   zerolog.Logger

	poller  Poller
	current *Session
	lastID  uint64
}

func (m *Manager) Login(ctx context.Context, email, password string) (models.User, error) {
	resp, err := m.Backend.Login(ctx, email, password)
	if err != nil {
		return models.User{}, err
	}
	if err := m.Identity.Save(ctx, resp.UserID); err != nil {
		return models.User{}, fmt.Errorf("persist identity: %w", err)
	}
	u, err := m.Backend.Me(ctx, resp.UserID)
	if err != nil {
		if clearErr := m.Identity.Clear(ctx); clearErr != nil {
			m.Logger.Warn().Err(clearErr).Msg("clear identity after failed profile load")
		}
		return models.User{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	m.Logger.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("logged in")
	return u, nil
}

// Restore loads the persisted user. A missing identity returns ok=false
// and no error; any failure clears the identity.
func (m *Manager) Restore(ctx context.Context) (models.User, bool, error) {
	id, ok, err := m.Identity.Load(ctx)
	if err != nil || !ok {
		if err != nil {
			_ = m.Identity.Clear(ctx)
		}
		return models.User{}, false, err
	}
	return m.RestoreID(ctx, id)
}

func (m *Manager) RestoreID(ctx context.Context, id int64) (models.User, bool, error) {
	u, err := m.Backend.Me(ctx, id)
	if err != nil {
		m.Logger.Info().Err(err).Int64("user_id", id).Msg("stored identity rejected")
		_ = m.Identity.Clear(ctx)
		return models.User{}, false, err
	}
	return u, true, nil
}

// Begin replaces any current session with a new one for u and starts
// polling when the role needs it.
func (m *Manager) Begin(u models.User) *Session {
	m.poller.Stop()
	m.lastID++
	m.current = &Session{ID: m.lastID, User: u}
	m.poller.Start(u.Role)
	return m.current
}

func (m *Manager) Current() *Session {
	return m.current
}

// Is reports whether id names the live session.
func (m *Manager) Is(id uint64) bool {
	return m.current != nil && m.current.ID == id
}

func (m *Manager) Poller() *Poller {
	return &m.poller
}

// End stops polling and discards the session but leaves the persisted
// identity alone, for when another client already changed it.
func (m *Manager) End() {
	m.poller.Stop()
	m.current = nil
}

// Logout ends the session and clears the persisted identity. The
// session is gone even when clearing fails.
func (m *Manager) Logout(ctx context.Context) error {
	if m.current != nil {
		m.Logger.Info().Int64("user_id", m.current.User.ID).Msg("logged out")
	}
	m.End()
	return m.Identity.Clear(ctx)
}
