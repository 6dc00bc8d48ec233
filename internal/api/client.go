package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/freedom_case_2/servicedesk/internal/models"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000/api"

	RequestIDHeader = "X-Request-Id"

	maxErrorBody = 64 << 10
)

// Client talks to the service desk REST API. The zero value is usable;
// missing fields fall back to defaults on first request.
type Client struct {
	BaseURL   string
	HTTP      *http.Client
	Validator *validator.Validate
	Logger    zerolog.Logger

	group singleflight.Group
	// writes counts completed mutating requests. It is part of every
	// singleflight key, so a load issued after a write never joins a
	// load that started before it.
	writes atomic.Uint64
}

func New(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:   baseURL,
		HTTP:      &http.Client{Timeout: timeout},
		Validator: validator.New(),
		Logger:    logger,
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.validate(req); err != nil {
		return models.LoginResponse{}, err
	}
	var out models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", nil, req, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context, userID int64) (models.User, error) {
	var out models.User
	err := c.do(ctx, http.MethodGet, "/users/me", userQuery(userID), nil, &out)
	return out, err
}

func (c *Client) CreateTicket(ctx context.Context, userID int64, req models.CreateTicketRequest) (models.Ticket, error) {
	if err := c.validate(req); err != nil {
		return models.Ticket{}, err
	}
	var out models.Ticket
	err := c.do(ctx, http.MethodPost, "/tickets", userQuery(userID), req, &out)
	return out, err
}

func (c *Client) MyTickets(ctx context.Context, userID int64) ([]models.Ticket, error) {
	return c.listTickets(ctx, userID, "my")
}

func (c *Client) OpenTickets(ctx context.Context, userID int64) ([]models.Ticket, error) {
	return c.listTickets(ctx, userID, "open")
}

func (c *Client) AssignedTickets(ctx context.Context, userID int64) ([]models.Ticket, error) {
	return c.listTickets(ctx, userID, "assigned")
}

func (c *Client) listTickets(ctx context.Context, userID int64, scope string) ([]models.Ticket, error) {
	return shared[[]models.Ticket](ctx, c, "/tickets/"+scope, userQuery(userID))
}

func (c *Client) AssignTicket(ctx context.Context, userID, ticketID int64) (models.MessageResponse, error) {
	var out models.MessageResponse
	err := c.do(ctx, http.MethodPut, ticketPath(ticketID, "assign"), userQuery(userID), nil, &out)
	return out, err
}

func (c *Client) ConfirmTicket(ctx context.Context, userID, ticketID int64) (models.MessageResponse, error) {
	return c.confirm(ctx, userID, ticketID, "confirm", true)
}

func (c *Client) ReturnTicket(ctx context.Context, userID, ticketID int64) (models.MessageResponse, error) {
	return c.confirm(ctx, userID, ticketID, "return", false)
}

func (c *Client) confirm(ctx context.Context, userID, ticketID int64, action string, confirmed bool) (models.MessageResponse, error) {
	var out models.MessageResponse
	body := models.ConfirmRequest{IsConfirmed: confirmed}
	err := c.do(ctx, http.MethodPost, ticketPath(ticketID, action), userQuery(userID), body, &out)
	return out, err
}

func (c *Client) Recommendations(ctx context.Context, userID, ticketID int64) (models.TicketDetails, error) {
	var out models.TicketDetails
	err := c.do(ctx, http.MethodGet, ticketPath(ticketID, "recommendations"), userQuery(userID), nil, &out)
	return out, err
}

func (c *Client) ResolveTicket(ctx context.Context, userID, ticketID int64, req models.ResolveRequest) (models.ResolveResponse, error) {
	if err := c.validate(req); err != nil {
		return models.ResolveResponse{}, err
	}
	var out models.ResolveResponse
	err := c.do(ctx, http.MethodPost, ticketPath(ticketID, "resolve"), userQuery(userID), req, &out)
	return out, err
}

func (c *Client) Knowledge(ctx context.Context, userID int64, limit int) ([]models.KnowledgeEntry, error) {
	q := userQuery(userID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return shared[[]models.KnowledgeEntry](ctx, c, "/knowledge", q)
}

func (c *Client) Stats(ctx context.Context, userID int64) (models.Stats, error) {
	return shared[models.Stats](ctx, c, "/stats", userQuery(userID))
}

// shared issues a GET through the singleflight group so that identical
// loads already in flight are answered by the same response, unless a
// write completed since that load started. Callers receive the same
// slice backing array and must not mutate it.
func shared[T any](ctx context.Context, c *Client, path string, q url.Values) (T, error) {
	key := strconv.FormatUint(c.writes.Load(), 10) + " " + path + "?" + q.Encode()
	v, err, _ := c.group.Do(key, func() (any, error) {
		var out T
		if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
			return out, err
		}
		return out, nil
	})
	out, _ := v.(T)
	return out, err
}

func (c *Client) validate(v any) error {
	if c.Validator == nil {
		c.Validator = validator.New()
	}
	if err := c.Validator.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 15 * time.Second}
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint := strings.TrimRight(base, "/") + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	rid := uuid.NewString()
	req.Header.Set(RequestIDHeader, rid)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if method != http.MethodGet {
		c.writes.Add(1)
	}
	if err != nil {
		c.Logger.Warn().Err(err).Str("request_id", rid).Str("method", method).Str("path", path).Msg("request failed")
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	c.Logger.Debug().
		Str("request_id", rid).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Detail: parseDetail(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Method: method, Path: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func userQuery(userID int64) url.Values {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	return q
}

func ticketPath(ticketID int64, action string) string {
	return "/tickets/" + strconv.FormatInt(ticketID, 10) + "/" + action
}
