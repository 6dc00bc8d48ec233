package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/freedom_case_2/servicedesk/internal/http/middleware"
	"github.com/freedom_case_2/servicedesk/internal/models"
	"github.com/freedom_case_2/servicedesk/internal/service"
)

const defaultKnowledgeLimit = 30

type Handler struct {
	Service   *service.TicketService
	Validator *validator.Validate
	Logger    zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Service.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.Service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LoginResponse{UserID: u.ID, FullName: u.FullName, Role: u.Role})
}

func (h *Handler) Me(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, u.User)
}

func (h *Handler) CreateTicket(c *gin.Context) {
	var req models.CreateTicketRequest
	if !h.bind(c, &req) {
		return
	}
	u, _ := middleware.CurrentUser(c)
	t, err := h.Service.Create(c.Request.Context(), u, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) MyTickets(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, h.Service.MyTickets(c.Request.Context(), u))
}

func (h *Handler) OpenTickets(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.OpenTickets(c.Request.Context()))
}

func (h *Handler) AssignedTickets(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, h.Service.AssignedTickets(c.Request.Context(), u))
}

func (h *Handler) AssignTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	u, _ := middleware.CurrentUser(c)
	res, err := h.Service.Assign(c.Request.Context(), u, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Recommendations(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	res, err := h.Service.Recommend(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ResolveTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req models.ResolveRequest
	if !h.bind(c, &req) {
		return
	}
	u, _ := middleware.CurrentUser(c)
	res, err := h.Service.Resolve(c.Request.Context(), u, id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ConfirmTicket serves both /confirm and /return; the body decides.
func (h *Handler) ConfirmTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req models.ConfirmRequest
	if !h.bind(c, &req) {
		return
	}
	u, _ := middleware.CurrentUser(c)
	res, err := h.Service.Confirm(c.Request.Context(), u, id, req.IsConfirmed)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Knowledge(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultKnowledgeLimit)))
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, "limit must be an integer")
		return
	}
	c.JSON(http.StatusOK, h.Service.Knowledge(c.Request.Context(), limit))
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Stats(c.Request.Context()))
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "Invalid payload")
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	if se, ok := service.AsError(err); ok {
		writeError(c, se.Status, se.Detail)
		return
	}
	h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	writeError(c, http.StatusInternalServerError, "Internal error")
}

func ticketID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, "ticket id must be an integer")
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}
