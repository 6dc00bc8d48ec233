package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/freedom_case_2/servicedesk/internal/config"
	"github.com/freedom_case_2/servicedesk/internal/http/handlers"
	"github.com/freedom_case_2/servicedesk/internal/http/middleware"
	"github.com/freedom_case_2/servicedesk/internal/models"
	"github.com/freedom_case_2/servicedesk/internal/service"
)

func Router(cfg config.Config, svc *service.TicketService, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}
	if cfg.CORSAllowed == "" || cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Service:   svc,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.POST("/login", h.Login)

	authed := api.Group("")
	authed.Use(middleware.LoadUser(svc))
	authed.GET("/users/me", h.Me)

	user := authed.Group("")
	user.Use(middleware.RequireRole(models.RoleUser))
	{
		user.POST("/tickets", h.CreateTicket)
		user.GET("/tickets/my", h.MyTickets)
		user.POST("/tickets/:id/confirm", h.ConfirmTicket)
		user.POST("/tickets/:id/return", h.ConfirmTicket)
	}

	specialist := authed.Group("")
	specialist.Use(middleware.RequireRole(models.RoleSpecialist))
	{
		specialist.GET("/tickets/open", h.OpenTickets)
		specialist.GET("/tickets/assigned", h.AssignedTickets)
		specialist.PUT("/tickets/:id/assign", h.AssignTicket)
		specialist.GET("/tickets/:id/recommendations", h.Recommendations)
		specialist.POST("/tickets/:id/resolve", h.ResolveTicket)
	}

	admin := authed.Group("")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/knowledge", h.Knowledge)
		admin.GET("/stats", h.Stats)
	}

	return r
}
