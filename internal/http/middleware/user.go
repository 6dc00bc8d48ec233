package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/freedom_case_2/servicedesk/internal/db"
	"github.com/freedom_case_2/servicedesk/internal/models"
	"github.com/freedom_case_2/servicedesk/internal/service"
)

const userKey = "current_user"

// LoadUser resolves the user_id query parameter into an active account.
// Every ticket, knowledge and stats route requires it.
func LoadUser(svc *service.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("user_id")
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "user_id must be an integer"})
			return
		}
		u, err := svc.User(c.Request.Context(), id)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// RequireRole rejects users whose role is neither role nor admin.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "user_id required"})
			return
		}
		if err := service.RequireRole(u, role); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (db.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return db.User{}, false
	}
	u, ok := v.(db.User)
	return u, ok
}

func abort(c *gin.Context, err error) {
	if se, ok := service.AsError(err); ok {
		c.AbortWithStatusJSON(se.Status, gin.H{"detail": se.Detail})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
}
