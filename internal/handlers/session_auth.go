package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/config"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

// Gin context keys set by SessionAuth.
const (
	ctxUserID    = "user_id"
	ctxUser      = "user"
	ctxUserRole  = "user_role"
	ctxSessionID = "session_token"
)

// SessionAuth authenticates requests with the session cookie.
type SessionAuth struct {
	BaseHandler
	auth   services.AuthService
	cookie config.SessionConfig
}

func NewSessionAuth(auth services.AuthService, cookie config.SessionConfig, logger utils.Logger) *SessionAuth {
	if cookie.CookieName == "" {
		cookie.CookieName = "evolvere_session"
	}
	return &SessionAuth{
		BaseHandler: NewBaseHandler(logger),
		auth:        auth,
		cookie:      cookie,
	}
}

// Middleware rejects requests without a live session with 401
// SESSION_EXPIRED. A session extended by Authenticate gets a fresh cookie.
func (sa *SessionAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(sa.cookie.CookieName)
		session, user, err := sa.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if token != "" {
				sa.clearCookie(c)
			}
			if errors.Is(err, services.ErrSessionExpired) {
				sa.RespondWithError(c, http.StatusUnauthorized, CodeSessionExpired, "SessionExpired", nil)
				return
			}
			sa.handleServiceError(c, err)
			return
		}

		sa.setCookie(c, session.Token, session.ExpiresAt)
		c.Set(ctxUserID, user.ID)
		c.Set(ctxUser, user)
		c.Set(ctxUserRole, user.Role)
		c.Set(ctxSessionID, session.Token)
		c.Next()
	}
}

// RequireRoles lets admins and the listed roles through.
func (sa *SessionAuth) RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ctxUserRole)
		role, ok := value.(models.UserRole)
		if !exists || !ok {
			sa.RespondWithError(c, http.StatusUnauthorized, CodeSessionExpired, "Unauthenticated", nil)
			return
		}
		if role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		sa.RespondWithError(c, http.StatusForbidden, CodeForbiddenRole, "ForbiddenRole", nil)
	}
}

func (sa *SessionAuth) setCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sa.cookie.CookieName, token, maxAge, "/", sa.cookie.CookieDomain, sa.cookie.CookieSecure, true)
}

func (sa *SessionAuth) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sa.cookie.CookieName, "", -1, "/", sa.cookie.CookieDomain, sa.cookie.CookieSecure, true)
}

func sessionMeta(c *gin.Context) services.SessionMeta {
	ua := c.Request.UserAgent()
	if len(ua) > 255 {
		ua = ua[:255]
	}
	return services.SessionMeta{UserAgent: ua, IPAddress: c.ClientIP()}
}

// GetUserFromContext returns the user loaded by the session middleware.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
