package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/i18n"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

type AuthHandler struct {
	BaseHandler
	service services.AuthService
	session *SessionAuth
}

func NewAuthHandler(service services.AuthService, session *SessionAuth, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		session:     session,
	}
}

// Login opens a session
// @Summary Sign in
// @Description Checks the credentials and sets the session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body services.LoginRequest true "Username or email and password"
// @Success 200 {object} SuccessResponse{data=models.User}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Registration pending or rejected"
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.service.Login(c.Request.Context(), &req, sessionMeta(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.session.setCookie(c, result.Session.Token, result.Session.ExpiresAt)
	c.JSON(http.StatusOK, SuccessResponse{
		Message: i18n.Td(c.Request.Context(), "LoggedIn", map[string]any{"Name": result.User.Name}),
		Data:    result.User,
	})
}

// Logout ends the current session
// @Summary Sign out
// @Tags auth
// @Success 200 {object} SuccessResponse
// @Router /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, _ := c.Cookie(h.session.cookie.CookieName)
	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.session.clearCookie(c)
	h.respondMessage(c, http.StatusOK, "LoggedOut", nil)
}

// Register files a registration for approval
// @Summary Self registration
// @Tags auth
// @Accept json
// @Produce json
// @Param user body services.RegisterRequest true "New user"
// @Success 201 {object} SuccessResponse{data=models.User}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusCreated, "Registered", user)
}

// Me returns the signed in user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := GetUserFromContext(c)
	if !ok {
		h.RespondWithError(c, http.StatusUnauthorized, CodeSessionExpired, "Unauthenticated", nil)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SSOSignIn returns the identity provider sign-in URL
// @Summary Single sign-on URL
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse "SSO not configured"
// @Router /login/sso [get]
func (h *AuthHandler) SSOSignIn(c *gin.Context) {
	url, err := h.service.SSOSignInURL()
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// SSOCallback exchanges the provider code for a session
// @Summary Single sign-on callback
// @Tags auth
// @Accept json
// @Produce json
// @Param callback body services.SSOCallbackRequest true "Authorization code"
// @Success 200 {object} SuccessResponse{data=models.User}
// @Failure 401 {object} ErrorResponse
// @Router /login/sso/callback [post]
func (h *AuthHandler) SSOCallback(c *gin.Context) {
	var req services.SSOCallbackRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.service.SSOCallback(c.Request.Context(), &req, sessionMeta(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.session.setCookie(c, result.Session.Token, result.Session.ExpiresAt)
	c.JSON(http.StatusOK, SuccessResponse{
		Message: i18n.Td(c.Request.Context(), "LoggedIn", map[string]any{"Name": result.User.Name}),
		Data:    result.User,
	})
}
