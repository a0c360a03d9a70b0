package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvere-edu/evolvere-api/internal/config"
	"github.com/evolvere-edu/evolvere-api/internal/i18n"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/storage"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubAuth knows one valid token per user.
type stubAuth struct {
	services.AuthService
	users  map[string]*models.User
	logins int
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (*models.Session, *models.User, error) {
	user, ok := s.users[token]
	if !ok {
		return nil, nil, services.ErrSessionExpired
	}
	return &models.Session{Token: token, UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}, user, nil
}

func (s *stubAuth) Login(_ context.Context, req *services.LoginRequest, _ services.SessionMeta) (*services.AuthResult, error) {
	s.logins++
	for token, user := range s.users {
		if user.Username == req.Login && req.Password == "password123" {
			return &services.AuthResult{
				Session: &models.Session{Token: token, UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)},
				User:    user,
			}, nil
		}
	}
	return nil, services.ErrInvalidCredentials
}

func (s *stubAuth) Logout(context.Context, string) error { return nil }

// stubForms fails Submit with a configurable error.
type stubForms struct {
	services.FormService
	submitErr error
}

func (s *stubForms) Submit(_ context.Context, actor services.Actor, id uint, _ *services.SubmitRequest) (*services.ResultResponse, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &services.ResultResponse{FormID: id, PercentCorrect: 100, Status: models.SubmissionSubmitted}, nil
}

func (s *stubForms) Create(context.Context, services.Actor, *services.FormRequest) (*services.FormDetail, error) {
	return &services.FormDetail{ID: 1}, nil
}

const (
	adminToken   = "admin-token"
	teacherToken = "teacher-token"
	studentToken = "student-token"
)

func newStubAuth() *stubAuth {
	return &stubAuth{users: map[string]*models.User{
		adminToken:   {ID: 1, Username: "admin", Name: "Admin", Role: models.RoleAdmin},
		teacherToken: {ID: 2, Username: "teacher", Name: "Teacher", Role: models.RoleTeacher},
		studentToken: {ID: 3, Username: "student", Name: "Student", Role: models.RoleStudent},
	}}
}

type testServer struct {
	router *gin.Engine
	auth   *stubAuth
	forms  *stubForms
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, i18n.Init("en"))
	logger := utils.NewSlogLogger(utils.NopLogger())

	ts := &testServer{auth: newStubAuth(), forms: &stubForms{}}
	session := NewSessionAuth(ts.auth, config.SessionConfig{CookieName: "evolvere_session"}, logger)
	authHandler := NewAuthHandler(ts.auth, session, logger)
	formHandler := NewFormHandler(ts.forms, logger)

	r := gin.New()
	SetupMiddleware(r, logger, []string{"http://localhost:5173"}, nil)
	r.POST("/login", authHandler.Login)
	r.POST("/logout", authHandler.Logout)
	api := r.Group("")
	api.Use(session.Middleware())
	api.GET("/login/me", authHandler.Me)
	api.POST("/form", session.RequireRoles(models.RoleCoordinator, models.RoleTeacher), formHandler.CreateForm)
	api.POST("/form/:id/submit", session.RequireRoles(models.RoleStudent), formHandler.SubmitForm)

	ts.router = r
	return ts
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "evolvere_session", Value: token})
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSessionMiddleware(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantCode   string
	}{
		{"no cookie", "", http.StatusUnauthorized, CodeSessionExpired},
		{"unknown token", "stale", http.StatusUnauthorized, CodeSessionExpired},
		{"valid session", studentToken, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodGet, "/login/me", tt.token, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				resp := decodeError(t, w)
				assert.Equal(t, tt.wantCode, resp.Code)
				assert.Equal(t, "Your session has expired. Please sign in again.", resp.Message)
			}
		})
	}
}

func TestSessionMiddleware_RefreshesCookie(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/login/me", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "evolvere_session="+studentToken)
	assert.Contains(t, cookie, "HttpOnly")
}

func TestRequireRoles(t *testing.T) {
	ts := newTestServer(t)
	form := map[string]interface{}{"title": "Quiz"}

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"student is outside the set", studentToken, http.StatusForbidden},
		{"teacher is in the set", teacherToken, http.StatusCreated},
		{"admin always passes", adminToken, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/form", tt.token, form)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, CodeForbiddenRole, decodeError(t, w).Code)
			}
		})
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/login", "", map[string]string{"login": "teacher", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "evolvere_session="+teacherToken)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Welcome back, Teacher!", resp.Message)

	w = ts.do(http.MethodPost, "/login", "", map[string]string{"login": "teacher", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeInvalidCredentials, decodeError(t, w).Code)

	w = ts.do(http.MethodPost, "/logout", teacherToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"expired", services.ErrSubmissionExpired, http.StatusGone, CodeSubmissionExpired},
		{"twice", services.ErrAlreadySubmitted, http.StatusConflict, CodeAlreadySubmitted},
		{"closed", services.ErrFormClosed, http.StatusUnprocessableEntity, CodeFormClosed},
		{"missing form", fmtWrap(services.ErrFormNotFound), http.StatusNotFound, CodeNotFound},
		{"not enrolled", services.NewPermissionError(3, 1, "form", "submit", "not enrolled"), http.StatusForbidden, CodeForbidden},
		{"bad answers", services.NewValidationError("answers[0]", "unknown question", 9), http.StatusBadRequest, CodeValidation},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.forms.submitErr = tt.err
			w := ts.do(http.MethodPost, "/form/1/submit", studentToken, map[string]interface{}{"answers": []interface{}{}})
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
		})
	}
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("loading form"), err)
}

func TestSubmitSuccessMessage(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/form/7/submit", studentToken, map[string]interface{}{"answers": []interface{}{}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message string                   `json:"message"`
		Data    services.ResultResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Form submitted! You got 100.00% right.", resp.Message)
	assert.Equal(t, uint(7), resp.Data.FormID)
}

func TestInvalidIDParam(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/form/abc/submit", studentToken, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidRequest, decodeError(t, w).Code)
}

func TestLookupError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{storage.ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{storage.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{services.ErrRegistrationPending, http.StatusForbidden},
		{services.ErrUsernameTaken, http.StatusConflict},
		{services.ErrFormLocked, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		status, _, _, ok := lookupError(tt.err)
		assert.True(t, ok, tt.err.Error())
		assert.Equal(t, tt.wantStatus, status, tt.err.Error())
	}

	_, _, _, ok := lookupError(validator.ValidationErrors{})
	assert.False(t, ok)
}

func TestCORSMiddleware(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	hm := &HandlerManager{checks: map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}}
	r := gin.New()
	r.GET("/health", hm.health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"redis":"connection refused"`))
	assert.True(t, strings.Contains(w.Body.String(), `"database":"ok"`))
}
