package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

func TestAuthService_RegisterThenLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.seedUser(t, "coordinator", models.RoleCoordinator)

	user, err := env.auth.Register(ctx, &RegisterRequest{
		Username: "maria.s",
		Email:    "Maria@Evolvere.test",
		Name:     "Maria Silva",
		Password: "s3cret-pass",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPending, user.Status)
	assert.Equal(t, "maria@evolvere.test", user.Email)
	assert.Len(t, env.publisher.EventsOfType(events.UserRegistered), 1)

	login := &LoginRequest{Login: "maria@evolvere.test", Password: "s3cret-pass"}
	_, err = env.auth.Login(ctx, login, SessionMeta{})
	assert.ErrorIs(t, err, ErrRegistrationPending)

	_, err = env.users.UpdateStatus(ctx, staff, user.ID, &UserStatusRequest{Status: models.RegistrationApproved})
	require.NoError(t, err)

	result, err := env.auth.Login(ctx, login, SessionMeta{UserAgent: "test", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Len(t, result.Session.Token, 64)
	assert.Equal(t, testNow.Add(24*time.Hour), result.Session.ExpiresAt)
	require.NotNil(t, result.User.LastLoginAt)
	assert.Equal(t, 1, env.sessions.count())
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "taken", models.RoleStudent)

	_, err := env.auth.Register(context.Background(), &RegisterRequest{
		Username: "taken",
		Email:    "other@evolvere.test",
		Name:     "Someone",
		Password: "password123",
		Role:     models.RoleStudent,
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestAuthService_LoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ana", models.RoleStudent)

	tests := []struct {
		name  string
		login string
		pass  string
	}{
		{"wrong password", "ana", "nope-nope"},
		{"unknown user", "ghost", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Login(context.Background(), &LoginRequest{Login: tt.login, Password: tt.pass}, SessionMeta{})
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestAuthService_AuthenticateSlidesExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", models.RoleStudent)

	result, err := env.auth.Login(ctx, &LoginRequest{Login: "ana", Password: "password123"}, SessionMeta{})
	require.NoError(t, err)
	token := result.Session.Token

	env.advance(time.Hour)
	session, user, err := env.auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, testNow.Add(24*time.Hour), session.ExpiresAt, "more than half left, not refreshed")

	env.advance(13 * time.Hour)
	session, _, err = env.auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, env.now.Add(24*time.Hour), session.ExpiresAt)

	env.advance(25 * time.Hour)
	_, _, err = env.auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Zero(t, env.sessions.count())
}

func TestAuthService_Logout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", models.RoleStudent)

	result, err := env.auth.Login(ctx, &LoginRequest{Login: "ana", Password: "password123"}, SessionMeta{})
	require.NoError(t, err)
	require.NoError(t, env.auth.Logout(ctx, result.Session.Token))

	_, _, err = env.auth.Authenticate(ctx, result.Session.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NoError(t, env.auth.Logout(ctx, ""))
}

type stubIdentity struct {
	identity *repositories.ExternalIdentity
}

func (s stubIdentity) SignInURL(redirectURL string) string {
	return "https://sso.example/login?redirect_uri=" + redirectURL
}

func (s stubIdentity) Exchange(context.Context, string, string) (*repositories.ExternalIdentity, error) {
	return s.identity, nil
}

func TestAuthService_SSOProvisionsStudent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "joao", models.RoleStudent)

	_, err := env.auth.SSOSignInURL()
	assert.ErrorIs(t, err, ErrSSODisabled)

	env.auth.identity = stubIdentity{identity: &repositories.ExternalIdentity{
		Subject:  "abc-123",
		Username: "Joao",
		Email:    "Joao.Pereira@uni.test",
		Name:     "João Pereira",
	}}
	result, err := env.auth.SSOCallback(ctx, &SSOCallbackRequest{Code: "code"}, SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, result.User.Role)
	assert.Equal(t, models.RegistrationApproved, result.User.Status)
	assert.Equal(t, "joao2", result.User.Username)
	assert.Equal(t, "joao.pereira@uni.test", result.User.Email)

	// a second sign-in reuses the account
	again, err := env.auth.SSOCallback(ctx, &SSOCallbackRequest{Code: "code"}, SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, again.User.ID)
}

func TestAuthService_PurgeExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", models.RoleStudent)

	_, err := env.auth.Login(ctx, &LoginRequest{Login: "ana", Password: "password123"}, SessionMeta{})
	require.NoError(t, err)
	env.advance(48 * time.Hour)

	n, err := env.auth.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
