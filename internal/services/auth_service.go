package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

const sessionTokenBytes = 32

type authService struct {
	repo        repositories.Repository
	sessions    repositories.SessionRepository
	identity    repositories.IdentityProvider
	publisher   events.EventPublisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	validator   *validator.Validator
	ttl         time.Duration
	redirectURL string
	hashCost    int
	now         func() time.Time
}

// AuthConfig configures sessions and the optional SSO provider.
type AuthConfig struct {
	SessionTTL     time.Duration
	SSORedirectURL string
}

func NewAuthService(
	repo repositories.Repository,
	sessions repositories.SessionRepository,
	identity repositories.IdentityProvider,
	publisher events.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	validator *validator.Validator,
	cfg AuthConfig,
) AuthService {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &authService{
		repo:        repo,
		sessions:    sessions,
		identity:    identity,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
		validator:   validator,
		ttl:         ttl,
		redirectURL: cfg.SSORedirectURL,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
}

func (s *authService) Login(ctx context.Context, req *LoginRequest, meta SessionMeta) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			s.metrics.Login("password", false)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.Login("password", false)
		s.logger.Info("Login rejected", "user_id", user.ID, "reason", "bad_password")
		return nil, ErrInvalidCredentials
	}

	result, err := s.openSession(ctx, user, meta)
	s.metrics.Login("password", err == nil)
	return result, err
}

// openSession enforces the registration status and issues a session.
func (s *authService) openSession(ctx context.Context, user *models.User, meta SessionMeta) (*AuthResult, error) {
	switch user.Status {
	case models.RegistrationPending:
		return nil, ErrRegistrationPending
	case models.RegistrationRejected:
		return nil, ErrRegistrationRejected
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
		UserAgent: truncate(meta.UserAgent, 255),
		IPAddress: truncate(meta.IPAddress, 45),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.repo.User().UpdateFields(ctx, user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		s.logger.Warn("Failed to record last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = timePtr(now)
	}

	s.logger.Info("User logged in", "user_id", user.ID, "role", user.Role.String())
	return &AuthResult{Session: session, User: user.Sanitize()}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := ensureUnique(ctx, s.repo.User(), req.Username, req.Email, 0); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password, s.hashCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		Status:       models.RegistrationPending,
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", "user_id", user.ID, "role", user.Role.String())
	publishEvent(ctx, s.publisher, s.logger, events.TopicUsers, events.UserRegistered, events.UserEvent{
		UserID: user.ID,
		Email:  user.Email,
		Role:   int(user.Role),
		Status: string(user.Status),
	})
	return user.Sanitize(), nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.Session, *models.User, error) {
	if token == "" {
		return nil, nil, ErrSessionExpired
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	now := s.now()
	if session.Expired(now) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.Warn("Failed to delete expired session", "error", err)
		}
		return nil, nil, ErrSessionExpired
	}

	user, err := s.repo.User().GetByID(ctx, session.UserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			_ = s.sessions.Delete(ctx, token)
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("failed to get session user: %w", err)
	}

	if session.ExpiresAt.Sub(now) < s.ttl/2 {
		expiresAt := now.Add(s.ttl)
		if err := s.sessions.Touch(ctx, token, expiresAt); err != nil {
			s.logger.Warn("Failed to refresh session", "user_id", user.ID, "error", err)
		} else {
			session.ExpiresAt = expiresAt
		}
	}
	return session, user.Sanitize(), nil
}

func (s *authService) SSOEnabled() bool {
	return s.identity != nil
}

func (s *authService) SSOSignInURL() (string, error) {
	if s.identity == nil {
		return "", ErrSSODisabled
	}
	return s.identity.SignInURL(s.redirectURL), nil
}

// SSOCallback finds the local user by email, provisioning an approved
// student on first sign-in.
func (s *authService) SSOCallback(ctx context.Context, req *SSOCallbackRequest, meta SessionMeta) (*AuthResult, error) {
	if s.identity == nil {
		return nil, ErrSSODisabled
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	identity, err := s.identity.Exchange(ctx, req.Code, req.State)
	if err != nil {
		s.metrics.Login("sso", false)
		s.logger.Warn("SSO exchange failed", "error", err)
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.User().GetByEmail(ctx, strings.ToLower(identity.Email))
	switch {
	case err == nil:
	case repositories.IsNotFoundError(err):
		user, err = s.provision(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	result, err := s.openSession(ctx, user, meta)
	s.metrics.Login("sso", err == nil)
	return result, err
}

func (s *authService) provision(ctx context.Context, identity *repositories.ExternalIdentity) (*models.User, error) {
	username, err := s.freeUsername(ctx, identity)
	if err != nil {
		return nil, err
	}
	// SSO users never use the local password; store an unguessable one.
	secret, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(secret, s.hashCost)
	if err != nil {
		return nil, err
	}

	name := identity.Name
	if name == "" {
		name = username
	}
	user := &models.User{
		Username:     username,
		Email:        strings.ToLower(identity.Email),
		Name:         name,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		Status:       models.RegistrationApproved,
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	s.logger.Info("Provisioned SSO user", "user_id", user.ID, "subject", identity.Subject)
	publishEvent(ctx, s.publisher, s.logger, events.TopicUsers, events.UserRegistered, events.UserEvent{
		UserID: user.ID,
		Email:  user.Email,
		Role:   int(user.Role),
		Status: string(user.Status),
	})
	return user, nil
}

// freeUsername derives a username from the identity, suffixing a counter
// until it is unused.
func (s *authService) freeUsername(ctx context.Context, identity *repositories.ExternalIdentity) (string, error) {
	base := identity.Username
	if base == "" {
		base = strings.SplitN(identity.Email, "@", 2)[0]
	}
	base = sanitizeUsername(base)

	candidate := base
	for i := 2; i < 100; i++ {
		taken, err := s.repo.User().ExistsByUsername(ctx, candidate, 0)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", ErrUsernameTaken
}

func (s *authService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("Purged expired sessions", "count", n)
	}
	return n, nil
}

// ensureUnique rejects a username or email held by another user.
func ensureUnique(ctx context.Context, users repositories.UserRepository, username, email string, excludeID uint) error {
	taken, err := users.ExistsByUsername(ctx, username, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return ErrUsernameTaken
	}
	taken, err = users.ExistsByEmail(ctx, strings.ToLower(email), excludeID)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return ErrUsernameTaken
	}
	return nil
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) < 3 {
		out = "user" + out
	}
	if len(out) > 45 {
		out = out[:45]
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
