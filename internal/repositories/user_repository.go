package repositories

import (
	"context"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.User, error)
	// GetByLogin matches either the username or the email, case-insensitively.
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error

	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)

	ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error)
}

// SessionRepository stores login sessions. Implementations exist for redis
// and for the relational database.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Touch(ctx context.Context, token string, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uint) error
	// DeleteExpired purges sessions past their expiry; stores with native
	// TTLs return 0.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExternalIdentity is a user asserted by the single sign-on provider.
type ExternalIdentity struct {
	Subject  string `json:"subject"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// IdentityProvider exchanges an OAuth authorization code for an identity.
type IdentityProvider interface {
	SignInURL(redirectURL string) string
	Exchange(ctx context.Context, code, state string) (*ExternalIdentity, error)
}
