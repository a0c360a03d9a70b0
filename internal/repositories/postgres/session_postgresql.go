package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

// SessionPostgreSQL keeps sessions in the sessions table. Used when redis
// is not configured.
type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.Session) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return translateError(err, "create session")
	}
	return nil
}

func (s *SessionPostgreSQL) Get(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, translateError(err, "get session")
	}
	return &session, nil
}

func (s *SessionPostgreSQL) Touch(ctx context.Context, token string, expiresAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("token = ?", token).
		Update("expires_at", expiresAt)
	return checkAffected(result, "refresh session")
}

func (s *SessionPostgreSQL) Delete(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error; err != nil {
		return translateError(err, "delete session")
	}
	return nil
}

func (s *SessionPostgreSQL) DeleteByUser(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
		return translateError(err, "delete user sessions")
	}
	return nil
}

func (s *SessionPostgreSQL) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, translateError(result.Error, "purge sessions")
	}
	return result.RowsAffected, nil
}
