package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/cache"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

var userSortColumns = map[string]bool{
	"id":            true,
	"name":          true,
	"username":      true,
	"email":         true,
	"role":          true,
	"status":        true,
	"created_at":    true,
	"last_login_at": true,
}

type UserPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewUserPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.UserRepository {
	return &UserPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(),
		cacheManager: cm,
	}
}

func (u *UserPostgreSQL) Create(ctx context.Context, user *models.User) error {
	if err := u.db.WithContext(ctx).Create(user).Error; err != nil {
		return translateError(err, "create user")
	}
	return nil
}

// cachedUser carries the fields models.User hides from JSON so a cache hit
// is a complete row.
type cachedUser struct {
	models.User
	PasswordHash string  `json:"password_hash"`
	DiplomaPath  *string `json:"diploma_path"`
}

func toCachedUser(u *models.User) *cachedUser {
	return &cachedUser{User: *u, PasswordHash: u.PasswordHash, DiplomaPath: u.DiplomaPath}
}

func (c *cachedUser) model() *models.User {
	user := c.User
	user.PasswordHash = c.PasswordHash
	user.DiplomaPath = c.DiplomaPath
	return user.Sanitize()
}

// GetByID retrieves a user by ID with caching
func (u *UserPostgreSQL) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var cached cachedUser
	err := u.cacheManager.User.CacheOrExecute(ctx, cache.UserKey(id), &cached, func() (interface{}, error) {
		var dbUser models.User
		if err := u.db.WithContext(ctx).First(&dbUser, id).Error; err != nil {
			return nil, translateError(err, "get user")
		}
		return toCachedUser(&dbUser), nil
	})
	if err != nil {
		return nil, err
	}
	return cached.model(), nil
}

func (u *UserPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	var users []*models.User
	if err := u.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&users).Error; err != nil {
		return nil, translateError(err, "get users")
	}
	for _, user := range users {
		user.Sanitize()
	}
	return users, nil
}

func (u *UserPostgreSQL) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	var user models.User
	err := u.db.WithContext(ctx).
		Where("LOWER(username) = ? OR LOWER(email) = ?", login, login).
		First(&user).Error
	if err != nil {
		return nil, translateError(err, "get user by login")
	}
	return user.Sanitize(), nil
}

func (u *UserPostgreSQL) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := u.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, translateError(err, "get user by email")
	}
	return user.Sanitize(), nil
}

func (u *UserPostgreSQL) Update(ctx context.Context, user *models.User) error {
	result := u.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"email":         user.Email,
		"name":          user.Name,
		"role":          user.Role,
		"status":        user.Status,
		"password_hash": user.PasswordHash,
		"photo":         user.Photo,
		"diploma_path":  user.DiplomaPath,
		"last_login_at": user.LastLoginAt,
	})
	if err := checkAffected(result, "update user"); err != nil {
		return err
	}
	cache.SafeDelete(ctx, u.cacheManager.User, cache.UserKey(user.ID))
	return nil
}

func (u *UserPostgreSQL) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := u.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if err := checkAffected(result, "update user"); err != nil {
		return err
	}
	cache.SafeDelete(ctx, u.cacheManager.User, cache.UserKey(id))
	return nil
}

func (u *UserPostgreSQL) Delete(ctx context.Context, id uint) error {
	if err := checkAffected(u.db.WithContext(ctx).Delete(&models.User{}, id), "delete user"); err != nil {
		return err
	}
	cache.SafeDelete(ctx, u.cacheManager.User, cache.UserKey(id))
	return nil
}

func (u *UserPostgreSQL) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	query := u.db.WithContext(ctx).Model(&models.User{})
	query = u.helpers.ApplySearch(query, filters.Search, "name", "username", "email")
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count users")
	}

	var users []*models.User
	query = u.helpers.ApplyPaginationAndSort(query, filters.ListOptions, userSortColumns, "created_at")
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, translateError(err, "list users")
	}
	for _, user := range users {
		user.Sanitize()
	}
	return users, total, nil
}

func (u *UserPostgreSQL) ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error) {
	return u.exists(ctx, "LOWER(username) = ?", strings.ToLower(username), excludeID)
}

func (u *UserPostgreSQL) ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error) {
	return u.exists(ctx, "LOWER(email) = ?", strings.ToLower(email), excludeID)
}

func (u *UserPostgreSQL) exists(ctx context.Context, cond string, value string, excludeID uint) (bool, error) {
	query := u.db.WithContext(ctx).Model(&models.User{}).Where(cond, value)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}
