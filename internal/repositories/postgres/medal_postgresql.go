package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

type MedalPostgreSQL struct {
	db *gorm.DB
}

func NewMedalPostgreSQL(db *gorm.DB) repositories.MedalRepository {
	return &MedalPostgreSQL{db: db}
}

func (m *MedalPostgreSQL) Create(ctx context.Context, medal *models.Medal) error {
	if err := m.db.WithContext(ctx).Create(medal).Error; err != nil {
		return translateError(err, "create medal")
	}
	return nil
}

func (m *MedalPostgreSQL) Upsert(ctx context.Context, medal *models.Medal) error {
	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon", "rule", "updated_at"}),
	}).Create(medal).Error
	if err != nil {
		return translateError(err, "upsert medal")
	}
	return nil
}

func (m *MedalPostgreSQL) List(ctx context.Context) ([]*models.Medal, error) {
	var medals []*models.Medal
	if err := m.db.WithContext(ctx).Order("id ASC").Find(&medals).Error; err != nil {
		return nil, translateError(err, "list medals")
	}
	return medals, nil
}

// Award relies on the (user_id, medal_id) unique index for idempotency.
func (m *MedalPostgreSQL) Award(ctx context.Context, award *models.UserMedal) (bool, error) {
	result := m.db.WithContext(ctx).
		Omit("Medal").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(award)
	if result.Error != nil {
		return false, translateError(result.Error, "award medal")
	}
	return result.RowsAffected > 0, nil
}

func (m *MedalPostgreSQL) ListAwards(ctx context.Context, userID uint) ([]*models.UserMedal, error) {
	var awards []*models.UserMedal
	err := m.db.WithContext(ctx).
		Preload("Medal").
		Where("user_id = ?", userID).
		Order("awarded_at ASC").
		Find(&awards).Error
	if err != nil {
		return nil, translateError(err, "list user medals")
	}
	return awards, nil
}

func (m *MedalPostgreSQL) CountAwards(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := m.db.WithContext(ctx).Model(&models.UserMedal{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, translateError(err, "count user medals")
	}
	return count, nil
}
