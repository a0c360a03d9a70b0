package repositories

import (
	"context"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

type MaterialRepository interface {
	Create(ctx context.Context, material *models.Material) error
	GetByID(ctx context.Context, id uint) (*models.Material, error)
	Update(ctx context.Context, material *models.Material) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters MaterialFilters) ([]*models.Material, int64, error)
}

type MedalRepository interface {
	Create(ctx context.Context, medal *models.Medal) error
	// Upsert inserts or updates a catalogue entry keyed by code.
	Upsert(ctx context.Context, medal *models.Medal) error
	List(ctx context.Context) ([]*models.Medal, error)
	// Award records a medal for a user. It returns false when the user
	// already holds it.
	Award(ctx context.Context, award *models.UserMedal) (bool, error)
	ListAwards(ctx context.Context, userID uint) ([]*models.UserMedal, error)
	CountAwards(ctx context.Context, userID uint) (int64, error)
}
