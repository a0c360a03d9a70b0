package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/cache"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

var formSortColumns = map[string]bool{
	"id":         true,
	"title":      true,
	"deadline":   true,
	"duration":   true,
	"created_at": true,
}

type FormPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewFormPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.FormRepository {
	return &FormPostgreSQL{db: db, helpers: NewSharedHelpers(), cacheManager: cm}
}

// Create inserts the form; GORM cascades into questions and options.
func (f *FormPostgreSQL) Create(ctx context.Context, form *models.Form) error {
	if err := f.db.WithContext(ctx).Omit("Class").Create(form).Error; err != nil {
		return translateError(err, "create form")
	}
	cache.InvalidateStats(ctx, f.cacheManager)
	return nil
}

func (f *FormPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Form, error) {
	var form models.Form
	if err := f.db.WithContext(ctx).Preload("Class").First(&form, id).Error; err != nil {
		return nil, translateError(err, "get form")
	}
	return &form, nil
}

// GetWithQuestions retrieves the full definition with caching
func (f *FormPostgreSQL) GetWithQuestions(ctx context.Context, id uint) (*models.Form, error) {
	var form models.Form
	err := f.cacheManager.Form.CacheOrExecute(ctx, cache.FormKey(id), &form, func() (interface{}, error) {
		var dbForm models.Form
		err := f.db.WithContext(ctx).
			Preload("Class").
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("questions.position ASC, questions.id ASC")
			}).
			Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
				return db.Order("options.position ASC, options.id ASC")
			}).
			First(&dbForm, id).Error
		if err != nil {
			return nil, translateError(err, "get form definition")
		}
		return &dbForm, nil
	})
	if err != nil {
		return nil, err
	}
	return &form, nil
}

func (f *FormPostgreSQL) ReplaceDefinition(ctx context.Context, form *models.Form) error {
	db := f.db.WithContext(ctx)
	result := db.Model(&models.Form{}).Where("id = ?", form.ID).Updates(map[string]interface{}{
		"title":       form.Title,
		"description": form.Description,
		"class_id":    form.ClassID,
		"deadline":    form.Deadline,
		"duration":    form.Duration,
	})
	if err := checkAffected(result, "update form"); err != nil {
		return err
	}

	// Options go with their questions through ON DELETE CASCADE.
	if err := db.Where("form_id = ?", form.ID).Delete(&models.Question{}).Error; err != nil {
		return translateError(err, "delete form questions")
	}
	for i := range form.Questions {
		form.Questions[i].FormID = form.ID
	}
	if len(form.Questions) > 0 {
		if err := db.Create(&form.Questions).Error; err != nil {
			return translateError(err, "create form questions")
		}
	}

	cache.InvalidateFormCache(ctx, f.cacheManager, form.ID)
	return nil
}

func (f *FormPostgreSQL) Delete(ctx context.Context, id uint) error {
	if err := checkAffected(f.db.WithContext(ctx).Delete(&models.Form{}, id), "delete form"); err != nil {
		return err
	}
	cache.InvalidateFormCache(ctx, f.cacheManager, id)
	return nil
}

func (f *FormPostgreSQL) List(ctx context.Context, filters repositories.FormFilters) ([]*models.Form, int64, error) {
	db := f.db.WithContext(ctx)
	query := db.Model(&models.Form{})
	query = f.helpers.ApplySearch(query, filters.Search, "title", "description")
	if filters.ClassID != nil {
		query = query.Where("class_id = ?", *filters.ClassID)
	}
	if filters.TeacherID != nil {
		query = query.Where("class_id IN (?)", taughtClassIDs(db, *filters.TeacherID))
	}
	if filters.StudentID != nil {
		query = query.Where("class_id IN (?)", approvedClassIDs(db, *filters.StudentID))
	}
	if filters.Open != nil {
		now := filters.Now
		if now.IsZero() {
			now = time.Now()
		}
		if *filters.Open {
			query = query.Where("deadline IS NULL OR deadline > ?", now)
		} else {
			query = query.Where("deadline IS NOT NULL AND deadline <= ?", now)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count forms")
	}

	var forms []*models.Form
	query = f.helpers.ApplyPaginationAndSort(query, filters.ListOptions, formSortColumns, "created_at")
	if err := query.Preload("Class").Find(&forms).Error; err != nil {
		return nil, 0, translateError(err, "list forms")
	}
	return forms, total, nil
}

func (f *FormPostgreSQL) ListUpcoming(ctx context.Context, studentID uint, now time.Time) ([]*models.Form, error) {
	db := f.db.WithContext(ctx)
	finished := db.Model(&models.Submission{}).
		Select("form_id").
		Where("student_id = ? AND status IN ?", studentID, []models.SubmissionStatus{models.SubmissionSubmitted, models.SubmissionExpired})

	var forms []*models.Form
	err := db.
		Where("class_id IN (?)", approvedClassIDs(db, studentID)).
		Where("deadline IS NULL OR deadline > ?", now).
		Where("id NOT IN (?)", finished).
		Order("deadline ASC NULLS LAST, id ASC").
		Preload("Class").
		Find(&forms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming forms: %w", err)
	}
	return forms, nil
}
