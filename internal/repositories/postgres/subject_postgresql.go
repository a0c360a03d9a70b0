package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/cache"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

type SubjectPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewSubjectPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.SubjectRepository {
	return &SubjectPostgreSQL{db: db, helpers: NewSharedHelpers(), cacheManager: cm}
}

func (s *SubjectPostgreSQL) Create(ctx context.Context, subject *models.Subject) error {
	if err := s.db.WithContext(ctx).Omit("Course").Create(subject).Error; err != nil {
		return translateError(err, "create subject")
	}
	return nil
}

func (s *SubjectPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Subject, error) {
	var subject models.Subject
	err := s.cacheManager.Catalog.CacheOrExecute(ctx, cache.SubjectKey(id), &subject, func() (interface{}, error) {
		var dbSubject models.Subject
		if err := s.db.WithContext(ctx).Preload("Course").First(&dbSubject, id).Error; err != nil {
			return nil, translateError(err, "get subject")
		}
		return &dbSubject, nil
	})
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *SubjectPostgreSQL) Update(ctx context.Context, subject *models.Subject) error {
	result := s.db.WithContext(ctx).Model(&models.Subject{}).Where("id = ?", subject.ID).Updates(map[string]interface{}{
		"name":        subject.Name,
		"description": subject.Description,
		"course_id":   subject.CourseID,
	})
	if err := checkAffected(result, "update subject"); err != nil {
		return err
	}
	s.invalidate(ctx, subject.ID)
	return nil
}

func (s *SubjectPostgreSQL) Delete(ctx context.Context, id uint) error {
	if err := checkAffected(s.db.WithContext(ctx).Delete(&models.Subject{}, id), "delete subject"); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// invalidate drops the subject and every cached class embedding it.
func (s *SubjectPostgreSQL) invalidate(ctx context.Context, id uint) {
	cache.SafeDelete(ctx, s.cacheManager.Catalog, cache.SubjectKey(id))
	cache.SafeInvalidatePattern(ctx, s.cacheManager.Catalog, "class:*")
}

func (s *SubjectPostgreSQL) List(ctx context.Context, filters repositories.SubjectFilters) ([]*models.Subject, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Subject{})
	query = s.helpers.ApplySearch(query, filters.Search, "name", "description")
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count subjects")
	}

	var subjects []*models.Subject
	query = s.helpers.ApplyPaginationAndSort(query, filters.ListOptions, catalogSortColumns, "name")
	if err := query.Preload("Course").Find(&subjects).Error; err != nil {
		return nil, 0, translateError(err, "list subjects")
	}
	return subjects, total, nil
}

func (s *SubjectPostgreSQL) CountClasses(ctx context.Context, subjectID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Class{}).Where("subject_id = ?", subjectID).Count(&count).Error
	if err != nil {
		return 0, translateError(err, "count subject classes")
	}
	return count, nil
}
