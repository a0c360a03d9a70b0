package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/cache"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

var catalogSortColumns = map[string]bool{
	"id":         true,
	"name":       true,
	"created_at": true,
	"updated_at": true,
}

type CoursePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewCoursePostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.CourseRepository {
	return &CoursePostgreSQL{db: db, helpers: NewSharedHelpers(), cacheManager: cm}
}

func (c *CoursePostgreSQL) Create(ctx context.Context, course *models.Course) error {
	if err := c.db.WithContext(ctx).Omit("Coordinator", "Subjects").Create(course).Error; err != nil {
		return translateError(err, "create course")
	}
	return nil
}

func (c *CoursePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := c.cacheManager.Catalog.CacheOrExecute(ctx, cache.CourseKey(id), &course, func() (interface{}, error) {
		var dbCourse models.Course
		if err := c.db.WithContext(ctx).Preload("Coordinator").First(&dbCourse, id).Error; err != nil {
			return nil, translateError(err, "get course")
		}
		return &dbCourse, nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *CoursePostgreSQL) Update(ctx context.Context, course *models.Course) error {
	result := c.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", course.ID).Updates(map[string]interface{}{
		"name":           course.Name,
		"description":    course.Description,
		"coordinator_id": course.CoordinatorID,
	})
	if err := checkAffected(result, "update course"); err != nil {
		return err
	}
	cache.SafeDelete(ctx, c.cacheManager.Catalog, cache.CourseKey(course.ID))
	return nil
}

func (c *CoursePostgreSQL) Delete(ctx context.Context, id uint) error {
	if err := checkAffected(c.db.WithContext(ctx).Delete(&models.Course{}, id), "delete course"); err != nil {
		return err
	}
	cache.SafeDelete(ctx, c.cacheManager.Catalog, cache.CourseKey(id))
	return nil
}

func (c *CoursePostgreSQL) List(ctx context.Context, filters repositories.CourseFilters) ([]*models.Course, int64, error) {
	query := c.db.WithContext(ctx).Model(&models.Course{})
	query = c.helpers.ApplySearch(query, filters.Search, "name", "description")
	if filters.CoordinatorID != nil {
		query = query.Where("coordinator_id = ?", *filters.CoordinatorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count courses")
	}

	var courses []*models.Course
	query = c.helpers.ApplyPaginationAndSort(query, filters.ListOptions, catalogSortColumns, "name")
	if err := query.Preload("Coordinator").Find(&courses).Error; err != nil {
		return nil, 0, translateError(err, "list courses")
	}
	return courses, total, nil
}

func (c *CoursePostgreSQL) CountSubjects(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&models.Subject{}).Where("course_id = ?", courseID).Count(&count).Error
	if err != nil {
		return 0, translateError(err, "count course subjects")
	}
	return count, nil
}
