package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/cache"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

var classSortColumns = map[string]bool{
	"id":         true,
	"name":       true,
	"period":     true,
	"created_at": true,
}

type ClassPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewClassPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.ClassRepository {
	return &ClassPostgreSQL{db: db, helpers: NewSharedHelpers(), cacheManager: cm}
}

func (c *ClassPostgreSQL) Create(ctx context.Context, class *models.Class) error {
	if err := c.db.WithContext(ctx).Omit("Subject", "Teacher").Create(class).Error; err != nil {
		return translateError(err, "create class")
	}
	return nil
}

// GetByID is on the hot path of every form and material permission check.
func (c *ClassPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Class, error) {
	var class models.Class
	err := c.cacheManager.Catalog.CacheOrExecute(ctx, cache.ClassKey(id), &class, func() (interface{}, error) {
		var dbClass models.Class
		err := c.db.WithContext(ctx).
			Preload("Subject").
			Preload("Teacher").
			First(&dbClass, id).Error
		if err != nil {
			return nil, translateError(err, "get class")
		}
		return &dbClass, nil
	})
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (c *ClassPostgreSQL) Update(ctx context.Context, class *models.Class) error {
	result := c.db.WithContext(ctx).Model(&models.Class{}).Where("id = ?", class.ID).Updates(map[string]interface{}{
		"name":       class.Name,
		"subject_id": class.SubjectID,
		"teacher_id": class.TeacherID,
		"period":     class.Period,
	})
	if err := checkAffected(result, "update class"); err != nil {
		return err
	}
	cache.SafeDelete(ctx, c.cacheManager.Catalog, cache.ClassKey(class.ID))
	return nil
}

func (c *ClassPostgreSQL) Delete(ctx context.Context, id uint) error {
	if err := checkAffected(c.db.WithContext(ctx).Delete(&models.Class{}, id), "delete class"); err != nil {
		return err
	}
	cache.SafeDelete(ctx, c.cacheManager.Catalog, cache.ClassKey(id))
	return nil
}

func (c *ClassPostgreSQL) List(ctx context.Context, filters repositories.ClassFilters) ([]*models.Class, int64, error) {
	query := c.db.WithContext(ctx).Model(&models.Class{})
	query = c.helpers.ApplySearch(query, filters.Search, "classes.name", "classes.period")
	if filters.SubjectID != nil {
		query = query.Where("classes.subject_id = ?", *filters.SubjectID)
	}
	if filters.TeacherID != nil {
		query = query.Where("classes.teacher_id = ?", *filters.TeacherID)
	}
	if filters.StudentID != nil {
		query = query.Where("classes.id IN (?)", approvedClassIDs(c.db.WithContext(ctx), *filters.StudentID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count classes")
	}

	var classes []*models.Class
	query = c.helpers.ApplyPaginationAndSort(query, filters.ListOptions, classSortColumns, "name")
	if err := query.Preload("Subject").Preload("Teacher").Find(&classes).Error; err != nil {
		return nil, 0, translateError(err, "list classes")
	}
	return classes, total, nil
}

func (c *ClassPostgreSQL) ListStudents(ctx context.Context, classID uint) ([]*models.User, error) {
	var students []*models.User
	err := c.db.WithContext(ctx).
		Joins("JOIN enrollments e ON e.student_id = users.id").
		Where("e.class_id = ? AND e.status = ?", classID, models.EnrollmentApproved).
		Order("users.name ASC").
		Find(&students).Error
	if err != nil {
		return nil, translateError(err, "list class students")
	}
	for _, s := range students {
		s.Sanitize()
	}
	return students, nil
}

func (c *ClassPostgreSQL) SharesClass(ctx context.Context, teacherID, studentID uint) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&models.Class{}).
		Joins("JOIN enrollments e ON e.class_id = classes.id").
		Where("classes.teacher_id = ? AND e.student_id = ? AND e.status = ?", teacherID, studentID, models.EnrollmentApproved).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check shared class: %w", err)
	}
	return count > 0, nil
}

// approvedClassIDs is a subquery of the classes a student attends.
func approvedClassIDs(db *gorm.DB, studentID uint) *gorm.DB {
	return db.Model(&models.Enrollment{}).
		Select("class_id").
		Where("student_id = ? AND status = ?", studentID, models.EnrollmentApproved)
}

// taughtClassIDs is a subquery of the classes a teacher teaches.
func taughtClassIDs(db *gorm.DB, teacherID uint) *gorm.DB {
	return db.Model(&models.Class{}).
		Select("id").
		Where("teacher_id = ?", teacherID)
}
