package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

var enrollmentSortColumns = map[string]bool{
	"id":         true,
	"status":     true,
	"created_at": true,
	"decided_at": true,
}

type EnrollmentPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewEnrollmentPostgreSQL(db *gorm.DB) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{db: db, helpers: NewSharedHelpers()}
}

func (e *EnrollmentPostgreSQL) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if err := e.db.WithContext(ctx).Omit("Class", "Student").Create(enrollment).Error; err != nil {
		return translateError(err, "create enrollment")
	}
	return nil
}

func (e *EnrollmentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := e.db.WithContext(ctx).
		Preload("Class").
		Preload("Student").
		First(&enrollment, id).Error
	if err != nil {
		return nil, translateError(err, "get enrollment")
	}
	return &enrollment, nil
}

func (e *EnrollmentPostgreSQL) GetByClassAndStudent(ctx context.Context, classID, studentID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := e.db.WithContext(ctx).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		First(&enrollment).Error
	if err != nil {
		return nil, translateError(err, "get enrollment")
	}
	return &enrollment, nil
}

func (e *EnrollmentPostgreSQL) Update(ctx context.Context, enrollment *models.Enrollment) error {
	result := e.db.WithContext(ctx).Model(&models.Enrollment{}).Where("id = ?", enrollment.ID).Updates(map[string]interface{}{
		"status":     enrollment.Status,
		"decided_by": enrollment.DecidedBy,
		"decided_at": enrollment.DecidedAt,
	})
	return checkAffected(result, "update enrollment")
}

func (e *EnrollmentPostgreSQL) Delete(ctx context.Context, id uint) error {
	return checkAffected(e.db.WithContext(ctx).Delete(&models.Enrollment{}, id), "delete enrollment")
}

func (e *EnrollmentPostgreSQL) List(ctx context.Context, filters repositories.EnrollmentFilters) ([]*models.Enrollment, int64, error) {
	query := e.db.WithContext(ctx).Model(&models.Enrollment{})
	if filters.ClassID != nil {
		query = query.Where("class_id = ?", *filters.ClassID)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.TeacherID != nil {
		query = query.Where("class_id IN (?)", taughtClassIDs(e.db.WithContext(ctx), *filters.TeacherID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count enrollments")
	}

	var enrollments []*models.Enrollment
	query = e.helpers.ApplyPaginationAndSort(query, filters.ListOptions, enrollmentSortColumns, "created_at")
	if err := query.Preload("Class").Preload("Student").Find(&enrollments).Error; err != nil {
		return nil, 0, translateError(err, "list enrollments")
	}
	return enrollments, total, nil
}

func (e *EnrollmentPostgreSQL) IsApproved(ctx context.Context, classID, studentID uint) (bool, error) {
	var count int64
	err := e.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("class_id = ? AND student_id = ? AND status = ?", classID, studentID, models.EnrollmentApproved).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return count > 0, nil
}

func (e *EnrollmentPostgreSQL) ApprovedClassIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	if err := approvedClassIDs(e.db.WithContext(ctx), studentID).Pluck("class_id", &ids).Error; err != nil {
		return nil, translateError(err, "list approved classes")
	}
	return ids, nil
}
