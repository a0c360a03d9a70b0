package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

var finalStatuses = []models.SubmissionStatus{models.SubmissionSubmitted, models.SubmissionExpired}

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) repositories.DashboardRepository {
	return &dashboardRepository{db: db}
}

// ===== COUNTS =====

func (r *dashboardRepository) PlatformCounts(ctx context.Context) (*repositories.PlatformCounts, error) {
	db := r.db.WithContext(ctx)
	counts := &repositories.PlatformCounts{UsersByRole: map[models.UserRole]int64{}}

	var byRole []struct {
		Role  models.UserRole
		Count int64
	}
	if err := db.Model(&models.User{}).Select("role, COUNT(*) AS count").Group("role").Scan(&byRole).Error; err != nil {
		return nil, fmt.Errorf("failed to count users by role: %w", err)
	}
	for _, row := range byRole {
		counts.UsersByRole[row.Role] = row.Count
	}

	if err := db.Model(&models.User{}).Where("status = ?", models.RegistrationPending).Count(&counts.PendingRegistrations).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending registrations: %w", err)
	}

	tables := []struct {
		model interface{}
		dest  *int64
	}{
		{&models.Course{}, &counts.Courses},
		{&models.Subject{}, &counts.Subjects},
		{&models.Class{}, &counts.Classes},
		{&models.Form{}, &counts.Forms},
	}
	for _, t := range tables {
		if err := db.Model(t.model).Count(t.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return counts, nil
}

func (r *dashboardRepository) TeacherCounts(ctx context.Context, teacherID uint) (*repositories.TeacherCounts, error) {
	db := r.db.WithContext(ctx)
	counts := &repositories.TeacherCounts{}

	if err := db.Model(&models.Class{}).Where("teacher_id = ?", teacherID).Count(&counts.Classes).Error; err != nil {
		return nil, fmt.Errorf("failed to count teacher classes: %w", err)
	}
	if err := db.Model(&models.Form{}).Where("class_id IN (?)", taughtClassIDs(db, teacherID)).Count(&counts.Forms).Error; err != nil {
		return nil, fmt.Errorf("failed to count teacher forms: %w", err)
	}
	err := db.Model(&models.Enrollment{}).
		Where("status = ? AND class_id IN (?)", models.EnrollmentPending, taughtClassIDs(db, teacherID)).
		Count(&counts.PendingEnrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count pending enrollments: %w", err)
	}
	return counts, nil
}

func (r *dashboardRepository) CountSubmissionsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("status IN ? AND submitted_at >= ?", finalStatuses, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent submissions: %w", err)
	}
	return count, nil
}

func (r *dashboardRepository) CountApprovedClasses(ctx context.Context, studentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("student_id = ? AND status = ?", studentID, models.EnrollmentApproved).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count approved classes: %w", err)
	}
	return count, nil
}

// ===== AVERAGES =====

func (r *dashboardRepository) AveragePercent(ctx context.Context, scope repositories.AverageScope) (float64, int64, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&models.Submission{}).Where("submissions.status IN ?", finalStatuses)
	if scope.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *scope.StudentID)
	}
	if scope.TeacherID != nil {
		query = query.
			Joins("JOIN forms f ON f.id = submissions.form_id").
			Where("f.class_id IN (?)", taughtClassIDs(db, *scope.TeacherID))
	}
	if scope.Since != nil {
		query = query.Where("submissions.submitted_at >= ?", *scope.Since)
	}

	var result struct {
		Avg   float64
		Count int64
	}
	if err := query.Select("COALESCE(AVG(submissions.percent_correct), 0) AS avg, COUNT(*) AS count").Scan(&result).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to average results: %w", err)
	}
	return result.Avg, result.Count, nil
}

// ===== RESULT ROWS =====

const resultColumns = `submissions.id AS submission_id, submissions.form_id, f.title AS form_title,
	f.class_id, c.subject_id, sub.name AS subject_name, submissions.student_id, u.name AS student_name,
	submissions.status, submissions.correct_count, submissions.wrong_count, submissions.score,
	submissions.max_score, submissions.percent_correct, submissions.submitted_at`

func (r *dashboardRepository) resultQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("submissions").
		Select(resultColumns).
		Joins("JOIN forms f ON f.id = submissions.form_id").
		Joins("JOIN classes c ON c.id = f.class_id").
		Joins("JOIN subjects sub ON sub.id = c.subject_id").
		Joins("JOIN users u ON u.id = submissions.student_id").
		Where("submissions.status IN ?", finalStatuses)
}

func (r *dashboardRepository) StudentResults(ctx context.Context, studentID uint) ([]repositories.ResultRow, error) {
	var rows []repositories.ResultRow
	err := r.resultQuery(ctx).
		Where("submissions.student_id = ?", studentID).
		Order("submissions.submitted_at ASC, submissions.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load student results: %w", err)
	}
	return rows, nil
}

func (r *dashboardRepository) ClassResults(ctx context.Context, classID uint) ([]repositories.ResultRow, error) {
	var rows []repositories.ResultRow
	err := r.resultQuery(ctx).
		Where("f.class_id = ?", classID).
		Order("submissions.form_id ASC, u.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load class results: %w", err)
	}
	return rows, nil
}
