package repositories

import (
	"context"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters CourseFilters) ([]*models.Course, int64, error)
	CountSubjects(ctx context.Context, courseID uint) (int64, error)
}

type SubjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	GetByID(ctx context.Context, id uint) (*models.Subject, error)
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters SubjectFilters) ([]*models.Subject, int64, error)
	CountClasses(ctx context.Context, subjectID uint) (int64, error)
}

type ClassRepository interface {
	Create(ctx context.Context, class *models.Class) error
	GetByID(ctx context.Context, id uint) (*models.Class, error)
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters ClassFilters) ([]*models.Class, int64, error)
	// ListStudents returns students with an approved enrollment, ordered by name.
	ListStudents(ctx context.Context, classID uint) ([]*models.User, error)
	// SharesClass reports whether the teacher teaches a class the student is
	// enrolled in (approved).
	SharesClass(ctx context.Context, teacherID, studentID uint) (bool, error)
}

type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, id uint) (*models.Enrollment, error)
	GetByClassAndStudent(ctx context.Context, classID, studentID uint) (*models.Enrollment, error)
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters EnrollmentFilters) ([]*models.Enrollment, int64, error)
	IsApproved(ctx context.Context, classID, studentID uint) (bool, error)
	ApprovedClassIDs(ctx context.Context, studentID uint) ([]uint, error)
}
