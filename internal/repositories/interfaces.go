package repositories

import (
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

// ListOptions is embedded by every list filter.
type ListOptions struct {
	models.Pagination
	Search    string `json:"search"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"` // "asc", "desc"
}

type UserFilters struct {
	ListOptions
	Role   *models.UserRole           `json:"role"`
	Status *models.RegistrationStatus `json:"status"`
}

type CourseFilters struct {
	ListOptions
	CoordinatorID *uint `json:"coordinator_id"`
}

type SubjectFilters struct {
	ListOptions
	CourseID *uint `json:"course_id"`
}

type ClassFilters struct {
	ListOptions
	SubjectID *uint `json:"subject_id"`
	TeacherID *uint `json:"teacher_id"`
	// Only classes where the student has an approved enrollment.
	StudentID *uint `json:"student_id"`
}

type EnrollmentFilters struct {
	ListOptions
	ClassID   *uint                    `json:"class_id"`
	StudentID *uint                    `json:"student_id"`
	Status    *models.EnrollmentStatus `json:"status"`
	// Only enrollments in classes taught by this teacher.
	TeacherID *uint `json:"teacher_id"`
}

type FormFilters struct {
	ListOptions
	ClassID   *uint `json:"class_id"`
	TeacherID *uint `json:"teacher_id"`
	StudentID *uint `json:"student_id"`
	// Open selects forms whose deadline is unset or after Now.
	Open *bool     `json:"open"`
	Now  time.Time `json:"-"`
}

type MaterialFilters struct {
	ListOptions
	ClassID   *uint `json:"class_id"`
	TeacherID *uint `json:"teacher_id"`
	StudentID *uint `json:"student_id"`
}

// ===== AGGREGATE ROWS =====

// ResultRow is one scored submission joined with its form and subject.
type ResultRow struct {
	SubmissionID   uint                    `json:"submission_id"`
	FormID         uint                    `json:"form_id"`
	FormTitle      string                  `json:"form_title"`
	ClassID        uint                    `json:"class_id"`
	SubjectID      uint                    `json:"subject_id"`
	SubjectName    string                  `json:"subject_name"`
	StudentID      uint                    `json:"student_id"`
	StudentName    string                  `json:"student_name"`
	Status         models.SubmissionStatus `json:"status"`
	CorrectCount   int                     `json:"correct_count"`
	WrongCount     int                     `json:"wrong_count"`
	Score          int                     `json:"score"`
	MaxScore       int                     `json:"max_score"`
	PercentCorrect float64                 `json:"percent_correct"`
	SubmittedAt    time.Time               `json:"submitted_at"`
}

type PlatformCounts struct {
	UsersByRole          map[models.UserRole]int64 `json:"users_by_role"`
	PendingRegistrations int64                     `json:"pending_registrations"`
	Courses              int64                     `json:"courses"`
	Subjects             int64                     `json:"subjects"`
	Classes              int64                     `json:"classes"`
	Forms                int64                     `json:"forms"`
}

type TeacherCounts struct {
	Classes            int64 `json:"classes"`
	Forms              int64 `json:"forms"`
	PendingEnrollments int64 `json:"pending_enrollments"`
}

// AverageScope narrows AveragePercent; nil fields are ignored.
type AverageScope struct {
	TeacherID *uint
	StudentID *uint
	Since     *time.Time
}
