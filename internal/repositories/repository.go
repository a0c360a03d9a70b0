package repositories

import "context"

// Repository aggregates every store the services depend on.
type Repository interface {
	User() UserRepository

	// Catalogue
	Course() CourseRepository
	Subject() SubjectRepository
	Class() ClassRepository
	Enrollment() EnrollmentRepository

	// Exams
	Form() FormRepository
	Submission() SubmissionRepository

	Material() MaterialRepository
	Medal() MedalRepository

	// Read-only aggregates for dashboards and performance reports
	Dashboard() DashboardRepository

	// WithTransaction runs fn against a Repository bound to one transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}
