package repositories

import (
	"context"
	"time"
)

// DashboardRepository serves read-only aggregates for dashboards and
// performance reports.
type DashboardRepository interface {
	PlatformCounts(ctx context.Context) (*PlatformCounts, error)
	TeacherCounts(ctx context.Context, teacherID uint) (*TeacherCounts, error)
	CountSubmissionsSince(ctx context.Context, since time.Time) (int64, error)
	CountApprovedClasses(ctx context.Context, studentID uint) (int64, error)

	// AveragePercent averages percent_correct over finalised submissions.
	// The second value is the number of submissions averaged.
	AveragePercent(ctx context.Context, scope AverageScope) (float64, int64, error)

	// StudentResults lists a student's finalised submissions, oldest first.
	StudentResults(ctx context.Context, studentID uint) ([]ResultRow, error)
	// ClassResults lists finalised submissions for every form of a class.
	ClassResults(ctx context.Context, classID uint) ([]ResultRow, error)
}
