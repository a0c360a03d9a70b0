package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/cache"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

const (
	platformStatsKey   = "platform"
	studentRecentLimit = 5
)

type dashboardService struct {
	repo         repositories.Repository
	cacheManager *cache.CacheManager
	logger       *slog.Logger
	now          func() time.Time
}

func NewDashboardService(repo repositories.Repository, cm *cache.CacheManager, logger *slog.Logger) DashboardService {
	return &dashboardService{
		repo:         repo,
		cacheManager: cm,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *dashboardService) Summary(ctx context.Context, actor Actor) (*DashboardSummary, error) {
	summary := &DashboardSummary{Role: actor.Role.String()}

	var err error
	switch {
	case actor.IsStaff():
		summary.Staff, err = s.staff(ctx)
	case actor.IsTeacher():
		summary.Teacher, err = s.teacher(ctx, actor.ID)
	case actor.IsStudent():
		summary.Student, err = s.student(ctx, actor.ID)
	default:
		return nil, NewPermissionError(actor.ID, 0, "dashboard", "view", "unknown role")
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// staff aggregates are cached for a minute; scored submissions drop them.
func (s *dashboardService) staff(ctx context.Context) (*StaffSummary, error) {
	var summary StaffSummary
	fetch := func() (interface{}, error) {
		return s.fetchStaff(ctx)
	}
	if s.cacheManager == nil {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		return v.(*StaffSummary), nil
	}
	if err := s.cacheManager.Stats.CacheOrExecute(ctx, platformStatsKey, &summary, fetch); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *dashboardService) fetchStaff(ctx context.Context) (*StaffSummary, error) {
	counts, err := s.repo.Dashboard().PlatformCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count platform: %w", err)
	}
	recent, err := s.repo.Dashboard().CountSubmissionsSince(ctx, s.now().Add(-7*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	avg, _, err := s.repo.Dashboard().AveragePercent(ctx, repositories.AverageScope{})
	if err != nil {
		return nil, fmt.Errorf("failed to average results: %w", err)
	}
	return &StaffSummary{
		PlatformCounts:       *counts,
		SubmissionsLast7Days: recent,
		AveragePercent:       round2(avg),
	}, nil
}

func (s *dashboardService) teacher(ctx context.Context, teacherID uint) (*TeacherSummary, error) {
	counts, err := s.repo.Dashboard().TeacherCounts(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to count teacher stats: %w", err)
	}
	avg, _, err := s.repo.Dashboard().AveragePercent(ctx, repositories.AverageScope{TeacherID: &teacherID})
	if err != nil {
		return nil, fmt.Errorf("failed to average results: %w", err)
	}
	return &TeacherSummary{TeacherCounts: *counts, AveragePercent: round2(avg)}, nil
}

func (s *dashboardService) student(ctx context.Context, studentID uint) (*StudentSummary, error) {
	dash := s.repo.Dashboard()

	classes, err := dash.CountApprovedClasses(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count classes: %w", err)
	}
	upcoming, err := s.repo.Form().ListUpcoming(ctx, studentID, s.now())
	if err != nil {
		return nil, err
	}
	medals, err := s.repo.Medal().CountAwards(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count medals: %w", err)
	}
	results, err := dash.StudentResults(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	// newest first
	recent := make([]repositories.ResultRow, 0, studentRecentLimit)
	for i := len(results) - 1; i >= 0 && len(recent) < studentRecentLimit; i-- {
		recent = append(recent, results[i])
	}

	return &StudentSummary{
		ApprovedClasses: classes,
		PendingForms:    len(upcoming),
		AveragePercent:  averageOf(results),
		Medals:          medals,
		RecentResults:   recent,
	}, nil
}

func (s *dashboardService) Upcoming(ctx context.Context, actor Actor) ([]*models.Form, error) {
	if !actor.IsStudent() {
		return nil, NewPermissionError(actor.ID, 0, "dashboard", "upcoming", "only students have upcoming forms")
	}
	forms, err := s.repo.Form().ListUpcoming(ctx, actor.ID, s.now())
	if err != nil {
		return nil, err
	}
	if forms == nil {
		forms = []*models.Form{}
	}
	return forms, nil
}
