package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

type courseService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewCourseService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) CourseService {
	return &courseService{repo: repo, logger: logger, validator: validator}
}

func (s *courseService) Create(ctx context.Context, req *CourseRequest) (*models.Course, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	course := &models.Course{
		Name:          req.Name,
		Description:   req.Description,
		CoordinatorID: req.CoordinatorID,
	}
	if err := s.repo.Course().Create(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	s.logger.Info("Course created", "course_id", course.ID)
	return course, nil
}

// validate checks tags and that a named coordinator holds that role.
func (s *courseService) validate(ctx context.Context, req *CourseRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if req.CoordinatorID == nil {
		return nil
	}
	user, err := s.repo.User().GetByID(ctx, *req.CoordinatorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return NewValidationError("coordinator_id", "user does not exist", *req.CoordinatorID)
		}
		return fmt.Errorf("failed to get coordinator: %w", err)
	}
	if user.Role != models.RoleCoordinator {
		return NewValidationError("coordinator_id", "user is not a coordinator", *req.CoordinatorID)
	}
	return nil
}

func (s *courseService) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	course, err := s.repo.Course().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrCourseNotFound, "get course")
	}
	return course, nil
}

func (s *courseService) Update(ctx context.Context, id uint, req *CourseRequest) (*models.Course, error) {
	course, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	course.Name = req.Name
	course.Description = req.Description
	course.CoordinatorID = req.CoordinatorID
	course.Coordinator = nil
	if err := s.repo.Course().Update(ctx, course); err != nil {
		return nil, notFoundAs(err, ErrCourseNotFound, "update course")
	}
	return course, nil
}

func (s *courseService) Delete(ctx context.Context, id uint) error {
	n, err := s.repo.Course().CountSubjects(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count subjects: %w", err)
	}
	if n > 0 {
		return NewBusinessRuleError("course_has_subjects", "remove the course's subjects first", map[string]interface{}{"subjects": n})
	}
	if err := s.repo.Course().Delete(ctx, id); err != nil {
		return notFoundAs(err, ErrCourseNotFound, "delete course")
	}
	s.logger.Info("Course deleted", "course_id", id)
	return nil
}

func (s *courseService) List(ctx context.Context, filters repositories.CourseFilters) (*models.ListResponse[*models.Course], error) {
	courses, total, err := s.repo.Course().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return models.NewListResponse(courses, total, filters.Pagination), nil
}
