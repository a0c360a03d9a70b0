package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

type subjectService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewSubjectService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) SubjectService {
	return &subjectService{repo: repo, logger: logger, validator: validator}
}

func (s *subjectService) validate(ctx context.Context, req *SubjectRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if _, err := s.repo.Course().GetByID(ctx, req.CourseID); err != nil {
		if repositories.IsNotFoundError(err) {
			return NewValidationError("course_id", "course does not exist", req.CourseID)
		}
		return fmt.Errorf("failed to get course: %w", err)
	}
	return nil
}

func (s *subjectService) Create(ctx context.Context, req *SubjectRequest) (*models.Subject, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	subject := &models.Subject{
		Name:        req.Name,
		Description: req.Description,
		CourseID:    req.CourseID,
	}
	if err := s.repo.Subject().Create(ctx, subject); err != nil {
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}
	s.logger.Info("Subject created", "subject_id", subject.ID, "course_id", subject.CourseID)
	return subject, nil
}

func (s *subjectService) GetByID(ctx context.Context, id uint) (*models.Subject, error) {
	subject, err := s.repo.Subject().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrSubjectNotFound, "get subject")
	}
	return subject, nil
}

func (s *subjectService) Update(ctx context.Context, id uint, req *SubjectRequest) (*models.Subject, error) {
	subject, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	subject.Name = req.Name
	subject.Description = req.Description
	subject.CourseID = req.CourseID
	subject.Course = nil
	if err := s.repo.Subject().Update(ctx, subject); err != nil {
		return nil, notFoundAs(err, ErrSubjectNotFound, "update subject")
	}
	return subject, nil
}

// Delete refuses while classes still reference the subject.
func (s *subjectService) Delete(ctx context.Context, id uint) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.Subject().CountClasses(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count classes: %w", err)
	}
	if n > 0 {
		return NewBusinessRuleError("subject_has_classes", "the subject still has classes", map[string]interface{}{"classes": n})
	}
	if err := s.repo.Subject().Delete(ctx, id); err != nil {
		if repositories.IsInUseError(err) {
			return NewBusinessRuleError("subject_has_classes", "the subject still has classes", nil)
		}
		return notFoundAs(err, ErrSubjectNotFound, "delete subject")
	}
	s.logger.Info("Subject deleted", "subject_id", id)
	return nil
}

func (s *subjectService) List(ctx context.Context, filters repositories.SubjectFilters) (*models.ListResponse[*models.Subject], error) {
	subjects, total, err := s.repo.Subject().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return models.NewListResponse(subjects, total, filters.Pagination), nil
}

func (s *subjectService) ListClasses(ctx context.Context, subjectID uint) ([]*models.Class, error) {
	if _, err := s.GetByID(ctx, subjectID); err != nil {
		return nil, err
	}
	filters := repositories.ClassFilters{SubjectID: &subjectID}
	filters.Limit = models.MaxPageSize
	classes, _, err := s.repo.Class().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return classes, nil
}
