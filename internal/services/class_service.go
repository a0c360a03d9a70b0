package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

type classService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewClassService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ClassService {
	return &classService{repo: repo, logger: logger, validator: validator}
}

func (s *classService) validate(ctx context.Context, req *ClassRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if _, err := s.repo.Subject().GetByID(ctx, req.SubjectID); err != nil {
		if repositories.IsNotFoundError(err) {
			return NewValidationError("subject_id", "subject does not exist", req.SubjectID)
		}
		return fmt.Errorf("failed to get subject: %w", err)
	}
	if req.TeacherID != nil {
		teacher, err := s.repo.User().GetByID(ctx, *req.TeacherID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return NewValidationError("teacher_id", "user does not exist", *req.TeacherID)
			}
			return fmt.Errorf("failed to get teacher: %w", err)
		}
		if teacher.Role != models.RoleTeacher {
			return NewValidationError("teacher_id", "user is not a teacher", *req.TeacherID)
		}
	}
	return nil
}

func (s *classService) Create(ctx context.Context, req *ClassRequest) (*models.Class, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	class := &models.Class{
		Name:      req.Name,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		Period:    req.Period,
	}
	if err := s.repo.Class().Create(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}
	s.logger.Info("Class created", "class_id", class.ID, "subject_id", class.SubjectID)
	return class, nil
}

func (s *classService) GetByID(ctx context.Context, actor Actor, id uint) (*models.Class, error) {
	return requireClassReader(ctx, s.repo, actor, id, "class", "view")
}

func (s *classService) Update(ctx context.Context, id uint, req *ClassRequest) (*models.Class, error) {
	class, err := loadClass(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	class.Name = req.Name
	class.SubjectID = req.SubjectID
	class.TeacherID = req.TeacherID
	class.Period = req.Period
	class.Subject, class.Teacher = nil, nil
	if err := s.repo.Class().Update(ctx, class); err != nil {
		return nil, notFoundAs(err, ErrClassNotFound, "update class")
	}
	return class, nil
}

func (s *classService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Class().Delete(ctx, id); err != nil {
		return notFoundAs(err, ErrClassNotFound, "delete class")
	}
	s.logger.Info("Class deleted", "class_id", id)
	return nil
}

// List scopes by role: teachers see what they teach, students what they
// are enrolled in.
func (s *classService) List(ctx context.Context, actor Actor, filters repositories.ClassFilters) (*models.ListResponse[*models.Class], error) {
	switch {
	case actor.IsTeacher():
		filters.TeacherID = uintPtr(actor.ID)
	case actor.IsStudent():
		filters.StudentID = uintPtr(actor.ID)
		filters.TeacherID = nil
	}
	classes, total, err := s.repo.Class().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return models.NewListResponse(classes, total, filters.Pagination), nil
}

func (s *classService) Students(ctx context.Context, actor Actor, classID uint) ([]*models.User, error) {
	if _, err := requireClassManager(ctx, s.repo, actor, classID, "class", "list_students"); err != nil {
		return nil, err
	}
	students, err := s.repo.Class().ListStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	for _, u := range students {
		u.Sanitize()
	}
	return students, nil
}
