package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

type enrollmentService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewEnrollmentService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) EnrollmentService {
	return &enrollmentService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

// Create files a pending request when students enroll themselves and an
// approved enrollment when staff or the class teacher enroll a student.
// Rejected or cancelled enrollments are reopened instead of duplicated.
func (s *enrollmentService) Create(ctx context.Context, actor Actor, req *EnrollmentCreateRequest) (*models.Enrollment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	class, err := loadClass(ctx, s.repo, req.ClassID)
	if err != nil {
		return nil, err
	}

	var studentID uint
	status := models.EnrollmentApproved
	switch {
	case actor.IsStudent():
		if req.StudentID != nil && *req.StudentID != actor.ID {
			return nil, NewPermissionError(actor.ID, class.ID, "enrollment", "create", "students may only enroll themselves")
		}
		studentID = actor.ID
		status = models.EnrollmentPending
	case canManageClass(actor, class):
		if req.StudentID == nil {
			return nil, NewValidationError("student_id", "is required", nil)
		}
		student, err := s.repo.User().GetByID(ctx, *req.StudentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, NewValidationError("student_id", "user does not exist", *req.StudentID)
			}
			return nil, fmt.Errorf("failed to get student: %w", err)
		}
		if student.Role != models.RoleStudent {
			return nil, NewValidationError("student_id", "user is not a student", *req.StudentID)
		}
		studentID = student.ID
	default:
		return nil, NewPermissionError(actor.ID, class.ID, "enrollment", "create", "not the class teacher")
	}

	now := s.now()
	enrollment, err := s.repo.Enrollment().GetByClassAndStudent(ctx, class.ID, studentID)
	switch {
	case err == nil:
		if enrollment.Status == models.EnrollmentPending || enrollment.Status == models.EnrollmentApproved {
			return nil, ErrAlreadyEnrolled
		}
		from := enrollment.Status
		s.decide(enrollment, status, actor, now)
		if err := s.repo.Enrollment().Update(ctx, enrollment); err != nil {
			return nil, notFoundAs(err, ErrEnrollmentNotFound, "reopen enrollment")
		}
		s.changed(ctx, enrollment, from, actor)
		return enrollment, nil
	case !repositories.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	enrollment = &models.Enrollment{ClassID: class.ID, StudentID: studentID}
	s.decide(enrollment, status, actor, now)
	if err := s.repo.Enrollment().Create(ctx, enrollment); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	s.changed(ctx, enrollment, "", actor)
	return enrollment, nil
}

func (s *enrollmentService) decide(e *models.Enrollment, status models.EnrollmentStatus, actor Actor, now time.Time) {
	e.Status = status
	if status == models.EnrollmentPending {
		e.DecidedBy, e.DecidedAt = nil, nil
		return
	}
	e.DecidedBy = uintPtr(actor.ID)
	e.DecidedAt = timePtr(now)
}

func (s *enrollmentService) changed(ctx context.Context, e *models.Enrollment, from models.EnrollmentStatus, actor Actor) {
	s.logger.Info("Enrollment changed",
		"enrollment_id", e.ID,
		"class_id", e.ClassID,
		"student_id", e.StudentID,
		"from", from,
		"to", e.Status,
		"changed_by", actor.ID)
	publishEvent(ctx, s.publisher, s.logger, events.TopicEnrollments, events.EnrollmentChanged, events.EnrollmentEvent{
		EnrollmentID: e.ID,
		ClassID:      e.ClassID,
		StudentID:    e.StudentID,
		From:         string(from),
		Status:       string(e.Status),
		ChangedBy:    actor.ID,
	})
}

func (s *enrollmentService) List(ctx context.Context, actor Actor, filters repositories.EnrollmentFilters) (*models.ListResponse[*models.Enrollment], error) {
	switch {
	case actor.IsStudent():
		filters.StudentID = uintPtr(actor.ID)
	case actor.IsTeacher():
		filters.TeacherID = uintPtr(actor.ID)
	}
	enrollments, total, err := s.repo.Enrollment().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return models.NewListResponse(enrollments, total, filters.Pagination), nil
}

// UpdateStatus lets staff and the class teacher decide pending requests
// and lets the student or staff cancel.
func (s *enrollmentService) UpdateStatus(ctx context.Context, actor Actor, id uint, req *EnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	enrollment, err := s.repo.Enrollment().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrEnrollmentNotFound, "get enrollment")
	}
	if err := validator.ValidateEnrollmentTransition(enrollment.Status, req.Status); err != nil {
		return nil, err
	}

	if req.Status == models.EnrollmentCancelled {
		if !actor.IsStaff() && actor.ID != enrollment.StudentID {
			return nil, NewPermissionError(actor.ID, id, "enrollment", "cancel", "student or staff only")
		}
	} else if _, err := requireClassManager(ctx, s.repo, actor, enrollment.ClassID, "enrollment", "decide"); err != nil {
		return nil, err
	}

	from := enrollment.Status
	s.decide(enrollment, req.Status, actor, s.now())
	enrollment.Class, enrollment.Student = nil, nil
	if err := s.repo.Enrollment().Update(ctx, enrollment); err != nil {
		return nil, notFoundAs(err, ErrEnrollmentNotFound, "update enrollment")
	}
	s.changed(ctx, enrollment, from, actor)
	return enrollment, nil
}

func (s *enrollmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsStaff() {
		return NewPermissionError(actor.ID, id, "enrollment", "delete", "staff only")
	}
	if err := s.repo.Enrollment().Delete(ctx, id); err != nil {
		return notFoundAs(err, ErrEnrollmentNotFound, "delete enrollment")
	}
	s.logger.Info("Enrollment deleted", "enrollment_id", id, "deleted_by", actor.ID)
	return nil
}
