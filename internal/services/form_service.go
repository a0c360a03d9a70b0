package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/cache"
	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/export"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

const sweepBatchSize = 100

type formService struct {
	repo         repositories.Repository
	medals       MedalService
	cacheManager *cache.CacheManager
	publisher    events.EventPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	validator    *validator.Validator
	grace        time.Duration
	now          func() time.Time
}

func NewFormService(
	repo repositories.Repository,
	medals MedalService,
	cm *cache.CacheManager,
	publisher events.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	validator *validator.Validator,
	grace time.Duration,
) FormService {
	return &formService{
		repo:         repo,
		medals:       medals,
		cacheManager: cm,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
		validator:    validator,
		grace:        grace,
		now:          time.Now,
	}
}

// ===== DEFINITION =====

func (s *formService) Create(ctx context.Context, actor Actor, req *FormRequest) (*FormDetail, error) {
	if err := s.validator.ValidateForm(req, s.now()); err != nil {
		return nil, err
	}
	if _, err := requireClassManager(ctx, s.repo, actor, req.ClassID, "form", "create"); err != nil {
		return nil, err
	}

	form := buildForm(req)
	form.CreatedBy = actor.ID
	if err := s.repo.Form().Create(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	s.logger.Info("Form created",
		"form_id", form.ID,
		"class_id", form.ClassID,
		"questions", len(form.Questions),
		"created_by", actor.ID)
	return newFormDetail(form, true, s.now()), nil
}

func (s *formService) Get(ctx context.Context, actor Actor, id uint) (*FormDetail, error) {
	form, err := s.loadWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	class, err := requireClassReader(ctx, s.repo, actor, form.ClassID, "form", "view")
	if err != nil {
		return nil, err
	}

	manager := canManageClass(actor, class)
	detail := newFormDetail(form, manager, s.now())
	if !manager {
		submitted, err := s.repo.Submission().SubmittedFormIDs(ctx, actor.ID, []uint{form.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to check submission: %w", err)
		}
		detail.AlreadySubmitted = boolPtr(submitted[form.ID])
	}
	return detail, nil
}

// Update replaces the definition while no student has started the form.
func (s *formService) Update(ctx context.Context, actor Actor, id uint, req *FormRequest) (*FormDetail, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := requireClassManager(ctx, s.repo, actor, current.ClassID, "form", "update"); err != nil {
		return nil, err
	}
	if req.ClassID != current.ClassID {
		if _, err := requireClassManager(ctx, s.repo, actor, req.ClassID, "form", "move"); err != nil {
			return nil, err
		}
	}
	if err := s.validator.ValidateForm(req, s.now()); err != nil {
		return nil, err
	}

	locked, err := s.repo.Submission().ExistsForForm(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check submissions: %w", err)
	}
	if locked {
		return nil, ErrFormLocked
	}

	form := buildForm(req)
	form.ID = current.ID
	form.CreatedBy = current.CreatedBy
	form.CreatedAt = current.CreatedAt
	if err := s.repo.Form().ReplaceDefinition(ctx, form); err != nil {
		return nil, notFoundAs(err, ErrFormNotFound, "update form")
	}

	s.logger.Info("Form updated", "form_id", id, "updated_by", actor.ID)
	return newFormDetail(form, true, s.now()), nil
}

// Delete removes the form; submissions and answers go with it.
func (s *formService) Delete(ctx context.Context, actor Actor, id uint) error {
	form, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := requireClassManager(ctx, s.repo, actor, form.ClassID, "form", "delete"); err != nil {
		return err
	}
	if err := s.repo.Form().Delete(ctx, id); err != nil {
		return notFoundAs(err, ErrFormNotFound, "delete form")
	}
	s.logger.Info("Form deleted", "form_id", id, "deleted_by", actor.ID)
	return nil
}

func (s *formService) List(ctx context.Context, actor Actor, filters FormListFilters) (*models.ListResponse[*FormSummary], error) {
	now := s.now()
	repoFilters := repositories.FormFilters{
		ClassID: filters.ClassID,
		Now:     now,
	}
	repoFilters.Pagination = filters.Pagination
	repoFilters.Search = filters.Search
	switch filters.Status {
	case "open":
		repoFilters.Open = boolPtr(true)
	case "closed":
		repoFilters.Open = boolPtr(false)
	case "":
	default:
		return nil, NewValidationError("status", "must be open or closed", filters.Status)
	}
	switch {
	case actor.IsStudent():
		repoFilters.StudentID = uintPtr(actor.ID)
	case actor.IsTeacher():
		repoFilters.TeacherID = uintPtr(actor.ID)
	}

	forms, total, err := s.repo.Form().List(ctx, repoFilters)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	var submitted map[uint]bool
	if actor.IsStudent() {
		ids := make([]uint, len(forms))
		for i, f := range forms {
			ids[i] = f.ID
		}
		submitted, err = s.repo.Submission().SubmittedFormIDs(ctx, actor.ID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to check submissions: %w", err)
		}
	}

	items := make([]*FormSummary, len(forms))
	for i, f := range forms {
		f.Questions = nil
		items[i] = &FormSummary{Form: f, IsOpen: f.IsOpen(now)}
		if submitted != nil {
			items[i].AlreadySubmitted = boolPtr(submitted[f.ID])
		}
	}
	return models.NewListResponse(items, total, filters.Pagination), nil
}

// ===== SITTING =====

// Start opens (or resumes) the student's timed sitting.
func (s *formService) Start(ctx context.Context, actor Actor, id uint) (*StartResponse, error) {
	form, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnrolled(ctx, actor, form); err != nil {
		return nil, err
	}

	now := s.now()
	var submission *models.Submission
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		existing, err := tx.Submission().LockByFormAndStudent(ctx, form.ID, actor.ID)
		switch {
		case err == nil:
			if existing.IsFinal() {
				return ErrAlreadySubmitted
			}
			submission = existing
			return nil
		case !repositories.IsNotFoundError(err):
			return fmt.Errorf("failed to lock submission: %w", err)
		}

		if !form.IsOpen(now) {
			return ErrFormClosed
		}
		submission = newSubmission(form, actor.ID, now)
		return tx.Submission().Create(ctx, submission)
	})
	if repositories.IsDuplicateError(err) {
		// Lost a race with a concurrent start; the other sitting wins.
		submission, err = s.repo.Submission().GetByFormAndStudent(ctx, form.ID, actor.ID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Form started",
		"form_id", form.ID,
		"student_id", actor.ID,
		"submission_id", submission.ID,
		"expires_at", submission.ExpiresAt)
	return &StartResponse{
		SubmissionID: submission.ID,
		StartedAt:    submission.StartedAt,
		ExpiresAt:    submission.ExpiresAt,
		TimeLeft:     submission.TimeLeft(now),
	}, nil
}

// TimeLeft reports the seconds remaining. Before a start it reports the
// time a sitting started now would get.
func (s *formService) TimeLeft(ctx context.Context, actor Actor, id uint) (*TimeLeftResponse, error) {
	form, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnrolled(ctx, actor, form); err != nil {
		return nil, err
	}

	now := s.now()
	submission, err := s.repo.Submission().GetByFormAndStudent(ctx, form.ID, actor.ID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get submission: %w", err)
		}
		if !form.IsOpen(now) {
			return &TimeLeftResponse{TimeLeft: 0}, nil
		}
		return &TimeLeftResponse{TimeLeft: newSubmission(form, actor.ID, now).TimeLeft(now)}, nil
	}

	return &TimeLeftResponse{
		TimeLeft:  submission.TimeLeft(now),
		Status:    submission.Status,
		ExpiresAt: timePtr(submission.ExpiresAt),
	}, nil
}

// Submit scores the answers in one transaction. A sitting past expiry plus
// grace is closed as expired and ErrSubmissionExpired is returned.
func (s *formService) Submit(ctx context.Context, actor Actor, id uint, req *SubmitRequest) (*ResultResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	form, err := s.loadWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnrolled(ctx, actor, form); err != nil {
		return nil, err
	}
	if err := validateAnswers(form, req.Answers); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		submission *models.Submission
		expired    bool
	)
	submit := func(tx repositories.Repository) error {
		current, err := tx.Submission().LockByFormAndStudent(ctx, form.ID, actor.ID)
		switch {
		case err == nil:
			if current.IsFinal() {
				return ErrAlreadySubmitted
			}
		case repositories.IsNotFoundError(err):
			if form.Deadline != nil && now.After(form.Deadline.Add(s.grace)) {
				return ErrFormClosed
			}
			current = newSubmission(form, actor.ID, now)
			if err := tx.Submission().Create(ctx, current); err != nil {
				return err
			}
		default:
			return fmt.Errorf("failed to lock submission: %w", err)
		}

		submission = current
		submission.SubmittedAt = timePtr(now)
		if now.After(submission.ExpiresAt.Add(s.grace)) {
			expired = true
			submission.Status = models.SubmissionExpired
			ScoreSubmission(form.Questions, nil).Apply(submission)
		} else {
			submission.Status = models.SubmissionSubmitted
			ScoreSubmission(form.Questions, req.Answers).Apply(submission)
		}
		return tx.Submission().SaveResult(ctx, submission)
	}
	err = s.repo.WithTransaction(ctx, submit)
	if repositories.IsDuplicateError(err) {
		// A concurrent start inserted the sitting first; score it under lock.
		submission, expired = nil, false
		err = s.repo.WithTransaction(ctx, submit)
	}
	if repositories.IsDuplicateError(err) {
		return nil, ErrAlreadySubmitted
	}
	if err != nil {
		return nil, err
	}

	cache.InvalidateStats(ctx, s.cacheManager)
	if expired {
		s.onExpired(ctx, submission, false)
		return nil, ErrSubmissionExpired
	}

	s.logger.Info("Form submitted",
		"form_id", form.ID,
		"student_id", actor.ID,
		"submission_id", submission.ID,
		"percent_correct", submission.PercentCorrect)
	s.metrics.SubmissionScored(submission.PercentCorrect)
	publishEvent(ctx, s.publisher, s.logger, events.TopicSubmissions, events.SubmissionScored, submissionEvent(submission))

	result := newResultResponse(form, submission)
	if s.medals != nil {
		awarded, err := s.medals.Evaluate(ctx, submission)
		if err != nil {
			s.logger.Error("Medal evaluation failed", "submission_id", submission.ID, "error", err)
		}
		result.NewMedals = awarded
	}
	return result, nil
}

func (s *formService) onExpired(ctx context.Context, submission *models.Submission, bySweeper bool) {
	s.logger.Info("Submission expired",
		"form_id", submission.FormID,
		"student_id", submission.StudentID,
		"submission_id", submission.ID,
		"by_sweeper", bySweeper)
	s.metrics.SubmissionExpired(bySweeper)
	publishEvent(ctx, s.publisher, s.logger, events.TopicSubmissions, events.SubmissionExpired, submissionEvent(submission))
}

func (s *formService) Result(ctx context.Context, actor Actor, id uint) (*ResultResponse, error) {
	form, err := s.loadWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	submission, err := s.repo.Submission().GetWithAnswers(ctx, form.ID, actor.ID)
	if err != nil {
		return nil, notFoundAs(err, ErrSubmissionNotFound, "get submission")
	}
	if !submission.IsFinal() {
		return nil, ErrSubmissionNotFound
	}
	return newResultResponse(form, submission), nil
}

func (s *formService) Results(ctx context.Context, actor Actor, id uint) (*FormResultsResponse, error) {
	form, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := requireClassManager(ctx, s.repo, actor, form.ClassID, "form", "view_results"); err != nil {
		return nil, err
	}

	submissions, err := s.repo.Submission().ListByForm(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return newFormResults(form, submissions), nil
}

func (s *formService) ExportResults(ctx context.Context, actor Actor, id uint, w io.Writer) (string, error) {
	results, err := s.Results(ctx, actor, id)
	if err != nil {
		return "", err
	}
	class, err := loadClass(ctx, s.repo, results.ClassID)
	if err != nil {
		return "", err
	}

	report := &export.FormReport{
		FormTitle: results.FormTitle,
		ClassName: class.Name,
		Average:   results.Average,
		Lines:     make([]export.ResultLine, 0, len(results.Results)),
	}
	for _, r := range results.Results {
		report.Lines = append(report.Lines, export.ResultLine{
			StudentName:    r.StudentName,
			Status:         string(r.Status),
			CorrectCount:   r.CorrectCount,
			WrongCount:     r.WrongCount,
			Score:          r.Score,
			MaxScore:       r.MaxScore,
			PercentCorrect: r.PercentCorrect,
			SubmittedAt:    r.SubmittedAt,
		})
	}
	if err := export.WriteFormResults(w, report); err != nil {
		return "", fmt.Errorf("failed to write results workbook: %w", err)
	}
	return fmt.Sprintf("form-%d-results.xlsx", id), nil
}

// ExpireOverdue closes abandoned sittings with a zero score.
func (s *formService) ExpireOverdue(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.grace)
	total := 0
	for {
		overdue, err := s.repo.Submission().ListOverdue(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list overdue submissions: %w", err)
		}
		if len(overdue) == 0 {
			break
		}

		closed := 0
		for _, sub := range overdue {
			ok, err := s.expireOne(ctx, sub, cutoff)
			if err != nil {
				return total, err
			}
			if ok {
				closed++
			}
		}
		total += closed
		if len(overdue) < sweepBatchSize || closed == 0 {
			break
		}
	}

	if total > 0 {
		cache.InvalidateStats(ctx, s.cacheManager)
	}
	return total, nil
}

func (s *formService) expireOne(ctx context.Context, overdue *models.Submission, cutoff time.Time) (bool, error) {
	form, err := s.loadWithQuestions(ctx, overdue.FormID)
	if err != nil {
		if errors.Is(err, ErrFormNotFound) {
			return false, nil
		}
		return false, err
	}

	var expired *models.Submission
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		sub, err := tx.Submission().LockByFormAndStudent(ctx, overdue.FormID, overdue.StudentID)
		if err != nil {
			return err
		}
		// Submitted or extended since it was listed.
		if sub.Status != models.SubmissionInProgress || !sub.ExpiresAt.Before(cutoff) {
			return nil
		}
		sub.Status = models.SubmissionExpired
		sub.SubmittedAt = timePtr(s.now())
		ScoreSubmission(form.Questions, nil).Apply(sub)
		if err := tx.Submission().SaveResult(ctx, sub); err != nil {
			return err
		}
		expired = sub
		return nil
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to expire submission %d: %w", overdue.ID, err)
	}
	if expired == nil {
		return false, nil
	}
	s.onExpired(ctx, expired, true)
	return true, nil
}
