package services

import (
	"context"
	"fmt"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

func (s *formService) load(ctx context.Context, id uint) (*models.Form, error) {
	form, err := s.repo.Form().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrFormNotFound, "get form")
	}
	return form, nil
}

func (s *formService) loadWithQuestions(ctx context.Context, id uint) (*models.Form, error) {
	form, err := s.repo.Form().GetWithQuestions(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrFormNotFound, "get form")
	}
	return form, nil
}

// requireEnrolled passes students with an approved enrollment in the
// form's class.
func (s *formService) requireEnrolled(ctx context.Context, actor Actor, form *models.Form) error {
	if !actor.IsStudent() {
		return NewPermissionError(actor.ID, form.ID, "form", "answer", "only students answer forms")
	}
	ok, err := s.repo.Enrollment().IsApproved(ctx, form.ClassID, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !ok {
		return NewPermissionError(actor.ID, form.ID, "form", "answer", "not enrolled in the class")
	}
	return nil
}

func buildForm(req *FormRequest) *models.Form {
	form := &models.Form{
		Title:       req.Title,
		Description: req.Description,
		ClassID:     req.ClassID,
		Deadline:    req.Deadline,
		Duration:    req.Duration,
		Questions:   make([]models.Question, len(req.Questions)),
	}
	for i, q := range req.Questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		question := models.Question{
			Text:     q.Text,
			Type:     q.Type,
			Points:   points,
			Position: i,
			Options:  make([]models.Option, len(q.Options)),
		}
		for j, o := range q.Options {
			question.Options[j] = models.Option{Text: o.Text, Correct: o.Correct, Position: j}
		}
		form.Questions[i] = question
	}
	return form
}

// newSubmission starts a sitting now. It lasts the form's duration but
// never past the deadline.
func newSubmission(form *models.Form, studentID uint, now time.Time) *models.Submission {
	expires := now.Add(time.Duration(form.Duration) * time.Minute)
	if form.Deadline != nil && form.Deadline.Before(expires) {
		expires = *form.Deadline
	}
	return &models.Submission{
		FormID:    form.ID,
		StudentID: studentID,
		Status:    models.SubmissionInProgress,
		StartedAt: now,
		ExpiresAt: expires,
	}
}

func newFormDetail(form *models.Form, revealAnswers bool, now time.Time) *FormDetail {
	detail := &FormDetail{
		ID:              form.ID,
		Title:           form.Title,
		Description:     form.Description,
		ClassID:         form.ClassID,
		CreatedBy:       form.CreatedBy,
		Deadline:        form.Deadline,
		Duration:        form.Duration,
		DurationSeconds: form.DurationSeconds(),
		IsOpen:          form.IsOpen(now),
		Questions:       make([]QuestionDetail, len(form.Questions)),
		CreatedAt:       form.CreatedAt,
		UpdatedAt:       form.UpdatedAt,
	}
	for i, q := range form.Questions {
		qd := QuestionDetail{
			ID:       q.ID,
			Text:     q.Text,
			Type:     q.Type,
			Points:   q.Points,
			Position: q.Position,
			Options:  make([]OptionDetail, len(q.Options)),
		}
		for j, o := range q.Options {
			od := OptionDetail{ID: o.ID, Text: o.Text, Position: o.Position}
			if revealAnswers {
				od.Correct = boolPtr(o.Correct)
			}
			qd.Options[j] = od
		}
		detail.Questions[i] = qd
	}
	return detail
}

// validateAnswers checks every answer against the form definition.
func validateAnswers(form *models.Form, answers []validator.AnswerRequest) error {
	questions := make(map[uint]*models.Question, len(form.Questions))
	for i := range form.Questions {
		questions[form.Questions[i].ID] = &form.Questions[i]
	}

	var errs validator.ValidationErrors
	seen := make(map[uint]bool, len(answers))
	for i, a := range answers {
		field := fmt.Sprintf("answers[%d]", i)
		q, ok := questions[a.QuestionID]
		switch {
		case !ok:
			errs = append(errs, validator.ValidationError{Field: field, Message: "question does not belong to the form", Value: a.QuestionID, Rule: "question"})
			continue
		case seen[a.QuestionID]:
			errs = append(errs, validator.ValidationError{Field: field, Message: "question answered twice", Value: a.QuestionID, Rule: "duplicate"})
			continue
		}
		seen[a.QuestionID] = true

		if q.Type.Gradable() {
			if a.OpenAnswer != nil {
				errs = append(errs, validator.ValidationError{Field: field, Message: "open answers are only accepted for open questions", Rule: "open_answer"})
			}
			if a.OptionID != nil && !q.HasOption(*a.OptionID) {
				errs = append(errs, validator.ValidationError{Field: field, Message: "option does not belong to the question", Value: *a.OptionID, Rule: "option"})
			}
		} else if a.OptionID != nil {
			errs = append(errs, validator.ValidationError{Field: field, Message: "open questions take a text answer", Value: *a.OptionID, Rule: "option"})
		}
	}
	return errs.OrNil()
}

func newResultResponse(form *models.Form, sub *models.Submission) *ResultResponse {
	res := &ResultResponse{
		SubmissionID:   sub.ID,
		FormID:         form.ID,
		FormTitle:      form.Title,
		Status:         sub.Status,
		CorrectCount:   sub.CorrectCount,
		WrongCount:     sub.WrongCount,
		GradableCount:  sub.GradableCount,
		Score:          sub.Score,
		MaxScore:       sub.MaxScore,
		PercentCorrect: sub.PercentCorrect,
		StartedAt:      sub.StartedAt,
		SubmittedAt:    sub.SubmittedAt,
		Questions:      make([]QuestionResult, 0, len(form.Questions)),
	}

	answers := make(map[uint]models.Answer, len(sub.Answers))
	for _, a := range sub.Answers {
		answers[a.QuestionID] = a
	}
	for i := range form.Questions {
		q := &form.Questions[i]
		qr := QuestionResult{
			QuestionID: q.ID,
			Text:       q.Text,
			Type:       q.Type,
			Points:     q.Points,
		}
		if opt := q.CorrectOption(); opt != nil {
			qr.CorrectOptionID = uintPtr(opt.ID)
		}
		if a, ok := answers[q.ID]; ok {
			qr.ChosenOptionID = a.OptionID
			qr.OpenAnswer = a.OpenAnswer
			qr.IsCorrect = a.IsCorrect
		}
		if q.Type.Gradable() && qr.IsCorrect == nil {
			qr.IsCorrect = boolPtr(false)
		}
		res.Questions = append(res.Questions, qr)
	}
	return res
}

// newFormResults averages over finalised submissions only; in-progress
// sittings are listed with zero counts.
func newFormResults(form *models.Form, submissions []*models.Submission) *FormResultsResponse {
	res := &FormResultsResponse{
		FormID:    form.ID,
		FormTitle: form.Title,
		ClassID:   form.ClassID,
		Results:   make([]SubmissionResult, 0, len(submissions)),
	}

	var percents []float64
	for _, sub := range submissions {
		name := ""
		if sub.Student != nil {
			name = sub.Student.Name
		}
		res.Results = append(res.Results, SubmissionResult{
			SubmissionID:   sub.ID,
			StudentID:      sub.StudentID,
			StudentName:    name,
			Status:         sub.Status,
			CorrectCount:   sub.CorrectCount,
			WrongCount:     sub.WrongCount,
			Score:          sub.Score,
			MaxScore:       sub.MaxScore,
			PercentCorrect: sub.PercentCorrect,
			StartedAt:      sub.StartedAt,
			SubmittedAt:    sub.SubmittedAt,
		})
		if !sub.IsFinal() {
			continue
		}
		if len(percents) == 0 || sub.PercentCorrect > res.Highest {
			res.Highest = sub.PercentCorrect
		}
		if len(percents) == 0 || sub.PercentCorrect < res.Lowest {
			res.Lowest = sub.PercentCorrect
		}
		percents = append(percents, sub.PercentCorrect)
	}
	res.Submissions = len(percents)
	res.Average = average(percents)
	return res
}

func submissionEvent(sub *models.Submission) events.SubmissionEvent {
	return events.SubmissionEvent{
		SubmissionID:   sub.ID,
		FormID:         sub.FormID,
		StudentID:      sub.StudentID,
		Status:         string(sub.Status),
		CorrectCount:   sub.CorrectCount,
		GradableCount:  sub.GradableCount,
		PercentCorrect: sub.PercentCorrect,
	}
}
