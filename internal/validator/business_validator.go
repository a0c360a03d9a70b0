package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

const (
	minChoiceOptions = 2
	maxChoiceOptions = 10
)

// ValidateForm checks a form definition, tags first and then question rules.
// Question level problems are reported as correct_{index} / options_{index}.
func (v *Validator) ValidateForm(req *FormRequest, now time.Time) error {
	var errs ValidationErrors
	if err := v.Validate(req); err != nil {
		errs = append(errs, ToValidationErrors(err)...)
	}

	if req.Deadline != nil && !req.Deadline.After(now) {
		errs = append(errs, ValidationError{
			Field:   "deadline",
			Message: "must be in the future",
			Value:   req.Deadline,
			Rule:    "future_date",
		})
	}

	errs = append(errs, ValidateQuestions(req.Questions)...)
	return errs.OrNil()
}

// ValidateQuestions enforces option shapes per question type.
func ValidateQuestions(questions []QuestionRequest) ValidationErrors {
	var errs ValidationErrors
	for i, q := range questions {
		correct := 0
		for _, o := range q.Options {
			if o.Correct {
				correct++
			}
			if strings.TrimSpace(o.Text) == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("options_%d", i),
					Message: "options cannot be blank",
					Rule:    "option_text",
				})
				break
			}
		}

		switch q.Type {
		case models.QuestionMultipleChoice:
			if n := len(q.Options); n < minChoiceOptions || n > maxChoiceOptions {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("options_%d", i),
					Message: fmt.Sprintf("multiple choice questions need %d to %d options", minChoiceOptions, maxChoiceOptions),
					Value:   n,
					Rule:    "option_count",
				})
			}
			if correct != 1 {
				errs = append(errs, correctError(i, correct))
			}
		case models.QuestionTrueFalse:
			if len(q.Options) != 2 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("options_%d", i),
					Message: "true/false questions need exactly 2 options",
					Value:   len(q.Options),
					Rule:    "option_count",
				})
			}
			if correct != 1 {
				errs = append(errs, correctError(i, correct))
			}
		case models.QuestionOpen:
			if len(q.Options) > 0 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("options_%d", i),
					Message: "open questions cannot have options",
					Value:   len(q.Options),
					Rule:    "option_count",
				})
			}
		}
	}
	return errs
}

func correctError(index, correct int) ValidationError {
	return ValidationError{
		Field:   fmt.Sprintf("correct_%d", index),
		Message: "exactly one option must be marked correct",
		Value:   correct,
		Rule:    "single_correct",
	}
}

var registrationTransitions = map[models.RegistrationStatus][]models.RegistrationStatus{
	models.RegistrationPending:  {models.RegistrationApproved, models.RegistrationRejected},
	models.RegistrationRejected: {models.RegistrationApproved},
	models.RegistrationApproved: {},
}

// ValidateRegistrationTransition validates a user status change.
func ValidateRegistrationTransition(from, to models.RegistrationStatus) error {
	for _, allowed := range registrationTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return ValidationErrors{{
		Field:   "status",
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Value:   to,
		Rule:    "status_transition",
	}}
}

var enrollmentTransitions = map[models.EnrollmentStatus][]models.EnrollmentStatus{
	models.EnrollmentPending:   {models.EnrollmentApproved, models.EnrollmentRejected, models.EnrollmentCancelled},
	models.EnrollmentApproved:  {models.EnrollmentCancelled},
	models.EnrollmentRejected:  {models.EnrollmentCancelled},
	models.EnrollmentCancelled: {},
}

// ValidateEnrollmentTransition validates an enrollment status change.
func ValidateEnrollmentTransition(from, to models.EnrollmentStatus) error {
	for _, allowed := range enrollmentTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return ValidationErrors{{
		Field:   "status",
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Value:   to,
		Rule:    "status_transition",
	}}
}
