package repositories

import (
	"context"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

type FormRepository interface {
	// Create inserts the form together with its questions and options.
	Create(ctx context.Context, form *models.Form) error
	GetByID(ctx context.Context, id uint) (*models.Form, error)
	// GetWithQuestions loads questions and options ordered by position.
	GetWithQuestions(ctx context.Context, id uint) (*models.Form, error)
	// ReplaceDefinition updates the form fields and swaps every question.
	ReplaceDefinition(ctx context.Context, form *models.Form) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters FormFilters) ([]*models.Form, int64, error)
	// ListUpcoming returns open forms of the student's approved classes
	// without a submission, soonest deadline first.
	ListUpcoming(ctx context.Context, studentID uint, now time.Time) ([]*models.Form, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	GetByFormAndStudent(ctx context.Context, formID, studentID uint) (*models.Submission, error)
	// LockByFormAndStudent is GetByFormAndStudent with a row lock; use it
	// inside WithTransaction.
	LockByFormAndStudent(ctx context.Context, formID, studentID uint) (*models.Submission, error)
	GetWithAnswers(ctx context.Context, formID, studentID uint) (*models.Submission, error)
	// SaveResult persists status, counts and timestamps and inserts answers.
	SaveResult(ctx context.Context, submission *models.Submission) error
	ListByForm(ctx context.Context, formID uint) ([]*models.Submission, error)
	ExistsForForm(ctx context.Context, formID uint) (bool, error)
	// SubmittedFormIDs returns which of formIDs the student has finalised.
	SubmittedFormIDs(ctx context.Context, studentID uint, formIDs []uint) (map[uint]bool, error)
	// ListOverdue returns in-progress submissions that expired before cutoff.
	ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*models.Submission, error)
}
