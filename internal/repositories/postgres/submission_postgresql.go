package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: db}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, submission *models.Submission) error {
	if err := s.db.WithContext(ctx).Omit("Form", "Student", "Answers").Create(submission).Error; err != nil {
		return translateError(err, "create submission")
	}
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return nil, translateError(err, "get submission")
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByFormAndStudent(ctx context.Context, formID, studentID uint) (*models.Submission, error) {
	var submission models.Submission
	err := s.db.WithContext(ctx).
		Where("form_id = ? AND student_id = ?", formID, studentID).
		First(&submission).Error
	if err != nil {
		return nil, translateError(err, "get submission")
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) LockByFormAndStudent(ctx context.Context, formID, studentID uint) (*models.Submission, error) {
	var submission models.Submission
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("form_id = ? AND student_id = ?", formID, studentID).
		First(&submission).Error
	if err != nil {
		return nil, translateError(err, "lock submission")
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetWithAnswers(ctx context.Context, formID, studentID uint) (*models.Submission, error) {
	var submission models.Submission
	err := s.db.WithContext(ctx).
		Preload("Answers").
		Where("form_id = ? AND student_id = ?", formID, studentID).
		First(&submission).Error
	if err != nil {
		return nil, translateError(err, "get submission answers")
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) SaveResult(ctx context.Context, submission *models.Submission) error {
	db := s.db.WithContext(ctx)
	result := db.Model(&models.Submission{}).Where("id = ?", submission.ID).Updates(map[string]interface{}{
		"status":          submission.Status,
		"submitted_at":    submission.SubmittedAt,
		"correct_count":   submission.CorrectCount,
		"wrong_count":     submission.WrongCount,
		"gradable_count":  submission.GradableCount,
		"score":           submission.Score,
		"max_score":       submission.MaxScore,
		"percent_correct": submission.PercentCorrect,
	})
	if err := checkAffected(result, "save submission result"); err != nil {
		return err
	}

	if len(submission.Answers) == 0 {
		return nil
	}
	for i := range submission.Answers {
		submission.Answers[i].SubmissionID = submission.ID
	}
	if err := db.CreateInBatches(&submission.Answers, 100).Error; err != nil {
		return translateError(err, "save answers")
	}
	return nil
}

// ListByForm returns every submission of a form ordered by student name.
func (s *SubmissionPostgreSQL) ListByForm(ctx context.Context, formID uint) ([]*models.Submission, error) {
	var submissions []*models.Submission
	err := s.db.WithContext(ctx).
		Joins("Student").
		Where("submissions.form_id = ?", formID).
		Order(`"Student"."name" ASC`).
		Find(&submissions).Error
	if err != nil {
		return nil, translateError(err, "list form submissions")
	}
	return submissions, nil
}

func (s *SubmissionPostgreSQL) ExistsForForm(ctx context.Context, formID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Submission{}).Where("form_id = ?", formID).Limit(1).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check submissions: %w", err)
	}
	return count > 0, nil
}

func (s *SubmissionPostgreSQL) SubmittedFormIDs(ctx context.Context, studentID uint, formIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(formIDs))
	if len(formIDs) == 0 {
		return out, nil
	}

	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("student_id = ? AND form_id IN ? AND status IN ?", studentID, formIDs,
			[]models.SubmissionStatus{models.SubmissionSubmitted, models.SubmissionExpired}).
		Pluck("form_id", &ids).Error
	if err != nil {
		return nil, translateError(err, "list submitted forms")
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (s *SubmissionPostgreSQL) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*models.Submission, error) {
	var submissions []*models.Submission
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.SubmissionInProgress, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&submissions).Error
	if err != nil {
		return nil, translateError(err, "list overdue submissions")
	}
	return submissions, nil
}
