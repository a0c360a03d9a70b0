package models

import (
	"time"
)

type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "in_progress"
	SubmissionSubmitted  SubmissionStatus = "submitted"
	SubmissionExpired    SubmissionStatus = "expired"
)

// Submission is one student's sitting of a form. Once scored it doubles as
// the result row.
type Submission struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	FormID    uint             `json:"form_id" gorm:"not null;uniqueIndex:idx_submission_form_student"`
	StudentID uint             `json:"student_id" gorm:"not null;uniqueIndex:idx_submission_form_student;index"`
	Status    SubmissionStatus `json:"status" gorm:"not null;default:in_progress;index;size:20"`

	StartedAt   time.Time  `json:"started_at"`
	ExpiresAt   time.Time  `json:"expires_at" gorm:"index"`
	SubmittedAt *time.Time `json:"submitted_at"`

	CorrectCount   int     `json:"correct_count"`
	WrongCount     int     `json:"wrong_count"`
	GradableCount  int     `json:"gradable_count"`
	Score          int     `json:"score"`
	MaxScore       int     `json:"max_score"`
	PercentCorrect float64 `json:"percent_correct"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Form    *Form    `json:"form,omitempty" gorm:"foreignKey:FormID"`
	Student *User    `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
}

func (Submission) TableName() string {
	return "submissions"
}

// TimeLeft is the whole number of seconds until expiry, never negative.
func (s *Submission) TimeLeft(now time.Time) int {
	if s.Status != SubmissionInProgress {
		return 0
	}
	left := s.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

func (s *Submission) IsFinal() bool {
	return s.Status == SubmissionSubmitted || s.Status == SubmissionExpired
}

type Answer struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	SubmissionID uint    `json:"submission_id" gorm:"not null;index"`
	QuestionID   uint    `json:"question_id" gorm:"not null;index"`
	OptionID     *uint   `json:"option_id"`
	OpenAnswer   *string `json:"open_answer" gorm:"type:text"`
	IsCorrect    *bool   `json:"is_correct"` // nil for open questions

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Answer) TableName() string {
	return "answers"
}
