package models

import (
	"time"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multipla_escolha"
	QuestionTrueFalse      QuestionType = "verdadeiro/falso"
	QuestionOpen           QuestionType = "aberta"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionOpen:
		return true
	}
	return false
}

// Gradable reports whether answers to the type are scored automatically.
func (t QuestionType) Gradable() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// Form is a timed exam (simulado) assigned to a class.
type Form struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200"`
	Description *string    `json:"description" gorm:"type:text"`
	ClassID     uint       `json:"class_id" gorm:"not null;index"`
	CreatedBy   uint       `json:"created_by" gorm:"not null;index"`
	Deadline    *time.Time `json:"deadline" gorm:"index"`
	Duration    int        `json:"duration" gorm:"not null"` // minutes

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Class     *Class     `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE"`
}

func (Form) TableName() string {
	return "forms"
}

func (f *Form) IsOpen(now time.Time) bool {
	return f.Deadline == nil || now.Before(*f.Deadline)
}

// DurationSeconds is what the client counts down from.
func (f *Form) DurationSeconds() int {
	return f.Duration * 60
}

type Question struct {
	ID       uint         `json:"id" gorm:"primaryKey"`
	FormID   uint         `json:"form_id" gorm:"not null;index"`
	Text     string       `json:"text" gorm:"type:text;not null"`
	Type     QuestionType `json:"type" gorm:"not null;size:30"`
	Points   int          `json:"points" gorm:"not null;default:1"`
	Position int          `json:"position" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Options []Option `json:"options" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOption returns the option flagged correct, or nil.
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].Correct {
			return &q.Options[i]
		}
	}
	return nil
}

func (q *Question) HasOption(optionID uint) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"type:text;not null"`
	Correct    bool   `json:"correct" gorm:"not null;default:false"`
	Position   int    `json:"position" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Option) TableName() string {
	return "options"
}
