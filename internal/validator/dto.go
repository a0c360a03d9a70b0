package validator

import (
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

// ===== AUTH & USERS =====

type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RegisterRequest struct {
	Username string          `json:"username" validate:"required,username"`
	Email    string          `json:"email" validate:"required,email,max=255"`
	Name     string          `json:"name" validate:"required,min=2,max=120"`
	Password string          `json:"password" validate:"required,min=8,max=128"`
	Role     models.UserRole `json:"role" validate:"required,oneof=3 4"`
}

type UserCreateRequest struct {
	Username string          `json:"username" validate:"required,username"`
	Email    string          `json:"email" validate:"required,email,max=255"`
	Name     string          `json:"name" validate:"required,min=2,max=120"`
	Password string          `json:"password" validate:"required,min=8,max=128"`
	Role     models.UserRole `json:"role" validate:"required,user_role"`
}

type UserUpdateRequest struct {
	Email *string          `json:"email" validate:"omitempty,email,max=255"`
	Name  *string          `json:"name" validate:"omitempty,min=2,max=120"`
	Role  *models.UserRole `json:"role" validate:"omitempty,user_role"`
}

type ProfileUpdateRequest struct {
	Email *string `json:"email" validate:"omitempty,email,max=255"`
	Name  *string `json:"name" validate:"omitempty,min=2,max=120"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type UserStatusRequest struct {
	Status models.RegistrationStatus `json:"status" validate:"required,registration_status"`
}

type SSOCallbackRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state"`
}

// ===== CATALOGUE =====

type CourseRequest struct {
	Name          string  `json:"name" validate:"required,min=2,max=150"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	CoordinatorID *uint   `json:"coordinator_id"`
}

type SubjectRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=150"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	CourseID    uint    `json:"course_id" validate:"required"`
}

type ClassRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=150"`
	SubjectID uint   `json:"subject_id" validate:"required"`
	TeacherID *uint  `json:"teacher_id"`
	Period    string `json:"period" validate:"omitempty,period"`
}

type EnrollmentCreateRequest struct {
	ClassID   uint  `json:"class_id" validate:"required"`
	StudentID *uint `json:"student_id"`
}

type EnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,enrollment_status"`
}

// ===== FORMS =====

type OptionRequest struct {
	Text    string `json:"text" validate:"required,max=1000"`
	Correct bool   `json:"correct"`
}

type QuestionRequest struct {
	Text    string              `json:"text" validate:"required,max=4000"`
	Type    models.QuestionType `json:"type" validate:"required,question_type"`
	Points  int                 `json:"points" validate:"omitempty,min=1,max=100"`
	Options []OptionRequest     `json:"options" validate:"omitempty,dive"`
}

type FormRequest struct {
	Title       string            `json:"title" validate:"required,min=1,max=200"`
	Description *string           `json:"description" validate:"omitempty,max=4000"`
	ClassID     uint              `json:"class_id" validate:"required"`
	Deadline    *time.Time        `json:"deadline"`
	Duration    int               `json:"duration" validate:"required,form_duration"`
	Questions   []QuestionRequest `json:"questions" validate:"required,min=1,max=200,dive"`
}

// AnswerRequest carries either an option id or an open answer.
type AnswerRequest struct {
	QuestionID uint    `json:"question_id" validate:"required"`
	OptionID   *uint   `json:"option_id"`
	OpenAnswer *string `json:"open_answer" validate:"omitempty,max=10000"`
}

type SubmitRequest struct {
	Answers []AnswerRequest `json:"answers" validate:"max=200,dive"`
}

// ===== MATERIALS & MEDALS =====

type MaterialUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
}

type MedalRequest struct {
	Code        string               `json:"code" validate:"required,min=2,max=60"`
	Name        string               `json:"name" validate:"required,min=2,max=120"`
	Description string               `json:"description" validate:"max=2000"`
	Icon        string               `json:"icon" validate:"max=120"`
	Kind        models.MedalRuleKind `json:"kind" validate:"required,medal_rule"`
	Threshold   float64              `json:"threshold" validate:"min=0"`
}
