package services

import (
	"context"
	"io"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

// ===== REQUEST DTOs =====

// Request types live in the validator package next to their rules.
type LoginRequest = validator.LoginRequest
type RegisterRequest = validator.RegisterRequest
type SSOCallbackRequest = validator.SSOCallbackRequest
type UserCreateRequest = validator.UserCreateRequest
type UserUpdateRequest = validator.UserUpdateRequest
type ProfileUpdateRequest = validator.ProfileUpdateRequest
type PasswordChangeRequest = validator.PasswordChangeRequest
type UserStatusRequest = validator.UserStatusRequest
type CourseRequest = validator.CourseRequest
type SubjectRequest = validator.SubjectRequest
type ClassRequest = validator.ClassRequest
type EnrollmentCreateRequest = validator.EnrollmentCreateRequest
type EnrollmentStatusRequest = validator.EnrollmentStatusRequest
type FormRequest = validator.FormRequest
type SubmitRequest = validator.SubmitRequest
type MaterialUpdateRequest = validator.MaterialUpdateRequest
type MedalRequest = validator.MedalRequest

// Actor is the authenticated user a request runs on behalf of.
type Actor struct {
	ID   uint
	Role models.UserRole
}

func (a Actor) IsAdmin() bool   { return a.Role == models.RoleAdmin }
func (a Actor) IsStaff() bool   { return a.Role.IsStaff() }
func (a Actor) IsTeacher() bool { return a.Role == models.RoleTeacher }
func (a Actor) IsStudent() bool { return a.Role == models.RoleStudent }

// ===== AUTH DTOs =====

// SessionMeta is recorded on new sessions.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

type AuthResult struct {
	Session *models.Session `json:"-"`
	User    *models.User    `json:"user"`
}

// ===== USER DTOs =====

// FileDownload is a stored file opened for streaming.
type FileDownload struct {
	Name     string
	MimeType string
	ModTime  time.Time
	Content  io.ReadSeekCloser
}

type ImportRowResult struct {
	Line     int    `json:"line"`
	Username string `json:"username"`
	Status   string `json:"status"` // "created", "skipped"
	Reason   string `json:"reason,omitempty"`
	UserID   uint   `json:"user_id,omitempty"`
}

type ImportResult struct {
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Rows    []ImportRowResult `json:"rows"`
}

// ===== FORM DTOs =====

type FormListFilters struct {
	models.Pagination
	Search  string `form:"search"`
	ClassID *uint  `form:"class_id"`
	Status  string `form:"status"` // "open", "closed"
}

// FormSummary is a list entry. AlreadySubmitted is only set for students.
type FormSummary struct {
	*models.Form
	IsOpen           bool  `json:"is_open"`
	AlreadySubmitted *bool `json:"already_submitted,omitempty"`
}

type OptionDetail struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
	Correct  *bool  `json:"correct,omitempty"`
}

type QuestionDetail struct {
	ID       uint                `json:"id"`
	Text     string              `json:"text"`
	Type     models.QuestionType `json:"type"`
	Points   int                 `json:"points"`
	Position int                 `json:"position"`
	Options  []OptionDetail      `json:"options"`
}

// FormDetail is a full form definition. Correct flags are omitted when
// rendered for students.
type FormDetail struct {
	ID               uint             `json:"id"`
	Title            string           `json:"title"`
	Description      *string          `json:"description"`
	ClassID          uint             `json:"class_id"`
	CreatedBy        uint             `json:"created_by"`
	Deadline         *time.Time       `json:"deadline"`
	Duration         int              `json:"duration"`
	DurationSeconds  int              `json:"duration_seconds"`
	IsOpen           bool             `json:"is_open"`
	AlreadySubmitted *bool            `json:"already_submitted,omitempty"`
	Questions        []QuestionDetail `json:"questions"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type StartResponse struct {
	SubmissionID uint      `json:"submission_id"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	TimeLeft     int       `json:"time_left"`
}

type TimeLeftResponse struct {
	TimeLeft  int                     `json:"time_left"`
	Status    models.SubmissionStatus `json:"status,omitempty"`
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
}

type QuestionResult struct {
	QuestionID      uint                `json:"question_id"`
	Text            string              `json:"text"`
	Type            models.QuestionType `json:"type"`
	Points          int                 `json:"points"`
	ChosenOptionID  *uint               `json:"chosen_option_id"`
	CorrectOptionID *uint               `json:"correct_option_id"`
	IsCorrect       *bool               `json:"is_correct"`
	OpenAnswer      *string             `json:"open_answer"`
}

// ResultResponse is a student's scored submission.
type ResultResponse struct {
	SubmissionID   uint                    `json:"submission_id"`
	FormID         uint                    `json:"form_id"`
	FormTitle      string                  `json:"form_title"`
	Status         models.SubmissionStatus `json:"status"`
	CorrectCount   int                     `json:"correct_count"`
	WrongCount     int                     `json:"wrong_count"`
	GradableCount  int                     `json:"gradable_count"`
	Score          int                     `json:"score"`
	MaxScore       int                     `json:"max_score"`
	PercentCorrect float64                 `json:"percent_correct"`
	StartedAt      time.Time               `json:"started_at"`
	SubmittedAt    *time.Time              `json:"submitted_at"`
	Questions      []QuestionResult        `json:"questions,omitempty"`
	NewMedals      []*models.Medal         `json:"new_medals,omitempty"`
}

type SubmissionResult struct {
	SubmissionID   uint                    `json:"submission_id"`
	StudentID      uint                    `json:"student_id"`
	StudentName    string                  `json:"student_name"`
	Status         models.SubmissionStatus `json:"status"`
	CorrectCount   int                     `json:"correct_count"`
	WrongCount     int                     `json:"wrong_count"`
	Score          int                     `json:"score"`
	MaxScore       int                     `json:"max_score"`
	PercentCorrect float64                 `json:"percent_correct"`
	StartedAt      time.Time               `json:"started_at"`
	SubmittedAt    *time.Time              `json:"submitted_at"`
}

type FormResultsResponse struct {
	FormID      uint               `json:"form_id"`
	FormTitle   string             `json:"form_title"`
	ClassID     uint               `json:"class_id"`
	Submissions int                `json:"submissions"`
	Average     float64            `json:"average"`
	Highest     float64            `json:"highest"`
	Lowest      float64            `json:"lowest"`
	Results     []SubmissionResult `json:"results"`
}

// ===== PERFORMANCE & DASHBOARD DTOs =====

type SubjectAverage struct {
	SubjectID   uint    `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Submissions int     `json:"submissions"`
	Average     float64 `json:"average"`
}

type StudentPerformance struct {
	StudentID        uint                     `json:"student_id"`
	StudentName      string                   `json:"student_name"`
	TotalSubmissions int                      `json:"total_submissions"`
	AveragePercent   float64                  `json:"average_percent"`
	BestPercent      float64                  `json:"best_percent"`
	Subjects         []SubjectAverage         `json:"subjects"`
	Recent           []repositories.ResultRow `json:"recent"`
}

type FormAverage struct {
	FormID      uint    `json:"form_id"`
	Title       string  `json:"title"`
	Submissions int     `json:"submissions"`
	Average     float64 `json:"average"`
}

type StudentRank struct {
	Rank        int     `json:"rank"`
	StudentID   uint    `json:"student_id"`
	Name        string  `json:"name"`
	Submissions int     `json:"submissions"`
	Average     float64 `json:"average"`
}

type ClassPerformance struct {
	ClassID     uint          `json:"class_id"`
	ClassName   string        `json:"class_name"`
	Submissions int           `json:"submissions"`
	Average     float64       `json:"average"`
	Forms       []FormAverage `json:"forms"`
	Students    []StudentRank `json:"students"`
}

type StaffSummary struct {
	repositories.PlatformCounts
	SubmissionsLast7Days int64   `json:"submissions_last_7_days"`
	AveragePercent       float64 `json:"average_percent"`
}

type TeacherSummary struct {
	repositories.TeacherCounts
	AveragePercent float64 `json:"average_percent"`
}

type StudentSummary struct {
	ApprovedClasses int64                    `json:"approved_classes"`
	PendingForms    int                      `json:"pending_forms"`
	AveragePercent  float64                  `json:"average_percent"`
	Medals          int64                    `json:"medals"`
	RecentResults   []repositories.ResultRow `json:"recent_results"`
}

// DashboardSummary carries exactly one role-specific block.
type DashboardSummary struct {
	Role    string          `json:"role"`
	Staff   *StaffSummary   `json:"staff,omitempty"`
	Teacher *TeacherSummary `json:"teacher,omitempty"`
	Student *StudentSummary `json:"student,omitempty"`
}

// ===== MATERIAL DTOs =====

type MaterialUpload struct {
	ClassID     uint
	Title       string
	Description *string
	FileName    string
	Content     io.Reader
}

type MaterialListFilters struct {
	models.Pagination
	Search  string `form:"search"`
	ClassID *uint  `form:"class_id"`
}

// ===== SERVICE INTERFACES =====

type AuthService interface {
	Login(ctx context.Context, req *LoginRequest, meta SessionMeta) (*AuthResult, error)
	Logout(ctx context.Context, token string) error
	Register(ctx context.Context, req *RegisterRequest) (*models.User, error)
	// Authenticate resolves a session token, extending it when less than
	// half of its lifetime remains.
	Authenticate(ctx context.Context, token string) (*models.Session, *models.User, error)

	SSOEnabled() bool
	SSOSignInURL() (string, error)
	SSOCallback(ctx context.Context, req *SSOCallbackRequest, meta SessionMeta) (*AuthResult, error)

	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

type UserService interface {
	List(ctx context.Context, actor Actor, filters repositories.UserFilters) (*models.ListResponse[*models.User], error)
	GetByID(ctx context.Context, actor Actor, id uint) (*models.User, error)
	UpdateProfile(ctx context.Context, actor Actor, req *ProfileUpdateRequest) (*models.User, error)
	ChangePassword(ctx context.Context, actor Actor, req *PasswordChangeRequest) error

	Create(ctx context.Context, actor Actor, req *UserCreateRequest) (*models.User, error)
	Update(ctx context.Context, actor Actor, id uint, req *UserUpdateRequest) (*models.User, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	UpdateStatus(ctx context.Context, actor Actor, id uint, req *UserStatusRequest) (*models.User, error)

	UploadPhoto(ctx context.Context, actor Actor, content io.Reader) (*models.User, error)
	DeletePhoto(ctx context.Context, actor Actor) (*models.User, error)
	OpenPhoto(ctx context.Context, id uint) (*FileDownload, error)
	UploadDiploma(ctx context.Context, actor Actor, content io.Reader) (*models.User, error)
	OpenDiploma(ctx context.Context, actor Actor, id uint) (*FileDownload, error)

	Import(ctx context.Context, actor Actor, content io.Reader) (*ImportResult, error)
	// CreateAdmin bootstraps the first administrator from the command line.
	CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error)
}

type CourseService interface {
	Create(ctx context.Context, req *CourseRequest) (*models.Course, error)
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	Update(ctx context.Context, id uint, req *CourseRequest) (*models.Course, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters repositories.CourseFilters) (*models.ListResponse[*models.Course], error)
}

type SubjectService interface {
	Create(ctx context.Context, req *SubjectRequest) (*models.Subject, error)
	GetByID(ctx context.Context, id uint) (*models.Subject, error)
	Update(ctx context.Context, id uint, req *SubjectRequest) (*models.Subject, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters repositories.SubjectFilters) (*models.ListResponse[*models.Subject], error)
	ListClasses(ctx context.Context, subjectID uint) ([]*models.Class, error)
}

type ClassService interface {
	Create(ctx context.Context, req *ClassRequest) (*models.Class, error)
	GetByID(ctx context.Context, actor Actor, id uint) (*models.Class, error)
	Update(ctx context.Context, id uint, req *ClassRequest) (*models.Class, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, actor Actor, filters repositories.ClassFilters) (*models.ListResponse[*models.Class], error)
	Students(ctx context.Context, actor Actor, classID uint) ([]*models.User, error)
}

type EnrollmentService interface {
	Create(ctx context.Context, actor Actor, req *EnrollmentCreateRequest) (*models.Enrollment, error)
	List(ctx context.Context, actor Actor, filters repositories.EnrollmentFilters) (*models.ListResponse[*models.Enrollment], error)
	UpdateStatus(ctx context.Context, actor Actor, id uint, req *EnrollmentStatusRequest) (*models.Enrollment, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type FormService interface {
	Create(ctx context.Context, actor Actor, req *FormRequest) (*FormDetail, error)
	Get(ctx context.Context, actor Actor, id uint) (*FormDetail, error)
	Update(ctx context.Context, actor Actor, id uint, req *FormRequest) (*FormDetail, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	List(ctx context.Context, actor Actor, filters FormListFilters) (*models.ListResponse[*FormSummary], error)

	Start(ctx context.Context, actor Actor, id uint) (*StartResponse, error)
	TimeLeft(ctx context.Context, actor Actor, id uint) (*TimeLeftResponse, error)
	Submit(ctx context.Context, actor Actor, id uint, req *SubmitRequest) (*ResultResponse, error)
	Result(ctx context.Context, actor Actor, id uint) (*ResultResponse, error)
	Results(ctx context.Context, actor Actor, id uint) (*FormResultsResponse, error)
	ExportResults(ctx context.Context, actor Actor, id uint, w io.Writer) (string, error)

	// ExpireOverdue closes in-progress submissions past expiry and grace.
	ExpireOverdue(ctx context.Context) (int, error)
}

type PerformanceService interface {
	Student(ctx context.Context, actor Actor, studentID uint) (*StudentPerformance, error)
	Class(ctx context.Context, actor Actor, classID uint) (*ClassPerformance, error)
	ExportClass(ctx context.Context, actor Actor, classID uint, w io.Writer) (string, error)
}

type DashboardService interface {
	Summary(ctx context.Context, actor Actor) (*DashboardSummary, error)
	Upcoming(ctx context.Context, actor Actor) ([]*models.Form, error)
}

type MaterialService interface {
	Upload(ctx context.Context, actor Actor, upload *MaterialUpload) (*models.Material, error)
	GetByID(ctx context.Context, actor Actor, id uint) (*models.Material, error)
	List(ctx context.Context, actor Actor, filters MaterialListFilters) (*models.ListResponse[*models.Material], error)
	Update(ctx context.Context, actor Actor, id uint, req *MaterialUpdateRequest) (*models.Material, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	Download(ctx context.Context, actor Actor, id uint) (*FileDownload, error)
}

type MedalService interface {
	Catalogue(ctx context.Context) ([]*models.Medal, error)
	Create(ctx context.Context, req *MedalRequest) (*models.Medal, error)
	// SeedCatalogue upserts the embedded catalogue by code.
	SeedCatalogue(ctx context.Context) (int, error)
	UserMedals(ctx context.Context, userID uint) ([]*models.UserMedal, error)
	// Evaluate awards every medal the student now qualifies for and returns
	// the ones newly awarded.
	Evaluate(ctx context.Context, submission *models.Submission) ([]*models.Medal, error)
}

// ServiceManager wires every service and owns background jobs.
type ServiceManager interface {
	Auth() AuthService
	User() UserService
	Course() CourseService
	Subject() SubjectService
	Class() ClassService
	Enrollment() EnrollmentService
	Form() FormService
	Performance() PerformanceService
	Dashboard() DashboardService
	Material() MaterialService
	Medal() MedalService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
