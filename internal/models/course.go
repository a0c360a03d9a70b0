package models

import "time"

type Course struct {
	ID            uint    `json:"id" gorm:"primaryKey"`
	Name          string  `json:"name" gorm:"not null;size:150"`
	Description   *string `json:"description" gorm:"type:text"`
	CoordinatorID *uint   `json:"coordinator_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Coordinator *User     `json:"coordinator,omitempty" gorm:"foreignKey:CoordinatorID"`
	Subjects    []Subject `json:"subjects,omitempty" gorm:"foreignKey:CourseID"`
}

func (Course) TableName() string {
	return "courses"
}

type Subject struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:150"`
	Description *string `json:"description" gorm:"type:text"`
	CourseID    uint    `json:"course_id" gorm:"not null;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Course *Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

func (Subject) TableName() string {
	return "subjects"
}

// Class is a teaching group of a subject for one academic period.
type Class struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"not null;size:150"`
	SubjectID uint   `json:"subject_id" gorm:"not null;index"`
	TeacherID *uint  `json:"teacher_id" gorm:"index"`
	Period    string `json:"period" gorm:"size:20"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Subject *Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Teacher *User    `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

func (Class) TableName() string {
	return "classes"
}

func (c *Class) TaughtBy(userID uint) bool {
	return c.TeacherID != nil && *c.TeacherID == userID
}

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentApproved  EnrollmentStatus = "approved"
	EnrollmentRejected  EnrollmentStatus = "rejected"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

type Enrollment struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	ClassID   uint             `json:"class_id" gorm:"not null;uniqueIndex:idx_enrollment_class_student"`
	StudentID uint             `json:"student_id" gorm:"not null;uniqueIndex:idx_enrollment_class_student;index"`
	Status    EnrollmentStatus `json:"status" gorm:"not null;default:pending;index;size:20"`
	DecidedBy *uint            `json:"decided_by"`
	DecidedAt *time.Time       `json:"decided_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Class   *Class `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Student *User  `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
