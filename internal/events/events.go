package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "evolvere-api"
	EventVersion = "1.0"
)

// Topics
const (
	TopicUsers       = "users"
	TopicEnrollments = "enrollments"
	TopicSubmissions = "submissions"
	TopicMaterials   = "materials"
	TopicMedals      = "medals"
)

// Event types
const (
	UserRegistered    = "user.registered"
	UserStatusChanged = "user.status_changed"
	EnrollmentChanged = "enrollment.changed"
	SubmissionScored  = "submission.scored"
	SubmissionExpired = "submission.expired"
	MaterialUploaded  = "material.uploaded"
	MedalAwarded      = "medal.awarded"
)

// Event is the envelope every domain event is published in.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}

// ===== PAYLOADS =====

type UserEvent struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   int    `json:"role"`
	Status string `json:"status"`
	// Previous status, set on status changes.
	From string `json:"from,omitempty"`
}

type EnrollmentEvent struct {
	EnrollmentID uint   `json:"enrollment_id"`
	ClassID      uint   `json:"class_id"`
	StudentID    uint   `json:"student_id"`
	From         string `json:"from,omitempty"`
	Status       string `json:"status"`
	ChangedBy    uint   `json:"changed_by"`
}

type SubmissionEvent struct {
	SubmissionID   uint    `json:"submission_id"`
	FormID         uint    `json:"form_id"`
	StudentID      uint    `json:"student_id"`
	Status         string  `json:"status"`
	CorrectCount   int     `json:"correct_count"`
	GradableCount  int     `json:"gradable_count"`
	PercentCorrect float64 `json:"percent_correct"`
}

type MaterialEvent struct {
	MaterialID uint   `json:"material_id"`
	ClassID    uint   `json:"class_id"`
	Title      string `json:"title"`
	UploadedBy uint   `json:"uploaded_by"`
}

type MedalEvent struct {
	UserID       uint   `json:"user_id"`
	MedalID      uint   `json:"medal_id"`
	Code         string `json:"code"`
	SubmissionID *uint  `json:"submission_id,omitempty"`
}
