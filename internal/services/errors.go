package services

import (
	"errors"
	"fmt"

	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrRegistrationPending  = errors.New("registration pending approval")
	ErrRegistrationRejected = errors.New("registration rejected")
	ErrSessionExpired       = errors.New("session expired")
	ErrSSODisabled          = errors.New("single sign-on is not configured")
	ErrWrongPassword        = errors.New("current password is incorrect")
	ErrUsernameTaken        = errors.New("username or email already in use")

	ErrUserNotFound       = errors.New("user not found")
	ErrCourseNotFound     = errors.New("course not found")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrFormNotFound       = errors.New("form not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrMaterialNotFound   = errors.New("material not found")
	ErrMedalNotFound      = errors.New("medal not found")
	ErrFileNotFound       = errors.New("file not found")

	ErrAlreadyEnrolled   = errors.New("student already enrolled")
	ErrAlreadySubmitted  = errors.New("form already submitted")
	ErrSubmissionExpired = errors.New("submission time expired")
	ErrFormClosed        = errors.New("form is closed")
	ErrFormLocked        = errors.New("form has submissions")
)

// PermissionError reports an authenticated user acting outside their rights.
type PermissionError struct {
	UserID     uint
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError is a well-formed request the current state forbids.
type BusinessRuleError struct {
	Rule    string
	Message string
	Details map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, details map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Details: details}
}

// NewValidationError builds a single-field validation failure.
func NewValidationError(field, message string, value interface{}) error {
	return validator.ValidationErrors{{
		Field:   field,
		Message: message,
		Value:   value,
	}}
}

func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsBusinessRuleError(err error) bool {
	var be *BusinessRuleError
	return errors.As(err, &be)
}

func IsValidationError(err error) bool {
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}
