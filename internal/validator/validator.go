package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Has reports whether a given field was rejected.
func (ve ValidationErrors) Has(field string) bool {
	for _, e := range ve {
		if e.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns nil for an empty list so callers never get a typed nil error.
func (ve ValidationErrors) OrNil() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,50}$`)
	periodPattern   = regexp.MustCompile(`^\d{4}\.[1-4]$`)
)

// Validator wraps go-playground/validator with the platform's custom rules.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	val := &Validator{validate: v}
	val.registerRules()
	return val
}

// Validate checks struct tags and returns ValidationErrors or nil.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	return ToValidationErrors(err)
}

// Var validates a single value against a tag.
func (v *Validator) Var(field string, value interface{}, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		errs := ToValidationErrors(err)
		for i := range errs {
			errs[i].Field = field
		}
		return errs
	}
	return nil
}

func (v *Validator) registerRules() {
	_ = v.validate.RegisterValidation("form_duration", func(fl validator.FieldLevel) bool {
		d := fl.Field().Int()
		return d >= 1 && d <= 600
	})
	_ = v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).Valid()
	})
	_ = v.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().Int()).Valid()
	})
	_ = v.validate.RegisterValidation("registration_status", func(fl validator.FieldLevel) bool {
		switch models.RegistrationStatus(fl.Field().String()) {
		case models.RegistrationPending, models.RegistrationApproved, models.RegistrationRejected:
			return true
		}
		return false
	})
	_ = v.validate.RegisterValidation("enrollment_status", func(fl validator.FieldLevel) bool {
		switch models.EnrollmentStatus(fl.Field().String()) {
		case models.EnrollmentPending, models.EnrollmentApproved, models.EnrollmentRejected, models.EnrollmentCancelled:
			return true
		}
		return false
	})
	_ = v.validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return periodPattern.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("medal_rule", func(fl validator.FieldLevel) bool {
		return models.MedalRuleKind(fl.Field().String()).Valid()
	})
}

// ToValidationErrors converts library errors into ValidationErrors.
func ToValidationErrors(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "request", Message: err.Error(), Rule: "invalid"}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Message: messageFor(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

// fieldPath drops the root struct name: "FormRequest.questions[0].text" -> "questions[0].text".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "form_duration":
		return "must be between 1 and 600 minutes"
	case "question_type":
		return "must be multipla_escolha, verdadeiro/falso or aberta"
	case "user_role":
		return "must be 1 (admin), 2 (coordinator), 3 (teacher) or 4 (student)"
	case "registration_status":
		return "must be pending, approved or rejected"
	case "enrollment_status":
		return "must be pending, approved, rejected or cancelled"
	case "username":
		return "must be 3-50 letters, digits, dots, dashes or underscores"
	case "period":
		return "must look like 2025.1"
	case "medal_rule":
		return "is not a known medal rule"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
