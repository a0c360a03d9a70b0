package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

func validForm() *FormRequest {
	return &FormRequest{
		Title:    "Simulado 1",
		ClassID:  1,
		Duration: 30,
		Questions: []QuestionRequest{
			{
				Text: "2+2?",
				Type: models.QuestionMultipleChoice,
				Options: []OptionRequest{
					{Text: "3"},
					{Text: "4", Correct: true},
					{Text: "5"},
				},
			},
			{
				Text: "The sky is blue",
				Type: models.QuestionTrueFalse,
				Options: []OptionRequest{
					{Text: "Verdadeiro", Correct: true},
					{Text: "Falso"},
				},
			},
			{Text: "Explain photosynthesis", Type: models.QuestionOpen},
		},
	}
}

func TestValidateForm(t *testing.T) {
	v := New()
	now := time.Now()

	tests := []struct {
		name       string
		mutate     func(f *FormRequest)
		wantFields []string
	}{
		{name: "valid", mutate: func(f *FormRequest) {}},
		{
			name: "no correct option",
			mutate: func(f *FormRequest) {
				f.Questions[0].Options[1].Correct = false
			},
			wantFields: []string{"correct_0"},
		},
		{
			name: "two correct options",
			mutate: func(f *FormRequest) {
				f.Questions[1].Options[1].Correct = true
			},
			wantFields: []string{"correct_1"},
		},
		{
			name: "open question with options",
			mutate: func(f *FormRequest) {
				f.Questions[2].Options = []OptionRequest{{Text: "x"}}
			},
			wantFields: []string{"options_2"},
		},
		{
			name: "true false with three options",
			mutate: func(f *FormRequest) {
				f.Questions[1].Options = append(f.Questions[1].Options, OptionRequest{Text: "Talvez"})
			},
			wantFields: []string{"options_1"},
		},
		{
			name: "duration out of range",
			mutate: func(f *FormRequest) {
				f.Duration = 0
			},
			wantFields: []string{"duration"},
		},
		{
			name: "deadline in the past",
			mutate: func(f *FormRequest) {
				past := now.Add(-time.Hour)
				f.Deadline = &past
			},
			wantFields: []string{"deadline"},
		},
		{
			name: "no questions",
			mutate: func(f *FormRequest) {
				f.Questions = nil
			},
			wantFields: []string{"questions"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(f)
			err := v.ValidateForm(f, now)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve ValidationErrors
			require.True(t, errors.As(err, &ve))
			for _, field := range tt.wantFields {
				assert.True(t, ve.Has(field), "expected error on %s, got %v", field, ve)
			}
		})
	}
}

func TestValidate_JSONFieldNames(t *testing.T) {
	v := New()
	err := v.Validate(&RegisterRequest{Username: "a", Email: "nope", Name: "Ana", Password: "short", Role: models.RoleAdmin})
	require.Error(t, err)

	var ve ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Has("username"))
	assert.True(t, ve.Has("email"))
	assert.True(t, ve.Has("password"))
	assert.True(t, ve.Has("role"))
}

func TestRegistrationTransition(t *testing.T) {
	assert.NoError(t, ValidateRegistrationTransition(models.RegistrationPending, models.RegistrationApproved))
	assert.NoError(t, ValidateRegistrationTransition(models.RegistrationRejected, models.RegistrationApproved))
	assert.Error(t, ValidateRegistrationTransition(models.RegistrationApproved, models.RegistrationPending))
}

func TestEnrollmentTransition(t *testing.T) {
	assert.NoError(t, ValidateEnrollmentTransition(models.EnrollmentPending, models.EnrollmentApproved))
	assert.NoError(t, ValidateEnrollmentTransition(models.EnrollmentApproved, models.EnrollmentCancelled))
	assert.Error(t, ValidateEnrollmentTransition(models.EnrollmentCancelled, models.EnrollmentApproved))
}
