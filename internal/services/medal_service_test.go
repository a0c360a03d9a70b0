package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

func rows(percents ...float64) []repositories.ResultRow {
	out := make([]repositories.ResultRow, len(percents))
	for i, p := range percents {
		out[i] = repositories.ResultRow{Status: models.SubmissionSubmitted, PercentCorrect: p}
	}
	return out
}

func TestQualifies(t *testing.T) {
	expired := rows(0)
	expired[0].Status = models.SubmissionExpired

	tests := []struct {
		name    string
		rule    models.MedalRule
		results []repositories.ResultRow
		want    bool
	}{
		{"count reached", models.MedalRule{Kind: models.RuleSubmissionCount, Threshold: 2}, rows(10, 20), true},
		{"count short", models.MedalRule{Kind: models.RuleSubmissionCount, Threshold: 3}, rows(10, 20), false},
		{"expired does not count", models.MedalRule{Kind: models.RuleSubmissionCount, Threshold: 1}, expired, false},
		{"perfect", models.MedalRule{Kind: models.RulePerfectScore}, rows(50, 100), true},
		{"not perfect", models.MedalRule{Kind: models.RulePerfectScore}, rows(99.99), false},
		{"average needs three", models.MedalRule{Kind: models.RuleAverageAtLeast, Threshold: 80}, rows(90, 90), false},
		{"average met", models.MedalRule{Kind: models.RuleAverageAtLeast, Threshold: 80}, rows(70, 90, 80), true},
		{"average missed", models.MedalRule{Kind: models.RuleAverageAtLeast, Threshold: 80}, rows(70, 80, 80), false},
		{"streak", models.MedalRule{Kind: models.RuleStreak, Threshold: 3}, rows(10, 70, 80, 100), true},
		{"streak broken", models.MedalRule{Kind: models.RuleStreak, Threshold: 3}, rows(70, 69.5, 80, 100), false},
		{"streak too short", models.MedalRule{Kind: models.RuleStreak, Threshold: 3}, rows(100, 100), false},
		{"unknown kind", models.MedalRule{Kind: "karma", Threshold: 1}, rows(100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Qualifies(tt.rule, tt.results))
		})
	}
}

func TestLoadMedalCatalogue(t *testing.T) {
	medals, err := LoadMedalCatalogue()
	require.NoError(t, err)
	require.NotEmpty(t, medals)

	codes := map[string]bool{}
	for _, m := range medals {
		assert.False(t, codes[m.Code], "duplicate code %s", m.Code)
		codes[m.Code] = true
		assert.True(t, m.Rule.Data().Kind.Valid())
	}
	assert.True(t, codes["perfectionist"])
}

func TestMedalService_SeedCatalogueIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	n, err := env.medals.SeedCatalogue(ctx)
	require.NoError(t, err)
	_, err = env.medals.SeedCatalogue(ctx)
	require.NoError(t, err)

	catalogue, err := env.medals.Catalogue(ctx)
	require.NoError(t, err)
	assert.Len(t, catalogue, n)
}

func TestMedalService_CreateRejectsDuplicateCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := &MedalRequest{Code: "night_owl", Name: "Night owl", Kind: models.RuleSubmissionCount, Threshold: 3}

	medal, err := env.medals.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RuleSubmissionCount, medal.Rule.Data().Kind)

	_, err = env.medals.Create(ctx, req)
	assert.True(t, IsValidationError(err))
}

func TestMedalService_EvaluateAwardsOnce(t *testing.T) {
	f := newFormFixture(t)
	ctx := context.Background()
	_, err := f.env.medals.Create(ctx, &MedalRequest{Code: "first", Name: "First", Kind: models.RuleSubmissionCount, Threshold: 1})
	require.NoError(t, err)

	_, err = f.env.forms.Submit(ctx, f.student, f.form.ID, &SubmitRequest{Answers: wrongAnswers(f.form)})
	require.NoError(t, err)
	sub, err := f.env.store.Submission().GetByFormAndStudent(ctx, f.form.ID, f.student.ID)
	require.NoError(t, err)

	again, err := f.env.medals.Evaluate(ctx, sub)
	require.NoError(t, err)
	assert.Empty(t, again)

	awards, err := f.env.medals.UserMedals(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "first", awards[0].Medal.Code)
	assert.Equal(t, testNow, awards[0].AwardedAt)
}
