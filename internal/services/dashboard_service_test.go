package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvere-edu/evolvere-api/internal/models"
)

func TestDashboardService_Summary(t *testing.T) {
	f := newFormFixture(t)
	ctx := context.Background()
	admin := f.env.seedUser(t, "admin", models.RoleAdmin)
	later := testNow.Add(96 * time.Hour)
	f.env.seedForm(t, f.teacher, f.class.ID, &later)
	f.env.seedForm(t, f.teacher, f.class.ID, nil)
	_, err := f.env.medals.SeedCatalogue(ctx)
	require.NoError(t, err)

	_, err = f.env.forms.Submit(ctx, f.student, f.form.ID, &SubmitRequest{Answers: correctAnswers(f.form)})
	require.NoError(t, err)

	t.Run("staff", func(t *testing.T) {
		summary, err := f.env.dashboard.Summary(ctx, admin)
		require.NoError(t, err)
		require.NotNil(t, summary.Staff)
		assert.Nil(t, summary.Student)
		assert.Equal(t, "admin", summary.Role)
		assert.Equal(t, int64(3), summary.Staff.Forms)
		assert.Equal(t, int64(1), summary.Staff.UsersByRole[models.RoleStudent])
		assert.Equal(t, int64(1), summary.Staff.SubmissionsLast7Days)
		assert.Equal(t, 100.0, summary.Staff.AveragePercent)
	})

	t.Run("teacher", func(t *testing.T) {
		summary, err := f.env.dashboard.Summary(ctx, f.teacher)
		require.NoError(t, err)
		require.NotNil(t, summary.Teacher)
		assert.Equal(t, int64(1), summary.Teacher.Classes)
		assert.Equal(t, int64(3), summary.Teacher.Forms)
		assert.Equal(t, 100.0, summary.Teacher.AveragePercent)
	})

	t.Run("student", func(t *testing.T) {
		summary, err := f.env.dashboard.Summary(ctx, f.student)
		require.NoError(t, err)
		require.NotNil(t, summary.Student)
		assert.Equal(t, int64(1), summary.Student.ApprovedClasses)
		assert.Equal(t, 2, summary.Student.PendingForms)
		assert.Equal(t, 100.0, summary.Student.AveragePercent)
		assert.Equal(t, int64(2), summary.Student.Medals)
		require.Len(t, summary.Student.RecentResults, 1)
	})
}

func TestDashboardService_UpcomingOrdersByDeadline(t *testing.T) {
	f := newFormFixture(t)
	ctx := context.Background()
	open := f.env.seedForm(t, f.teacher, f.class.ID, nil)
	soon := testNow.Add(time.Hour)
	urgent := f.env.seedForm(t, f.teacher, f.class.ID, &soon)

	forms, err := f.env.dashboard.Upcoming(ctx, f.student)
	require.NoError(t, err)
	require.Len(t, forms, 3)
	assert.Equal(t, []uint{urgent.ID, f.form.ID, open.ID}, []uint{forms[0].ID, forms[1].ID, forms[2].ID})

	_, err = f.env.dashboard.Upcoming(ctx, f.teacher)
	assert.True(t, IsPermissionError(err))
}
