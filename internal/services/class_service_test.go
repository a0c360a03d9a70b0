package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

func TestClassService_TeacherMustHoldRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teacher := env.seedUser(t, "teacher", models.RoleTeacher)
	student := env.seedUser(t, "student", models.RoleStudent)
	coordinator := env.seedUser(t, "coord", models.RoleCoordinator)
	existing := env.seedClass(t, teacher, "Databases")

	tests := []struct {
		name      string
		teacherID *uint
		period    string
		wantField string
	}{
		{"teacher", uintPtr(teacher.ID), "2025.1", ""},
		{"no teacher yet", nil, "", ""},
		{"student as teacher", uintPtr(student.ID), "2025.1", "teacher_id"},
		{"coordinator as teacher", uintPtr(coordinator.ID), "2025.1", "teacher_id"},
		{"unknown user", uintPtr(9999), "2025.1", "teacher_id"},
		{"malformed period", uintPtr(teacher.ID), "spring", "period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, err := env.classes.Create(ctx, &ClassRequest{
				Name:      "Databases B",
				SubjectID: existing.SubjectID,
				TeacherID: tt.teacherID,
				Period:    tt.period,
			})
			if tt.wantField != "" {
				var verrs validator.ValidationErrors
				require.ErrorAs(t, err, &verrs)
				assert.True(t, verrs.Has(tt.wantField))
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, class.ID)
		})
	}
}

func TestClassService_UpdateChecksTeacher(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teacher := env.seedUser(t, "teacher", models.RoleTeacher)
	student := env.seedUser(t, "student", models.RoleStudent)
	class := env.seedClass(t, teacher, "Databases")

	_, err := env.classes.Update(ctx, class.ID, &ClassRequest{Name: class.Name, SubjectID: class.SubjectID, TeacherID: uintPtr(student.ID)})
	assert.True(t, IsValidationError(err))

	_, err = env.classes.Update(ctx, 9999, &ClassRequest{Name: "Ghost", SubjectID: class.SubjectID})
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestClassService_ListIsScopedByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	coordinator := env.seedUser(t, "coord", models.RoleCoordinator)
	ana := env.seedUser(t, "ana", models.RoleTeacher)
	bruno := env.seedUser(t, "bruno", models.RoleTeacher)
	student := env.seedUser(t, "student", models.RoleStudent)

	databases := env.seedClass(t, ana, "Databases")
	networks := env.seedClass(t, bruno, "Networks")
	env.enroll(t, databases.ID, student)
	require.NoError(t, env.store.Enrollment().Create(ctx, &models.Enrollment{
		ClassID:   networks.ID,
		StudentID: student.ID,
		Status:    models.EnrollmentPending,
	}))

	tests := []struct {
		name  string
		actor Actor
		want  []uint
	}{
		{"coordinator sees every class", coordinator, []uint{databases.ID, networks.ID}},
		{"teacher sees only taught classes", ana, []uint{databases.ID}},
		{"other teacher", bruno, []uint{networks.ID}},
		{"student sees only approved enrollments", student, []uint{databases.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.classes.List(ctx, tt.actor, repositories.ClassFilters{})
			require.NoError(t, err)
			var ids []uint
			for _, c := range res.Items {
				ids = append(ids, c.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
			assert.EqualValues(t, len(tt.want), res.Total)
		})
	}

	t.Run("teacher filter cannot widen scope", func(t *testing.T) {
		res, err := env.classes.List(ctx, ana, repositories.ClassFilters{TeacherID: uintPtr(bruno.ID)})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, databases.ID, res.Items[0].ID)
	})
}

func TestClassService_ReadAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teacher := env.seedUser(t, "teacher", models.RoleTeacher)
	other := env.seedUser(t, "other", models.RoleTeacher)
	student := env.seedUser(t, "student", models.RoleStudent)
	outsider := env.seedUser(t, "outsider", models.RoleStudent)
	class := env.seedClass(t, teacher, "Databases")
	env.enroll(t, class.ID, student)

	_, err := env.classes.GetByID(ctx, student, class.ID)
	require.NoError(t, err)
	_, err = env.classes.GetByID(ctx, outsider, class.ID)
	assert.True(t, IsPermissionError(err))

	students, err := env.classes.Students(ctx, teacher, class.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, student.ID, students[0].ID)

	_, err = env.classes.Students(ctx, other, class.ID)
	assert.True(t, IsPermissionError(err))
}
