package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/mail"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/storage"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

var testNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

// testEnv wires every service against in-memory stores with a fixed clock.
type testEnv struct {
	store     *memStore
	sessions  *memSessions
	publisher *events.MockEventPublisher
	mailer    *mail.LogMailer
	files     *storage.Store
	metrics   *metrics.Metrics
	now       time.Time

	auth        *authService
	users       *userService
	courses     CourseService
	subjects    SubjectService
	classes     ClassService
	enrollments *enrollmentService
	forms       *formService
	medals      *medalService
	performance *performanceService
	dashboard   *dashboardService
	materials   *materialService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := discardLogger()
	v := validator.New()

	env := &testEnv{
		store:     newMemStore(),
		sessions:  newMemSessions(),
		publisher: events.NewMockEventPublisher(logger),
		mailer:    mail.NewLogMailer(logger),
		files:     storage.NewStore(afero.NewMemMapFs()),
		metrics:   metrics.New(),
		now:       testNow,
	}
	clock := func() time.Time { return env.now }

	env.medals = NewMedalService(env.store, env.publisher, env.metrics, logger, v).(*medalService)
	env.medals.now = clock

	env.auth = NewAuthService(env.store, env.sessions, nil, env.publisher, env.metrics, logger, v, AuthConfig{SessionTTL: 24 * time.Hour}).(*authService)
	env.auth.now = clock
	env.auth.hashCost = bcrypt.MinCost

	env.users = NewUserService(env.store, env.sessions, env.files, env.mailer, env.publisher, env.metrics, logger, v, UserConfig{
		MaxPhotoSize:    1 << 20,
		MaxDocumentSize: 1 << 20,
		AppName:         "Evolvere",
	}).(*userService)
	env.users.hashCost = bcrypt.MinCost

	env.courses = NewCourseService(env.store, logger, v)
	env.subjects = NewSubjectService(env.store, logger, v)
	env.classes = NewClassService(env.store, logger, v)

	env.enrollments = NewEnrollmentService(env.store, env.publisher, logger, v).(*enrollmentService)
	env.enrollments.now = clock

	env.forms = NewFormService(env.store, env.medals, nil, env.publisher, env.metrics, logger, v, 0).(*formService)
	env.forms.now = clock

	env.performance = NewPerformanceService(env.store, logger).(*performanceService)

	env.dashboard = NewDashboardService(env.store, nil, logger).(*dashboardService)
	env.dashboard.now = clock

	env.materials = NewMaterialService(env.store, env.files, env.publisher, env.metrics, logger, v, 1<<20).(*materialService)
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) seedUser(t *testing.T, username string, role models.UserRole) Actor {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Username:     username,
		Email:        username + "@evolvere.test",
		Name:         titleName(username),
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.RegistrationApproved,
	}
	require.NoError(t, e.store.User().Create(context.Background(), u))
	return Actor{ID: u.ID, Role: role}
}

func titleName(username string) string {
	if username == "" {
		return ""
	}
	return strings.ToUpper(username[:1]) + username[1:]
}

// seedClass creates a course, a subject and a class taught by teacher.
func (e *testEnv) seedClass(t *testing.T, teacher Actor, subjectName string) *models.Class {
	t.Helper()
	ctx := context.Background()
	course := &models.Course{Name: "Computer Science"}
	require.NoError(t, e.store.Course().Create(ctx, course))
	subject := &models.Subject{Name: subjectName, CourseID: course.ID}
	require.NoError(t, e.store.Subject().Create(ctx, subject))
	class := &models.Class{Name: subjectName + " A", SubjectID: subject.ID, TeacherID: &teacher.ID, Period: "2025.1"}
	require.NoError(t, e.store.Class().Create(ctx, class))
	return class
}

func (e *testEnv) enroll(t *testing.T, classID uint, student Actor) {
	t.Helper()
	require.NoError(t, e.store.Enrollment().Create(context.Background(), &models.Enrollment{
		ClassID:   classID,
		StudentID: student.ID,
		Status:    models.EnrollmentApproved,
	}))
}

// sampleFormRequest has one multiple choice question (correct: option 1),
// one true/false question (correct: option 0) and one open question.
func sampleFormRequest(classID uint, deadline *time.Time) *FormRequest {
	return &FormRequest{
		Title:    "Midterm",
		ClassID:  classID,
		Deadline: deadline,
		Duration: 30,
		Questions: []validator.QuestionRequest{
			{Text: "2 + 2?", Type: models.QuestionMultipleChoice, Points: 2, Options: []validator.OptionRequest{
				{Text: "3"}, {Text: "4", Correct: true}, {Text: "5"},
			}},
			{Text: "Go has generics", Type: models.QuestionTrueFalse, Options: []validator.OptionRequest{
				{Text: "True", Correct: true}, {Text: "False"},
			}},
			{Text: "Explain goroutines", Type: models.QuestionOpen},
		},
	}
}

func (e *testEnv) seedForm(t *testing.T, teacher Actor, classID uint, deadline *time.Time) *FormDetail {
	t.Helper()
	detail, err := e.forms.Create(context.Background(), teacher, sampleFormRequest(classID, deadline))
	require.NoError(t, err)
	return detail
}

// correctAnswers answers every gradable question of a sample form correctly.
func correctAnswers(detail *FormDetail) []validator.AnswerRequest {
	var answers []validator.AnswerRequest
	for _, q := range detail.Questions {
		if q.Type == models.QuestionOpen {
			text := "lightweight threads"
			answers = append(answers, validator.AnswerRequest{QuestionID: q.ID, OpenAnswer: &text})
			continue
		}
		for _, o := range q.Options {
			if o.Correct != nil && *o.Correct {
				answers = append(answers, validator.AnswerRequest{QuestionID: q.ID, OptionID: uintPtr(o.ID)})
			}
		}
	}
	return answers
}

// wrongAnswers picks the first incorrect option of every gradable question.
func wrongAnswers(detail *FormDetail) []validator.AnswerRequest {
	var answers []validator.AnswerRequest
	for _, q := range detail.Questions {
		for _, o := range q.Options {
			if o.Correct != nil && !*o.Correct {
				answers = append(answers, validator.AnswerRequest{QuestionID: q.ID, OptionID: uintPtr(o.ID)})
				break
			}
		}
	}
	return answers
}
