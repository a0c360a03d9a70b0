package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

// memStore is an in-memory Repository for service tests. Records are
// copied on the way in and out, like rows of a real database.
type memStore struct {
	mu     sync.Mutex
	nextID uint

	users       map[uint]models.User
	courses     map[uint]models.Course
	subjects    map[uint]models.Subject
	classes     map[uint]models.Class
	enrollments map[uint]models.Enrollment
	forms       map[uint]models.Form
	submissions map[uint]models.Submission
	materials   map[uint]models.Material
	medals      map[uint]models.Medal
	awards      []models.UserMedal
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[uint]models.User{},
		courses:     map[uint]models.Course{},
		subjects:    map[uint]models.Subject{},
		classes:     map[uint]models.Class{},
		enrollments: map[uint]models.Enrollment{},
		forms:       map[uint]models.Form{},
		submissions: map[uint]models.Submission{},
		materials:   map[uint]models.Material{},
		medals:      map[uint]models.Medal{},
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) User() repositories.UserRepository             { return fakeUsers{m} }
func (m *memStore) Course() repositories.CourseRepository         { return fakeCourses{m} }
func (m *memStore) Subject() repositories.SubjectRepository       { return fakeSubjects{m} }
func (m *memStore) Class() repositories.ClassRepository           { return fakeClasses{m} }
func (m *memStore) Enrollment() repositories.EnrollmentRepository { return fakeEnrollments{m} }
func (m *memStore) Form() repositories.FormRepository             { return fakeForms{m} }
func (m *memStore) Submission() repositories.SubmissionRepository { return fakeSubmissions{m} }
func (m *memStore) Material() repositories.MaterialRepository     { return fakeMaterials{m} }
func (m *memStore) Medal() repositories.MedalRepository           { return fakeMedals{m} }
func (m *memStore) Dashboard() repositories.DashboardRepository   { return fakeDashboard{m} }

func (m *memStore) WithTransaction(_ context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func paginate[T any](items []T, p models.Pagination) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortedKeys[V any](in map[uint]V) []uint {
	keys := make([]uint, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (m *memStore) approved(classID, studentID uint) bool {
	for _, e := range m.enrollments {
		if e.ClassID == classID && e.StudentID == studentID && e.Status == models.EnrollmentApproved {
			return true
		}
	}
	return false
}

func (m *memStore) teaches(teacherID, classID uint) bool {
	c, ok := m.classes[classID]
	return ok && c.TaughtBy(teacherID)
}

// ===== USERS =====

type fakeUsers struct{ m *memStore }

func (r fakeUsers) Create(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, other := range r.m.users {
		if strings.EqualFold(other.Username, u.Username) || strings.EqualFold(other.Email, u.Email) {
			return repositories.ErrDuplicate
		}
	}
	u.ID = r.m.id()
	u.CreatedAt = time.Now()
	r.m.users[u.ID] = *u
	return nil
}

func (r fakeUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r fakeUsers) GetByIDs(_ context.Context, ids []uint) ([]*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			out = append(out, &u)
		}
	}
	return out, nil
}

func (r fakeUsers) GetByLogin(_ context.Context, login string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeUsers) Update(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[u.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.users[u.ID] = *u
	return nil
}

func (r fakeUsers) UpdateFields(_ context.Context, id uint, fields map[string]interface{}) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "last_login_at":
			if t, ok := v.(time.Time); ok {
				u.LastLoginAt = &t
			}
		case "photo", "diploma_path":
			var key *string
			if s, ok := v.(string); ok {
				key = &s
			}
			if k == "photo" {
				u.Photo = key
			} else {
				u.DiplomaPath = key
			}
		case "status":
			if s, ok := v.(models.RegistrationStatus); ok {
				u.Status = s
			}
		case "password_hash":
			if s, ok := v.(string); ok {
				u.PasswordHash = s
			}
		}
	}
	r.m.users[id] = u
	return nil
}

func (r fakeUsers) Delete(_ context.Context, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.users, id)
	return nil
}

func (r fakeUsers) List(_ context.Context, f repositories.UserFilters) ([]*models.User, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.User
	for _, id := range sortedKeys(r.m.users) {
		u := r.m.users[id]
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		if f.Status != nil && u.Status != *f.Status {
			continue
		}
		out = append(out, &u)
	}
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r fakeUsers) ExistsByUsername(_ context.Context, username string, excludeID uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.ID != excludeID && strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeUsers) ExistsByEmail(_ context.Context, email string, excludeID uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.ID != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// ===== CATALOGUE =====

type fakeCourses struct{ m *memStore }

func (r fakeCourses) Create(_ context.Context, c *models.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c.ID = r.m.id()
	r.m.courses[c.ID] = *c
	return nil
}

func (r fakeCourses) GetByID(_ context.Context, id uint) (*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r fakeCourses) Update(_ context.Context, c *models.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.courses[c.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.courses[c.ID] = *c
	return nil
}

func (r fakeCourses) Delete(_ context.Context, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.courses[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.courses, id)
	return nil
}

func (r fakeCourses) List(_ context.Context, f repositories.CourseFilters) ([]*models.Course, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Course
	for _, id := range sortedKeys(r.m.courses) {
		c := r.m.courses[id]
		out = append(out, &c)
	}
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r fakeCourses) CountSubjects(_ context.Context, courseID uint) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, s := range r.m.subjects {
		if s.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

type fakeSubjects struct{ m *memStore }

func (r fakeSubjects) Create(_ context.Context, s *models.Subject) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s.ID = r.m.id()
	r.m.subjects[s.ID] = *s
	return nil
}

func (r fakeSubjects) GetByID(_ context.Context, id uint) (*models.Subject, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.subjects[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

func (r fakeSubjects) Update(_ context.Context, s *models.Subject) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.subjects[s.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.subjects[s.ID] = *s
	return nil
}

func (r fakeSubjects) Delete(_ context.Context, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.subjects[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.subjects, id)
	return nil
}

func (r fakeSubjects) List(_ context.Context, f repositories.SubjectFilters) ([]*models.Subject, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Subject
	for _, id := range sortedKeys(r.m.subjects) {
		s := r.m.subjects[id]
		if f.CourseID != nil && s.CourseID != *f.CourseID {
			continue
		}
		out = append(out, &s)
	}
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r fakeSubjects) CountClasses(_ context.Context, subjectID uint) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, c := range r.m.classes {
		if c.SubjectID == subjectID {
			n++
		}
	}
	return n, nil
}

type fakeClasses struct{ m *memStore }

func (r fakeClasses) Create(_ context.Context, c *models.Class) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c.ID = r.m.id()
	r.m.classes[c.ID] = *c
	return nil
}

func (r fakeClasses) GetByID(_ context.Context, id uint) (*models.Class, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.classes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r fakeClasses) Update(_ context.Context, c *models.Class) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.classes[c.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.classes[c.ID] = *c
	return nil
}

func (r fakeClasses) Delete(_ context.Context, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.classes[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.classes, id)
	return nil
}

func (r fakeClasses) List(_ context.Context, f repositories.ClassFilters) ([]*models.Class, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Class
	for _, id := range sortedKeys(r.m.classes) {
		c := r.m.classes[id]
		if f.SubjectID != nil && c.SubjectID != *f.SubjectID {
			continue
		}
		if f.TeacherID != nil && !c.TaughtBy(*f.TeacherID) {
			continue
		}
		if f.StudentID != nil && !r.m.approved(c.ID, *f.StudentID) {
			continue
		}
		out = append(out, &c)
	}
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r fakeClasses) ListStudents(_ context.Context, classID uint) ([]*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.User
	for _, id := range sortedKeys(r.m.users) {
		u := r.m.users[id]
		if r.m.approved(classID, u.ID) {
			out = append(out, &u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r fakeClasses) SharesClass(_ context.Context, teacherID, studentID uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.classes {
		if c.TaughtBy(teacherID) && r.m.approved(c.ID, studentID) {
			return true, nil
		}
	}
	return false, nil
}

type fakeEnrollments struct{ m *memStore }

func (r fakeEnrollments) Create(_ context.Context, e *models.Enrollment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, other := range r.m.enrollments {
		if other.ClassID == e.ClassID && other.StudentID == e.StudentID {
			return repositories.ErrDuplicate
		}
	}
	e.ID = r.m.id()
	r.m.enrollments[e.ID] = *e
	return nil
}

func (r fakeEnrollments) GetByID(_ context.Context, id uint) (*models.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.enrollments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &e, nil
}

func (r fakeEnrollments) GetByClassAndStudent(_ context.Context, classID, studentID uint) (*models.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, e := range r.m.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			return &e, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeEnrollments) Update(_ context.Context, e *models.Enrollment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.enrollments[e.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.enrollments[e.ID] = *e
	return nil
}

func (r fakeEnrollments) Delete(_ context.Context, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.enrollments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.enrollments, id)
	return nil
}

func (r fakeEnrollments) List(_ context.Context, f repositories.EnrollmentFilters) ([]*models.Enrollment, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Enrollment
	for _, id := range sortedKeys(r.m.enrollments) {
		e := r.m.enrollments[id]
		switch {
		case f.ClassID != nil && e.ClassID != *f.ClassID,
			f.StudentID != nil && e.StudentID != *f.StudentID,
			f.Status != nil && e.Status != *f.Status,
			f.TeacherID != nil && !r.m.teaches(*f.TeacherID, e.ClassID):
			continue
		}
		out = append(out, &e)
	}
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r fakeEnrollments) IsApproved(_ context.Context, classID, studentID uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.approved(classID, studentID), nil
}

func (r fakeEnrollments) ApprovedClassIDs(_ context.Context, studentID uint) ([]uint, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []uint
	for _, id := range sortedKeys(r.m.enrollments) {
		e := r.m.enrollments[id]
		if e.StudentID == studentID && e.Status == models.EnrollmentApproved {
			ids = append(ids, e.ClassID)
		}
	}
	return ids, nil
}

// ===== FORMS =====

type fakeForms struct{ m *memStore }

func (r fakeForms) assignIDs(f *models.Form) {
	for i := range f.Questions {
		q := &f.Questions[i]
		q.ID = r.m.id()
		q.FormID = f.ID
		for j := range q.Options {
			q.Options[j].ID = r.m.id()
			q.Options[j].QuestionID = q.ID
		}
	}
}

func (r fakeForms) Create(_ context.Context, f *models.Form) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	f.ID = r.m.id()
	f.CreatedAt = time.Now()
	r.assignIDs(f)
	r.m.forms[f.ID] = *f
	return nil
}

func (r fakeForms) GetByID(_ context.Context, id uint) (*models.Form, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	f, ok := r.m.forms[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	f.Questions = nil
	return &f, nil
}

func (r fakeForms) GetWithQuestions(_ context.Context, id uint) (*models.Form, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	f, ok := r.m.forms[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &f, nil
}

func (r fakeForms) ReplaceDefinition(_ context.Context, f *models.Form) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.forms[f.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.assignIDs(f)
	r.m.forms[f.ID] = *f
	return nil
}

func (r fakeForms) Delete(_ context.Context, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.forms[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.forms, id)
	for sid, s := range r.m.submissions {
		if s.FormID == id {
			delete(r.m.submissions, sid)
		}
	}
	return nil
}

func (r fakeForms) List(_ context.Context, f repositories.FormFilters) ([]*models.Form, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Form
	for _, id := range sortedKeys(r.m.forms) {
		form := r.m.forms[id]
		switch {
		case f.ClassID != nil && form.ClassID != *f.ClassID,
			f.TeacherID != nil && !r.m.teaches(*f.TeacherID, form.ClassID),
			f.StudentID != nil && !r.m.approved(form.ClassID, *f.StudentID),
			f.Open != nil && form.IsOpen(f.Now) != *f.Open:
			continue
		}
		form.Questions = nil
		out = append(out, &form)
	}
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r fakeForms) ListUpcoming(_ context.Context, studentID uint, now time.Time) ([]*models.Form, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Form
	for _, id := range sortedKeys(r.m.forms) {
		form := r.m.forms[id]
		if !r.m.approved(form.ClassID, studentID) || !form.IsOpen(now) || r.m.finished(form.ID, studentID) {
			continue
		}
		form.Questions = nil
		out = append(out, &form)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Deadline, out[j].Deadline
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return out, nil
}

func (m *memStore) finished(formID, studentID uint) bool {
	for _, s := range m.submissions {
		if s.FormID == formID && s.StudentID == studentID && s.IsFinal() {
			return true
		}
	}
	return false
}

type fakeSubmissions struct{ m *memStore }

func (r fakeSubmissions) Create(_ context.Context, s *models.Submission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, other := range r.m.submissions {
		if other.FormID == s.FormID && other.StudentID == s.StudentID {
			return repositories.ErrDuplicate
		}
	}
	s.ID = r.m.id()
	r.m.submissions[s.ID] = *s
	return nil
}

func (r fakeSubmissions) GetByID(_ context.Context, id uint) (*models.Submission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.submissions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

func (r fakeSubmissions) GetByFormAndStudent(_ context.Context, formID, studentID uint) (*models.Submission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.submissions {
		if s.FormID == formID && s.StudentID == studentID {
			s.Answers = nil
			return &s, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeSubmissions) LockByFormAndStudent(ctx context.Context, formID, studentID uint) (*models.Submission, error) {
	return r.GetByFormAndStudent(ctx, formID, studentID)
}

func (r fakeSubmissions) GetWithAnswers(_ context.Context, formID, studentID uint) (*models.Submission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.submissions {
		if s.FormID == formID && s.StudentID == studentID {
			return &s, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeSubmissions) SaveResult(_ context.Context, s *models.Submission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.submissions[s.ID]; !ok {
		return repositories.ErrNotFound
	}
	for i := range s.Answers {
		s.Answers[i].SubmissionID = s.ID
	}
	r.m.submissions[s.ID] = *s
	return nil
}

func (r fakeSubmissions) ListByForm(_ context.Context, formID uint) ([]*models.Submission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Submission
	for _, id := range sortedKeys(r.m.submissions) {
		s := r.m.submissions[id]
		if s.FormID != formID {
			continue
		}
		if u, ok := r.m.users[s.StudentID]; ok {
			s.Student = &u
		}
		out = append(out, &s)
	}
	return out, nil
}

func (r fakeSubmissions) ExistsForForm(_ context.Context, formID uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.submissions {
		if s.FormID == formID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeSubmissions) SubmittedFormIDs(_ context.Context, studentID uint, formIDs []uint) (map[uint]bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make(map[uint]bool, len(formIDs))
	for _, id := range formIDs {
		if r.m.finished(id, studentID) {
			out[id] = true
		}
	}
	return out, nil
}

func (r fakeSubmissions) ListOverdue(_ context.Context, cutoff time.Time, limit int) ([]*models.Submission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Submission
	for _, id := range sortedKeys(r.m.submissions) {
		s := r.m.submissions[id]
		if s.Status == models.SubmissionInProgress && s.ExpiresAt.Before(cutoff) {
			out = append(out, &s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ===== MATERIALS & MEDALS =====

type fakeMaterials struct{ m *memStore }

func (r fakeMaterials) Create(_ context.Context, mat *models.Material) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mat.ID = r.m.id()
	r.m.materials[mat.ID] = *mat
	return nil
}

func (r fakeMaterials) GetByID(_ context.Context, id uint) (*models.Material, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mat, ok := r.m.materials[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &mat, nil
}

func (r fakeMaterials) Update(_ context.Context, mat *models.Material) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.materials[mat.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.materials[mat.ID] = *mat
	return nil
}

func (r fakeMaterials) Delete(_ context.Context, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.materials[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.materials, id)
	return nil
}

func (r fakeMaterials) List(_ context.Context, f repositories.MaterialFilters) ([]*models.Material, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Material
	for _, id := range sortedKeys(r.m.materials) {
		mat := r.m.materials[id]
		switch {
		case f.ClassID != nil && mat.ClassID != *f.ClassID,
			f.TeacherID != nil && !r.m.teaches(*f.TeacherID, mat.ClassID),
			f.StudentID != nil && !r.m.approved(mat.ClassID, *f.StudentID),
			f.Search != "" && !strings.Contains(strings.ToLower(mat.Title), strings.ToLower(f.Search)):
			continue
		}
		out = append(out, &mat)
	}
	return paginate(out, f.Pagination), int64(len(out)), nil
}

type fakeMedals struct{ m *memStore }

func (r fakeMedals) Create(_ context.Context, medal *models.Medal) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, other := range r.m.medals {
		if other.Code == medal.Code {
			return repositories.ErrDuplicate
		}
	}
	medal.ID = r.m.id()
	r.m.medals[medal.ID] = *medal
	return nil
}

func (r fakeMedals) Upsert(_ context.Context, medal *models.Medal) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, other := range r.m.medals {
		if other.Code == medal.Code {
			medal.ID = id
			r.m.medals[id] = *medal
			return nil
		}
	}
	medal.ID = r.m.id()
	r.m.medals[medal.ID] = *medal
	return nil
}

func (r fakeMedals) List(context.Context) ([]*models.Medal, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Medal
	for _, id := range sortedKeys(r.m.medals) {
		medal := r.m.medals[id]
		out = append(out, &medal)
	}
	return out, nil
}

func (r fakeMedals) Award(_ context.Context, award *models.UserMedal) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.awards {
		if a.UserID == award.UserID && a.MedalID == award.MedalID {
			return false, nil
		}
	}
	award.ID = r.m.id()
	r.m.awards = append(r.m.awards, *award)
	return true, nil
}

func (r fakeMedals) ListAwards(_ context.Context, userID uint) ([]*models.UserMedal, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.UserMedal
	for _, a := range r.m.awards {
		if a.UserID == userID {
			if medal, ok := r.m.medals[a.MedalID]; ok {
				a.Medal = &medal
			}
			out = append(out, &a)
		}
	}
	return out, nil
}

func (r fakeMedals) CountAwards(_ context.Context, userID uint) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, a := range r.m.awards {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ===== DASHBOARD =====

type fakeDashboard struct{ m *memStore }

func (r fakeDashboard) PlatformCounts(context.Context) (*repositories.PlatformCounts, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	counts := &repositories.PlatformCounts{
		UsersByRole: map[models.UserRole]int64{},
		Courses:     int64(len(r.m.courses)),
		Subjects:    int64(len(r.m.subjects)),
		Classes:     int64(len(r.m.classes)),
		Forms:       int64(len(r.m.forms)),
	}
	for _, u := range r.m.users {
		counts.UsersByRole[u.Role]++
		if u.Status == models.RegistrationPending {
			counts.PendingRegistrations++
		}
	}
	return counts, nil
}

func (r fakeDashboard) TeacherCounts(_ context.Context, teacherID uint) (*repositories.TeacherCounts, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	counts := &repositories.TeacherCounts{}
	for _, c := range r.m.classes {
		if c.TaughtBy(teacherID) {
			counts.Classes++
		}
	}
	for _, f := range r.m.forms {
		if r.m.teaches(teacherID, f.ClassID) {
			counts.Forms++
		}
	}
	for _, e := range r.m.enrollments {
		if e.Status == models.EnrollmentPending && r.m.teaches(teacherID, e.ClassID) {
			counts.PendingEnrollments++
		}
	}
	return counts, nil
}

func (r fakeDashboard) CountSubmissionsSince(_ context.Context, since time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, s := range r.m.submissions {
		if s.IsFinal() && s.SubmittedAt != nil && !s.SubmittedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r fakeDashboard) CountApprovedClasses(_ context.Context, studentID uint) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, e := range r.m.enrollments {
		if e.StudentID == studentID && e.Status == models.EnrollmentApproved {
			n++
		}
	}
	return n, nil
}

func (r fakeDashboard) AveragePercent(_ context.Context, scope repositories.AverageScope) (float64, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var sum float64
	var n int64
	for _, s := range r.m.submissions {
		if !s.IsFinal() {
			continue
		}
		form := r.m.forms[s.FormID]
		switch {
		case scope.StudentID != nil && s.StudentID != *scope.StudentID,
			scope.TeacherID != nil && !r.m.teaches(*scope.TeacherID, form.ClassID),
			scope.Since != nil && (s.SubmittedAt == nil || s.SubmittedAt.Before(*scope.Since)):
			continue
		}
		sum += s.PercentCorrect
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	return sum / float64(n), n, nil
}

func (m *memStore) resultRows(match func(models.Submission, models.Form) bool) []repositories.ResultRow {
	var rows []repositories.ResultRow
	for _, id := range sortedKeys(m.submissions) {
		s := m.submissions[id]
		form, ok := m.forms[s.FormID]
		if !ok || !s.IsFinal() || !match(s, form) {
			continue
		}
		class := m.classes[form.ClassID]
		subject := m.subjects[class.SubjectID]
		row := repositories.ResultRow{
			SubmissionID:   s.ID,
			FormID:         form.ID,
			FormTitle:      form.Title,
			ClassID:        class.ID,
			SubjectID:      subject.ID,
			SubjectName:    subject.Name,
			StudentID:      s.StudentID,
			StudentName:    m.users[s.StudentID].Name,
			Status:         s.Status,
			CorrectCount:   s.CorrectCount,
			WrongCount:     s.WrongCount,
			Score:          s.Score,
			MaxScore:       s.MaxScore,
			PercentCorrect: s.PercentCorrect,
		}
		if s.SubmittedAt != nil {
			row.SubmittedAt = *s.SubmittedAt
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SubmittedAt.Before(rows[j].SubmittedAt) })
	return rows
}

func (r fakeDashboard) StudentResults(_ context.Context, studentID uint) ([]repositories.ResultRow, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.resultRows(func(s models.Submission, _ models.Form) bool { return s.StudentID == studentID }), nil
}

func (r fakeDashboard) ClassResults(_ context.Context, classID uint) ([]repositories.ResultRow, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.resultRows(func(_ models.Submission, f models.Form) bool { return f.ClassID == classID }), nil
}

// ===== SESSIONS =====

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]models.Session{}}
}

func (s *memSessions) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = *session
	return nil
}

func (s *memSessions) Get(_ context.Context, token string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &session, nil
}

func (s *memSessions) Touch(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return repositories.ErrNotFound
	}
	session.ExpiresAt = expiresAt
	s.sessions[token] = session
	return nil
}

func (s *memSessions) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *memSessions) DeleteByUser(_ context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

func (s *memSessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
