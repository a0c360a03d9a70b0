package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/evolvere-edu/evolvere-api/internal/export"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

const recentResultsLimit = 10

type performanceService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewPerformanceService(repo repositories.Repository, logger *slog.Logger) PerformanceService {
	return &performanceService{repo: repo, logger: logger}
}

func (s *performanceService) Student(ctx context.Context, actor Actor, studentID uint) (*StudentPerformance, error) {
	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get student")
	}
	if student.Role != models.RoleStudent {
		return nil, ErrUserNotFound
	}
	if err := s.canViewStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}

	results, err := s.repo.Dashboard().StudentResults(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	perf := &StudentPerformance{
		StudentID:        student.ID,
		StudentName:      student.Name,
		TotalSubmissions: len(results),
		Subjects:         []SubjectAverage{},
		Recent:           []repositories.ResultRow{},
	}
	if len(results) == 0 {
		return perf, nil
	}

	all := make([]float64, 0, len(results))
	bySubject := make(map[uint][]float64)
	var subjectOrder []repositories.ResultRow
	for _, r := range results {
		all = append(all, r.PercentCorrect)
		if r.PercentCorrect > perf.BestPercent {
			perf.BestPercent = r.PercentCorrect
		}
		if _, seen := bySubject[r.SubjectID]; !seen {
			subjectOrder = append(subjectOrder, r)
		}
		bySubject[r.SubjectID] = append(bySubject[r.SubjectID], r.PercentCorrect)
	}
	perf.AveragePercent = average(all)

	for _, r := range subjectOrder {
		percents := bySubject[r.SubjectID]
		perf.Subjects = append(perf.Subjects, SubjectAverage{
			SubjectID:   r.SubjectID,
			SubjectName: r.SubjectName,
			Submissions: len(percents),
			Average:     average(percents),
		})
	}
	sort.SliceStable(perf.Subjects, func(i, j int) bool {
		return perf.Subjects[i].SubjectName < perf.Subjects[j].SubjectName
	})

	start := len(results) - recentResultsLimit
	if start < 0 {
		start = 0
	}
	perf.Recent = append(perf.Recent, results[start:]...)
	return perf, nil
}

// canViewStudent passes the student, staff and teachers of one of the
// student's classes.
func (s *performanceService) canViewStudent(ctx context.Context, actor Actor, studentID uint) error {
	if actor.ID == studentID || actor.IsStaff() {
		return nil
	}
	if actor.IsTeacher() {
		ok, err := s.repo.Class().SharesClass(ctx, actor.ID, studentID)
		if err != nil {
			return fmt.Errorf("failed to check classes: %w", err)
		}
		if ok {
			return nil
		}
	}
	return NewPermissionError(actor.ID, studentID, "performance", "view", "not related to the student")
}

func (s *performanceService) Class(ctx context.Context, actor Actor, classID uint) (*ClassPerformance, error) {
	class, err := requireClassManager(ctx, s.repo, actor, classID, "performance", "view")
	if err != nil {
		return nil, err
	}

	forms, err := s.classForms(ctx, classID)
	if err != nil {
		return nil, err
	}
	results, err := s.repo.Dashboard().ClassResults(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	byForm := make(map[uint][]float64, len(forms))
	byStudent := make(map[uint][]float64)
	names := make(map[uint]string)
	all := make([]float64, 0, len(results))
	for _, r := range results {
		byForm[r.FormID] = append(byForm[r.FormID], r.PercentCorrect)
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r.PercentCorrect)
		names[r.StudentID] = r.StudentName
		all = append(all, r.PercentCorrect)
	}

	perf := &ClassPerformance{
		ClassID:     class.ID,
		ClassName:   class.Name,
		Submissions: len(results),
		Average:     average(all),
		Forms:       make([]FormAverage, 0, len(forms)),
		Students:    make([]StudentRank, 0, len(byStudent)),
	}
	for _, f := range forms {
		perf.Forms = append(perf.Forms, FormAverage{
			FormID:      f.ID,
			Title:       f.Title,
			Submissions: len(byForm[f.ID]),
			Average:     average(byForm[f.ID]),
		})
	}
	for id, percents := range byStudent {
		perf.Students = append(perf.Students, StudentRank{
			StudentID:   id,
			Name:        names[id],
			Submissions: len(percents),
			Average:     average(percents),
		})
	}
	rankStudents(perf.Students)
	return perf, nil
}

// classForms pages through every form of the class in id order.
func (s *performanceService) classForms(ctx context.Context, classID uint) ([]*models.Form, error) {
	filters := repositories.FormFilters{
		ListOptions: repositories.ListOptions{
			Pagination: models.Pagination{Page: 1, Limit: models.MaxPageSize},
			SortBy:     "id",
			SortOrder:  "asc",
		},
		ClassID: &classID,
	}
	var forms []*models.Form
	for {
		page, total, err := s.repo.Form().List(ctx, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to list forms: %w", err)
		}
		forms = append(forms, page...)
		if len(page) == 0 || int64(len(forms)) >= total {
			return forms, nil
		}
		filters.Page++
	}
}

// rankStudents orders by average descending, ties by name, and numbers
// the result from 1.
func rankStudents(students []StudentRank) {
	sort.Slice(students, func(i, j int) bool {
		if students[i].Average != students[j].Average {
			return students[i].Average > students[j].Average
		}
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].StudentID < students[j].StudentID
	})
	for i := range students {
		students[i].Rank = i + 1
	}
}

func (s *performanceService) ExportClass(ctx context.Context, actor Actor, classID uint, w io.Writer) (string, error) {
	perf, err := s.Class(ctx, actor, classID)
	if err != nil {
		return "", err
	}

	report := &export.ClassReport{
		ClassName: perf.ClassName,
		Average:   perf.Average,
		Forms:     make([]export.FormSummaryLine, len(perf.Forms)),
		Students:  make([]export.StudentSummaryLine, len(perf.Students)),
	}
	for i, f := range perf.Forms {
		report.Forms[i] = export.FormSummaryLine{Title: f.Title, Submissions: f.Submissions, Average: f.Average}
	}
	for i, st := range perf.Students {
		report.Students[i] = export.StudentSummaryLine{Rank: st.Rank, Name: st.Name, Submissions: st.Submissions, Average: st.Average}
	}
	if err := export.WriteClassPerformance(w, report); err != nil {
		return "", fmt.Errorf("failed to export class performance: %w", err)
	}

	s.logger.Info("Class performance exported", "class_id", classID, "user_id", actor.ID)
	return fmt.Sprintf("class-%d-performance.xlsx", classID), nil
}
