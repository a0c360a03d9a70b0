// Package export renders reports as xlsx workbooks and reads bulk user
// imports.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultLine is one student's result on a form.
type ResultLine struct {
	StudentName    string
	Status         string
	CorrectCount   int
	WrongCount     int
	Score          int
	MaxScore       int
	PercentCorrect float64
	SubmittedAt    *time.Time
}

type FormReport struct {
	FormTitle string
	ClassName string
	Average   float64
	Lines     []ResultLine
}

type FormSummaryLine struct {
	Title       string
	Submissions int
	Average     float64
}

type StudentSummaryLine struct {
	Rank        int
	Name        string
	Submissions int
	Average     float64
}

type ClassReport struct {
	ClassName string
	Average   float64
	Forms     []FormSummaryLine
	Students  []StudentSummaryLine
}

// sheetWriter appends rows to one sheet.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	bold  int
}

func (w *sheetWriter) header(cells ...interface{}) error {
	if err := w.append(cells...); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cells), w.row)
	if err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, w.row)
	return w.f.SetCellStyle(w.sheet, first, last, w.bold)
}

func (w *sheetWriter) append(cells ...interface{}) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.sheet, cell, &cells)
}

func (w *sheetWriter) blank() {
	w.row++
}

func newWorkbook(first string) (*excelize.File, int, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", first); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("renaming sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("creating style: %w", err)
	}
	return f, bold, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// WriteFormResults writes one sheet, "Results", with a row per submission
// followed by the form average.
func WriteFormResults(out io.Writer, report *FormReport) error {
	f, bold, err := newWorkbook("Results")
	if err != nil {
		return err
	}
	defer f.Close()

	w := &sheetWriter{f: f, sheet: "Results", bold: bold}
	if err := w.header("Form", report.FormTitle); err != nil {
		return fmt.Errorf("writing results sheet: %w", err)
	}
	if err := w.append("Class", report.ClassName); err != nil {
		return fmt.Errorf("writing results sheet: %w", err)
	}
	w.blank()
	if err := w.header("Student", "Status", "Correct", "Wrong", "Score", "Max score", "Percent", "Submitted at"); err != nil {
		return fmt.Errorf("writing results sheet: %w", err)
	}

	for _, l := range report.Lines {
		if err := w.append(l.StudentName, l.Status, l.CorrectCount, l.WrongCount, l.Score, l.MaxScore, l.PercentCorrect, formatTime(l.SubmittedAt)); err != nil {
			return fmt.Errorf("writing result row: %w", err)
		}
	}
	w.blank()
	if err := w.header("Average", report.Average); err != nil {
		return fmt.Errorf("writing average: %w", err)
	}

	if err := f.SetColWidth("Results", "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth("Results", "H", "H", 18); err != nil {
		return err
	}
	return f.Write(out)
}

// WriteClassPerformance writes two sheets: "Forms" with per-form averages
// and "Students" with the ranking.
func WriteClassPerformance(out io.Writer, report *ClassReport) error {
	f, bold, err := newWorkbook("Forms")
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.NewSheet("Students"); err != nil {
		return fmt.Errorf("creating students sheet: %w", err)
	}

	forms := &sheetWriter{f: f, sheet: "Forms", bold: bold}
	if err := forms.header("Class", report.ClassName); err != nil {
		return err
	}
	if err := forms.append("Class average", report.Average); err != nil {
		return err
	}
	forms.blank()
	if err := forms.header("Form", "Submissions", "Average"); err != nil {
		return err
	}
	for _, l := range report.Forms {
		if err := forms.append(l.Title, l.Submissions, l.Average); err != nil {
			return fmt.Errorf("writing form row: %w", err)
		}
	}

	students := &sheetWriter{f: f, sheet: "Students", bold: bold}
	if err := students.header("Rank", "Student", "Submissions", "Average"); err != nil {
		return err
	}
	for _, l := range report.Students {
		if err := students.append(l.Rank, l.Name, l.Submissions, l.Average); err != nil {
			return fmt.Errorf("writing student row: %w", err)
		}
	}

	if err := f.SetColWidth("Forms", "A", "A", 40); err != nil {
		return err
	}
	if err := f.SetColWidth("Students", "B", "B", 32); err != nil {
		return err
	}
	f.SetActiveSheet(0)
	return f.Write(out)
}
