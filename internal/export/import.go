package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyWorkbook = errors.New("workbook has no rows")
	ErrMissingColumn = errors.New("missing required column")
)

var importColumns = []string{"username", "email", "name", "password"}

// UserRow is one data row of a user import sheet. Line is the 1-based
// spreadsheet row number.
type UserRow struct {
	Line     int
	Username string
	Email    string
	Name     string
	Password string
}

// ReadUsers reads the first sheet of an xlsx workbook. The header row must
// contain username, email, name and password in any order; other columns
// are ignored and blank rows skipped.
func ReadUsers(r io.Reader) ([]UserRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range importColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	cell := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []UserRow
	for n, row := range rows[1:] {
		u := UserRow{
			Line:     n + 2,
			Username: cell(row, "username"),
			Email:    cell(row, "email"),
			Name:     cell(row, "name"),
			Password: cell(row, "password"),
		}
		if u.Username == "" && u.Email == "" && u.Name == "" && u.Password == "" {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
