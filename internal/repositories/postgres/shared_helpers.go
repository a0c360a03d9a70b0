package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

// SharedHelpers contains query building blocks common to every store.
type SharedHelpers struct{}

func NewSharedHelpers() *SharedHelpers {
	return &SharedHelpers{}
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection
// protection. Only columns present in allowed are accepted; anything else
// falls back to defaultSort.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, opts repositories.ListOptions, allowed map[string]bool, defaultSort string) *gorm.DB {
	sortBy := opts.SortBy
	if sortBy == "" || !allowed[sortBy] {
		sortBy = defaultSort
	}

	sortOrder := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	p := opts.Pagination.Normalize()
	return query.Order(sortBy + " " + sortOrder).
		Limit(p.Limit).
		Offset(p.Offset())
}

// ApplySearch adds a case-insensitive substring match over columns.
func (h *SharedHelpers) ApplySearch(query *gorm.DB, search string, columns ...string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" || len(columns) == 0 {
		return query
	}

	pattern := "%" + escapeLike(search) + "%"
	clauses := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		clauses[i] = col + " ILIKE ?"
		args[i] = pattern
	}
	return query.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// translateError maps driver errors onto repository sentinels.
func translateError(err error, action string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", action, repositories.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", action, repositories.ErrDuplicate)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w", action, repositories.ErrInUse)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}

// checkAffected turns a zero-row update or delete into ErrNotFound.
func checkAffected(result *gorm.DB, action string) error {
	if result.Error != nil {
		return translateError(result.Error, action)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", action, repositories.ErrNotFound)
	}
	return nil
}
