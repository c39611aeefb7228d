package postgres

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// whereBuilder собирает условия WHERE с позиционными параметрами $n.
type whereBuilder struct {
	conds []string
	args  []any
}

// arg добавляет параметр и возвращает его placeholder.
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *whereBuilder) add(format string, values ...any) {
	placeholders := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = w.arg(v)
	}
	w.conds = append(w.conds, fmt.Sprintf(format, placeholders...))
}

// in строит список placeholder'ов для IN (...).
func (w *whereBuilder) in(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = w.arg(v)
	}
	return strings.Join(parts, ", ")
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderByClause переводит SortOrder в ORDER BY. Поле уже проверено ParseOrderBy,
// но всё равно сверяется с картой колонок.
func orderByClause(order domain.SortOrder, columns map[string]string, tiebreak string) string {
	col, ok := columns[order.Field]
	if order.IsZero() || !ok {
		return " ORDER BY " + tiebreak
	}
	dir := "ASC"
	if order.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s", col, dir, tiebreak)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}
