// Package database builds parameterized SELECT statements for list endpoints.
package database

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

type ConditionType string

const (
	Equal    ConditionType = "="
	NotEqual ConditionType = "!="
	ILike    ConditionType = "ILIKE"
	Custom   ConditionType = "CUSTOM"
)

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// Condition is one AND-ed term of a WHERE clause.
type Condition struct {
	Field    string
	Type     ConditionType
	Value    any
	rawQuery string
	params   []any
}

// WhereCond compares a column against a single value.
func WhereCond(field string, condType ConditionType, value any) Condition {
	if condType == Custom {
		//nolint:forbidigo // custom conditions must carry raw SQL via WhereRawCond.
		panic("Use WhereRawCond for Custom type")
	}
	return Condition{Field: field, Type: condType, Value: value}
}

// WhereRawCond embeds a raw SQL fragment. Placeholders $1..$n refer to params and
// are renumbered when the fragment is placed into the final statement.
func WhereRawCond(rawQuery string, params ...any) Condition {
	return Condition{Type: Custom, rawQuery: rawQuery, params: params}
}

// ListQueryOptions describes one SELECT * over a table.
type ListQueryOptions struct {
	Table      string
	Conditions []Condition
	OrderBy    string
	OrderDir   string
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{Table: table}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithCondition adds a single condition.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) { o.Conditions = append(o.Conditions, cond) }
}

// WithOrderBy sets the ordering column and direction.
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.OrderBy = column
		o.OrderDir = direction
	}
}

func sanitizeIdentifier(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}

// BuildListQuery renders options into SQL and its positional arguments.
// Identifiers are quoted; values are always passed as parameters.
//
//	q, args := BuildListQuery(NewListQueryOptions("students",
//		WithCondition(WhereCond("course", Equal, "Physics")),
//		WithOrderBy("seq", "ASC"),
//	))
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil || options.Table == "" {
		return "", nil
	}

	var q strings.Builder
	q.WriteString("SELECT * FROM ")
	q.WriteString(sanitizeIdentifier(options.Table))

	where, args := whereClause(options.Conditions)
	if where != "" {
		q.WriteString(" ")
		q.WriteString(where)
	}

	if options.OrderBy != "" {
		q.WriteString(" ORDER BY ")
		q.WriteString(sanitizeIdentifier(options.OrderBy))
		if dir := strings.ToUpper(options.OrderDir); dir == "ASC" || dir == "DESC" {
			q.WriteString(" " + dir)
		}
	}
	return q.String(), args
}

func whereClause(conds []Condition) (string, []any) {
	parts := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		var frag string
		frag, args = renderCondition(c, args)
		if frag != "" {
			parts = append(parts, frag)
		}
	}
	if len(parts) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

func renderCondition(c Condition, args []any) (string, []any) {
	switch c.Type {
	case Custom:
		return renderRaw(c, args)
	case Equal, NotEqual, ILike:
		if c.Field == "" {
			return "", args
		}
		args = append(args, c.Value)
		return fmt.Sprintf("%s %s $%d", sanitizeIdentifier(c.Field), c.Type, len(args)), args
	default:
		return "", args
	}
}

// renderRaw renumbers $n placeholders in the fragment after the args already bound.
// A placeholder that is used twice binds its parameter once.
func renderRaw(c Condition, args []any) (string, []any) {
	if strings.TrimSpace(c.rawQuery) == "" {
		return "", args
	}
	bound := map[int]int{}
	frag := placeholderRe.ReplaceAllStringFunc(c.rawQuery, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil || n < 1 || n > len(c.params) {
			return m
		}
		pos, ok := bound[n]
		if !ok {
			args = append(args, c.params[n-1])
			pos = len(args)
			bound[n] = pos
		}
		return "$" + strconv.Itoa(pos)
	})
	return "(" + frag + ")", args
}
