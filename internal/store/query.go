package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Query describes a filtered, ordered and paginated select
type Query struct {
	// Columns to return; empty means all
	Columns []string

	// Eq filters rows where column = value
	Eq map[string]any

	// IsNull filters rows where the column is NULL
	IsNull []string

	// Search keeps rows where any of the columns contains the term, case-insensitively
	Search *Search

	OrderBy []Order
	Offset  int

	// Limit of zero means no limit
	Limit int
}

// Search is a case-insensitive substring match OR-ed across columns
type Search struct {
	Term    string
	Columns []string
}

// Order sorts by a column
type Order struct {
	Column string
	Desc   bool
}

// Page is one page of Select results
type Page struct {
	Rows  []Fields
	Total int64
}

// Validate checks the query for values that cannot be expressed
func (q Query) Validate() error {
	if q.Offset < 0 {
		return errors.New("offset must not be negative")
	}
	if q.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	if q.Search != nil && q.Search.Term != "" && len(q.Search.Columns) == 0 {
		return errors.New("search requires at least one column")
	}
	return nil
}

// whereClause renders the filter part of q with positional arguments
// starting at $1.
func (q Query) whereClause() (string, []any) {
	var (
		conds []string
		args  []any
	)

	keys := make([]string, 0, len(q.Eq))
	for k := range q.Eq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, toArg(q.Eq[k]))
		conds = append(conds, fmt.Sprintf("%s = $%d", quote(k), len(args)))
	}

	for _, col := range q.IsNull {
		conds = append(conds, quote(col)+" IS NULL")
	}

	if q.Search != nil && q.Search.Term != "" {
		args = append(args, "%"+escapeLike(q.Search.Term)+"%")
		ors := make([]string, 0, len(q.Search.Columns))
		for _, col := range q.Search.Columns {
			ors = append(ors, fmt.Sprintf("%s::text ILIKE $%d", quote(col), len(args)))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q Query) orderClause() string {
	if len(q.OrderBy) == 0 {
		return ""
	}
	parts := make([]string, 0, len(q.OrderBy))
	for _, o := range q.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, quote(o.Column)+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (q Query) columnList() string {
	if len(q.Columns) == 0 {
		return "*"
	}
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = quote(c)
	}
	return strings.Join(cols, ", ")
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
