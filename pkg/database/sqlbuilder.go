package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Builders default to the PostgreSQL flavor so placeholders render as $n.

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.PostgreSQL.NewDeleteBuilder()
}

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

// NewStruct maps a db-tagged struct onto builders using the PostgreSQL flavor.
func NewStruct(v any) *sqlbuilder.Struct {
	return sqlbuilder.NewStruct(v).For(sqlbuilder.PostgreSQL)
}

// OnConflictDoNothing appends an ON CONFLICT clause for the given unique columns.
func OnConflictDoNothing(ib *sqlbuilder.InsertBuilder, columns ...string) *sqlbuilder.InsertBuilder {
	if len(columns) == 0 {
		ib.SQL("ON CONFLICT DO NOTHING")
		return ib
	}
	ib.SQL(fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(columns, ", ")))
	return ib
}

// DefaultPageSize is used when a caller passes no page size.
const DefaultPageSize = 20

// Paginate applies LIMIT/OFFSET for a 1-based page.
func Paginate(sb *sqlbuilder.SelectBuilder, page, pageSize int) *sqlbuilder.SelectBuilder {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return sb.Limit(pageSize).Offset((page - 1) * pageSize)
}
