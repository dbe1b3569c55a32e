package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_WhereClause(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		query     Query
		wantWhere string
		wantArgs  []any
	}{
		{
			name: "no filters",
		},
		{
			name:      "equality filters are sorted by column",
			query:     Query{Eq: map[string]any{"status": "open", "customer_name": "Ana"}},
			wantWhere: ` WHERE "customer_name" = $1 AND "status" = $2`,
			wantArgs:  []any{"Ana", "open"},
		},
		{
			name:      "is null",
			query:     Query{IsNull: []string{"tiny_order_id"}},
			wantWhere: ` WHERE "tiny_order_id" IS NULL`,
		},
		{
			name: "search ORs columns with one argument",
			query: Query{
				Eq:     map[string]any{"status": "open"},
				Search: &Search{Term: "50%_off", Columns: []string{"name", "sku"}},
			},
			wantWhere: ` WHERE "status" = $1 AND ("name"::text ILIKE $2 OR "sku"::text ILIKE $2)`,
			wantArgs:  []any{"open", `%50\%\_off%`},
		},
		{
			name:      "identifiers are quoted",
			query:     Query{IsNull: []string{`bad"name`}},
			wantWhere: ` WHERE "bad""name" IS NULL`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			where, args := tt.query.whereClause()
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestQuery_OrderAndColumns(t *testing.T) {
	t.Parallel()

	q := Query{
		Columns: []string{"id", "name"},
		OrderBy: []Order{{Column: "created_at", Desc: true}, {Column: "name"}},
	}
	assert.Equal(t, `"id", "name"`, q.columnList())
	assert.Equal(t, ` ORDER BY "created_at" DESC, "name" ASC`, q.orderClause())
	assert.Equal(t, "*", Query{}.columnList())
	assert.Empty(t, Query{}.orderClause())
}

func TestQuery_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Query{Limit: 10, Offset: 20}.Validate())
	assert.Error(t, Query{Offset: -1}.Validate())
	assert.Error(t, Query{Limit: -1}.Validate())
	assert.Error(t, Query{Search: &Search{Term: "x"}}.Validate())
}
