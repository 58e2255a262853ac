package query

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/metadata"
	"github.com/jchristn/lattice/sqlite"
)

// fakeAdapter serves canned query results keyed by SQL substring and
// records every query it sees.
type fakeAdapter struct {
	sqlite.Dialect

	queries []core.Statement
	rowsFor func(sql string) []map[string]any
}

var _ core.DatabaseAdapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) Execute(ctx context.Context, sql string, args ...any) error {
	return nil
}

func (f *fakeAdapter) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	f.queries = append(f.queries, core.Statement{SQL: sql, Args: args})
	if f.rowsFor == nil {
		return nil, nil
	}
	return f.rowsFor(sql), nil
}

func (f *fakeAdapter) ExecuteTransaction(ctx context.Context, stmts []core.Statement) error {
	return nil
}

func (f *fakeAdapter) Ping(ctx context.Context) error {
	return nil
}

func newTestExecutor(fake *fakeAdapter) *Executor {
	return NewExecutor(metadata.NewRepository(fake, nil), nil, nil)
}

func testCollection() *core.Collection {
	return &core.Collection{ID: "col_1", IndexingMode: core.IndexingAll}
}

func docRow(id string) map[string]any {
	return map[string]any{
		"id": id, "collectionid": "col_1", "schemaid": "sch_1",
		"name": "", "contentlength": int64(2), "sha256hash": "abc",
		"createdutc": "2026-01-02 03:04:05.000000", "lastupdateutc": "2026-01-02 03:04:05.000000",
	}
}

func TestSearch_EqualsFilter(t *testing.T) {
	fake := &fakeAdapter{
		rowsFor: func(sql string) []map[string]any {
			switch {
			case strings.Contains(sql, "index_table_mappings"):
				return []map[string]any{{"mapkey": "Person.Name.First", "tablename": "idx_0"}}
			case strings.Contains(sql, "COUNT(*)"):
				return []map[string]any{{"total": int64(3)}}
			case strings.Contains(sql, `SELECT * FROM "documents"`):
				return []map[string]any{docRow("doc_1"), docRow("doc_2")}
			default:
				return nil
			}
		},
	}
	e := newTestExecutor(fake)

	res, err := e.Search(context.Background(), testCollection(), &SearchQuery{
		CollectionID: "col_1",
		Filters: []SearchFilter{
			{Field: "Person.Name.First", Condition: ConditionEquals, Value: "Joel"},
		},
		MaxResults: 2,
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.TotalRecords)
	assert.Equal(t, 1, res.RecordsRemaining)
	assert.False(t, res.EndOfResults)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "doc_1", res.Documents[0].ID)

	// The page query intersects through an id subquery against the index
	// table, scoped to the collection, and is fully parameterized.
	var pageSQL core.Statement
	for _, s := range fake.queries {
		if strings.Contains(s.SQL, `SELECT * FROM "documents"`) {
			pageSQL = s
		}
	}
	require.NotEmpty(t, pageSQL.SQL)
	assert.Contains(t, pageSQL.SQL, `"id" IN (SELECT "documentid" FROM "idx_0"`)
	assert.Contains(t, pageSQL.SQL, `ORDER BY "createdutc" DESC`)
	assert.Contains(t, pageSQL.SQL, "LIMIT 2 OFFSET 0")
	assert.NotContains(t, pageSQL.SQL, "Joel")
	assert.Contains(t, pageSQL.Args, "Joel")
}

func TestSearch_UnmappedFieldReturnsEmpty(t *testing.T) {
	fake := &fakeAdapter{
		rowsFor: func(sql string) []map[string]any {
			return nil
		},
	}
	e := newTestExecutor(fake)

	res, err := e.Search(context.Background(), testCollection(), &SearchQuery{
		CollectionID: "col_1",
		Filters:      []SearchFilter{{Field: "Never.Seen", Condition: ConditionEquals, Value: "x"}},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.TotalRecords)
	assert.Empty(t, res.Documents)
	assert.True(t, res.EndOfResults)

	// Short-circuits before touching documents.
	for _, s := range fake.queries {
		assert.NotContains(t, s.SQL, `FROM "documents"`)
	}
}

func TestSearch_NumericFilterRejectsNonNumericValue(t *testing.T) {
	fake := &fakeAdapter{
		rowsFor: func(sql string) []map[string]any {
			if strings.Contains(sql, "index_table_mappings") {
				return []map[string]any{{"mapkey": "Age", "tablename": "idx_0"}}
			}
			return nil
		},
	}
	e := newTestExecutor(fake)

	_, err := e.Search(context.Background(), testCollection(), &SearchQuery{
		CollectionID: "col_1",
		Filters:      []SearchFilter{{Field: "Age", Condition: ConditionGreaterThan, Value: "old"}},
	})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSearch_LabelAndTagClauses(t *testing.T) {
	fake := &fakeAdapter{
		rowsFor: func(sql string) []map[string]any {
			if strings.Contains(sql, "COUNT(*)") {
				return []map[string]any{{"total": int64(0)}}
			}
			return nil
		},
	}
	e := newTestExecutor(fake)

	_, err := e.Search(context.Background(), testCollection(), &SearchQuery{
		CollectionID: "col_1",
		Labels:       []string{"alpha", "beta"},
		Tags:         map[string]string{"env": "prod"},
	})
	require.NoError(t, err)

	var countSQL core.Statement
	for _, s := range fake.queries {
		if strings.Contains(s.SQL, "COUNT(*)") {
			countSQL = s
		}
	}
	require.NotEmpty(t, countSQL.SQL)
	// All labels are required.
	assert.Contains(t, countSQL.SQL, `HAVING COUNT(DISTINCT "labelvalue") =`)
	assert.Contains(t, countSQL.SQL, `"tagkey" =`)
	assert.Contains(t, countSQL.Args, "alpha")
	assert.Contains(t, countSQL.Args, "beta")
	assert.Contains(t, countSQL.Args, "env")
	assert.Contains(t, countSQL.Args, "prod")
}

func TestSearch_SkipBeyondTotal(t *testing.T) {
	fake := &fakeAdapter{
		rowsFor: func(sql string) []map[string]any {
			if strings.Contains(sql, "COUNT(*)") {
				return []map[string]any{{"total": int64(4)}}
			}
			return nil
		},
	}
	e := newTestExecutor(fake)

	res, err := e.Search(context.Background(), testCollection(), &SearchQuery{
		CollectionID: "col_1",
		Skip:         10,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalRecords)
	assert.Empty(t, res.Documents)
	assert.Zero(t, res.RecordsRemaining)
	assert.True(t, res.EndOfResults)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\tmp`, escapeLike(`c:\tmp`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestOrderClause(t *testing.T) {
	d := sqlite.Dialect{}

	clause, err := orderClause(d, nil)
	require.NoError(t, err)
	assert.Equal(t, `ORDER BY "createdutc" DESC`, clause)

	clause, err = orderClause(d, &Ordering{Field: OrderByName})
	require.NoError(t, err)
	assert.Equal(t, `ORDER BY "name" ASC`, clause)

	_, err = orderClause(d, &Ordering{Field: "Sha256Hash"})
	require.Error(t, err)
}
