package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchristn/lattice/core"
)

func TestParseSQL_FullExpression(t *testing.T) {
	q, err := ParseSQL(
		"SELECT * FROM documents WHERE Person.Name.First = 'Joel' AND Age >= 21 " +
			"ORDER BY createdutc DESC LIMIT 10 OFFSET 5")
	require.NoError(t, err)

	require.Len(t, q.Filters, 2)
	assert.Equal(t, SearchFilter{Field: "Person.Name.First", Condition: ConditionEquals, Value: "Joel"}, q.Filters[0])
	assert.Equal(t, SearchFilter{Field: "Age", Condition: ConditionGreaterThanOrEqualTo, Value: "21"}, q.Filters[1])

	require.NotNil(t, q.Ordering)
	assert.Equal(t, OrderByCreatedUTC, q.Ordering.Field)
	assert.True(t, q.Ordering.Descending)
	assert.Equal(t, 10, q.MaxResults)
	assert.Equal(t, 5, q.Skip)
}

func TestParseSQL_Operators(t *testing.T) {
	tests := []struct {
		expr string
		want SearchFilter
	}{
		{"SELECT * FROM documents WHERE A != 'x'", SearchFilter{Field: "A", Condition: ConditionNotEquals, Value: "x"}},
		{"SELECT * FROM documents WHERE A <> 'x'", SearchFilter{Field: "A", Condition: ConditionNotEquals, Value: "x"}},
		{"SELECT * FROM documents WHERE A > 3", SearchFilter{Field: "A", Condition: ConditionGreaterThan, Value: "3"}},
		{"SELECT * FROM documents WHERE A < 3.5", SearchFilter{Field: "A", Condition: ConditionLessThan, Value: "3.5"}},
		{"SELECT * FROM documents WHERE A <= -2", SearchFilter{Field: "A", Condition: ConditionLessThanOrEqualTo, Value: "-2"}},
		{"SELECT * FROM documents WHERE A IS NULL", SearchFilter{Field: "A", Condition: ConditionIsNull}},
		{"SELECT * FROM documents WHERE A IS NOT NULL", SearchFilter{Field: "A", Condition: ConditionIsNotNull}},
		{"SELECT * FROM documents WHERE A LIKE 'Jo%'", SearchFilter{Field: "A", Condition: ConditionLike, Value: "Jo%"}},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			q, err := ParseSQL(tc.expr)
			require.NoError(t, err)
			require.Len(t, q.Filters, 1)
			assert.Equal(t, tc.want, q.Filters[0])
		})
	}
}

func TestParseSQL_EmbeddedQuote(t *testing.T) {
	q, err := ParseSQL("SELECT * FROM documents WHERE Name = 'O''Brien'")
	require.NoError(t, err)
	require.Len(t, q.Filters, 1)
	assert.Equal(t, "O'Brien", q.Filters[0].Value)
}

func TestParseSQL_CaseInsensitiveKeywords(t *testing.T) {
	q, err := ParseSQL("select * from DOCUMENTS where Name = 'x' order by name asc limit 1")
	require.NoError(t, err)
	require.NotNil(t, q.Ordering)
	assert.Equal(t, OrderByName, q.Ordering.Field)
	assert.False(t, q.Ordering.Descending)
	assert.Equal(t, 1, q.MaxResults)
}

func TestParseSQL_RejectsOutsideGrammar(t *testing.T) {
	exprs := []string{
		"",
		"DELETE FROM documents",
		"SELECT name FROM documents WHERE A = 'x'",
		"SELECT * FROM collections WHERE A = 'x'",
		"SELECT * FROM documents",
		"SELECT * FROM documents WHERE A = 'x' OR B = 'y'",
		"SELECT * FROM documents WHERE A = 'x'; DROP TABLE documents",
		"SELECT * FROM documents WHERE A = 'unterminated",
		"SELECT * FROM documents WHERE A = 'x' ORDER BY sha256hash",
		"SELECT * FROM documents WHERE A = 'x' LIMIT ten",
		"SELECT * FROM documents WHERE A = 'x' extra",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseSQL(expr)
			require.Error(t, err)
			var unsupported *core.UnsupportedOperationError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, "UNSUPPORTED_SQL", unsupported.Code)
		})
	}
}
