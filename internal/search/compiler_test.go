package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, dialect string, req AdvancedSearchRequest) (string, []any) {
	t.Helper()
	pred, err := Build("person", req, "user-1", nil)
	require.NoError(t, err)
	c := &Compiler{Dialect: dialect}
	sql, args, err := c.Render(pred)
	require.NoError(t, err)
	return sql, args
}

func TestScopePredicateAlwaysPresent(t *testing.T) {
	sql, args := compile(t, "sqlite", AdvancedSearchRequest{})
	assert.Equal(t, "document.definition_name = ?", sql)
	assert.Equal(t, []any{"person"}, args)
}

func TestAssigneeFilters(t *testing.T) {
	sql, args := compile(t, "sqlite", AdvancedSearchRequest{AssigneeFilter: AssigneeFilterMine})
	assert.Contains(t, sql, "document.assignee_id = ?")
	assert.Equal(t, []any{"person", "user-1"}, args)

	sql, _ = compile(t, "sqlite", AdvancedSearchRequest{AssigneeFilter: AssigneeFilterOpen})
	assert.Contains(t, sql, "document.assignee_id IS NULL")
}

func TestTextEqualityIsCaseInsensitive(t *testing.T) {
	sql, args := compile(t, "sqlite", AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "doc:firstName",
			SearchType: SearchTypeEqual,
			DataType:   DataTypeText,
			Values:     []any{"Jan"},
		}},
	})
	assert.Contains(t, sql, `LOWER(json_extract(document.content, '$."firstName"')) = ?`)
	assert.Equal(t, "jan", args[len(args)-1])
}

func TestLikeWrapsAndLowercases(t *testing.T) {
	sql, args := compile(t, "sqlite", AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "doc:address.street",
			SearchType: SearchTypeLike,
			DataType:   DataTypeText,
			Values:     []any{"Kalver"},
		}},
	})
	assert.Contains(t, sql, `LOWER(json_extract(document.content, '$."address"."street"')) LIKE ?`)
	assert.Equal(t, "%kalver%", args[len(args)-1])
}

func TestLikeRejectsNonText(t *testing.T) {
	req := AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "doc:age",
			SearchType: SearchTypeLike,
			DataType:   DataTypeNumber,
			Values:     []any{30},
		}},
	}
	_, err := Build("person", req, "user-1", nil)
	require.Error(t, err)
}

func TestNumberBetweenCastsPerDialect(t *testing.T) {
	req := AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "doc:age",
			SearchType: SearchTypeBetween,
			DataType:   DataTypeNumber,
			RangeFrom:  18,
			RangeTo:    65,
		}},
	}

	cases := map[string]string{
		"sqlite":    `CAST(json_extract(document.content, '$."age"') AS NUMERIC)`,
		"postgres":  `(document.content #>> '{age}')::numeric`,
		"mysql":     `CAST(JSON_UNQUOTE(JSON_EXTRACT(document.content, '$."age"')) AS DECIMAL(65,10))`,
		"sqlserver": `TRY_CAST(JSON_VALUE(document.content, '$."age"') AS FLOAT)`,
	}
	for dialect, want := range cases {
		sql, args := compile(t, dialect, req)
		assert.Contains(t, sql, want+" BETWEEN ? AND ?", dialect)
		assert.Equal(t, []any{"person", float64(18), float64(65)}, args, dialect)
	}
}

func TestNumberEqualityCastsPerDialect(t *testing.T) {
	req := AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "doc:age",
			SearchType: SearchTypeEqual,
			DataType:   DataTypeNumber,
			Values:     []any{30},
		}},
	}

	cases := map[string]string{
		"sqlite":   `CAST(json_extract(document.content, '$."age"') AS NUMERIC) = ?`,
		"postgres": `(document.content #>> '{age}')::numeric = ?`,
		"mysql":    `CAST(JSON_UNQUOTE(JSON_EXTRACT(document.content, '$."age"')) AS DECIMAL(65,10)) = ?`,
	}
	for dialect, want := range cases {
		sql, args := compile(t, dialect, req)
		assert.Contains(t, sql, want, dialect)
		assert.Equal(t, float64(30), args[len(args)-1], dialect)
	}

	// multi-value IN keeps the cast on the extraction side
	req.OtherFilters[0].SearchType = SearchTypeIn
	req.OtherFilters[0].Values = []any{30, 42}
	sql, _ := compile(t, "postgres", req)
	assert.Contains(t, sql, `(document.content #>> '{age}')::numeric IN (?,?)`)
}

func TestBooleanValuesPerDialect(t *testing.T) {
	req := AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "doc:registered",
			SearchType: SearchTypeEqual,
			DataType:   DataTypeBoolean,
			Values:     []any{true},
		}},
	}

	_, args := compile(t, "sqlite", req)
	assert.Equal(t, 1, args[len(args)-1])

	_, args = compile(t, "postgres", req)
	assert.Equal(t, "true", args[len(args)-1])
}

func TestSamePathFiltersGroupAsOr(t *testing.T) {
	req := AdvancedSearchRequest{
		SearchOperator: OperatorAnd,
		OtherFilters: []OtherFilter{
			{Path: "doc:city", SearchType: SearchTypeEqual, DataType: DataTypeText, Values: []any{"Amsterdam"}},
			{Path: "doc:city", SearchType: SearchTypeEqual, DataType: DataTypeText, Values: []any{"Utrecht"}},
			{Path: "doc:age", SearchType: SearchTypeGte, DataType: DataTypeNumber, RangeFrom: 18},
		},
	}
	sql, _ := compile(t, "sqlite", req)

	// the two city filters OR together, then AND with the age filter
	assert.Contains(t, sql, ` OR `)
	assert.Contains(t, sql, ` AND `)
}

func TestTopLevelOrOperator(t *testing.T) {
	req := AdvancedSearchRequest{
		SearchOperator: OperatorOr,
		OtherFilters: []OtherFilter{
			{Path: "doc:city", SearchType: SearchTypeEqual, DataType: DataTypeText, Values: []any{"Amsterdam"}},
			{Path: "doc:age", SearchType: SearchTypeGte, DataType: DataTypeNumber, RangeFrom: 65},
		},
	}
	sql, _ := compile(t, "sqlite", req)
	assert.Contains(t, sql, ` OR `)
	// the definition scope stays AND-combined outside the OR group
	assert.Contains(t, sql, "document.definition_name = ? AND ")
}

func TestStatusFilterWithNullSentinel(t *testing.T) {
	open, closed := "open", "closed"
	req := AdvancedSearchRequest{StatusFilter: []*string{nil, &open, &closed}}
	sql, args := compile(t, "sqlite", req)

	assert.Contains(t, sql, "document.internal_status_key IS NULL")
	assert.Contains(t, sql, "document.internal_status_key IN (?,?)")
	assert.Contains(t, args, "open")
	assert.Contains(t, args, "closed")
}

func TestDateTimeBareDateExpandsToDayWindow(t *testing.T) {
	req := AdvancedSearchRequest{
		ZoneOffsetMinutes: 120, // UTC+2
		OtherFilters: []OtherFilter{{
			Path:       "doc:createdAt",
			SearchType: SearchTypeBetween,
			DataType:   DataTypeDateTime,
			RangeFrom:  "2024-06-01",
			RangeTo:    "2024-06-01",
		}},
	}
	_, args := compile(t, "sqlite", req)

	// local midnight at UTC+2 is 22:00 the previous day UTC
	assert.Equal(t, "2024-05-31T22:00:00Z", args[1])
	assert.Equal(t, "2024-06-01T21:59:59Z", args[2])
}

func TestUnknownPrefixRejected(t *testing.T) {
	req := AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "bogus:firstName",
			SearchType: SearchTypeEqual,
			Values:     []any{"x"},
		}},
	}
	_, err := Build("person", req, "user-1", nil)
	require.Error(t, err)
}

func TestCaseColumnFilter(t *testing.T) {
	sql, args := compile(t, "sqlite", AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "case:createdBy",
			SearchType: SearchTypeEqual,
			DataType:   DataTypeText,
			Values:     []any{"User-2"},
		}},
	})
	assert.Contains(t, sql, "LOWER(document.created_by) = ?")
	assert.Contains(t, args, "user-2")
}

func TestArrayIndexPath(t *testing.T) {
	sql, _ := compile(t, "sqlite", AdvancedSearchRequest{
		OtherFilters: []OtherFilter{{
			Path:       "doc:phoneNumbers[0].number",
			SearchType: SearchTypeEqual,
			DataType:   DataTypeText,
			Values:     []any{"0612345678"},
		}},
	})
	assert.Contains(t, sql, `json_extract(document.content, '$."phoneNumbers"[0]."number"')`)
}

func TestOrderBy(t *testing.T) {
	c := &Compiler{Dialect: "sqlite"}

	order, err := c.OrderBy(Sort{Path: "doc:address.street", Direction: SortDesc})
	require.NoError(t, err)
	assert.Equal(t, `json_extract(document.content, '$."address"."street"') DESC`, order.SQL)

	order, err = c.OrderBy(Sort{Path: "createdOn", Direction: SortAsc})
	require.NoError(t, err)
	assert.Equal(t, "document.created_on ASC", order.SQL)

	order, err = c.OrderBy(Sort{Path: "$.lastName"})
	require.NoError(t, err)
	assert.Equal(t, `LOWER(json_extract(document.content, '$."lastName"')) ASC`, order.SQL)

	_, err = c.OrderBy(Sort{Path: "createdOn", Direction: "SIDEWAYS"})
	require.Error(t, err)
}

func TestIsStatusSort(t *testing.T) {
	assert.True(t, IsStatusSort("internalStatus"))
	assert.True(t, IsStatusSort("case:internalStatus"))
	assert.False(t, IsStatusSort("doc:internalStatus"))
}

func TestAuthPredicateJoinsWithAnd(t *testing.T) {
	auth := Compare{
		Field:  RawColumn("document_definition_role.role", ""),
		Op:     OpIn,
		Values: []any{"caseworker", "supervisor"},
	}
	pred, err := Build("person", AdvancedSearchRequest{}, "user-1", auth)
	require.NoError(t, err)
	c := &Compiler{Dialect: "sqlite"}
	sql, args, err := c.Render(pred)
	require.NoError(t, err)

	assert.Contains(t, sql, "document_definition_role.role IN (?,?)")
	assert.Equal(t, []any{"person", "caseworker", "supervisor"}, args)
}

func TestPathSegmentCharacterGuard(t *testing.T) {
	c := &Compiler{Dialect: "postgres"}
	_, err := c.jsonExpr([]string{`bad"seg`})
	require.Error(t, err)
}
