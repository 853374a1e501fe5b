package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/localnerve/casedocs/internal/types"
	"gorm.io/gorm"
)

// Compiler renders predicate trees and sort keys into SQL fragments for one
// database dialect. JSON extraction differs per engine the same way the
// models.JSON column type does, so the dialect switch lives here and nowhere
// else.
type Compiler struct {
	Dialect string
}

// NewCompiler builds a compiler for the dialect behind db.
func NewCompiler(db *gorm.DB) *Compiler {
	return &Compiler{Dialect: db.Dialector.Name()}
}

// Render translates a predicate tree into a SQL condition with positional
// arguments. A nil predicate renders to an empty condition.
func (c *Compiler) Render(p Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	switch node := p.(type) {
	case And:
		return c.renderGroup(node.Preds, " AND ")
	case Or:
		return c.renderGroup(node.Preds, " OR ")
	case Compare:
		return c.renderCompare(node)
	}
	return "", nil, fmt.Errorf("unknown predicate node %T", p)
}

func (c *Compiler) renderGroup(preds []Predicate, sep string) (string, []any, error) {
	clauses := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		sql, a, err := c.Render(p)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		clauses = append(clauses, sql)
		args = append(args, a...)
	}
	switch len(clauses) {
	case 0:
		return "", nil, nil
	case 1:
		return clauses[0], args, nil
	}
	return "(" + strings.Join(clauses, sep) + ")", args, nil
}

func (c *Compiler) renderCompare(cmp Compare) (string, []any, error) {
	expr, err := c.FieldSQL(cmp.Field)
	if err != nil {
		return "", nil, err
	}
	dt := cmp.Field.DataType

	if cmp.Op == OpIsNull {
		return expr + " IS NULL", nil, nil
	}
	if len(cmp.Values) == 0 {
		return "", nil, types.NewValidationError("comparison without values")
	}

	args := make([]any, len(cmp.Values))
	for i, v := range cmp.Values {
		args[i] = c.renderValue(cmp.Field, v)
	}

	switch cmp.Op {
	case OpEqual, OpIn:
		// string-typed equality is case-insensitive: document content
		// commonly stores user-entered free text
		if dt == DataTypeText {
			expr = "LOWER(" + expr + ")"
			for i := range args {
				args[i] = strings.ToLower(fmt.Sprintf("%v", args[i]))
			}
		} else {
			// number-typed extractions are text until cast; without it
			// postgres has no text = float8 operator
			expr = c.comparable(expr, cmp.Field)
		}
		if len(args) == 1 {
			return expr + " = ?", args, nil
		}
		return expr + " IN (" + placeholders(len(args)) + ")", args, nil

	case OpLike:
		if dt != "" && dt != DataTypeText {
			return "", nil, types.NewValidationError("LIKE requires text values, got %s", dt)
		}
		likes := make([]string, len(args))
		for i, a := range args {
			likes[i] = "LOWER(" + expr + ") LIKE ?"
			args[i] = "%" + strings.ToLower(fmt.Sprintf("%v", a)) + "%"
		}
		if len(likes) == 1 {
			return likes[0], args, nil
		}
		return "(" + strings.Join(likes, " OR ") + ")", args, nil

	case OpGte:
		return c.comparable(expr, cmp.Field) + " >= ?", args, nil
	case OpLte:
		return c.comparable(expr, cmp.Field) + " <= ?", args, nil
	case OpBetween:
		if len(args) != 2 {
			return "", nil, types.NewValidationError("BETWEEN requires exactly two bounds")
		}
		return "(" + c.comparable(expr, cmp.Field) + " BETWEEN ? AND ?)", args, nil
	}
	return "", nil, fmt.Errorf("unknown compare op %q", cmp.Op)
}

// FieldSQL renders the value expression of a field: a qualified column, or a
// dialect-specific extraction from the JSON content column.
func (c *Compiler) FieldSQL(f FieldExpr) (string, error) {
	switch f.Kind {
	case FieldColumn:
		return "document." + f.Name, nil
	case FieldRaw:
		return f.Name, nil
	case FieldJSON:
		return c.jsonExpr(f.Pointer)
	}
	return "", fmt.Errorf("unknown field kind %d", f.Kind)
}

// jsonExpr extracts a content value as text, per dialect.
func (c *Compiler) jsonExpr(pointer []string) (string, error) {
	for _, seg := range pointer {
		if strings.ContainsAny(seg, `"'\{},`) {
			return "", types.NewValidationError("unsupported character in path segment %q", seg)
		}
	}
	switch c.Dialect {
	case "postgres":
		return "document.content #>> '{" + strings.Join(pointer, ",") + "}'", nil
	case "mysql":
		return "JSON_UNQUOTE(JSON_EXTRACT(document.content, '" + jsonPath(pointer) + "'))", nil
	case "sqlserver", "mssql":
		return "JSON_VALUE(document.content, '" + jsonPath(pointer) + "')", nil
	default: // sqlite and friends
		return "json_extract(document.content, '" + jsonPath(pointer) + "')", nil
	}
}

// jsonPath renders pointer segments as a $-rooted JSON path expression.
func jsonPath(pointer []string) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range pointer {
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		b.WriteString(`."` + seg + `"`)
	}
	return b.String()
}

// comparable wraps a JSON extraction in a numeric cast when the comparison
// is numeric; text extraction compares lexicographically otherwise, which is
// correct for the normalized ISO-8601 temporal representations.
func (c *Compiler) comparable(expr string, f FieldExpr) string {
	if f.DataType != DataTypeNumber || f.Kind != FieldJSON {
		return expr
	}
	switch c.Dialect {
	case "postgres":
		return "(" + expr + ")::numeric"
	case "mysql":
		return "CAST(" + expr + " AS DECIMAL(65,10))"
	case "sqlserver", "mssql":
		return "TRY_CAST(" + expr + " AS FLOAT)"
	default:
		return "CAST(" + expr + " AS NUMERIC)"
	}
}

// renderValue adapts a coerced value to what the dialect's JSON extraction
// yields: sqlite extracts booleans as 0/1, every other engine as text.
func (c *Compiler) renderValue(f FieldExpr, v any) any {
	b, isBool := v.(bool)
	if !isBool || f.Kind != FieldJSON {
		return v
	}
	switch c.Dialect {
	case "sqlite":
		if b {
			return 1
		}
		return 0
	default:
		return strconv.FormatBool(b)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Order is a compiled sort key. GroupExpr must join the GROUP BY set when
// the surrounding query groups rows.
type Order struct {
	SQL       string
	GroupExpr string
}

// StatusSortKey is the logical sort key that maps onto the per-definition
// ordered status vocabulary instead of a plain column.
const StatusSortKey = "internalStatus"

// IsStatusSort reports whether a sort path requests status-vocabulary order.
func IsStatusSort(path string) bool {
	return path == StatusSortKey || path == PrefixCase+StatusSortKey
}

// OrderBy compiles one sort key. doc:-prefixed keys sort by the extracted
// content value, case:-prefixed (or bare) keys by the document column, and
// raw "$."-prefixed JSON paths sort case-insensitively.
func (c *Compiler) OrderBy(s Sort) (Order, error) {
	dir := "ASC"
	switch s.Direction {
	case "", SortAsc:
	case SortDesc:
		dir = "DESC"
	default:
		return Order{}, types.NewValidationError("unknown sort direction %q", s.Direction)
	}

	var expr string
	switch {
	case strings.HasPrefix(s.Path, "$."):
		pointer, err := contentPointer(s.Path)
		if err != nil {
			return Order{}, err
		}
		jsonSQL, err := c.jsonExpr(pointer)
		if err != nil {
			return Order{}, err
		}
		expr = "LOWER(" + jsonSQL + ")"
	case strings.HasPrefix(s.Path, PrefixDoc):
		field, err := ResolveField(s.Path, "")
		if err != nil {
			return Order{}, err
		}
		expr, err = c.FieldSQL(field)
		if err != nil {
			return Order{}, err
		}
	case strings.HasPrefix(s.Path, PrefixCase):
		field, err := ResolveField(s.Path, "")
		if err != nil {
			return Order{}, err
		}
		expr, err = c.FieldSQL(field)
		if err != nil {
			return Order{}, err
		}
	default:
		// unprefixed sort keys default to case: semantics
		expr = "document." + naming.ColumnName("", s.Path)
	}

	return Order{SQL: expr + " " + dir, GroupExpr: expr}, nil
}
