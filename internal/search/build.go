package search

import (
	"strings"

	"github.com/localnerve/casedocs/internal/types"
	"gorm.io/gorm/schema"
)

var naming = schema.NamingStrategy{}

// Build compiles an advanced search request into a predicate tree, in order:
// definition scope, authorization predicate (always AND-combined), assignee
// filter, per-path filter groups joined by the request operator, and the
// status set. authPred comes from the authorization collaborator and is
// never optional; nil means the collaborator imposed no constraint.
func Build(definitionName string, req AdvancedSearchRequest, currentUserID string, authPred Predicate) (Predicate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parts := make([]Predicate, 0, 5)

	if definitionName != "" {
		parts = append(parts, Compare{
			Field:  Column("definition_name", ""),
			Op:     OpEqual,
			Values: []any{definitionName},
		})
	}

	parts = append(parts, authPred)

	switch req.AssigneeFilter {
	case AssigneeFilterMine:
		parts = append(parts, Compare{
			Field:  Column("assignee_id", ""),
			Op:     OpEqual,
			Values: []any{currentUserID},
		})
	case AssigneeFilterOpen:
		parts = append(parts, Compare{
			Field: Column("assignee_id", ""),
			Op:    OpIsNull,
		})
	}

	otherPred, err := buildOtherFilters(req)
	if err != nil {
		return nil, err
	}
	parts = append(parts, otherPred)

	parts = append(parts, buildStatusFilter(req.StatusFilter))

	return AndOf(parts...), nil
}

// buildOtherFilters OR-combines filters sharing a path ("any of these values
// for this field"), then joins the per-path groups with the request's
// top-level operator.
func buildOtherFilters(req AdvancedSearchRequest) (Predicate, error) {
	if len(req.OtherFilters) == 0 {
		return nil, nil
	}

	order := make([]string, 0, len(req.OtherFilters))
	grouped := make(map[string][]Predicate, len(req.OtherFilters))
	for _, f := range req.OtherFilters {
		pred, err := buildFilter(f, req.ZoneOffsetMinutes)
		if err != nil {
			return nil, err
		}
		if _, seen := grouped[f.Path]; !seen {
			order = append(order, f.Path)
		}
		grouped[f.Path] = append(grouped[f.Path], pred)
	}

	groups := make([]Predicate, 0, len(order))
	for _, path := range order {
		groups = append(groups, OrOf(grouped[path]...))
	}

	if req.SearchOperator == OperatorOr {
		return OrOf(groups...), nil
	}
	return AndOf(groups...), nil
}

func buildFilter(f OtherFilter, offsetMinutes int) (Predicate, error) {
	field, err := ResolveField(f.Path, f.DataType)
	if err != nil {
		return nil, err
	}

	var op CompareOp
	var raw []any
	switch f.SearchType {
	case SearchTypeEqual:
		op, raw = OpEqual, f.Values
	case SearchTypeIn:
		op, raw = OpIn, f.Values
	case SearchTypeLike:
		op, raw = OpLike, f.Values
	case SearchTypeGte:
		op, raw = OpGte, []any{f.RangeFrom}
	case SearchTypeLte:
		op, raw = OpLte, []any{f.RangeTo}
	case SearchTypeBetween:
		op, raw = OpBetween, []any{f.RangeFrom, f.RangeTo}
	default:
		return nil, types.NewValidationError("unknown search type %q on %q", f.SearchType, f.Path)
	}

	values := make([]any, len(raw))
	for i, v := range raw {
		bound := boundNone
		switch {
		case op == OpGte, op == OpBetween && i == 0:
			bound = boundFrom
		case op == OpLte, op == OpBetween && i == 1:
			bound = boundTo
		}
		coerced, err := coerce(f.DataType, v, offsetMinutes, bound)
		if err != nil {
			return nil, err
		}
		values[i] = coerced
	}

	return Compare{Field: field, Op: op, Values: values}, nil
}

func buildStatusFilter(statuses []*string) Predicate {
	if len(statuses) == 0 {
		return nil
	}
	field := Column("internal_status_key", "")
	preds := make([]Predicate, 0, len(statuses))
	var keys []any
	for _, s := range statuses {
		if s == nil {
			// nil is a legal sentinel meaning "no status assigned"
			preds = append(preds, Compare{Field: field, Op: OpIsNull})
			continue
		}
		keys = append(keys, *s)
	}
	if len(keys) > 0 {
		preds = append(preds, Compare{Field: field, Op: OpIn, Values: keys})
	}
	return OrOf(preds...)
}

// ResolveField maps a prefixed path onto a field expression. "doc:" paths
// address the JSON content, "case:" paths a relational column of the
// document row. An unknown prefix is a configuration error, not a no-op.
func ResolveField(path string, dt DataType) (FieldExpr, error) {
	switch {
	case strings.HasPrefix(path, PrefixDoc):
		pointer, err := contentPointer(strings.TrimPrefix(path, PrefixDoc))
		if err != nil {
			return FieldExpr{}, err
		}
		return JSONField(pointer, dt), nil
	case strings.HasPrefix(path, PrefixCase):
		name := strings.TrimPrefix(path, PrefixCase)
		if name == "" {
			return FieldExpr{}, types.NewValidationError("empty case path")
		}
		return Column(naming.ColumnName("", name), dt), nil
	}
	return FieldExpr{}, types.NewValidationError("unknown path prefix on %q, expected doc: or case:", path)
}
