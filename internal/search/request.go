// Package search defines the abstract, user-composable search request over
// case documents and compiles it into dialect-specific SQL predicates and
// sort expressions. The request model is storage-agnostic; only the Compiler
// knows how JSON content is extracted on a given database.
package search

import (
	"github.com/localnerve/casedocs/internal/types"
)

// AssigneeFilter narrows results by document assignment.
type AssigneeFilter string

const (
	AssigneeFilterAll  AssigneeFilter = "ALL"
	AssigneeFilterMine AssigneeFilter = "MINE"
	AssigneeFilterOpen AssigneeFilter = "OPEN"
)

// Operator combines the per-path filter groups at the top level.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// SearchType is the comparison kind of a single filter.
type SearchType string

const (
	SearchTypeEqual   SearchType = "EQUAL"
	SearchTypeLike    SearchType = "LIKE"
	SearchTypeIn      SearchType = "IN"
	SearchTypeGte     SearchType = "GREATER_THAN_OR_EQUAL_TO"
	SearchTypeLte     SearchType = "LESS_THAN_OR_EQUAL_TO"
	SearchTypeBetween SearchType = "BETWEEN"
)

// DataType coerces JSON text into typed comparisons.
type DataType string

const (
	DataTypeText     DataType = "text"
	DataTypeNumber   DataType = "number"
	DataTypeBoolean  DataType = "boolean"
	DataTypeDate     DataType = "date"
	DataTypeDateTime DataType = "datetime"
	DataTypeTime     DataType = "time"
)

// Path prefixes. "doc:" addresses the JSON content, "case:" a relational
// column of the document row. Anything else is a configuration error.
const (
	PrefixDoc  = "doc:"
	PrefixCase = "case:"
)

// OtherFilter is one user-composed filter over a document path.
type OtherFilter struct {
	Path       string     `json:"path"`
	SearchType SearchType `json:"searchType"`
	DataType   DataType   `json:"dataType"`
	Values     []any      `json:"values,omitempty"`
	RangeFrom  any        `json:"rangeFrom,omitempty"`
	RangeTo    any        `json:"rangeTo,omitempty"`
}

// SortDirection of a sort key.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// Sort is one requested sort key. Path follows the doc:/case: prefix rules,
// defaults to case: semantics when unprefixed, or may be a raw "$." JSON
// path sorted case-insensitively.
type Sort struct {
	Path      string        `json:"path"`
	Direction SortDirection `json:"direction"`
}

// AdvancedSearchRequest is the transient query specification consumed by the
// compiler. StatusFilter entries may be nil, meaning "no status assigned".
type AdvancedSearchRequest struct {
	AssigneeFilter AssigneeFilter `json:"assigneeFilter"`
	StatusFilter   []*string      `json:"statusFilter,omitempty"`
	SearchOperator Operator       `json:"searchOperator"`
	OtherFilters   []OtherFilter  `json:"otherFilters,omitempty"`
	Sort           []Sort         `json:"sort,omitempty"`

	// ZoneOffsetMinutes is the caller's UTC offset, used to map user-entered
	// calendar dates onto absolute time windows in the stored UTC content.
	ZoneOffsetMinutes int `json:"zoneOffsetMinutes"`
}

// Page is an offset/limit window. A nil *Page means unpaged: the full result
// set is returned.
type Page struct {
	Number int `json:"number"`
	Size   int `json:"size"`
}

// Offset returns the row offset of the page.
func (p *Page) Offset() int {
	if p == nil || p.Number < 0 {
		return 0
	}
	return p.Number * p.Size
}

// Validate rejects malformed requests before anything touches storage.
func (r *AdvancedSearchRequest) Validate() error {
	var problems []string
	switch r.AssigneeFilter {
	case "", AssigneeFilterAll, AssigneeFilterMine, AssigneeFilterOpen:
	default:
		problems = append(problems, "unknown assignee filter: "+string(r.AssigneeFilter))
	}
	switch r.SearchOperator {
	case "", OperatorAnd, OperatorOr:
	default:
		problems = append(problems, "unknown search operator: "+string(r.SearchOperator))
	}
	for _, f := range r.OtherFilters {
		if err := validateFilter(f); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return &types.ValidationError{Problems: problems}
	}
	return nil
}

func validateFilter(f OtherFilter) error {
	switch f.SearchType {
	case SearchTypeEqual, SearchTypeIn:
		if len(f.Values) == 0 {
			return types.NewValidationError("filter on %q requires at least one value", f.Path)
		}
	case SearchTypeLike:
		if len(f.Values) == 0 {
			return types.NewValidationError("filter on %q requires at least one value", f.Path)
		}
		if f.DataType != "" && f.DataType != DataTypeText {
			return types.NewValidationError("LIKE filter on %q requires text values, got %s", f.Path, f.DataType)
		}
	case SearchTypeGte:
		if f.RangeFrom == nil {
			return types.NewValidationError("filter on %q requires rangeFrom", f.Path)
		}
	case SearchTypeLte:
		if f.RangeTo == nil {
			return types.NewValidationError("filter on %q requires rangeTo", f.Path)
		}
	case SearchTypeBetween:
		if f.RangeFrom == nil || f.RangeTo == nil {
			return types.NewValidationError("filter on %q requires rangeFrom and rangeTo", f.Path)
		}
	default:
		return types.NewValidationError("unknown search type %q on %q", f.SearchType, f.Path)
	}
	return nil
}
