package search

// Predicate is a small tagged-variant AST compiled once per request and
// rendered by a storage-specific translator. And/Or nodes hold child
// predicates; Compare nodes hold a typed field comparison.
type Predicate interface {
	isPredicate()
}

// And combines child predicates conjunctively. An empty And is "true".
type And struct {
	Preds []Predicate
}

// Or combines child predicates disjunctively. An empty Or is "true".
type Or struct {
	Preds []Predicate
}

// CompareOp is the comparison kind of a Compare node.
type CompareOp string

const (
	OpEqual   CompareOp = "eq"       // exact; case-insensitive for text
	OpIn      CompareOp = "in"       // set membership; case-insensitive for text
	OpLike    CompareOp = "like"     // case-insensitive substring, text only
	OpGte     CompareOp = "gte"
	OpLte     CompareOp = "lte"
	OpBetween CompareOp = "between"  // two values, inclusive bounds
	OpIsNull  CompareOp = "isnull"   // no values
)

// FieldKind discriminates how a field expression resolves to SQL.
type FieldKind int

const (
	// FieldColumn is a column of the document row, already in the storage
	// naming form.
	FieldColumn FieldKind = iota
	// FieldJSON is a pointer into the JSON content column.
	FieldJSON
	// FieldRaw is a verbatim qualified column, used by collaborators that
	// join their own tables into the query.
	FieldRaw
)

// FieldExpr addresses a comparable value: a relational column or a location
// inside the document content.
type FieldExpr struct {
	Kind     FieldKind
	Name     string   // column name for FieldColumn/FieldRaw
	Pointer  []string // JSON pointer segments for FieldJSON
	DataType DataType
}

// Compare is a typed comparison of a field expression against values.
type Compare struct {
	Field  FieldExpr
	Op     CompareOp
	Values []any
}

func (And) isPredicate()     {}
func (Or) isPredicate()      {}
func (Compare) isPredicate() {}

// AndOf builds a conjunction, flattening nils.
func AndOf(preds ...Predicate) Predicate {
	return combine(true, preds)
}

// OrOf builds a disjunction, flattening nils.
func OrOf(preds ...Predicate) Predicate {
	return combine(false, preds)
}

func combine(conjunctive bool, preds []Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	if conjunctive {
		return And{Preds: kept}
	}
	return Or{Preds: kept}
}

// Column builds a logical-column field expression.
func Column(name string, dt DataType) FieldExpr {
	return FieldExpr{Kind: FieldColumn, Name: name, DataType: dt}
}

// JSONField builds a content-pointer field expression.
func JSONField(pointer []string, dt DataType) FieldExpr {
	return FieldExpr{Kind: FieldJSON, Pointer: pointer, DataType: dt}
}

// RawColumn builds a verbatim qualified-column field expression.
func RawColumn(name string, dt DataType) FieldExpr {
	return FieldExpr{Kind: FieldRaw, Name: name, DataType: dt}
}
