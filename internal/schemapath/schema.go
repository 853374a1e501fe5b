package schemapath

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/localnerve/casedocs/internal/types"
)

// Schema is a parsed JSON Schema document used for path checks only; full
// instance validation is the content validator collaborator's job.
type Schema struct {
	root any
}

// refDepthLimit bounds local $ref chains so cyclic definitions terminate.
const refDepthLimit = 32

// Parse parses raw JSON Schema text.
func Parse(raw []byte) (*Schema, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, types.NewValidationError("schema is not valid JSON: %v", err)
	}
	return &Schema{root: root}, nil
}

// ID returns the schema's declared identifier ($id, falling back to the
// draft-04 id keyword).
func (s *Schema) ID() string {
	doc, ok := s.root.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"$id", "id"} {
		if v, found := doc[key].(string); found {
			return v
		}
	}
	return ""
}

// ValidatePath compiles expr and checks that it resolves to a declared
// location of the schema. Compile failures and undeclared properties both
// return validation errors, with distinct messages.
func (s *Schema) ValidatePath(expr string) error {
	path, err := Compile(expr)
	if err != nil {
		return err
	}
	if !s.defines(s.root, hopsOf(path.Tokens), 0) {
		return types.NewValidationError("path %q is not defined by the schema", expr)
	}
	return nil
}

// IsValidPath is the boolean form of ValidatePath.
func (s *Schema) IsValidPath(expr string) bool {
	return s.ValidatePath(expr) == nil
}

// hop is one resolvable step of a path walk. Wildcard, predicate and
// function tokens contribute no hop: they select within the location the
// surrounding hops resolve. A scan hop defers resolution of the remainder
// to any depth below the current location.
type hop struct {
	name  string
	index bool
	scan  bool
}

func hopsOf(tokens []Token) []hop {
	hops := make([]hop, 0, len(tokens))
	for _, t := range tokens {
		switch t.Kind {
		case TokenProperty:
			hops = append(hops, hop{name: t.Name})
		case TokenArrayIndex:
			// any concrete index collapses to 0: the schema constrains
			// all elements alike
			hops = append(hops, hop{name: "0", index: true})
		case TokenScan:
			hops = append(hops, hop{scan: true})
		}
	}
	return hops
}

// DefinesPointer walks JSON Pointer segments through the schema. A property
// is defined when it is declared under properties or patternProperties, or
// when the schema at that depth explicitly permits additional properties.
// An absent additionalProperties keyword does NOT admit undeclared
// properties: query paths must resolve to something the schema knows about.
func (s *Schema) DefinesPointer(pointer []string) bool {
	hops := make([]hop, len(pointer))
	for i, seg := range pointer {
		hops[i] = hop{name: seg, index: isIndexSegment(seg)}
	}
	return s.defines(s.root, hops, 0)
}

func (s *Schema) defines(node any, hops []hop, depth int) bool {
	if depth > refDepthLimit {
		return false
	}
	node = s.resolveRef(node, depth)

	// JSON Schema boolean forms
	if allowed, isBool := node.(bool); isBool {
		return allowed
	}
	doc, ok := node.(map[string]any)
	if !ok {
		return false
	}
	if len(hops) == 0 {
		return true
	}

	h := hops[0]
	rest := hops[1:]

	if h.scan {
		return s.definesAnywhere(doc, rest, depth)
	}
	if h.index {
		return s.definesItem(doc, rest, depth)
	}

	if props, found := doc["properties"].(map[string]any); found {
		if sub, declared := props[h.name]; declared {
			return s.defines(sub, rest, depth+1)
		}
	}
	if patterns, found := doc["patternProperties"].(map[string]any); found {
		for pattern, sub := range patterns {
			if re, err := regexp.Compile(pattern); err == nil && re.MatchString(h.name) {
				return s.defines(sub, rest, depth+1)
			}
		}
	}
	switch extra := doc["additionalProperties"].(type) {
	case bool:
		return extra
	case map[string]any:
		return s.defines(extra, rest, depth+1)
	}
	// a wildcard or predicate hop over an array contributes nothing to the
	// walk, so a property hop may land on the array schema itself; resolve
	// it against the element schema
	if elem, found := elementSchema(doc); found {
		return s.defines(elem, hops, depth+1)
	}
	return false
}

// definesAnywhere reports whether the remaining hops resolve at the current
// location or anywhere below it, for scan hops.
func (s *Schema) definesAnywhere(node any, hops []hop, depth int) bool {
	if depth > refDepthLimit {
		return false
	}
	node = s.resolveRef(node, depth)
	if s.defines(node, hops, depth) {
		return true
	}
	doc, ok := node.(map[string]any)
	if !ok {
		return false
	}
	for _, keyword := range []string{"properties", "patternProperties"} {
		if subs, found := doc[keyword].(map[string]any); found {
			for _, sub := range subs {
				if s.definesAnywhere(sub, hops, depth+1) {
					return true
				}
			}
		}
	}
	if extra, found := doc["additionalProperties"].(map[string]any); found {
		if s.definesAnywhere(extra, hops, depth+1) {
			return true
		}
	}
	if elem, found := elementSchema(doc); found {
		return s.definesAnywhere(elem, hops, depth+1)
	}
	return false
}

// definesItem descends through an array element schema.
func (s *Schema) definesItem(doc map[string]any, rest []hop, depth int) bool {
	if elem, found := elementSchema(doc); found {
		return s.defines(elem, rest, depth+1)
	}
	// an array without element constraints admits any index
	if t, found := doc["type"].(string); found && t == "array" {
		return len(rest) == 0
	}
	return false
}

// elementSchema returns the schema constraining array elements, from items
// (map, boolean, or draft-04 tuple form) or prefixItems. Tuples use index 0
// as the representative element.
func elementSchema(doc map[string]any) (any, bool) {
	switch items := doc["items"].(type) {
	case map[string]any, bool:
		return items, true
	case []any:
		if len(items) > 0 {
			return items[0], true
		}
	}
	if prefix, found := doc["prefixItems"].([]any); found && len(prefix) > 0 {
		return prefix[0], true
	}
	return nil, false
}

// resolveRef follows a local $ref such as #/definitions/address.
func (s *Schema) resolveRef(node any, depth int) any {
	for i := 0; i < refDepthLimit-depth; i++ {
		doc, ok := node.(map[string]any)
		if !ok {
			return node
		}
		ref, found := doc["$ref"].(string)
		if !found || !strings.HasPrefix(ref, "#") {
			return node
		}
		target := s.root
		for _, seg := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
			if seg == "" {
				continue
			}
			m, isMap := target.(map[string]any)
			if !isMap {
				return nil
			}
			target = m[unescapePointer(seg)]
		}
		node = target
	}
	return nil
}

func unescapePointer(seg string) string {
	seg = strings.ReplaceAll(seg, "~1", "/")
	return strings.ReplaceAll(seg, "~0", "~")
}

func isIndexSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
