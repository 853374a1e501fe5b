package schemapath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `{
	"$id": "https://example.org/person.schema.json",
	"type": "object",
	"properties": {
		"firstName": {"type": "string"},
		"lastName": {"type": "string"},
		"age": {"type": "integer"},
		"address": {
			"type": "object",
			"properties": {
				"street": {"type": "string"},
				"city": {"type": "string"}
			}
		},
		"phoneNumbers": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"type": {"type": "string"},
					"number": {"type": "string"}
				}
			}
		},
		"tags": {"type": "array"},
		"extra": {
			"type": "object",
			"additionalProperties": true
		},
		"settings": {
			"type": "object",
			"patternProperties": {
				"^opt_": {"type": "string"}
			}
		},
		"home": {"$ref": "#/definitions/location"}
	},
	"definitions": {
		"location": {
			"type": "object",
			"properties": {
				"lat": {"type": "number"},
				"lon": {"type": "number"}
			}
		}
	}
}`

func parseTestSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := Parse([]byte(personSchema))
	require.NoError(t, err)
	return s
}

func TestSchemaID(t *testing.T) {
	s := parseTestSchema(t)
	assert.Equal(t, "https://example.org/person.schema.json", s.ID())

	s, err := Parse([]byte(`{"id": "legacy.schema.json"}`))
	require.NoError(t, err)
	assert.Equal(t, "legacy.schema.json", s.ID())
}

func TestValidPaths(t *testing.T) {
	s := parseTestSchema(t)

	valid := []string{
		"$.firstName",
		"$.address.street",
		"$.phoneNumbers[0].number",
		"$.phoneNumbers[3].type",
		"$.phoneNumbers[*].number",
		"$..street",
		"$['firstName']",
		"$[\"address\"]['city']",
		"$.phoneNumbers[?(@.type=='home')].number",
		"$.phoneNumbers.length()",
		"$.tags[0]",
		"$.extra.anything.at.all",
		"$.settings.opt_theme",
		"$.home.lat",
		"$",
	}
	for _, expr := range valid {
		assert.True(t, s.IsValidPath(expr), "expected %q to be valid", expr)
	}
}

// Wildcard and predicate hops are transparent: the property after the hop
// must resolve against the array's element schema, and a scan resolves its
// remainder at any depth.
func TestTransparentHops(t *testing.T) {
	s := parseTestSchema(t)

	assert.True(t, s.IsValidPath("$.phoneNumbers[*].number"))
	assert.True(t, s.IsValidPath("$.phoneNumbers[?(@.type=='home')].number"))
	assert.True(t, s.IsValidPath("$..street"))
	assert.True(t, s.IsValidPath("$..number"))
	assert.True(t, s.IsValidPath("$.address..city"))

	assert.False(t, s.IsValidPath("$.phoneNumbers[*].extension"))

	// the person schema's open "extra" object admits any scan; a closed
	// schema rejects scans that resolve nowhere
	closed, err := Parse([]byte(`{
		"type": "object",
		"properties": {
			"a": {"type": "object", "properties": {"b": {"type": "string"}}}
		}
	}`))
	require.NoError(t, err)
	assert.True(t, closed.IsValidPath("$..b"))
	assert.False(t, closed.IsValidPath("$..c"))
}

func TestInvalidPaths(t *testing.T) {
	s := parseTestSchema(t)

	invalid := []string{
		"$.middleName",
		"$.address.country",
		"$.phoneNumbers[0].extension",
		"$.settings.theme",
		"$.firstName.nested",
		"$.home.altitude",
	}
	for _, expr := range invalid {
		assert.False(t, s.IsValidPath(expr), "expected %q to be rejected", expr)
	}
}

func TestMalformedExpressions(t *testing.T) {
	s := parseTestSchema(t)

	malformed := []string{
		"",
		"firstName",
		"$.",
		"$[",
		"$['firstName]",
		"$.phoneNumbers[abc]",
		"$.phoneNumbers[-1]",
		"$.name(",
	}
	for _, expr := range malformed {
		err := s.ValidatePath(expr)
		require.Error(t, err, "expected %q to fail compilation", expr)
	}
}

// An absent additionalProperties keyword does not admit undeclared
// properties; only an explicit true or schema form does.
func TestAdditionalProperties(t *testing.T) {
	s, err := Parse([]byte(`{
		"type": "object",
		"properties": {
			"known": {"type": "string"},
			"open": {"type": "object", "additionalProperties": true},
			"closed": {"type": "object", "additionalProperties": false},
			"typed": {"type": "object", "additionalProperties": {"type": "object", "properties": {"x": {"type": "number"}}}}
		}
	}`))
	require.NoError(t, err)

	assert.True(t, s.IsValidPath("$.known"))
	assert.False(t, s.IsValidPath("$.unknown"))
	assert.True(t, s.IsValidPath("$.open.whatever"))
	assert.False(t, s.IsValidPath("$.closed.whatever"))
	assert.True(t, s.IsValidPath("$.typed.anyKey.x"))
	assert.False(t, s.IsValidPath("$.typed.anyKey.y"))
}

func TestBooleanSchemas(t *testing.T) {
	s, err := Parse([]byte(`{
		"type": "object",
		"properties": {
			"anything": true,
			"nothing": false
		}
	}`))
	require.NoError(t, err)

	assert.True(t, s.IsValidPath("$.anything.deep.path"))
	assert.False(t, s.IsValidPath("$.nothing"))
}

func TestCyclicRefTerminates(t *testing.T) {
	s, err := Parse([]byte(`{
		"type": "object",
		"properties": {
			"node": {"$ref": "#/properties/node"}
		}
	}`))
	require.NoError(t, err)

	// must terminate, not recurse forever
	assert.False(t, s.IsValidPath("$.node.child"))
}

func TestPointerCollapsesIndexes(t *testing.T) {
	p, err := Compile("$.phoneNumbers[4].number")
	require.NoError(t, err)
	assert.Equal(t, []string{"phoneNumbers", "0", "number"}, p.Pointer())
}

func TestTupleItems(t *testing.T) {
	s, err := Parse([]byte(`{
		"type": "object",
		"properties": {
			"pair": {
				"type": "array",
				"prefixItems": [
					{"type": "object", "properties": {"first": {"type": "string"}}}
				]
			}
		}
	}`))
	require.NoError(t, err)

	assert.True(t, s.IsValidPath("$.pair[0].first"))
	assert.False(t, s.IsValidPath("$.pair[0].second"))
}

func TestCompileTokens(t *testing.T) {
	p, err := Compile("$..phoneNumbers[?(@.type=='home')].number")
	require.NoError(t, err)

	kinds := make([]TokenKind, len(p.Tokens))
	for i, tok := range p.Tokens {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []TokenKind{TokenRoot, TokenScan, TokenProperty, TokenPredicate, TokenProperty}, kinds)
	assert.Equal(t, []string{"phoneNumbers", "number"}, p.Pointer())
}
