// Package schemapath validates query path expressions against a document
// definition's JSON schema. A JSONPath-like expression is compiled into a
// token chain and walked against the schema's declared properties. Wildcard,
// predicate and function hops cannot be resolved without data and are
// treated as transparent; a scan hop resolves the remainder at any depth.
package schemapath

import (
	"strconv"
	"strings"

	"github.com/localnerve/casedocs/internal/types"
)

// TokenKind is the closed set of path token kinds, matched exhaustively.
type TokenKind int

const (
	TokenRoot TokenKind = iota
	TokenProperty
	TokenArrayIndex
	TokenWildcard
	TokenScan
	TokenPredicate
	TokenFunction
)

// Token is one hop of a compiled path expression.
type Token struct {
	Kind  TokenKind
	Name  string // property or function name
	Index int    // concrete array index
}

// Path is a compiled path expression.
type Path struct {
	Expr   string
	Tokens []Token
}

// Pointer maps the token chain onto JSON Pointer segments. Any concrete
// array index collapses to index 0: existence of the first element is the
// proxy check, since the schema constrains all elements alike. Transparent
// token kinds contribute nothing.
func (p Path) Pointer() []string {
	segments := make([]string, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		switch t.Kind {
		case TokenProperty:
			segments = append(segments, t.Name)
		case TokenArrayIndex:
			segments = append(segments, "0")
		}
	}
	return segments
}

// Compile tokenizes a path expression. A malformed expression is a hard
// validation error, distinct from "compiles but not declared by the schema".
func Compile(expr string) (Path, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return Path{}, types.NewValidationError("empty path expression")
	}
	if s[0] != '$' {
		return Path{}, types.NewValidationError("path %q must start at the root token $", expr)
	}

	tokens := []Token{{Kind: TokenRoot}}
	rest := s[1:]
	for rest != "" {
		var tok Token
		var err error
		switch {
		case strings.HasPrefix(rest, ".."):
			tok = Token{Kind: TokenScan}
			rest = rest[2:]
			// a scan may be followed directly by a name without a dot
			if rest != "" && rest[0] != '[' && rest[0] != '.' {
				tokens = append(tokens, tok)
				tok, rest, err = parseName(expr, rest)
				if err != nil {
					return Path{}, err
				}
			}
		case strings.HasPrefix(rest, "."):
			tok, rest, err = parseName(expr, rest[1:])
			if err != nil {
				return Path{}, err
			}
		case strings.HasPrefix(rest, "["):
			tok, rest, err = parseBracket(expr, rest)
			if err != nil {
				return Path{}, err
			}
		default:
			return Path{}, types.NewValidationError("unexpected %q in path %q", rest, expr)
		}
		tokens = append(tokens, tok)
	}
	return Path{Expr: expr, Tokens: tokens}, nil
}

// parseName consumes a dotted child: a property name, a wildcard, or a
// function call such as length().
func parseName(expr, rest string) (Token, string, error) {
	if rest == "" {
		return Token{}, "", types.NewValidationError("dangling dot in path %q", expr)
	}
	if rest[0] == '*' {
		return Token{Kind: TokenWildcard}, rest[1:], nil
	}
	end := strings.IndexAny(rest, ".[")
	name := rest
	if end >= 0 {
		name = rest[:end]
		rest = rest[end:]
	} else {
		rest = ""
	}
	if name == "" {
		return Token{}, "", types.NewValidationError("empty property name in path %q", expr)
	}
	if open := strings.IndexByte(name, '('); open >= 0 {
		if !strings.HasSuffix(name, ")") {
			return Token{}, "", types.NewValidationError("unterminated function call in path %q", expr)
		}
		return Token{Kind: TokenFunction, Name: name[:open]}, rest, nil
	}
	return Token{Kind: TokenProperty, Name: name}, rest, nil
}

// parseBracket consumes a bracketed child: a quoted property, a numeric
// index, a wildcard, or a filter predicate.
func parseBracket(expr, rest string) (Token, string, error) {
	closing := matchingBracket(rest)
	if closing < 0 {
		return Token{}, "", types.NewValidationError("unbalanced bracket in path %q", expr)
	}
	inner := strings.TrimSpace(rest[1:closing])
	rest = rest[closing+1:]
	switch {
	case inner == "":
		return Token{}, "", types.NewValidationError("empty bracket in path %q", expr)
	case inner == "*":
		return Token{Kind: TokenWildcard}, rest, nil
	case strings.HasPrefix(inner, "?"):
		return Token{Kind: TokenPredicate}, rest, nil
	case inner[0] == '\'' || inner[0] == '"':
		quote := inner[0]
		if len(inner) < 2 || inner[len(inner)-1] != quote {
			return Token{}, "", types.NewValidationError("unterminated quote in path %q", expr)
		}
		name := inner[1 : len(inner)-1]
		if name == "" {
			return Token{}, "", types.NewValidationError("empty property name in path %q", expr)
		}
		return Token{Kind: TokenProperty, Name: name}, rest, nil
	default:
		index, err := strconv.Atoi(inner)
		if err != nil || index < 0 {
			return Token{}, "", types.NewValidationError("invalid index %q in path %q", inner, expr)
		}
		return Token{Kind: TokenArrayIndex, Index: index}, rest, nil
	}
}

// matchingBracket returns the index of the bracket closing rest[0],
// skipping quoted sections and nested brackets inside predicates.
func matchingBracket(rest string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(rest); i++ {
		ch := rest[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
