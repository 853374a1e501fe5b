// Package authz defines the authorization and identity collaborator
// contracts of the document core. The core never owns access policy: it
// consults a permission check before every mutation and AND-intersects the
// collaborator's query specification into every read, propagating denials
// untouched.
package authz

import (
	"context"

	"github.com/localnerve/casedocs/internal/search"
	"github.com/localnerve/casedocs/internal/types"
)

// Entity types the core asks decisions about.
const (
	EntityDocument           = "document"
	EntityDocumentDefinition = "document-definition"
)

// Action is the operation being authorized.
type Action string

const (
	ActionView     Action = "view"
	ActionList     Action = "list"
	ActionCreate   Action = "create"
	ActionModify   Action = "modify"
	ActionAssign   Action = "assign"
	ActionDelete   Action = "delete"
	ActionDeploy   Action = "deploy"
	ActionUndeploy Action = "undeploy"
)

// RoleAdmin short-circuits definition-role scoping.
const RoleAdmin = "ROLE_ADMIN"

// User is the acting identity. It travels explicitly in the context; there
// is no ambient or thread-local identity anywhere in the core.
type User struct {
	ID       string
	FullName string
	Roles    []string
}

// HasRole reports membership of a single role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

type userKey struct{}

// WithUser returns a context carrying the acting identity.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom extracts the acting identity from the context.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}

// Join is an extra table the query specification needs; the document query
// adds it as a LEFT JOIN and switches to grouped (distinct) results.
type Join struct {
	Table string
	On    string
}

// QuerySpec is the opaque, composable read constraint supplied by the
// collaborator. A nil Predicate with no joins means unconstrained.
type QuerySpec struct {
	Joins     []Join
	Predicate search.Predicate
}

// AccessControl is the authorization collaborator.
type AccessControl interface {
	// RequirePermission returns types.ErrAccessDenied (possibly wrapped)
	// when the acting identity may not perform action on entityType.
	RequirePermission(ctx context.Context, entityType string, action Action) error

	// QuerySpec supplies the predicate that scopes read queries.
	QuerySpec(ctx context.Context, entityType string, action Action) (QuerySpec, error)
}

// AllowAll admits every caller and imposes no query constraint. Used by
// trusted hosts and tests.
type AllowAll struct{}

func (AllowAll) RequirePermission(context.Context, string, Action) error {
	return nil
}

func (AllowAll) QuerySpec(context.Context, string, Action) (QuerySpec, error) {
	return QuerySpec{}, nil
}

// RoleBased scopes documents by the definition role set: a caller sees a
// definition's documents only when one of their roles is granted on the
// definition name. Admins bypass the scoping; definitions with an empty
// role set are therefore visible to admins only.
type RoleBased struct{}

func (RoleBased) RequirePermission(ctx context.Context, entityType string, action Action) error {
	u, ok := UserFrom(ctx)
	if !ok {
		return types.ErrAccessDenied
	}
	switch action {
	case ActionDeploy, ActionUndeploy:
		if !u.IsAdmin() {
			return types.ErrAccessDenied
		}
	}
	return nil
}

func (RoleBased) QuerySpec(ctx context.Context, entityType string, action Action) (QuerySpec, error) {
	u, ok := UserFrom(ctx)
	if !ok {
		return QuerySpec{}, types.ErrAccessDenied
	}
	if u.IsAdmin() {
		return QuerySpec{}, nil
	}
	roles := make([]any, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = r
	}
	if len(roles) == 0 {
		// force an empty result rather than leaking unscoped rows
		roles = []any{""}
	}
	return QuerySpec{
		Joins: []Join{{
			Table: "document_definition_role",
			On:    "document_definition_role.definition_name = document.definition_name",
		}},
		Predicate: search.Compare{
			Field:  search.RawColumn("document_definition_role.role", ""),
			Op:     search.OpIn,
			Values: roles,
		},
	}, nil
}
