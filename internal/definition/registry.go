package definition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localnerve/casedocs/internal/authz"
	"github.com/localnerve/casedocs/internal/models"
	"github.com/localnerve/casedocs/internal/outbox"
	"github.com/localnerve/casedocs/internal/schemapath"
	"github.com/localnerve/casedocs/internal/sequence"
	"github.com/localnerve/casedocs/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// schemaIDSuffix is stripped from the schema's declared identifier to
// derive the definition name.
const schemaIDSuffix = ".schema"

// DocumentRemover is the slice of the document store the registry needs for
// cascading undeploy. Wired at composition time to avoid a package cycle.
type DocumentRemover interface {
	RemoveAll(ctx context.Context, definitionName string) error
}

// Registry implements the deploy/undeploy workflow over the schema store.
type Registry struct {
	db        *gorm.DB
	access    authz.AccessControl
	events    *outbox.Outbox
	sequences *sequence.Allocator
	documents DocumentRemover
	loader    ResourceLoader
	logger    *zap.Logger
}

// NewRegistry wires a registry. loader and documents may be nil when the
// host never calls DeployAll or Undeploy.
func NewRegistry(db *gorm.DB, access authz.AccessControl, events *outbox.Outbox,
	sequences *sequence.Allocator, documents DocumentRemover, loader ResourceLoader,
	log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if access == nil {
		access = authz.AllowAll{}
	}
	return &Registry{
		db:        db,
		access:    access,
		events:    events,
		sequences: sequences,
		documents: documents,
		loader:    loader,
		logger:    log,
	}
}

// SetDocumentRemover completes the registry/document wiring after both are
// constructed.
func (r *Registry) SetDocumentRemover(remover DocumentRemover) {
	r.documents = remover
}

// DeployResult reports a deploy outcome: either the stored definition or a
// list of soft errors. Conflicts on the deploy path are results, not
// exceptions, so batch deploys stay inspectable.
type DeployResult struct {
	Definition *models.DocumentDefinition
	Errors     []error
}

// Failed reports whether the deploy was rejected.
func (d DeployResult) Failed() bool {
	return len(d.Errors) > 0
}

func failure(errs ...error) DeployResult {
	return DeployResult{Errors: errs}
}

// Deploy parses schemaText, derives the definition name from the declared
// identifier, applies the promotion rules and stores a new version.
func (r *Registry) Deploy(ctx context.Context, schemaText []byte, readOnly, force bool) DeployResult {
	if err := r.access.RequirePermission(ctx, authz.EntityDocumentDefinition, authz.ActionDeploy); err != nil {
		return failure(err)
	}

	schema, err := schemapath.Parse(schemaText)
	if err != nil {
		return failure(err)
	}
	name, err := deriveName(schema.ID())
	if err != nil {
		return failure(err)
	}

	version := 1
	latest, err := r.FindLatest(ctx, name)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return failure(err)
	default:
		if latest.ReadOnly && !force {
			return failure(fmt.Errorf("%w: %s", types.ErrReadOnly, name))
		}
		if structurallyEqual(latest.Schema.JSON, schemaText) {
			return failure(fmt.Errorf("%w: %s version %d", types.ErrAlreadyDeployed, name, latest.Version))
		}
		version = latest.Version + 1
	}

	def := &models.DocumentDefinition{
		Name:     name,
		Version:  version,
		Schema:   models.RawJSON(schemaText),
		ReadOnly: readOnly,
	}
	if err := r.Store(ctx, def); err != nil {
		return failure(err)
	}

	r.logger.Info("document definition deployed",
		zap.String("name", name), zap.Int("version", version), zap.Bool("readOnly", readOnly))
	r.events.Send(outbox.CaseEvent{
		Type:           outbox.DefinitionDeployed,
		DefinitionName: name,
		Actor:          actor(ctx),
		Payload:        map[string]any{"version": version, "readOnly": readOnly},
	})
	return DeployResult{Definition: def}
}

// DeployAll deploys every schema resource the loader resolves, accumulating
// per-resource failures without aborting the batch.
func (r *Registry) DeployAll(ctx context.Context) []DeployResult {
	if r.loader == nil {
		return nil
	}
	resources, err := r.loader.Load(ctx)
	if err != nil {
		return []DeployResult{failure(err)}
	}
	results := make([]DeployResult, 0, len(resources))
	for _, res := range resources {
		result := r.Deploy(ctx, res.Raw, false, false)
		if result.Failed() {
			r.logger.Warn("schema resource not deployed",
				zap.String("resource", res.Name), zap.Errors("errors", result.Errors))
		}
		results = append(results, result)
	}
	return results
}

// UndeployResult reports an undeploy outcome.
type UndeployResult struct {
	DefinitionName string
	Errors         []error
}

// Failed reports whether the undeploy was rejected.
func (u UndeployResult) Failed() bool {
	return len(u.Errors) > 0
}

// Undeploy removes a definition and everything scoped to its name: all
// documents, the status vocabulary, the role grants and the sequence
// counter. Read-only definitions refuse undeploy.
func (r *Registry) Undeploy(ctx context.Context, name string) UndeployResult {
	result := UndeployResult{DefinitionName: name}
	fail := func(err error) UndeployResult {
		result.Errors = append(result.Errors, err)
		return result
	}

	if err := r.access.RequirePermission(ctx, authz.EntityDocumentDefinition, authz.ActionUndeploy); err != nil {
		return fail(err)
	}
	latest, err := r.FindLatest(ctx, name)
	if err != nil {
		return fail(err)
	}
	if latest.ReadOnly {
		return fail(fmt.Errorf("%w: %s", types.ErrReadOnly, name))
	}

	if r.documents != nil {
		if err := r.documents.RemoveAll(ctx, name); err != nil {
			return fail(err)
		}
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("definition_name = ?", name).Delete(&models.DocumentStatus{}).Error; err != nil {
			return err
		}
		if err := tx.Where("definition_name = ?", name).Delete(&models.DocumentDefinitionRole{}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", name).Delete(&models.DocumentDefinition{}).Error
	})
	if err != nil {
		return fail(err)
	}
	if r.sequences != nil {
		if err := r.sequences.Delete(ctx, name); err != nil {
			return fail(err)
		}
	}

	r.logger.Info("document definition undeployed", zap.String("name", name))
	r.events.Send(outbox.CaseEvent{
		Type:           outbox.DefinitionUndeployed,
		DefinitionName: name,
		Actor:          actor(ctx),
	})
	return result
}

// PutRoles replaces the full role set of a definition. Callers supply the
// complete desired set; this is delete-then-insert, not a merge.
func (r *Registry) PutRoles(ctx context.Context, name string, roles []string) error {
	if err := r.access.RequirePermission(ctx, authz.EntityDocumentDefinition, authz.ActionModify); err != nil {
		return err
	}
	if _, err := r.FindLatest(ctx, name); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("definition_name = ?", name).Delete(&models.DocumentDefinitionRole{}).Error; err != nil {
			return err
		}
		for _, role := range roles {
			grant := models.DocumentDefinitionRole{DefinitionName: name, Role: role}
			if err := tx.Create(&grant).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRoles returns the role set of a definition.
func (r *Registry) GetRoles(ctx context.Context, name string) ([]string, error) {
	var grants []models.DocumentDefinitionRole
	err := r.db.WithContext(ctx).
		Where("definition_name = ?", name).
		Order("role").
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	roles := make([]string, len(grants))
	for i, g := range grants {
		roles[i] = g.Role
	}
	return roles, nil
}

// ValidateQueryPath checks a query path expression against the latest
// schema version of a definition name.
func (r *Registry) ValidateQueryPath(ctx context.Context, name, pathExpr string) error {
	latest, err := r.FindLatest(ctx, name)
	if err != nil {
		return err
	}
	schema, err := schemapath.Parse(latest.Schema.JSON)
	if err != nil {
		return err
	}
	return schema.ValidatePath(pathExpr)
}

// deriveName extracts the definition name from the schema's declared
// identifier: the last path segment with the fixed suffix stripped.
func deriveName(id string) (string, error) {
	if id == "" {
		return "", types.NewValidationError("schema must declare an $id")
	}
	name := strings.TrimSuffix(id, "/")
	if slash := strings.LastIndexByte(name, '/'); slash >= 0 {
		name = name[slash+1:]
	}
	name = strings.TrimSuffix(name, ".json")
	name = strings.TrimSuffix(name, schemaIDSuffix)
	if name == "" {
		return "", types.NewValidationError("schema $id %q yields an empty definition name", id)
	}
	return name, nil
}

func userFrom(ctx context.Context) (authz.User, bool) {
	return authz.UserFrom(ctx)
}

func actor(ctx context.Context) string {
	if u, ok := authz.UserFrom(ctx); ok {
		return u.ID
	}
	return ""
}
