// Package definition holds the schema store and the definition registry:
// versioned, immutable JSON schema documents with deploy/undeploy promotion
// rules, read-only enforcement and role-gated visibility.
package definition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/localnerve/casedocs/internal/models"
	"github.com/localnerve/casedocs/internal/types"
	"gorm.io/gorm"
)

// Store is the low-level schema store primitive. It inserts a definition id
// that is not yet present; storing an already-present id requires byte
// equality with the stored schema and otherwise fails hard, which defends
// against two deploys racing to the same computed version.
func (r *Registry) Store(ctx context.Context, def *models.DocumentDefinition) error {
	if def.Name == "" || def.Version < 1 {
		return types.NewValidationError("definition requires a name and a version >= 1")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.DocumentDefinition
		err := tx.Where("name = ? AND version = ?", def.Name, def.Version).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(def).Error
		case err != nil:
			return err
		}
		if !bytes.Equal(existing.Schema.JSON, def.Schema.JSON) {
			return fmt.Errorf("%w: %s", types.ErrConflict, def.DefinitionID())
		}
		return nil
	})
}

// FindLatest returns the highest stored version of a definition name.
func (r *Registry) FindLatest(ctx context.Context, name string) (*models.DocumentDefinition, error) {
	var def models.DocumentDefinition
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("version DESC").
		First(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document definition %q: %w", name, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// FindByNameAndVersion returns one exact definition version.
func (r *Registry) FindByNameAndVersion(ctx context.Context, name string, version int) (*models.DocumentDefinition, error) {
	var def models.DocumentDefinition
	err := r.db.WithContext(ctx).
		Where("name = ? AND version = ?", name, version).
		First(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document definition %s:%d: %w", name, version, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// FindAll returns the latest version of every definition visible to the
// acting identity: admins see everything, other callers only definitions
// granting one of their roles. A definition with an empty role set is
// therefore admin-only.
func (r *Registry) FindAll(ctx context.Context) ([]models.DocumentDefinition, error) {
	query := r.db.WithContext(ctx).
		Where("version = (SELECT MAX(d.version) FROM document_definition d WHERE d.name = document_definition.name)")

	user, ok := userFrom(ctx)
	if !ok {
		return nil, types.ErrAccessDenied
	}
	if !user.IsAdmin() {
		query = query.
			Joins("JOIN document_definition_role ON document_definition_role.definition_name = document_definition.name").
			Where("document_definition_role.role IN ?", user.Roles).
			Distinct("document_definition.*")
	}

	var defs []models.DocumentDefinition
	if err := query.Order("name").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

// structurallyEqual compares two schema documents by parsed structure, so
// formatting and key order differences do not force a new version.
func structurallyEqual(a, b []byte) bool {
	var left, right any
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}
