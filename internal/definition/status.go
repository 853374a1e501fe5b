package definition

import (
	"context"
	"errors"
	"fmt"

	"github.com/localnerve/casedocs/internal/authz"
	"github.com/localnerve/casedocs/internal/models"
	"github.com/localnerve/casedocs/internal/types"
	"gorm.io/gorm"
)

// Status vocabulary management. Each definition name carries an ordered set
// of status keys; documents reference a key and search sorts statuses by
// the configured order, not lexicographically.

// CreateStatus appends a status key at the end of the vocabulary.
func (r *Registry) CreateStatus(ctx context.Context, name, key, title string, visible bool) (*models.DocumentStatus, error) {
	if err := r.access.RequirePermission(ctx, authz.EntityDocumentDefinition, authz.ActionModify); err != nil {
		return nil, err
	}
	if _, err := r.FindLatest(ctx, name); err != nil {
		return nil, err
	}
	status := models.DocumentStatus{
		DefinitionName: name,
		Key:            key,
		Title:          title,
		Visible:        visible,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.DocumentStatus{}).
			Where("definition_name = ?", name).
			Count(&count).Error; err != nil {
			return err
		}
		status.SortOrder = int(count)
		return tx.Create(&status).Error
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// UpdateStatus changes the title and visibility of a status key.
func (r *Registry) UpdateStatus(ctx context.Context, name, key, title string, visible bool) error {
	if err := r.access.RequirePermission(ctx, authz.EntityDocumentDefinition, authz.ActionModify); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&models.DocumentStatus{}).
		Where("definition_name = ? AND key = ?", name, key).
		Updates(map[string]any{"title": title, "visible": visible})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("status %s/%s: %w", name, key, types.ErrNotFound)
	}
	return nil
}

// ReorderStatuses rewrites the sort order from the given complete key list.
func (r *Registry) ReorderStatuses(ctx context.Context, name string, keys []string) error {
	if err := r.access.RequirePermission(ctx, authz.EntityDocumentDefinition, authz.ActionModify); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for order, key := range keys {
			result := tx.Model(&models.DocumentStatus{}).
				Where("definition_name = ? AND key = ?", name, key).
				Update("sort_order", order)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("status %s/%s: %w", name, key, types.ErrNotFound)
			}
		}
		return nil
	})
}

// DeleteStatus removes a status key from the vocabulary.
func (r *Registry) DeleteStatus(ctx context.Context, name, key string) error {
	if err := r.access.RequirePermission(ctx, authz.EntityDocumentDefinition, authz.ActionModify); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Where("definition_name = ? AND key = ?", name, key).
		Delete(&models.DocumentStatus{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("status %s/%s: %w", name, key, types.ErrNotFound)
	}
	return nil
}

// ListStatuses returns the vocabulary in configured order.
func (r *Registry) ListStatuses(ctx context.Context, name string) ([]models.DocumentStatus, error) {
	var statuses []models.DocumentStatus
	err := r.db.WithContext(ctx).
		Where("definition_name = ?", name).
		Order("sort_order").
		Find(&statuses).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return statuses, nil
}
