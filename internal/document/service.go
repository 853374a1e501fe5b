// Package document implements CRUD over case document instances and the
// advanced search surface on top of the query compiler.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/localnerve/casedocs/internal/authz"
	"github.com/localnerve/casedocs/internal/definition"
	"github.com/localnerve/casedocs/internal/models"
	"github.com/localnerve/casedocs/internal/outbox"
	"github.com/localnerve/casedocs/internal/sequence"
	"github.com/localnerve/casedocs/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultModifyTimeout = 10 * time.Second

// Service is the document store.
type Service struct {
	db            *gorm.DB
	registry      *definition.Registry
	sequences     *sequence.Allocator
	access        authz.AccessControl
	events        *outbox.Outbox
	validator     ContentValidator
	logger        *zap.Logger
	modifyTimeout time.Duration
	searchTimeout time.Duration
}

// Option tweaks service construction.
type Option func(*Service)

// WithModifyTimeout bounds content-modification operations.
func WithModifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.modifyTimeout = d }
}

// WithSearchTimeout bounds search execution where the engine supports a
// per-query limit.
func WithSearchTimeout(d time.Duration) Option {
	return func(s *Service) { s.searchTimeout = d }
}

// NewService wires a document store.
func NewService(db *gorm.DB, registry *definition.Registry, sequences *sequence.Allocator,
	access authz.AccessControl, events *outbox.Outbox, validator ContentValidator,
	log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if access == nil {
		access = authz.AllowAll{}
	}
	if validator == nil {
		validator = SchemaValidator{}
	}
	s := &Service{
		db:            db,
		registry:      registry,
		sequences:     sequences,
		access:        access,
		events:        events,
		validator:     validator,
		logger:        log,
		modifyTimeout: defaultModifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates content against the latest schema version of the
// definition, allocates the next case number and persists the document.
func (s *Service) Create(ctx context.Context, definitionName string, content []byte) (*models.Document, error) {
	if err := s.access.RequirePermission(ctx, authz.EntityDocument, authz.ActionCreate); err != nil {
		return nil, err
	}
	user, ok := authz.UserFrom(ctx)
	if !ok {
		return nil, types.ErrAccessDenied
	}

	def, err := s.registry.FindLatest(ctx, definitionName)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(ctx, def.Schema.JSON, content); err != nil {
		return nil, err
	}

	// allocation commits independently of the document insert: a failed
	// insert leaves a gap, never a duplicate
	seq, err := s.sequences.Next(ctx, definitionName)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:                uuid.NewString(),
		DefinitionName:    def.Name,
		DefinitionVersion: def.Version,
		Content:           models.RawJSON(content),
		Sequence:          seq,
		CreatedBy:         user.ID,
		CreatedOn:         time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		zap.String("id", doc.ID), zap.String("definition", def.Name), zap.Int64("sequence", seq))
	s.events.Send(outbox.CaseEvent{
		Type:           outbox.DocumentCreated,
		DefinitionName: def.Name,
		DocumentID:     doc.ID,
		Actor:          user.ID,
		Payload:        map[string]any{"sequence": seq, "version": def.Version},
	})
	return doc, nil
}

// Get fetches one document by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetAllByName returns every document of a definition name across all
// schema versions, ordered by case number.
func (s *Service) GetAllByName(ctx context.Context, definitionName string) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.WithContext(ctx).
		Where("definition_name = ?", definitionName).
		Order("sequence").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ReplaceContent swaps the full document content, re-validating against the
// schema version the document is bound to. Nothing is written when
// validation fails.
func (s *Service) ReplaceContent(ctx context.Context, id string, content []byte) (*models.Document, error) {
	return s.modify(ctx, id, func(*models.Document) ([]byte, error) {
		return content, nil
	})
}

// PatchContent applies a JSON-Patch to the current content, then
// re-validates the whole result before writing.
func (s *Service) PatchContent(ctx context.Context, id string, patchText []byte) (*models.Document, error) {
	patch, err := jsonpatch.DecodePatch(patchText)
	if err != nil {
		return nil, types.NewValidationError("invalid JSON patch: %v", err)
	}
	return s.modify(ctx, id, func(doc *models.Document) ([]byte, error) {
		patched, err := patch.Apply(doc.Content.JSON)
		if err != nil {
			return nil, types.NewValidationError("patch does not apply: %v", err)
		}
		return patched, nil
	})
}

// modify runs a content mutation bounded by the modification timeout.
func (s *Service) modify(ctx context.Context, id string, next func(*models.Document) ([]byte, error)) (*models.Document, error) {
	if err := s.access.RequirePermission(ctx, authz.EntityDocument, authz.ActionModify); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.modifyTimeout)
	defer cancel()

	// the schema binding of a document never changes, so the definition
	// loads before the row transaction; a registry lookup inside it would
	// contend for a pool connection the transaction already holds
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	def, err := s.registry.FindByNameAndVersion(ctx, current.DefinitionName, current.DefinitionVersion)
	if err != nil {
		return nil, err
	}

	var updated *models.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		err := tx.Where("id = ?", id).First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("document %s: %w", id, types.ErrNotFound)
		}
		if err != nil {
			return err
		}

		content, err := next(&doc)
		if err != nil {
			return err
		}
		if err := s.validator.Validate(ctx, def.Schema.JSON, content); err != nil {
			return err
		}

		doc.Content = models.RawJSON(content)
		if err := tx.Model(&doc).Update("content", doc.Content).Error; err != nil {
			return err
		}
		updated = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Send(outbox.CaseEvent{
		Type:           outbox.DocumentModified,
		DefinitionName: updated.DefinitionName,
		DocumentID:     updated.ID,
		Actor:          actor(ctx),
	})
	return updated, nil
}

// AssignTo sets the assignee with a narrow single-row update.
func (s *Service) AssignTo(ctx context.Context, id, assigneeID, assigneeFullName string) error {
	if err := s.access.RequirePermission(ctx, authz.EntityDocument, authz.ActionAssign); err != nil {
		return err
	}
	err := s.update(ctx, id, map[string]any{
		"assignee_id":        assigneeID,
		"assignee_full_name": assigneeFullName,
	})
	if err != nil {
		return err
	}
	s.events.Send(outbox.CaseEvent{
		Type:       outbox.DocumentAssigned,
		DocumentID: id,
		Actor:      actor(ctx),
		Payload:    map[string]any{"assigneeId": assigneeID},
	})
	return nil
}

// Unassign clears the assignee.
func (s *Service) Unassign(ctx context.Context, id string) error {
	if err := s.access.RequirePermission(ctx, authz.EntityDocument, authz.ActionAssign); err != nil {
		return err
	}
	err := s.update(ctx, id, map[string]any{
		"assignee_id":        nil,
		"assignee_full_name": nil,
	})
	if err != nil {
		return err
	}
	s.events.Send(outbox.CaseEvent{
		Type:       outbox.DocumentUnassigned,
		DocumentID: id,
		Actor:      actor(ctx),
	})
	return nil
}

// SetInternalStatus moves the document to a status key of its definition's
// vocabulary; nil clears the status.
func (s *Service) SetInternalStatus(ctx context.Context, id string, key *string) error {
	if err := s.access.RequirePermission(ctx, authz.EntityDocument, authz.ActionModify); err != nil {
		return err
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if key != nil {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.DocumentStatus{}).
			Where("definition_name = ? AND key = ?", doc.DefinitionName, *key).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("status %s/%s: %w", doc.DefinitionName, *key, types.ErrNotFound)
		}
	}
	if err := s.update(ctx, id, map[string]any{"internal_status_key": key}); err != nil {
		return err
	}
	s.events.Send(outbox.CaseEvent{
		Type:           outbox.DocumentStatusChanged,
		DefinitionName: doc.DefinitionName,
		DocumentID:     id,
		Actor:          actor(ctx),
		Payload:        map[string]any{"status": key},
	})
	return nil
}

// RemoveAll deletes every document of a definition name, all-or-nothing.
// Removing a name with no documents is a safe no-op.
func (s *Service) RemoveAll(ctx context.Context, definitionName string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// clear assignment references before the rows disappear so any
		// partial failure leaves detached, not dangling, documents
		if err := tx.Model(&models.Document{}).
			Where("definition_name = ?", definitionName).
			Updates(map[string]any{"assignee_id": nil, "assignee_full_name": nil}).Error; err != nil {
			return err
		}
		return tx.Where("definition_name = ?", definitionName).
			Delete(&models.Document{}).Error
	})
}

func (s *Service) update(ctx context.Context, id string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	return nil
}

func actor(ctx context.Context) string {
	if u, ok := authz.UserFrom(ctx); ok {
		return u.ID
	}
	return ""
}
