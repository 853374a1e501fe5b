// Package sequence issues the strictly increasing per-definition-name case
// numbers. Allocation runs in its own independently committed transaction so
// a failing caller never burns a value visible to others, and retries with
// bounded backoff under contention before surfacing a fatal error.
package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/localnerve/casedocs/internal/models"
	"github.com/localnerve/casedocs/internal/types"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	maxRetries  = 5
	baseBackoff = 20 * time.Millisecond
	maxBackoff  = 250 * time.Millisecond
)

// Allocator hands out sequence numbers. It holds the root database handle:
// allocation is never nested inside a caller's transaction.
type Allocator struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAllocator creates an allocator on the root database handle.
func NewAllocator(db *gorm.DB, log *zap.Logger) *Allocator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{db: db, logger: log}
}

// Next returns the next sequence value for a definition name, starting at 1
// for a name never seen before. Exhausting the retry budget returns
// types.ErrContention; a duplicate or zero value is never returned.
func (a *Allocator) Next(ctx context.Context, definitionName string) (int64, error) {
	var value int64
	backoff := retry.WithCappedDuration(maxBackoff,
		retry.WithMaxRetries(maxRetries, retry.NewExponential(baseBackoff)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := a.allocate(ctx, definitionName)
		if err != nil {
			if isContention(err) {
				a.logger.Debug("sequence allocation conflict, retrying",
					zap.String("definition", definitionName), zap.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		if isContention(err) {
			return 0, fmt.Errorf("%w for %q: %v", types.ErrContention, definitionName, err)
		}
		return 0, err
	}
	return value, nil
}

// allocate performs one read-increment-write attempt under serializable
// isolation (row locking where the engine prefers it).
func (a *Allocator) allocate(ctx context.Context, definitionName string) (int64, error) {
	var value int64
	session := a.db.WithContext(ctx).Session(&gorm.Session{Logger: a.db.Logger.LogMode(logger.Silent)})

	err := session.Transaction(func(tx *gorm.DB) error {
		var rec models.SequenceRecord
		query := tx.Where("definition_name = ?", definitionName)
		// sqlite has no row locks; its transactions serialize on their own
		if a.db.Dialector.Name() != "sqlite" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := query.First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = models.SequenceRecord{DefinitionName: definitionName, Sequence: 1}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			rec.Sequence++
			result := tx.Model(&models.SequenceRecord{}).
				Where("definition_name = ?", definitionName).
				Update("sequence", rec.Sequence)
			if result.Error != nil {
				return result.Error
			}
		}
		value = rec.Sequence
		return nil
	}, a.txOptions())

	return value, err
}

// txOptions requests serializable isolation where the engine supports
// selecting it; sqlite transactions are serializable already.
func (a *Allocator) txOptions() *sql.TxOptions {
	if a.db.Dialector.Name() == "sqlite" {
		return &sql.TxOptions{}
	}
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

// Delete removes the counter for a definition name entirely. Used only as
// part of full definition undeploy; deleting an absent counter is a no-op.
func (a *Allocator) Delete(ctx context.Context, definitionName string) error {
	return a.db.WithContext(ctx).
		Where("definition_name = ?", definitionName).
		Delete(&models.SequenceRecord{}).Error
}

// isContention classifies engine-specific lock, serialization and racing
// insert failures as retryable.
func isContention(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"deadlock",
		"could not serialize",
		"serialization",
		"lock wait timeout",
		"database is locked",
		"database table is locked",
		"busy",
		"duplicate",
		"unique",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
