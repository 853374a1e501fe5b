package models

import (
	"time"
)

// Document is a JSON-content record bound to one definition version, with a
// per-definition-name sequence number used as the human-facing case number.
type Document struct {
	ID                string `gorm:"primaryKey;type:char(36)"`
	DefinitionName    string `gorm:"size:255;not null;index:idx_document_name_sequence,unique"`
	DefinitionVersion int    `gorm:"not null"`
	Content           JSON   `gorm:"not null"`
	Sequence          int64  `gorm:"not null;index:idx_document_name_sequence,unique"`
	CreatedBy         string `gorm:"size:255;not null"`
	CreatedOn         time.Time
	AssigneeID        *string `gorm:"size:255;index"`
	AssigneeFullName  *string `gorm:"size:255"`
	InternalStatusKey *string `gorm:"size:255"`
}

// TableName overrides the table name for Document
func (Document) TableName() string {
	return "document"
}
