package models

import (
	"fmt"
	"time"
)

// DocumentDefinition is one immutable version of a named JSON schema.
// The schema content of a stored (name, version) pair never changes;
// a content change is promoted to a new version instead.
type DocumentDefinition struct {
	Name      string `gorm:"primaryKey;size:255"`
	Version   int    `gorm:"primaryKey"`
	Schema    JSON   `gorm:"not null"`
	ReadOnly  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// DocumentDefinitionRole grants a role access to all versions of a definition.
// The set is replaced wholesale on update, never merged.
type DocumentDefinitionRole struct {
	DefinitionName string `gorm:"primaryKey;size:255"`
	Role           string `gorm:"primaryKey;size:255"`
}

// DocumentStatus is one entry of the per-definition ordered status
// vocabulary. SortOrder drives status sorting in search results.
type DocumentStatus struct {
	DefinitionName string `gorm:"primaryKey;size:255"`
	Key            string `gorm:"primaryKey;size:255"`
	Title          string `gorm:"size:255;not null"`
	SortOrder      int    `gorm:"not null;default:0"`
	Visible        bool   `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DefinitionID renders the composite identity as "name:version".
func (d *DocumentDefinition) DefinitionID() string {
	return fmt.Sprintf("%s:%d", d.Name, d.Version)
}

// TableName overrides the table name for DocumentDefinition
func (DocumentDefinition) TableName() string {
	return "document_definition"
}

// TableName overrides the table name for DocumentDefinitionRole
func (DocumentDefinitionRole) TableName() string {
	return "document_definition_role"
}

// TableName overrides the table name for DocumentStatus
func (DocumentStatus) TableName() string {
	return "document_definition_status"
}
