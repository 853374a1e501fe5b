package models

// SequenceRecord holds the monotonic case-number counter for one definition
// name. Created lazily on the first allocation, removed on undeploy.
type SequenceRecord struct {
	DefinitionName string `gorm:"primaryKey;size:255"`
	Sequence       int64  `gorm:"not null;default:0"`
}

// TableName overrides the table name for SequenceRecord
func (SequenceRecord) TableName() string {
	return "document_definition_sequence"
}
