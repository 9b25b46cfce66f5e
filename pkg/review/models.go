package review

import (
	"time"
)

// SelectedSource identifies whose value a reviewer decision adopted.
type SelectedSource string

const (
	SourceExtractorA SelectedSource = "extractor_a"
	SourceExtractorB SelectedSource = "extractor_b"
	SourceManual     SelectedSource = "manual"
	// SourceAcceptedAgreement marks decisions created by bulk-accepting
	// agreement rows; no reviewer is attached.
	SourceAcceptedAgreement SelectedSource = "accepted_agreement"
)

// ValidSource reports whether s is one of the four recognized tags.
func ValidSource(s SelectedSource) bool {
	switch s {
	case SourceExtractorA, SourceExtractorB, SourceManual, SourceAcceptedAgreement:
		return true
	}
	return false
}

// DecisionRecord stores one reviewer (or bulk-accept) decision. Exactly one
// decision may exist per comparison; re-submitting overwrites the prior
// fields and timestamp. KeyHash mirrors the owning comparison's stable key so
// the decision can be re-associated after a matcher re-run regenerates
// surrogate comparison ids; decisions whose key vanished are flagged
// Orphaned instead of deleted.
type DecisionRecord struct {
	ID           string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	ComparisonID uint64         `gorm:"column:comparison_id;uniqueIndex:idx_decision_comparison;not null"`
	DocumentID   string         `gorm:"column:document_id;index:idx_decision_document;not null"`
	KeyHash      string         `gorm:"column:key_hash;not null"`
	Source       SelectedSource `gorm:"column:selected_source;not null"`
	FinalValue   string         `gorm:"column:final_value"`
	Comment      string         `gorm:"column:comment"`
	Reviewer     string         `gorm:"column:reviewer"`
	Orphaned     bool           `gorm:"column:orphaned;not null;default:false"`
	DecidedAt    time.Time      `gorm:"column:decided_at;not null"`
}

// TableName returns the GORM table name.
func (DecisionRecord) TableName() string { return "review_decisions" }

// DocumentRecord tracks one source document through its lifecycle. File
// metadata is recorded by the intake side; the review engine only reads it.
type DocumentRecord struct {
	ID           string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	FileName     string         `gorm:"column:file_name"`
	FileHash     string         `gorm:"column:file_hash;index"`
	FileSize     int64          `gorm:"column:file_size"`
	DetectedType string         `gorm:"column:detected_type"`
	Status       DocumentStatus `gorm:"column:status;not null;default:NEW"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	ApprovedAt   *time.Time     `gorm:"column:approved_at"`
}

// TableName returns the GORM table name.
func (DocumentRecord) TableName() string { return "documents" }

// AuditEntryRecord is an immutable audit log entry for a lifecycle-changing
// action. Entries are only ever appended.
type AuditEntryRecord struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	DocumentID string    `gorm:"column:document_id;index:idx_audit_document;not null"`
	ActorID    string    `gorm:"column:actor_id;not null"`
	Action     string    `gorm:"column:action;not null"`
	Summary    string    `gorm:"column:summary"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (AuditEntryRecord) TableName() string { return "audit_log" }
