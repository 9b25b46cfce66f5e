package review

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit action tags.
const (
	ActionApproveDocument = "approve_document"
	ActionMarkFailed      = "mark_failed"
)

// AuditStore provides append-only operations for audit entries. There is no
// update or delete: the trail is immutable by construction.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// AutoMigrate creates or updates the audit table.
func (s *AuditStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&AuditEntryRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit_log: %w", err)
	}
	return nil
}

// Append creates a new immutable audit entry.
func (s *AuditStore) Append(entry *AuditEntryRecord) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByDocument returns a document's audit entries, newest first.
func (s *AuditStore) ListByDocument(documentID string) ([]AuditEntryRecord, error) {
	var records []AuditEntryRecord
	err := s.db.Where("document_id = ?", documentID).
		Order("created_at DESC, id DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return records, nil
}
