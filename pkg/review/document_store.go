package review

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentStore provides persistence for document lifecycle records.
type DocumentStore struct {
	db      *gorm.DB
	machine *LifecycleMachine
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db, machine: NewLifecycleMachine()}
}

// AutoMigrate creates or updates the documents table.
func (s *DocumentStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&DocumentRecord{}); err != nil {
		return fmt.Errorf("auto-migrate documents: %w", err)
	}
	return nil
}

// Create inserts a new document record. A missing ID is assigned and a
// missing status defaults to NEW.
func (s *DocumentStore) Create(record *DocumentRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Status == "" {
		record.Status = StatusNew
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Get retrieves a document by id. Returns nil, nil if no record exists.
func (s *DocumentStore) Get(id string) (*DocumentRecord, error) {
	var record DocumentRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &record, nil
}

// GetByHash retrieves a document by its file hash, used by intake for
// re-ingestion detection. Returns nil, nil if no record exists.
func (s *DocumentStore) GetByHash(hash string) (*DocumentRecord, error) {
	var record DocumentRecord
	err := s.db.Where("file_hash = ?", hash).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by hash: %w", err)
	}
	return &record, nil
}

// List returns all documents, newest first.
func (s *DocumentStore) List() ([]DocumentRecord, error) {
	var records []DocumentRecord
	if err := s.db.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return records, nil
}

// Transition moves a document to a new lifecycle status after validating the
// transition against the machine rules.
func (s *DocumentStore) Transition(id string, to DocumentStatus) error {
	record, err := s.Get(id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err := s.machine.ValidateTransition(record.Status, to); err != nil {
		return err
	}
	if record.Status == to {
		return nil
	}
	err = s.db.Model(&DocumentRecord{}).Where("id = ?", id).
		Update("status", to).Error
	if err != nil {
		return fmt.Errorf("transition document %s to %s: %w", id, to, err)
	}
	return nil
}
