package reconcile

import (
	"fmt"

	"gorm.io/gorm"
)

// ComparisonStore provides persistence for comparison records. Pass a
// transaction-scoped *gorm.DB to compose store operations into a larger
// atomic unit.
type ComparisonStore struct {
	db *gorm.DB
}

// NewComparisonStore creates a new ComparisonStore.
func NewComparisonStore(db *gorm.DB) *ComparisonStore {
	return &ComparisonStore{db: db}
}

// AutoMigrate creates or updates the comparison table.
func (s *ComparisonStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ComparisonRecord{}); err != nil {
		return fmt.Errorf("auto-migrate candidate_comparisons: %w", err)
	}
	return nil
}

// ReplaceForDocument atomically deletes all prior comparison records for the
// document and inserts the new set. A matcher re-run therefore fully
// supersedes earlier results instead of accumulating next to them.
func (s *ComparisonStore) ReplaceForDocument(documentID string, records []ComparisonRecord) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&ComparisonRecord{}).Error; err != nil {
			return fmt.Errorf("delete prior comparisons: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("insert comparisons: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace comparisons for document %s: %w", documentID, err)
	}
	return nil
}

// ListByDocument returns a document's comparison records, optionally filtered
// by status, in stable display order: ordinal with nulls last, then
// insertion id.
func (s *ComparisonStore) ListByDocument(documentID string, status Status) ([]ComparisonRecord, error) {
	query := s.db.Where("document_id = ?", documentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var records []ComparisonRecord
	err := query.Order("num_ordem IS NULL, num_ordem, id").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}
	return records, nil
}

// GetByID retrieves a single comparison record. Returns nil, nil when no
// record exists.
func (s *ComparisonStore) GetByID(id uint64) (*ComparisonRecord, error) {
	var record ComparisonRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get comparison %d: %w", id, err)
	}
	return &record, nil
}

// GetByKeyHash retrieves the comparison record for a stable key hash within a
// document. Returns nil, nil when no record exists.
func (s *ComparisonStore) GetByKeyHash(documentID, keyHash string) (*ComparisonRecord, error) {
	var record ComparisonRecord
	err := s.db.Where("document_id = ? AND key_hash = ?", documentID, keyHash).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get comparison by key: %w", err)
	}
	return &record, nil
}

// CountByStatus returns the number of comparison records per status for a
// document.
func (s *ComparisonStore) CountByStatus(documentID string) (map[Status]int64, error) {
	type row struct {
		Status Status
		N      int64
	}
	var rows []row
	err := s.db.Model(&ComparisonRecord{}).
		Select("status, count(*) as n").
		Where("document_id = ?", documentID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count comparisons by status: %w", err)
	}

	counts := make(map[Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
