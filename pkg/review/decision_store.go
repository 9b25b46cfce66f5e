package review

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opencne/listreview/pkg/reconcile"
)

// DecisionStore provides persistence for reviewer decisions. Pass a
// transaction-scoped *gorm.DB to compose store operations into a larger
// atomic unit; approval gating lives in the service layer, not here.
type DecisionStore struct {
	db *gorm.DB
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(db *gorm.DB) *DecisionStore {
	return &DecisionStore{db: db}
}

// AutoMigrate creates or updates the decisions table.
func (s *DecisionStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&DecisionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate review_decisions: %w", err)
	}
	return nil
}

// Upsert records a decision, overwriting any prior decision for the same
// comparison. The conflict is resolved on the comparison_id unique index.
func (s *DecisionStore) Upsert(record *DecisionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.DecidedAt.IsZero() {
		record.DecidedAt = time.Now().UTC()
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "comparison_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"document_id", "key_hash", "selected_source",
			"final_value", "comment", "reviewer", "orphaned", "decided_at",
		}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("upsert decision: %w", err)
	}
	return nil
}

// GetByComparisonID retrieves the decision for a comparison. Returns nil, nil
// if none exists.
func (s *DecisionStore) GetByComparisonID(comparisonID uint64) (*DecisionRecord, error) {
	var record DecisionRecord
	err := s.db.Where("comparison_id = ?", comparisonID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return &record, nil
}

// ListByDocument returns a document's decisions. Orphaned decisions, whose
// comparison key vanished in a re-match, are excluded unless requested.
func (s *DecisionStore) ListByDocument(documentID string, includeOrphaned bool) ([]DecisionRecord, error) {
	query := s.db.Where("document_id = ?", documentID)
	if !includeOrphaned {
		query = query.Where("orphaned = ?", false)
	}
	var records []DecisionRecord
	if err := query.Order("decided_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return records, nil
}

// ListOrphaned returns the decisions stranded by matcher re-runs for a
// document.
func (s *DecisionStore) ListOrphaned(documentID string) ([]DecisionRecord, error) {
	var records []DecisionRecord
	err := s.db.Where("document_id = ? AND orphaned = ?", documentID, true).
		Order("decided_at ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list orphaned decisions: %w", err)
	}
	return records, nil
}

// InsertAgreementDecisions creates an accepted_agreement decision for every
// agreement comparison of the document lacking one. The final value prefers
// extractor A's name, then extractor B's. The insert ignores conflicts on
// comparison_id, so a repeated call creates zero rows: idempotence holds
// exactly.
func (s *DecisionStore) InsertAgreementDecisions(documentID string) (int, error) {
	var created int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var agreements []reconcile.ComparisonRecord
		err := tx.Where("document_id = ? AND status = ?", documentID, reconcile.StatusAgreement).
			Where("id NOT IN (?)",
				tx.Model(&DecisionRecord{}).Select("comparison_id").Where("document_id = ?", documentID)).
			Order("id ASC").
			Find(&agreements).Error
		if err != nil {
			return fmt.Errorf("select undecided agreements: %w", err)
		}
		if len(agreements) == 0 {
			return nil
		}

		now := time.Now().UTC()
		decisions := make([]DecisionRecord, 0, len(agreements))
		for _, cmp := range agreements {
			finalValue := ""
			if cmp.Snapshot.A != nil {
				finalValue = cmp.Snapshot.A.Name
			}
			if finalValue == "" && cmp.Snapshot.B != nil {
				finalValue = cmp.Snapshot.B.Name
			}
			decisions = append(decisions, DecisionRecord{
				ID:           uuid.New().String(),
				ComparisonID: cmp.ID,
				DocumentID:   documentID,
				KeyHash:      cmp.KeyHash,
				Source:       SourceAcceptedAgreement,
				FinalValue:   finalValue,
				DecidedAt:    now,
			})
		}

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comparison_id"}},
			DoNothing: true,
		}).Create(&decisions)
		if result.Error != nil {
			return fmt.Errorf("insert agreement decisions: %w", result.Error)
		}
		created = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// ReassociateForDocument re-points decisions at the regenerated comparison
// records after a matcher re-run. Decisions whose stable key still yields a
// comparison adopt its new surrogate id; the rest are flagged orphaned.
func (s *DecisionStore) ReassociateForDocument(documentID string) error {
	comparisons := reconcile.NewComparisonStore(s.db)

	var decisions []DecisionRecord
	if err := s.db.Where("document_id = ?", documentID).Find(&decisions).Error; err != nil {
		return fmt.Errorf("load decisions for reassociation: %w", err)
	}

	for _, decision := range decisions {
		cmp, err := comparisons.GetByKeyHash(documentID, decision.KeyHash)
		if err != nil {
			return err
		}
		updates := map[string]any{"orphaned": cmp == nil}
		if cmp != nil {
			updates["comparison_id"] = cmp.ID
		}
		err = s.db.Model(&DecisionRecord{}).Where("id = ?", decision.ID).
			Updates(updates).Error
		if err != nil {
			return fmt.Errorf("reassociate decision %s: %w", decision.ID, err)
		}
	}
	return nil
}
