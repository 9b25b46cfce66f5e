package review

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/opencne/listreview/pkg/extraction"
	"github.com/opencne/listreview/pkg/reconcile"
)

// Service is the action surface of the reconciliation and review engine. All
// mutations for one document are serialized behind a per-document lock and
// wrapped in a store transaction, so a crash mid-operation leaves either the
// old or the new state, never a mix. Operations on different documents run in
// parallel.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a Service on the given database handle.
func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// AutoMigrate creates or updates every table the engine owns.
func (s *Service) AutoMigrate() error {
	if err := reconcile.NewComparisonStore(s.db).AutoMigrate(); err != nil {
		return err
	}
	if err := NewDocumentStore(s.db).AutoMigrate(); err != nil {
		return err
	}
	if err := NewDecisionStore(s.db).AutoMigrate(); err != nil {
		return err
	}
	return NewAuditStore(s.db).AutoMigrate()
}

// Documents exposes the document store for intake collaborators.
func (s *Service) Documents() *DocumentStore {
	return NewDocumentStore(s.db)
}

// Audit exposes the audit store for reporting collaborators.
func (s *Service) Audit() *AuditStore {
	return NewAuditStore(s.db)
}

func (s *Service) lockFor(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[documentID] = lock
	}
	return lock
}

// requireEditable loads the document and rejects mutations on approved ones.
func (s *Service) requireEditable(db *gorm.DB, documentID string) (*DocumentRecord, error) {
	doc, err := NewDocumentStore(db).Get(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if doc.Status == StatusApproved {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrDocumentLocked)
	}
	return doc, nil
}

// RunMatch recomputes a document's comparisons from fresh extraction output.
// Prior comparison records are replaced wholesale; decisions are re-associated
// with the regenerated records by stable comparison key, and decisions whose
// key no longer exists are flagged orphaned rather than deleted. Zero rows is
// a valid, reportable outcome.
func (s *Service) RunMatch(documentID string, rowsA, rowsB []extraction.CandidateRow) ([]reconcile.ComparisonRecord, error) {
	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	var records []reconcile.ComparisonRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.requireEditable(tx, documentID); err != nil {
			return err
		}
		matched, err := reconcile.NewMatcher(reconcile.NewComparisonStore(tx)).Run(documentID, rowsA, rowsB)
		if err != nil {
			return err
		}
		if err := NewDecisionStore(tx).ReassociateForDocument(documentID); err != nil {
			return err
		}
		records = matched
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match run complete",
		"documentId", documentID,
		"rowsA", len(rowsA),
		"rowsB", len(rowsB),
		"comparisons", len(records),
	)
	return records, nil
}

// ComparisonWithDecision pairs a comparison record with its decision, if any.
// A present decision logically overrides the computed status for export.
type ComparisonWithDecision struct {
	Comparison reconcile.ComparisonRecord `json:"comparison"`
	Decision   *DecisionRecord            `json:"decision,omitempty"`
}

// FetchComparisons returns a document's comparisons joined with their
// decisions, optionally narrowed by status and by a filter expression
// (see reconcile.CompileFilter).
func (s *Service) FetchComparisons(documentID string, status reconcile.Status, filterExpr string) ([]ComparisonWithDecision, error) {
	if status != "" && !reconcile.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	predicate, err := reconcile.CompileFilter(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	doc, err := NewDocumentStore(s.db).Get(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}

	comparisons, err := reconcile.NewComparisonStore(s.db).ListByDocument(documentID, status)
	if err != nil {
		return nil, err
	}
	decisions, err := NewDecisionStore(s.db).ListByDocument(documentID, false)
	if err != nil {
		return nil, err
	}
	byComparison := make(map[uint64]*DecisionRecord, len(decisions))
	for i := range decisions {
		byComparison[decisions[i].ComparisonID] = &decisions[i]
	}

	out := make([]ComparisonWithDecision, 0, len(comparisons))
	for i := range comparisons {
		if !predicate(&comparisons[i]) {
			continue
		}
		out = append(out, ComparisonWithDecision{
			Comparison: comparisons[i],
			Decision:   byComparison[comparisons[i].ID],
		})
	}
	return out, nil
}

// RecordDecision upserts the reviewer's decision for one comparison. It fails
// with ErrDocumentLocked on approved documents and ErrInvalidSource on an
// unrecognized selected-source tag; re-submitting overwrites the prior
// decision and timestamp.
func (s *Service) RecordDecision(comparisonID uint64, documentID string, source SelectedSource, finalValue, comment, reviewer string) (*DecisionRecord, error) {
	if !ValidSource(source) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	var record *DecisionRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.requireEditable(tx, documentID); err != nil {
			return err
		}
		cmp, err := reconcile.NewComparisonStore(tx).GetByID(comparisonID)
		if err != nil {
			return err
		}
		if cmp == nil {
			return fmt.Errorf("comparison %d: %w", comparisonID, ErrNotFound)
		}
		if cmp.DocumentID != documentID {
			return fmt.Errorf("%w: comparison %d belongs to document %s",
				ErrDataIntegrity, comparisonID, cmp.DocumentID)
		}

		record = &DecisionRecord{
			ComparisonID: comparisonID,
			DocumentID:   documentID,
			KeyHash:      cmp.KeyHash,
			Source:       source,
			FinalValue:   finalValue,
			Comment:      comment,
			Reviewer:     reviewer,
			DecidedAt:    time.Now().UTC(),
		}
		return NewDecisionStore(tx).Upsert(record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// BulkAcceptAgreements creates an accepted_agreement decision for every
// undecided agreement comparison of the document and returns the number of
// decisions created. A second call with no intervening changes returns zero.
func (s *Service) BulkAcceptAgreements(documentID string) (int, error) {
	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	var created int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.requireEditable(tx, documentID); err != nil {
			return err
		}
		n, err := NewDecisionStore(tx).InsertAgreementDecisions(documentID)
		if err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("bulk accept complete", "documentId", documentID, "created", created)
	return created, nil
}

// ApproveDocument irreversibly freezes a document's decisions. The status
// update and the audit entry are written in one transaction. Approving twice
// fails with ErrAlreadyApproved; approval is not an idempotent no-op.
func (s *Service) ApproveDocument(documentID, approverID, summary string) error {
	if isBlank(approverID) {
		return fmt.Errorf("%w: approver id is required", ErrValidation)
	}

	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		doc, err := NewDocumentStore(tx).Get(documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("document %s: %w", documentID, ErrNotFound)
		}
		if doc.Status == StatusApproved {
			return fmt.Errorf("document %s: %w", documentID, ErrAlreadyApproved)
		}

		now := time.Now().UTC()
		err = tx.Model(&DocumentRecord{}).Where("id = ?", documentID).
			Updates(map[string]any{"status": StatusApproved, "approved_at": &now}).Error
		if err != nil {
			return fmt.Errorf("approve document %s: %w", documentID, err)
		}

		return NewAuditStore(tx).Append(&AuditEntryRecord{
			DocumentID: documentID,
			ActorID:    strings.TrimSpace(approverID),
			Action:     ActionApproveDocument,
			Summary:    summary,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("document approved", "documentId", documentID, "approver", strings.TrimSpace(approverID))
	return nil
}

// MarkFailed moves a document to the FAILED terminal state and records the
// reason in the audit trail.
func (s *Service) MarkFailed(documentID, actorID, reason string) error {
	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := NewDocumentStore(tx).Transition(documentID, StatusFailed); err != nil {
			return err
		}
		return NewAuditStore(tx).Append(&AuditEntryRecord{
			DocumentID: documentID,
			ActorID:    actorID,
			Action:     ActionMarkFailed,
			Summary:    reason,
		})
	})
}

// DisputeSummary describes a document that still contains disputes.
// LatestActivity stays a string because it comes out of an aggregate
// expression, which loses the column's time affinity on SQLite.
type DisputeSummary struct {
	DocumentID     string `json:"documentId"`
	FileName       string `json:"fileName"`
	DocumentStatus string `json:"documentStatus"`
	DisputeCount   int64  `json:"disputeCount"`
	LatestActivity string `json:"latestActivity"`
}

// ListDocumentsWithDisputes summarizes documents that still have dispute
// comparisons, most recently active first.
func (s *Service) ListDocumentsWithDisputes() ([]DisputeSummary, error) {
	var summaries []DisputeSummary
	err := s.db.Model(&reconcile.ComparisonRecord{}).
		Select(`candidate_comparisons.document_id as document_id,
			COALESCE(documents.file_name, '') as file_name,
			COALESCE(documents.status, 'MISSING') as document_status,
			COUNT(*) as dispute_count,
			MAX(candidate_comparisons.created_at) as latest_activity`).
		Joins("LEFT JOIN documents ON documents.id = candidate_comparisons.document_id").
		Where("candidate_comparisons.status = ?", reconcile.StatusDispute).
		Group("candidate_comparisons.document_id, documents.file_name, documents.status").
		Order("latest_activity DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("list documents with disputes: %w", err)
	}
	return summaries, nil
}

// ListOrphanedDecisions returns decisions stranded by matcher re-runs.
func (s *Service) ListOrphanedDecisions(documentID string) ([]DecisionRecord, error) {
	return NewDecisionStore(s.db).ListOrphaned(documentID)
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
