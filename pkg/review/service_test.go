package review

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opencne/listreview/pkg/extraction"
	"github.com/opencne/listreview/pkg/reconcile"
)

// newTestService creates a Service on an in-memory SQLite DB with all tables
// migrated and one document seeded.
func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	svc := NewService(db, nil)
	require.NoError(t, svc.AutoMigrate())
	require.NoError(t, svc.Documents().Create(&DocumentRecord{
		ID:       "doc-1",
		FileName: "lists.pdf",
		Status:   StatusProcessed,
	}))
	return svc
}

func svcRow(name string, ordinal int) extraction.CandidateRow {
	return extraction.CandidateRow{
		DocumentID:     "doc-1",
		Orgao:          "Conselho",
		RoleClass:      extraction.RoleEffective,
		Sigla:          "CNE",
		NomeLista:      "Lista Única",
		Ordinal:        ordinal,
		Name:           name,
		ProposingParty: "Blue Party",
	}
}

func TestService_RunMatch(t *testing.T) {
	svc := newTestService(t)

	records, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Ana Souza", 1), svcRow("Bruno Lima", 2)},
		[]extraction.CandidateRow{svcRow("Ana Souza", 1), svcRow("Bruna Lima", 2)},
	)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, reconcile.StatusAgreement, records[0].Status)
	assert.Equal(t, reconcile.StatusDispute, records[1].Status)
}

func TestService_RunMatchUnknownDocument(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RunMatch("nope", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RunMatchEmptyIsValid(t *testing.T) {
	svc := newTestService(t)

	records, err := svc.RunMatch("doc-1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestService_BulkAcceptIdempotent(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Ana Souza", 1), svcRow("Bruno Lima", 2)},
		[]extraction.CandidateRow{svcRow("Ana Souza", 1), svcRow("Bruna Lima", 2)},
	)
	require.NoError(t, err)

	created, err := svc.BulkAcceptAgreements("doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// Second run with no intervening changes creates nothing.
	created, err = svc.BulkAcceptAgreements("doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	items, err := svc.FetchComparisons("doc-1", reconcile.StatusAgreement, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Decision)
	assert.Equal(t, SourceAcceptedAgreement, items[0].Decision.Source)
	assert.Equal(t, "Ana Souza", items[0].Decision.FinalValue)
}

func TestService_RecordDecisionUpsert(t *testing.T) {
	svc := newTestService(t)

	records, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Bruno Lima", 1)},
		[]extraction.CandidateRow{svcRow("Bruna Lima", 1)},
	)
	require.NoError(t, err)
	require.Len(t, records, 1)

	first, err := svc.RecordDecision(records[0].ID, "doc-1", SourceExtractorA, "Bruno Lima", "", "ana")
	require.NoError(t, err)

	second, err := svc.RecordDecision(records[0].ID, "doc-1", SourceManual, "Bruno H. Lima", "typo fix", "rui")
	require.NoError(t, err)
	assert.True(t, second.DecidedAt.After(first.DecidedAt) || second.DecidedAt.Equal(first.DecidedAt))

	stored, err := NewDecisionStore(svc.db).GetByComparisonID(records[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, SourceManual, stored.Source)
	assert.Equal(t, "Bruno H. Lima", stored.FinalValue)
	assert.Equal(t, "rui", stored.Reviewer)

	var count int64
	require.NoError(t, svc.db.Model(&DecisionRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestService_RecordDecisionInvalidSource(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RecordDecision(1, "doc-1", "extractor_c", "", "", "ana")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestService_RecordDecisionUnknownComparison(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RecordDecision(999, "doc-1", SourceManual, "x", "", "ana")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RecordDecisionWrongDocument(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Documents().Create(&DocumentRecord{ID: "doc-2", Status: StatusProcessed}))

	records, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Ana Souza", 1)},
		[]extraction.CandidateRow{svcRow("Ana Souza", 1)},
	)
	require.NoError(t, err)

	_, err = svc.RecordDecision(records[0].ID, "doc-2", SourceManual, "x", "", "ana")
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestService_ApproveLocksDocument(t *testing.T) {
	svc := newTestService(t)

	records, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Ana Souza", 1)},
		[]extraction.CandidateRow{svcRow("Ana Souza", 1)},
	)
	require.NoError(t, err)

	require.NoError(t, svc.ApproveDocument("doc-1", "lead", "all set"))

	doc, err := svc.Documents().Get("doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, doc.Status)
	require.NotNil(t, doc.ApprovedAt)

	// Every mutation is rejected once the document is approved.
	_, err = svc.RecordDecision(records[0].ID, "doc-1", SourceManual, "x", "", "ana")
	assert.ErrorIs(t, err, ErrDocumentLocked)

	_, err = svc.BulkAcceptAgreements("doc-1")
	assert.ErrorIs(t, err, ErrDocumentLocked)

	_, err = svc.RunMatch("doc-1", nil, nil)
	assert.ErrorIs(t, err, ErrDocumentLocked)
}

func TestService_ApproveTwiceFails(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.ApproveDocument("doc-1", "lead", "first"))
	err := svc.ApproveDocument("doc-1", "lead", "second")
	assert.ErrorIs(t, err, ErrAlreadyApproved)

	// Exactly one audit entry for the single successful approval.
	entries, err := svc.Audit().ListByDocument("doc-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionApproveDocument, entries[0].Action)
	assert.Equal(t, "lead", entries[0].ActorID)
	assert.Equal(t, "first", entries[0].Summary)
}

func TestService_ApproveValidation(t *testing.T) {
	svc := newTestService(t)

	err := svc.ApproveDocument("doc-1", "   ", "summary")
	assert.ErrorIs(t, err, ErrValidation)

	err = svc.ApproveDocument("missing", "lead", "summary")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ReassociateDecisionsAcrossRematch(t *testing.T) {
	svc := newTestService(t)

	records, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Bruno Lima", 1), svcRow("Carla Dias", 2)},
		[]extraction.CandidateRow{svcRow("Bruna Lima", 1), svcRow("Carla Dias", 2)},
	)
	require.NoError(t, err)
	require.Len(t, records, 2)

	decision, err := svc.RecordDecision(records[0].ID, "doc-1", SourceExtractorA, "Bruno Lima", "", "ana")
	require.NoError(t, err)

	// Same rows again: ids regenerate, the decision follows its key.
	rematched, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Bruno Lima", 1), svcRow("Carla Dias", 2)},
		[]extraction.CandidateRow{svcRow("Bruna Lima", 1), svcRow("Carla Dias", 2)},
	)
	require.NoError(t, err)

	stored, err := NewDecisionStore(svc.db).GetByComparisonID(rematched[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, decision.ID, stored.ID)
	assert.False(t, stored.Orphaned)

	// Rows at ordinal 1 removed: the decision's key vanishes and it is
	// flagged orphaned, never deleted.
	_, err = svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Carla Dias", 2)},
		[]extraction.CandidateRow{svcRow("Carla Dias", 2)},
	)
	require.NoError(t, err)

	orphans, err := svc.ListOrphanedDecisions("doc-1")
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, decision.ID, orphans[0].ID)
}

func TestService_FetchComparisonsFilters(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Ana Souza", 1), svcRow("Bruno Lima", 2)},
		[]extraction.CandidateRow{svcRow("Ana Souza", 1), svcRow("Bruna Lima", 2)},
	)
	require.NoError(t, err)

	all, err := svc.FetchComparisons("doc-1", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	disputes, err := svc.FetchComparisons("doc-1", reconcile.StatusDispute, "")
	require.NoError(t, err)
	assert.Len(t, disputes, 1)

	filtered, err := svc.FetchComparisons("doc-1", "", "similarity < 1 and ordinal > 1")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, reconcile.StatusDispute, filtered[0].Comparison.Status)

	_, err = svc.FetchComparisons("doc-1", "bogus", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.FetchComparisons("doc-1", "", "similarity ~ 1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_MarkFailed(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.MarkFailed("doc-1", "pipeline", "ocr decode error"))

	doc, err := svc.Documents().Get("doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, doc.Status)

	entries, err := svc.Audit().ListByDocument("doc-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionMarkFailed, entries[0].Action)
	assert.Equal(t, "ocr decode error", entries[0].Summary)
}

func TestService_ListDocumentsWithDisputes(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RunMatch("doc-1",
		[]extraction.CandidateRow{svcRow("Bruno Lima", 1)},
		[]extraction.CandidateRow{svcRow("Bruna Lima", 1)},
	)
	require.NoError(t, err)

	summaries, err := svc.ListDocumentsWithDisputes()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "doc-1", summaries[0].DocumentID)
	assert.Equal(t, "lists.pdf", summaries[0].FileName)
	assert.Equal(t, int64(1), summaries[0].DisputeCount)
}
