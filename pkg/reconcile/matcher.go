package reconcile

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/opencne/listreview/pkg/extraction"
)

// Matcher joins the two extractors' rows into comparison records, one per
// distinct comparison key present in either collection, and persists them
// through the comparison store with replace-on-write semantics.
type Matcher struct {
	store *ComparisonStore
}

// NewMatcher creates a Matcher backed by the given store.
func NewMatcher(store *ComparisonStore) *Matcher {
	return &Matcher{store: store}
}

// Run matches the rows of one document and replaces its stored comparisons.
// Zero rows on both sides is a valid outcome producing zero comparisons, not
// an error. Rows are expected to be normalized; a duplicate key within one
// extractor's output resolves last-write-wins during indexing.
func (m *Matcher) Run(documentID string, rowsA, rowsB []extraction.CandidateRow) ([]ComparisonRecord, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id is required")
	}

	indexA := indexRows(documentID, rowsA)
	indexB := indexRows(documentID, rowsB)

	keys := mapset.NewThreadUnsafeSet[ComparisonKey]()
	for key := range indexA {
		keys.Add(key)
	}
	for key := range indexB {
		keys.Add(key)
	}

	ordered := keys.ToSlice()
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	records := make([]ComparisonRecord, 0, len(ordered))
	for _, key := range ordered {
		rowA, okA := indexA[key]
		rowB, okB := indexB[key]
		records = append(records, buildRecord(key, rowA, rowB, okA, okB))
	}

	if err := m.store.ReplaceForDocument(documentID, records); err != nil {
		return nil, err
	}
	// Reload so callers see the assigned surrogate ids. The store lists in
	// display order (ordinal first), which interleaves role classes; the run
	// contract is key-ascending, so restore that order here.
	stored, err := m.store.ListByDocument(documentID, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Key().Less(stored[j].Key()) })
	return stored, nil
}

// indexRows builds the key index for one extractor's output. The matcher
// forces every row onto the target document so a stray row cannot leak
// another document's comparisons into this run.
func indexRows(documentID string, rows []extraction.CandidateRow) map[ComparisonKey]extraction.CandidateRow {
	index := make(map[ComparisonKey]extraction.CandidateRow, len(rows))
	for _, row := range rows {
		row.DocumentID = documentID
		index[KeyOf(row)] = row
	}
	return index
}

func buildRecord(key ComparisonKey, rowA, rowB extraction.CandidateRow, okA, okB bool) ComparisonRecord {
	record := ComparisonRecord{
		DocumentID: key.DocumentID,
		Orgao:      key.Orgao,
		RoleClass:  key.RoleClass,
		Ordinal:    key.Ordinal,
		DTMNFR:     key.DTMNFR,
		Sigla:      key.Sigla,
		NomeLista:  key.NomeLista,
		KeyHash:    key.Hash(),
	}

	switch {
	case okA && okB:
		outcome := Compare(rowA, rowB)
		record.Status = outcome.Status
		record.Confidence = outcome.Confidence
		record.Similarity = outcome.Similarity
		record.Distance = outcome.Distance
		record.Snapshot = RowSnapshot{A: &rowA, B: &rowB}
		record.NameA = rowA.Name
		record.NameB = rowB.Name
		record.PartyA = rowA.ProposingParty
		record.PartyB = rowB.ProposingParty
	case okA:
		similarity, distance := NameSimilarity(rowA.Name, "")
		record.Status = StatusMissingFromB
		record.Similarity = similarity
		record.Distance = distance
		record.Snapshot = RowSnapshot{A: &rowA}
		record.NameA = rowA.Name
		record.PartyA = rowA.ProposingParty
	default:
		similarity, distance := NameSimilarity("", rowB.Name)
		record.Status = StatusMissingFromA
		record.Similarity = similarity
		record.Distance = distance
		record.Snapshot = RowSnapshot{B: &rowB}
		record.NameB = rowB.Name
		record.PartyB = rowB.ProposingParty
	}
	return record
}
