// Package reconcile pairs the two extractors' candidate rows into comparison
// records, scores field-level agreement, and persists the results with
// replace-on-write semantics per document.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/opencne/listreview/pkg/extraction"
)

// Status classifies the outcome of comparing one logical candidate row.
type Status string

const (
	StatusAgreement    Status = "agreement"
	StatusDispute      Status = "dispute"
	StatusMissingFromA Status = "missing_from_a"
	StatusMissingFromB Status = "missing_from_b"
)

// ValidStatus reports whether s is one of the recognized comparison statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusAgreement, StatusDispute, StatusMissingFromA, StatusMissingFromB:
		return true
	}
	return false
}

// ComparisonKey is the composite business key identifying one logical
// candidate row. Two rows, one per extractor, sharing an identical key are
// considered the same candidate.
type ComparisonKey struct {
	DocumentID string
	Orgao      string
	RoleClass  extraction.RoleClass
	Ordinal    int
	DTMNFR     string
	Sigla      string
	NomeLista  string
}

// KeyOf derives the comparison key for a normalized candidate row.
func KeyOf(row extraction.CandidateRow) ComparisonKey {
	return ComparisonKey{
		DocumentID: row.DocumentID,
		Orgao:      row.Orgao,
		RoleClass:  row.RoleClass,
		Ordinal:    row.Ordinal,
		DTMNFR:     row.DTMNFR,
		Sigla:      row.Sigla,
		NomeLista:  row.NomeLista,
	}
}

// Less orders keys field by field, matching the document-scoped ascending
// output ordering of the matcher.
func (k ComparisonKey) Less(other ComparisonKey) bool {
	if k.DocumentID != other.DocumentID {
		return k.DocumentID < other.DocumentID
	}
	if k.Orgao != other.Orgao {
		return k.Orgao < other.Orgao
	}
	if k.RoleClass != other.RoleClass {
		return k.RoleClass < other.RoleClass
	}
	if k.Ordinal != other.Ordinal {
		return k.Ordinal < other.Ordinal
	}
	if k.DTMNFR != other.DTMNFR {
		return k.DTMNFR < other.DTMNFR
	}
	if k.Sigla != other.Sigla {
		return k.Sigla < other.Sigla
	}
	return k.NomeLista < other.NomeLista
}

// Hash returns a stable string form of the key. It is persisted alongside
// comparison records and decisions so decisions survive a re-match, which
// regenerates the surrogate comparison ids.
func (k ComparisonKey) Hash() string {
	return strings.Join([]string{
		k.DocumentID,
		k.Orgao,
		fmt.Sprintf("%d", k.RoleClass),
		fmt.Sprintf("%d", k.Ordinal),
		k.DTMNFR,
		k.Sigla,
		k.NomeLista,
	}, "|")
}
