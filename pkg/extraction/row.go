// Package extraction defines the normalized candidate row contract that both
// extraction pipelines must satisfy before their output enters the
// reconciliation engine. The engine never works on raw extractor output:
// every row is first passed through Normalize, which coerces loosely-typed
// values, trims text fields, and repairs ordinal sequencing.
package extraction

// RoleClass distinguishes effective candidates from alternates within a list.
// The numeric values mirror the TIPO codes used by the upstream pipelines.
type RoleClass int

const (
	RoleUnspecified RoleClass = 1
	RoleEffective   RoleClass = 2
	RoleAlternate   RoleClass = 3
)

// String returns a human-readable label for the role class.
func (c RoleClass) String() string {
	switch c {
	case RoleEffective:
		return "effective"
	case RoleAlternate:
		return "alternate"
	default:
		return "unspecified"
	}
}

// CandidateRow is the canonical shape of one extracted candidate entry.
// Ordinal is 1-based and unique within (document, role class) for a single
// extractor's output; Normalize enforces this via continuity repair.
type CandidateRow struct {
	DocumentID     string    `json:"documentId"`
	DTMNFR         string    `json:"dtmnfr,omitempty"`
	Orgao          string    `json:"orgao,omitempty"`
	RoleClass      RoleClass `json:"tipo"`
	Sigla          string    `json:"sigla,omitempty"`
	Simbolo        string    `json:"simbolo,omitempty"`
	NomeLista      string    `json:"nomeLista,omitempty"`
	Ordinal        int       `json:"numOrdem"`
	Name           string    `json:"nomeCandidato"`
	ProposingParty string    `json:"partidoProponente,omitempty"`
	Independent    bool      `json:"independente"`
}
