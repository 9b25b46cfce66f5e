package reconcile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencne/listreview/pkg/extraction"
)

// RowSnapshot captures both source rows of a comparison. It is a typed
// structure used throughout the engine and serialized as JSON only at the
// storage boundary.
type RowSnapshot struct {
	A *extraction.CandidateRow `json:"extractorA,omitempty"`
	B *extraction.CandidateRow `json:"extractorB,omitempty"`
}

// Scan implements the sql.Scanner interface for RowSnapshot.
func (s *RowSnapshot) Scan(value any) error {
	if value == nil {
		*s = RowSnapshot{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for RowSnapshot: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for RowSnapshot.
func (s RowSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ComparisonRecord is the persisted outcome of comparing one logical
// candidate row across the two extractions. Records are replaced wholesale
// every time the matcher runs for a document; KeyHash is the stable identity
// that outlives the surrogate ID across re-runs.
type ComparisonRecord struct {
	ID         uint64               `gorm:"primaryKey;autoIncrement;column:id"`
	DocumentID string               `gorm:"column:document_id;index:idx_cmp_document,priority:1;uniqueIndex:idx_cmp_key_hash,priority:1;not null"`
	Orgao      string               `gorm:"column:orgao"`
	RoleClass  extraction.RoleClass `gorm:"column:tipo"`
	Ordinal    int                  `gorm:"column:num_ordem"`
	DTMNFR     string               `gorm:"column:dtmnfr"`
	Sigla      string               `gorm:"column:sigla"`
	NomeLista  string               `gorm:"column:nome_lista"`
	KeyHash    string               `gorm:"column:key_hash;uniqueIndex:idx_cmp_key_hash,priority:2;not null"`
	NameA      string               `gorm:"column:nome_a"`
	NameB      string               `gorm:"column:nome_b"`
	PartyA     string               `gorm:"column:partido_a"`
	PartyB     string               `gorm:"column:partido_b"`
	Status     Status               `gorm:"column:status;index:idx_cmp_document,priority:2;not null"`
	Confidence float64              `gorm:"column:confidence;not null"`
	Similarity float64              `gorm:"column:similarity;not null"`
	Distance   int                  `gorm:"column:distance;not null"`
	Snapshot   RowSnapshot          `gorm:"column:payload;type:text"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (ComparisonRecord) TableName() string { return "candidate_comparisons" }

// Key reconstructs the comparison key from the persisted columns.
func (r *ComparisonRecord) Key() ComparisonKey {
	return ComparisonKey{
		DocumentID: r.DocumentID,
		Orgao:      r.Orgao,
		RoleClass:  r.RoleClass,
		Ordinal:    r.Ordinal,
		DTMNFR:     r.DTMNFR,
		Sigla:      r.Sigla,
		NomeLista:  r.NomeLista,
	}
}
