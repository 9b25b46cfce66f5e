package extraction

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RawRow is the loosely-typed row shape emitted by the extraction pipelines.
// Numeric fields are declared as any because real extractor output mixes
// numbers, numeric strings, and nulls; Normalize resolves them into the
// canonical CandidateRow types.
type RawRow struct {
	DocumentID     string `json:"documentId"`
	DTMNFR         string `json:"dtmnfr"`
	Orgao          string `json:"orgao"`
	Tipo           any    `json:"tipo"`
	Sigla          string `json:"sigla"`
	Simbolo        string `json:"simbolo"`
	NomeLista      string `json:"nomeLista"`
	NumOrdem       any    `json:"numOrdem"`
	NomeCandidato  string `json:"nomeCandidato"`
	Partido        string `json:"partidoProponente"`
	Independente   any    `json:"independente"`
}

// Defaults carries document-level metadata applied to rows that do not supply
// the corresponding fields themselves.
type Defaults struct {
	DocumentID string
	DTMNFR     string
	Orgao      string
	Sigla      string
	Simbolo    string
	NomeLista  string
	RoleClass  RoleClass
}

// Normalize converts raw extractor rows into canonical candidate rows.
// String fields are trimmed, numeric fields coerced, and ordinals repaired
// with a fresh Sequencer so the output satisfies the uniqueness invariant on
// (document, role class, ordinal). Rows with an empty candidate name are
// dropped, matching the behavior of the upstream parsers.
func Normalize(rows []RawRow, defaults Defaults) []CandidateRow {
	if defaults.RoleClass == 0 {
		defaults.RoleClass = RoleUnspecified
	}

	seq := NewSequencer()
	out := make([]CandidateRow, 0, len(rows))
	for _, raw := range rows {
		name := strings.TrimSpace(raw.NomeCandidato)
		if name == "" {
			continue
		}

		class := RoleClass(coerceInt(raw.Tipo, int(defaults.RoleClass)))
		if class != RoleEffective && class != RoleAlternate {
			class = RoleUnspecified
		}

		row := CandidateRow{
			DocumentID:     pick(raw.DocumentID, defaults.DocumentID),
			DTMNFR:         pick(raw.DTMNFR, defaults.DTMNFR),
			Orgao:          pick(raw.Orgao, defaults.Orgao),
			RoleClass:      class,
			Sigla:          pick(raw.Sigla, defaults.Sigla),
			Simbolo:        pick(raw.Simbolo, defaults.Simbolo),
			NomeLista:      pick(raw.NomeLista, defaults.NomeLista),
			Ordinal:        seq.Next(class, coerceInt(raw.NumOrdem, 0)),
			Name:           name,
			ProposingParty: strings.TrimSpace(raw.Partido),
			Independent:    coerceBool(raw.Independente),
		}
		out = append(out, row)
	}
	return out
}

// DecodeRows reads a JSON array of raw rows, as produced by the extraction
// pipelines' file drops, and normalizes it.
func DecodeRows(r io.Reader, defaults Defaults) ([]CandidateRow, error) {
	var raw []RawRow
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode extraction rows: %w", err)
	}
	return Normalize(raw, defaults), nil
}

func pick(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return strings.TrimSpace(fallback)
}

// coerceInt tolerates numbers, numeric strings, and nil. JSON decoding always
// yields float64 for numbers, so that case comes first.
func coerceInt(value any, fallback int) int {
	switch v := value.(type) {
	case nil:
		return fallback
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fallback
		}
		return n
	default:
		return fallback
	}
}

func coerceBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "1" || s == "true" || s == "sim" || s == "yes"
	default:
		return false
	}
}
