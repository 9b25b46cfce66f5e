package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_ContinuityRepair(t *testing.T) {
	seq := NewSequencer()

	// Well-formed parse: accepted as-is.
	assert.Equal(t, 1, seq.Next(RoleEffective, 1))
	assert.Equal(t, 2, seq.Next(RoleEffective, 2))

	// Missing ordinal: last+1.
	assert.Equal(t, 3, seq.Next(RoleEffective, 0))

	// Not strictly greater than last: last+1.
	assert.Equal(t, 4, seq.Next(RoleEffective, 2))

	// Gaps are tolerated and advance the counter.
	assert.Equal(t, 9, seq.Next(RoleEffective, 9))
	assert.Equal(t, 10, seq.Next(RoleEffective, 3))

	// Role classes keep independent counters.
	assert.Equal(t, 1, seq.Next(RoleAlternate, 0))
	assert.Equal(t, 2, seq.Next(RoleAlternate, 1))
}

func TestNormalize(t *testing.T) {
	rows := []RawRow{
		{NomeCandidato: "  Ana Souza ", Tipo: float64(2), NumOrdem: "1", Partido: "Partido Azul", Independente: float64(0)},
		{NomeCandidato: "Bruno Lima", Tipo: 2, NumOrdem: nil, Independente: "sim"},
		{NomeCandidato: "", Tipo: 2, NumOrdem: 3}, // dropped: no name
		{NomeCandidato: "Carla Dias", Tipo: "3", NumOrdem: "not-a-number"},
	}

	out := Normalize(rows, Defaults{
		DocumentID: "doc-1",
		Orgao:      "Conselho",
		Sigla:      "CNE",
		NomeLista:  "Lista Única",
	})
	require.Len(t, out, 3)

	assert.Equal(t, "Ana Souza", out[0].Name)
	assert.Equal(t, "doc-1", out[0].DocumentID)
	assert.Equal(t, RoleEffective, out[0].RoleClass)
	assert.Equal(t, 1, out[0].Ordinal)
	assert.Equal(t, "Partido Azul", out[0].ProposingParty)
	assert.False(t, out[0].Independent)

	// Missing ordinal repaired to last+1 within the same role class.
	assert.Equal(t, 2, out[1].Ordinal)
	assert.True(t, out[1].Independent)
	assert.Equal(t, "Conselho", out[1].Orgao)

	// Non-numeric ordinal repaired; separate counter for alternates.
	assert.Equal(t, RoleAlternate, out[2].RoleClass)
	assert.Equal(t, 1, out[2].Ordinal)
}

func TestNormalize_RoleClassFallback(t *testing.T) {
	out := Normalize([]RawRow{{NomeCandidato: "X", Tipo: float64(7)}}, Defaults{DocumentID: "d"})
	require.Len(t, out, 1)
	assert.Equal(t, RoleUnspecified, out[0].RoleClass)
}

func TestDecodeRows(t *testing.T) {
	payload := `[
		{"nomeCandidato": "Ana Souza", "tipo": 2, "numOrdem": 1},
		{"nomeCandidato": "Bruno Lima", "tipo": 2, "numOrdem": "2", "independente": 1}
	]`

	rows, err := DecodeRows(strings.NewReader(payload), Defaults{DocumentID: "doc-9"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "doc-9", rows[0].DocumentID)
	assert.Equal(t, 2, rows[1].Ordinal)
	assert.True(t, rows[1].Independent)

	_, err = DecodeRows(strings.NewReader("{not json"), Defaults{})
	require.Error(t, err)
}
