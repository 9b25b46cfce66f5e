// Package export renders the reviewed record set of a document as the
// semicolon-delimited candidate-list CSV, together with a QA summary of the
// review round.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"gorm.io/gorm"

	"github.com/opencne/listreview/pkg/extraction"
	"github.com/opencne/listreview/pkg/reconcile"
	"github.com/opencne/listreview/pkg/review"
)

// CSVHeader is the fixed column order of the exchange format.
var CSVHeader = []string{
	"DTMNFR",
	"ORGAO",
	"SIGLA",
	"SIMBOLO",
	"NOME_LISTA",
	"TIPO",
	"NUM_ORDEM",
	"NOME_CANDIDATO",
	"PARTIDO_PROPONENTE",
	"INDEPENDENTE",
}

// Row is one resolved output row. The candidate name is the decision's final
// value when one was recorded, otherwise extractor A's value, otherwise
// extractor B's.
type Row struct {
	DTMNFR         string
	Orgao          string
	Sigla          string
	Simbolo        string
	NomeLista      string
	RoleClass      extraction.RoleClass
	Ordinal        int
	Name           string
	ProposingParty string
	Independent    bool
}

// QASummary aggregates review-round statistics alongside the CSV.
type QASummary struct {
	Documents              int     `json:"documents"`
	Rows                   int     `json:"rows"`
	Disputes               int     `json:"disputes"`
	ManualEdits            int     `json:"manual_edits"`
	DisagreementPercentage float64 `json:"disagreement_percentage"`
	ReviewedRows           int     `json:"reviewed_rows"`
}

// Exporter builds export rows from stored comparisons and decisions.
type Exporter struct {
	db *gorm.DB
}

// NewExporter creates an Exporter on the given database handle.
func NewExporter(db *gorm.DB) *Exporter {
	return &Exporter{db: db}
}

// Rows resolves the final record set of one document. Comparisons missing from
// one extractor fall back to the other's snapshot; nothing is dropped.
func (e *Exporter) Rows(documentID string) ([]Row, *QASummary, error) {
	comparisons, err := reconcile.NewComparisonStore(e.db).ListByDocument(documentID, "")
	if err != nil {
		return nil, nil, err
	}
	decisions, err := review.NewDecisionStore(e.db).ListByDocument(documentID, false)
	if err != nil {
		return nil, nil, err
	}
	byComparison := make(map[uint64]*review.DecisionRecord, len(decisions))
	for i := range decisions {
		byComparison[decisions[i].ComparisonID] = &decisions[i]
	}

	summary := &QASummary{Documents: 1, Rows: len(comparisons)}
	if len(comparisons) == 0 {
		summary.Documents = 0
	}

	rows := make([]Row, 0, len(comparisons))
	for i := range comparisons {
		cmp := &comparisons[i]
		decision := byComparison[cmp.ID]

		if cmp.Status == reconcile.StatusDispute {
			summary.Disputes++
		}
		if decision != nil {
			summary.ReviewedRows++
			if decision.Source == review.SourceManual {
				summary.ManualEdits++
			}
		}

		source := cmp.Snapshot.A
		if source == nil {
			source = cmp.Snapshot.B
		}
		if source == nil {
			continue
		}

		row := Row{
			DTMNFR:         source.DTMNFR,
			Orgao:          source.Orgao,
			Sigla:          source.Sigla,
			Simbolo:        source.Simbolo,
			NomeLista:      source.NomeLista,
			RoleClass:      source.RoleClass,
			Ordinal:        source.Ordinal,
			Name:           finalName(cmp, decision),
			ProposingParty: source.ProposingParty,
			Independent:    source.Independent,
		}
		rows = append(rows, row)
	}

	if summary.Rows > 0 {
		pct := float64(summary.Disputes) / float64(summary.Rows) * 100
		summary.DisagreementPercentage = math.Round(pct*10) / 10
	}
	return rows, summary, nil
}

// finalName picks the exported candidate name: decision wins, then side A,
// then side B.
func finalName(cmp *reconcile.ComparisonRecord, decision *review.DecisionRecord) string {
	if decision != nil && decision.FinalValue != "" {
		return decision.FinalValue
	}
	if cmp.NameA != "" {
		return cmp.NameA
	}
	return cmp.NameB
}

// WriteCSV writes rows in the exchange format, semicolon-delimited with the
// fixed header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.DTMNFR,
			row.Orgao,
			row.Sigla,
			row.Simbolo,
			row.NomeLista,
			strconv.Itoa(int(row.RoleClass)),
			strconv.Itoa(row.Ordinal),
			row.Name,
			row.ProposingParty,
			formatBool(row.Independent),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteQA writes the QA summary as indented JSON.
func WriteQA(w io.Writer, summary *QASummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// formatBool renders booleans the way the legacy exchange files do.
func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
