package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opencne/listreview/pkg/export"
	"github.com/opencne/listreview/pkg/review"
)

func newTestRouter(t *testing.T) (http.Handler, *review.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	svc := review.NewService(db, nil)
	require.NoError(t, svc.AutoMigrate())
	require.NoError(t, svc.Documents().Create(&review.DocumentRecord{
		ID:       "doc-1",
		FileName: "lists.pdf",
		Status:   review.StatusProcessed,
	}))
	return NewRouter(RouterConfig{
		Service:  svc,
		Exporter: export.NewExporter(db),
	}), svc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(review.ReviewerHeader, "ana")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func matchBody() map[string]any {
	row := func(name string, ordinal int) map[string]any {
		return map[string]any{
			"orgao":             "Conselho",
			"tipo":              2,
			"numOrdem":          ordinal,
			"nomeCandidato":     name,
			"partidoProponente": "Partido Azul",
			"sigla":             "CNE",
		}
	}
	return map[string]any{
		"rowsA": []any{row("Ana Souza", 1), row("Bruno Lima", 2)},
		"rowsB": []any{row("Ana Souza", 1), row("Bruna Lima", 2)},
	}
}

func TestRouter_MatchAndComparisons(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/documents/doc-1/match", matchBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/documents/doc-1/comparisons?status=dispute", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Comparisons []json.RawMessage `json:"comparisons"`
		TotalSize   int               `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalSize)
}

func TestRouter_MatchUnknownDocument(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/documents/ghost/match", matchBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_DecisionFlow(t *testing.T) {
	h, svc := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/documents/doc-1/match", matchBody())
	require.Equal(t, http.StatusOK, rec.Code)

	items, err := svc.FetchComparisons("doc-1", "dispute", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	comparisonID := items[0].Comparison.ID

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/comparisons/%d/decision", comparisonID), map[string]any{
		"documentId":     "doc-1",
		"selectedSource": "manual",
		"finalValue":     "Bruno Henrique",
		"comment":        "typo fix",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var decision review.DecisionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, review.SourceManual, decision.Source)
	// Reviewer identity resolved from the fallback header.
	assert.Equal(t, "ana", decision.Reviewer)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/comparisons/%d/decision", comparisonID), map[string]any{
		"documentId":     "doc-1",
		"selectedSource": "extractor_z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_BulkAcceptApproveExport(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/documents/doc-1/match", matchBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/documents/doc-1/bulk-accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var accepted struct {
		Accepted int `json:"accepted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, 1, accepted.Accepted)

	rec = doJSON(t, h, http.MethodPost, "/documents/doc-1/approve", map[string]any{
		"approverId": "lead",
		"summary":    "all set",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Approved documents reject further mutation.
	rec = doJSON(t, h, http.MethodPost, "/documents/doc-1/bulk-accept", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/documents/doc-1/approve", map[string]any{"approverId": "lead"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/documents/doc-1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "DTMNFR;ORGAO;SIGLA")
	assert.Contains(t, rec.Body.String(), "Ana Souza")

	rec = doJSON(t, h, http.MethodGet, "/documents/doc-1/export?format=qa", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var qa export.QASummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &qa))
	assert.Equal(t, 2, qa.Rows)
	assert.Equal(t, 1, qa.Disputes)
}

func TestRouter_AuditAndDisputed(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/documents/doc-1/match", matchBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/documents/disputed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var disputed struct {
		TotalSize int `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &disputed))
	assert.Equal(t, 1, disputed.TotalSize)

	rec = doJSON(t, h, http.MethodPost, "/documents/doc-1/approve", map[string]any{"approverId": "lead"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/documents/doc-1/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var audit struct {
		Entries   []review.AuditEntryRecord `json:"entries"`
		TotalSize int                       `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	require.Equal(t, 1, audit.TotalSize)
	assert.Equal(t, review.ActionApproveDocument, audit.Entries[0].Action)
	assert.Equal(t, "lead", audit.Entries[0].ActorID)
}

func TestRouter_DocumentCRUD(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/documents", map[string]any{
		"fileName":     "second.pdf",
		"fileHash":     "hash-2",
		"fileSize":     2048,
		"detectedType": "PDF_SEARCHABLE",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created review.DocumentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, review.StatusNew, created.Status)

	rec = doJSON(t, h, http.MethodGet, "/documents/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/documents/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		TotalSize int `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.TotalSize)

	rec = doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
