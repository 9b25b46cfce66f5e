package intake

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opencne/listreview/pkg/extraction"
	"github.com/opencne/listreview/pkg/reconcile"
	"github.com/opencne/listreview/pkg/review"
)

func newTestService(t *testing.T) *review.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	svc := review.NewService(db, nil)
	require.NoError(t, svc.AutoMigrate())
	return svc
}

func writeDrop(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const sideA = `[
	{"orgao":"Conselho","tipo":2,"numOrdem":1,"nomeCandidato":"Ana Souza","partidoProponente":"Partido Azul","sigla":"CNE"},
	{"orgao":"Conselho","tipo":2,"numOrdem":2,"nomeCandidato":"Bruno Lima","partidoProponente":"Partido Azul","sigla":"CNE"}
]`

const sideB = `[
	{"orgao":"Conselho","tipo":2,"numOrdem":1,"nomeCandidato":"Ana Souza","partidoProponente":"Partido Azul","sigla":"CNE"},
	{"orgao":"Conselho","tipo":2,"numOrdem":2,"nomeCandidato":"Bruna Lima","partidoProponente":"Partido Azul","sigla":"CNE"}
]`

func TestWatcher_ProcessesExistingPair(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	writeDrop(t, dir, "doc-1.a.json", sideA)
	writeDrop(t, dir, "doc-1.b.json", sideB)

	w, err := NewWatcher(dir, svc, extraction.Defaults{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	doc, err := svc.Documents().Get("doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, review.StatusProcessed, doc.Status)
	assert.NotEmpty(t, doc.FileHash)
	assert.Equal(t, "doc-1.a.json", doc.FileName)

	items, err := svc.FetchComparisons("doc-1", "", "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, reconcile.StatusAgreement, items[0].Comparison.Status)
	assert.Equal(t, reconcile.StatusDispute, items[1].Comparison.Status)
}

func TestWatcher_WaitsForBothSides(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	writeDrop(t, dir, "doc-1.a.json", sideA)

	w, err := NewWatcher(dir, svc, extraction.Defaults{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	doc, err := svc.Documents().Get("doc-1")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestWatcher_DecodeErrorMarksFailed(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	writeDrop(t, dir, "doc-1.a.json", sideA)
	writeDrop(t, dir, "doc-1.b.json", "{not json")

	w, err := NewWatcher(dir, svc, extraction.Defaults{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	doc, err := svc.Documents().Get("doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, review.StatusFailed, doc.Status)

	entries, err := svc.Audit().ListByDocument("doc-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, review.ActionMarkFailed, entries[0].Action)
	assert.Contains(t, entries[0].Summary, "doc-1.b.json")
}

func TestWatcher_SkipsApprovedDocuments(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	writeDrop(t, dir, "doc-1.a.json", sideA)
	writeDrop(t, dir, "doc-1.b.json", sideB)
	require.NoError(t, svc.Documents().Create(&review.DocumentRecord{
		ID:     "doc-1",
		Status: review.StatusApproved,
	}))

	w, err := NewWatcher(dir, svc, extraction.Defaults{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	items, err := svc.FetchComparisons("doc-1", "", "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDocumentIDFromPath(t *testing.T) {
	for _, tc := range []struct {
		path string
		id   string
		ok   bool
	}{
		{"/drops/doc-1.a.json", "doc-1", true},
		{"/drops/doc-1.b.json", "doc-1", true},
		{"/drops/readme.txt", "", false},
		{"/drops/doc-1.json", "", false},
	} {
		id, ok := documentIDFromPath(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		assert.Equal(t, tc.id, id, tc.path)
	}
}
