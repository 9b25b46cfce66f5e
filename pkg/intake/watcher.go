// Package intake feeds the review engine from extraction file drops. The
// pipelines write one JSON row file per extractor side, named
// <documentID>.a.json and <documentID>.b.json; once both sides of a document
// are present the watcher normalizes them and runs the matcher.
package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/opencne/listreview/pkg/extraction"
	"github.com/opencne/listreview/pkg/review"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

const (
	suffixA = ".a.json"
	suffixB = ".b.json"
)

// Watcher watches a drop directory and drives documents through
// NEW -> INGESTED -> PROCESSED as extraction files arrive. Decode failures
// move the document to FAILED with the error recorded in the audit trail.
type Watcher struct {
	dir      string
	service  *review.Service
	defaults extraction.Defaults
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	stop    chan struct{}
	once    sync.Once
}

// NewWatcher creates a watcher for the given drop directory.
func NewWatcher(dir string, service *review.Service, defaults extraction.Defaults, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return &Watcher{
		dir:      dir,
		service:  service,
		defaults: defaults,
		logger:   logger,
		watcher:  fsw,
		stop:     make(chan struct{}),
	}, nil
}

// Start processes files already in the drop directory, then watches for new
// ones until the context is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.handleFile(filepath.Join(w.dir, entry.Name()))
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.handleFile(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// handleFile reacts to one file appearing or changing. Only when both sides
// of a document are on disk does a match run happen.
func (w *Watcher) handleFile(path string) {
	documentID, ok := documentIDFromPath(path)
	if !ok {
		return
	}

	pathA := filepath.Join(w.dir, documentID+suffixA)
	pathB := filepath.Join(w.dir, documentID+suffixB)
	if !fileExists(pathA) || !fileExists(pathB) {
		w.logger.Debug("waiting for the other extraction side", "documentId", documentID)
		return
	}

	if err := w.processDocument(documentID, pathA, pathB); err != nil {
		w.logger.Error("intake failed", "documentId", documentID, "error", err)
	}
}

func (w *Watcher) processDocument(documentID, pathA, pathB string) error {
	if err := w.ensureDocument(documentID, pathA); err != nil {
		return err
	}

	rowsA, errA := w.decodeSide(documentID, pathA)
	rowsB, errB := w.decodeSide(documentID, pathB)
	if err := errors.Join(errA, errB); err != nil {
		if failErr := w.service.MarkFailed(documentID, "intake", err.Error()); failErr != nil {
			w.logger.Error("mark failed", "documentId", documentID, "error", failErr)
		}
		return err
	}

	if err := w.advance(documentID, review.StatusIngested); err != nil {
		return err
	}

	records, err := w.service.RunMatch(documentID, rowsA, rowsB)
	if err != nil {
		if errors.Is(err, review.ErrDocumentLocked) {
			w.logger.Warn("skipping re-ingestion of approved document", "documentId", documentID)
			return nil
		}
		if failErr := w.service.MarkFailed(documentID, "intake", err.Error()); failErr != nil {
			w.logger.Error("mark failed", "documentId", documentID, "error", failErr)
		}
		return err
	}

	if err := w.advance(documentID, review.StatusProcessed); err != nil {
		return err
	}

	w.logger.Info("document ingested", "documentId", documentID, "comparisons", len(records))
	return nil
}

// ensureDocument registers the document on first sight, carrying the drop
// file's hash and size so re-ingestion of identical content is detectable.
func (w *Watcher) ensureDocument(documentID, path string) error {
	doc, err := w.service.Documents().Get(documentID)
	if err != nil {
		return err
	}
	if doc != nil {
		return nil
	}

	hash, size, err := hashFile(path)
	if err != nil {
		return err
	}
	return w.service.Documents().Create(&review.DocumentRecord{
		ID:           documentID,
		FileName:     filepath.Base(path),
		FileHash:     hash,
		FileSize:     size,
		DetectedType: "EXTRACTION_JSON",
		Status:       review.StatusNew,
	})
}

func (w *Watcher) decodeSide(documentID, path string) ([]extraction.CandidateRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	defaults := w.defaults
	defaults.DocumentID = documentID
	rows, err := extraction.DecodeRows(f, defaults)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// advance moves the document forward if it has not already passed the target
// state. Documents re-ingested after processing stay where they are.
func (w *Watcher) advance(documentID string, to review.DocumentStatus) error {
	doc, err := w.service.Documents().Get(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s: %w", documentID, review.ErrNotFound)
	}
	switch doc.Status {
	case review.StatusProcessed, review.StatusApproved:
		return nil
	case review.StatusIngested:
		if to == review.StatusIngested {
			return nil
		}
	}
	return w.service.Documents().Transition(documentID, to)
}

// documentIDFromPath extracts the document id from a drop file name, or
// reports false for files that are not extraction drops.
func documentIDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, suffixA):
		return strings.TrimSuffix(base, suffixA), true
	case strings.HasSuffix(base, suffixB):
		return strings.TrimSuffix(base, suffixB), true
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func hashFile(path string) (string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}
