// Package api exposes the review engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opencne/listreview/pkg/export"
	"github.com/opencne/listreview/pkg/extraction"
	"github.com/opencne/listreview/pkg/reconcile"
	"github.com/opencne/listreview/pkg/review"
)

// matchHandler recomputes a document's comparisons from a fresh pair of
// extraction outputs. Raw rows are normalized server-side, so callers may
// post extractor output as-is.
func matchHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")

		var req struct {
			RowsA    []extraction.RawRow `json:"rowsA"`
			RowsB    []extraction.RawRow `json:"rowsB"`
			Defaults extraction.Defaults `json:"defaults"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		rowsA := extraction.Normalize(req.RowsA, req.Defaults)
		rowsB := extraction.Normalize(req.RowsB, req.Defaults)

		records, err := svc.RunMatch(documentID, rowsA, rowsB)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"documentId":  documentID,
			"comparisons": records,
		})
	}
}

// listComparisonsHandler returns a document's comparisons joined with their
// decisions. Supports ?status= and ?filter= (expression) narrowing.
func listComparisonsHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")
		status := reconcile.Status(r.URL.Query().Get("status"))
		filter := r.URL.Query().Get("filter")

		items, err := svc.FetchComparisons(documentID, status, filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"documentId":  documentID,
			"comparisons": items,
			"totalSize":   len(items),
		})
	}
}

// decisionHandler records or overwrites the reviewer decision for one
// comparison. The reviewer identity comes from the request (JWT or header)
// unless the body names one explicitly.
func decisionHandler(svc *review.Service, reviewer review.ReviewerExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comparisonID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid comparison id")
			return
		}

		var req struct {
			DocumentID string                `json:"documentId"`
			Source     review.SelectedSource `json:"selectedSource"`
			FinalValue string                `json:"finalValue"`
			Comment    string                `json:"comment"`
			Reviewer   string                `json:"reviewer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Reviewer == "" {
			req.Reviewer = reviewer(r)
		}

		record, err := svc.RecordDecision(comparisonID, req.DocumentID, req.Source, req.FinalValue, req.Comment, req.Reviewer)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// bulkAcceptHandler creates decisions for every undecided agreement of the
// document and reports how many were created.
func bulkAcceptHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")

		created, err := svc.BulkAcceptAgreements(documentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"documentId": documentID,
			"accepted":   created,
		})
	}
}

// approveHandler irreversibly approves a document.
func approveHandler(svc *review.Service, reviewer review.ReviewerExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")

		var req struct {
			ApproverID string `json:"approverId"`
			Summary    string `json:"summary"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.ApproverID == "" {
			req.ApproverID = reviewer(r)
		}

		if err := svc.ApproveDocument(documentID, req.ApproverID, req.Summary); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"documentId": documentID,
			"status":     string(review.StatusApproved),
		})
	}
}

// failHandler moves a document to the FAILED terminal state.
func failHandler(svc *review.Service, reviewer review.ReviewerExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")

		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		if err := svc.MarkFailed(documentID, reviewer(r), req.Reason); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"documentId": documentID,
			"status":     string(review.StatusFailed),
		})
	}
}

// auditHandler lists a document's audit trail, newest first.
func auditHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")

		entries, err := svc.Audit().ListByDocument(documentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"documentId": documentID,
			"entries":    entries,
			"totalSize":  len(entries),
		})
	}
}

// disputedHandler summarizes documents that still contain disputes.
func disputedHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := svc.ListDocumentsWithDisputes()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"documents": summaries,
			"totalSize": len(summaries),
		})
	}
}

// exportHandler streams the document's final record set as CSV, or the QA
// summary when ?format=qa is given.
func exportHandler(svc *review.Service, exporter *export.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")

		doc, err := svc.Documents().Get(documentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if doc == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", documentID))
			return
		}

		rows, summary, err := exporter.Rows(documentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		if r.URL.Query().Get("format") == "qa" {
			writeJSON(w, http.StatusOK, summary)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", documentID+".csv"))
		if err := export.WriteCSV(w, rows); err != nil {
			// Headers are gone; nothing left to do but log via the middleware.
			return
		}
	}
}

// createDocumentHandler registers a document for review.
func createDocumentHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FileName     string `json:"fileName"`
			FileHash     string `json:"fileHash"`
			FileSize     int64  `json:"fileSize"`
			DetectedType string `json:"detectedType"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.FileName == "" {
			writeError(w, http.StatusBadRequest, "fileName is required")
			return
		}

		record := &review.DocumentRecord{
			FileName:     req.FileName,
			FileHash:     req.FileHash,
			FileSize:     req.FileSize,
			DetectedType: req.DetectedType,
		}
		if err := svc.Documents().Create(record); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	}
}

// getDocumentHandler returns one document record.
func getDocumentHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")

		doc, err := svc.Documents().Get(documentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if doc == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", documentID))
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// listDocumentsHandler lists documents, newest first.
func listDocumentsHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := svc.Documents().List()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"documents": docs,
			"totalSize": len(docs),
		})
	}
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var te *review.TransitionError
	if errors.As(err, &te) {
		writeJSON(w, http.StatusConflict, te)
		return
	}

	switch {
	case errors.Is(err, review.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, review.ErrDocumentLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, review.ErrAlreadyApproved):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, review.ErrDataIntegrity):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
