// Package handler serves the document API: writes and lookups against the
// indexer's document store and manual index builds.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/text-search-engine/pkg/logger"
)

const maxBodyBytes = validator.MaxTextLength + 4096

type Handler struct {
	indexer     *indexer.Indexer
	incremental bool
	logger      *slog.Logger
}

// New creates a Handler. With incremental set, POSTed documents are indexed
// immediately; otherwise they wait for the next build.
func New(ix *indexer.Indexer, incremental bool) *Handler {
	return &Handler{
		indexer:     ix,
		incremental: incremental,
		logger:      slog.Default().With("component", "document-handler"),
	}
}

// Register adds the document routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/documents/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/index/build", h.Build)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var req ingestion.DocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidArgument("invalid JSON body: %v", err))
		return
	}
	if err := validator.ValidateDocumentRequest(&req); err != nil {
		h.writeError(w, err)
		return
	}

	id := index.DocID(*req.ID)
	status := "accepted"
	if h.incremental {
		h.indexer.UpdateDocument(id, *req.Text)
		status = "indexed"
	} else {
		h.indexer.AddDocument(id, *req.Text)
	}
	log.Info("document stored", "doc_id", *req.ID, "status", status)
	h.writeJSON(w, http.StatusAccepted, ingestion.DocumentResponse{ID: *req.ID, Status: status})
}

// Update replaces a document's text and re-indexes it immediately.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req ingestion.UpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidArgument("invalid JSON body: %v", err))
		return
	}
	if err := validator.ValidateUpdateRequest(&req); err != nil {
		h.writeError(w, err)
		return
	}
	h.indexer.UpdateDocument(index.DocID(id), *req.Text)
	logger.FromContext(r.Context()).Info("document updated", "doc_id", id)
	h.writeJSON(w, http.StatusOK, ingestion.DocumentResponse{ID: id, Status: "indexed"})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !h.indexer.RemoveDocument(index.DocID(id)) {
		h.writeError(w, apperrors.NotFound(id))
		return
	}
	logger.FromContext(r.Context()).Info("document removed", "doc_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	text, ok := h.indexer.Document(index.DocID(id))
	if !ok {
		h.writeError(w, apperrors.NotFound(id))
		return
	}
	h.writeJSON(w, http.StatusOK, indexer.Document{ID: index.DocID(id), Text: text})
}

// Build runs a full index rebuild synchronously.
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	h.indexer.BuildIndex()
	st := h.indexer.Stats()
	logger.FromContext(r.Context()).Info("index built on request",
		"generation", st.Generation,
		"terms", st.Terms,
	)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generation": st.Generation,
		"terms":      st.Terms,
		"documents":  st.IndexedDocuments,
	})
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.InvalidArgument("document id %q is not an integer", raw)
	}
	return id, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
