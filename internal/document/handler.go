package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"docsync/internal/document/model"
	"docsync/pkg/apperror"
	"docsync/pkg/logger"
)

// ClientIDHeader identifies the client that issued a request, so its own
// deletions are not broadcast back to it.
const ClientIDHeader = "X-Client-ID"

// Service is implemented by service.DocumentService.
type Service interface {
	ListFolders(ctx context.Context) ([]model.Folder, error)
	CreateFolder(ctx context.Context, name string) (model.Folder, error)
	FolderDocuments(ctx context.Context, folderID string) ([]model.Document, error)
	DeleteFolder(ctx context.Context, origin, folderID string) ([]string, error)
	GetDocument(ctx context.Context, id string) (model.Document, error)
	CreateDocument(ctx context.Context, req model.CreateDocumentRequest) (model.Document, error)
	UpdateDocument(ctx context.Context, id, content string) (model.Document, error)
	DeleteDocument(ctx context.Context, origin, id string) error
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
	GetHistory(ctx context.Context) ([]model.HistoryEntry, error)
	AddHistory(ctx context.Context, req model.AddHistoryRequest) (model.HistoryEntry, error)
}

type DocumentHandler struct {
	Service Service
}

func NewDocumentHandler(service Service) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

// Register mounts the REST routes under /api.
func (h *DocumentHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"GET /api/folders":           h.ListFolders,
		"POST /api/folders":          h.CreateFolder,
		"GET /api/folders/{id}":      h.FolderDocuments,
		"DELETE /api/folders/{id}":   h.DeleteFolder,
		"POST /api/documents":        h.CreateDocument,
		"GET /api/documents/{id}":    h.GetDocument,
		"PATCH /api/documents/{id}":  h.UpdateDocument,
		"DELETE /api/documents/{id}": h.DeleteDocument,
		"GET /api/search":            h.Search,
		"GET /api/history":           h.GetHistory,
		"POST /api/history":          h.AddHistory,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, wrap(fn))
	}
}

func (h *DocumentHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.Service.ListFolders(r.Context())
	if err != nil {
		writeError(w, "list folders", err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (h *DocumentHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateFolderRequest
	if !decode(w, r, &req) {
		return
	}
	folder, err := h.Service.CreateFolder(r.Context(), req.Name)
	if err != nil {
		writeError(w, "create folder", err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *DocumentHandler) FolderDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Service.FolderDocuments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "list folder documents", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Service.DeleteFolder(r.Context(), r.Header.Get(ClientIDHeader), r.PathValue("id"))
	if err != nil {
		writeError(w, "delete folder", err)
		return
	}
	writeJSON(w, http.StatusOK, model.DeleteFolderResponse{Status: "deleted", DeletedIDs: ids})
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req model.CreateDocumentRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := h.Service.CreateDocument(r.Context(), req)
	if err != nil {
		writeError(w, "create document", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Service.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateDocumentRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := h.Service.UpdateDocument(r.Context(), r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, "update document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteDocument(r.Context(), r.Header.Get(ClientIDHeader), r.PathValue("id")); err != nil {
		writeError(w, "delete document", err)
		return
	}
	writeJSON(w, http.StatusOK, model.StatusResponse{Status: "deleted"})
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *DocumentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.GetHistory(r.Context())
	if err != nil {
		writeError(w, "get history", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *DocumentHandler) AddHistory(w http.ResponseWriter, r *http.Request) {
	var req model.AddHistoryRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := h.Service.AddHistory(r.Context(), req)
	if err != nil {
		writeError(w, "add history", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Handler: Failed to encode response: %v", err)
	}
}

// StatusFor maps an error to the HTTP status that carries its kind.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, action string, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Sugar.Errorf("Handler: Failed to %s: %v", action, err)
		msg = "Failed to " + action
	}
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}
