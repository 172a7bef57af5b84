package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/softmill/filedex/internal/apperr"
	"github.com/softmill/filedex/internal/recordservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *recordservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service) *Handler {
	return &Handler{svc: svc}
}

// recordRef extracts the record reference (id, id prefix, or file name) from
// the URL.
func recordRef(r *http.Request) string {
	return chi.URLParam(r, "ref")
}

// writeErr maps the application error kinds to HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrDuplicate), errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListRecords handles GET /records with an optional ?category= filter.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	recs := h.svc.List(r.Context())
	if category != "" {
		recs = h.svc.ListByCategory(r.Context(), category)
	}

	items := make([]RecordListItem, len(recs))
	for i, rec := range recs {
		items[i] = toListItem(rec)
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: items, Total: len(items)})
}

// GetRecord handles GET /records/{ref}.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Resolve(r.Context(), recordRef(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(rec))
}

// ReadDisk handles GET /records/{ref}/disk, returning live file content.
func (h *Handler) ReadDisk(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Resolve(r.Context(), recordRef(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	content, err := h.svc.ReadDisk(r.Context(), rec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DiskContentResponse{ID: rec.ID, Path: rec.Path(), Content: content})
}

// CreateRecord handles POST /records.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Create(r.Context(), req.FileName, req.Content, req.StoragePath, req.Category)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDetail(rec))
}

// UpdateContent handles PUT /records/{ref}/content. An optional If-Match
// header carries the checksum of the content the client last saw.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	rec, err := h.svc.UpdateContent(r.Context(), recordRef(r), req.Content, ifMatch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(rec))
}

// RenameRecord handles POST /records/{ref}/rename.
func (h *Handler) RenameRecord(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Rename(r.Context(), recordRef(r), req.FileName)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(rec))
}

// MoveRecord handles POST /records/{ref}/move.
func (h *Handler) MoveRecord(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Move(r.Context(), recordRef(r), req.StoragePath)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(rec))
}

// ChangeCategory handles PUT /records/{ref}/category.
func (h *Handler) ChangeCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Recategorize(r.Context(), recordRef(r), req.Category)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(rec))
}

// RefreshRecord handles POST /records/{ref}/refresh: re-reads disk content
// into the registry.
func (h *Handler) RefreshRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Refresh(r.Context(), recordRef(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(rec))
}

// DeleteRecord handles DELETE /records/{ref}.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), recordRef(r)); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
