package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/document"
	"github.com/nikhilbhutani/fiscalassistant/internal/metrics"
	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

// MaxFilesPerUpload bounds a single multipart upload.
const MaxFilesPerUpload = 5

type DocumentHandler struct {
	svc      *document.Service
	metrics  *metrics.HTTPServerMetrics
	maxBytes int64
}

func NewDocumentHandler(svc *document.Service, m *metrics.HTTPServerMetrics, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &DocumentHandler{svc: svc, metrics: m, maxBytes: maxBytes}
}

type uploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Upload stores every "file" part as its own document. Files are handled one
// by one; a failed file does not undo the ones before it.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes*MaxFilesPerUpload)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeMessage(w, http.StatusBadRequest, "file required")
		return
	}
	if len(files) > MaxFilesPerUpload {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", MaxFilesPerUpload))
		return
	}

	var (
		created  []models.Document
		failures []uploadFailure
		lastErr  error
	)
	for _, fh := range files {
		doc, err := h.uploadOne(r, owner, fh)
		if doc != nil {
			created = append(created, *doc)
			h.metrics.RecordDocumentUploaded()
		}
		if err != nil {
			_, msg := statusFor(err)
			failures = append(failures, uploadFailure{Filename: fh.Filename, Error: msg})
			lastErr = err
		}
	}

	if len(created) == 0 {
		writeError(w, r, lastErr)
		return
	}
	status := http.StatusCreated
	if len(failures) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]interface{}{"documents": created, "failed": failures})
}

func (h *DocumentHandler) uploadOne(r *http.Request, owner uuid.UUID, fh *multipart.FileHeader) (*models.Document, error) {
	if fh.Size > h.maxBytes {
		return nil, models.WrapError(models.ErrValidation, fmt.Sprintf("%s exceeds %d bytes", fh.Filename, h.maxBytes), nil)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	return h.svc.Upload(r.Context(), document.UploadRequest{
		OwnerID:     owner,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Data:        f,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	docs, err := h.svc.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": doc.ID.String(), "status": string(doc.Status)})
}

// File streams the original upload.
func (h *DocumentHandler) File(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	doc, rc, err := h.svc.Open(r.Context(), id, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, owner); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *DocumentHandler) load(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	owner, ok := ownerID(w, r)
	if !ok {
		return nil, false
	}
	id, ok := documentID(w, r)
	if !ok {
		return nil, false
	}

	doc, err := h.svc.Get(r.Context(), id, owner)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return doc, true
}

func documentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid document ID")
		return uuid.Nil, false
	}
	return id, true
}
