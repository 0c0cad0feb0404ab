package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/edustack/academy-api/internal/provider"
	"github.com/edustack/academy-api/internal/storage"
)

// maxUploadMemory bounds how much of a multipart body is held in memory
// before spilling to a temp file.
const maxUploadMemory = 32 << 20

// handleUpload accepts a multipart upload: a "file" part plus "kind" and
// optional "folder" form values.
//
//	POST /api/uploads
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	kind := storage.Kind(r.FormValue("kind"))
	if kind == "" {
		kind = storage.KindAttachment
	}

	desc := storage.UploadDescriptor{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Kind:        kind,
		Folder:      r.FormValue("folder"),
	}

	result, err := s.storage.Upload(r.Context(), desc, file)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleDeleteUpload removes a stored object. The key arrives URL-encoded
// since it contains slashes.
//
//	DELETE /api/uploads/{key}
func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		respondError(w, http.StatusBadRequest, "invalid object key")
		return
	}

	if err := s.storage.Delete(r.Context(), key); err != nil {
		s.respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": key})
}

// handleListUploads lists stored objects under a folder.
//
//	GET /api/uploads?folder=courses
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		respondError(w, http.StatusBadRequest, "folder query parameter is required")
		return
	}

	entries, err := s.storage.List(r.Context(), folder)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"folder":  folder,
		"entries": entries,
		"count":   len(entries),
	})
}

// respondStorageError maps the error taxonomy onto HTTP statuses: bad input
// is the caller's fault, an unavailable provider is a disabled feature, and
// a provider failure is an upstream fault.
func (s *Server) respondStorageError(w http.ResponseWriter, err error) {
	var validationErr *storage.ValidationError
	if errors.As(err, &validationErr) {
		respondError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	if errors.Is(err, storage.ErrUnavailable) {
		respondError(w, http.StatusServiceUnavailable, "file storage is currently unavailable")
		return
	}
	var callErr *provider.CallError
	if errors.As(err, &callErr) {
		respondError(w, http.StatusBadGateway, "storage provider error")
		return
	}
	respondError(w, http.StatusInternalServerError, "upload failed")
}
