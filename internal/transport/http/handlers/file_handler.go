package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/delawer33/edumaster/internal/services/auth"
	filesvc "github.com/delawer33/edumaster/internal/services/files"
	"github.com/delawer33/edumaster/internal/transport/http/dto"
	httperrors "github.com/delawer33/edumaster/internal/transport/http/errors"
)

type FileHandler struct {
	service  *filesvc.Service
	maxBytes int64
}

func NewFileHandler(service *filesvc.Service, maxBytes int64) *FileHandler {
	return &FileHandler{service: service, maxBytes: maxBytes}
}

// Upload reads one multipart file from the "file" form field. The request
// body is capped before parsing so oversized uploads fail early instead of
// being buffered.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "FILE_SERVICE_UNAVAILABLE", "file service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "multipart field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")
	uploaded, err := h.service.Upload(r.Context(), identity.UserID, header.Filename, contentType, file, header.Size)
	if err != nil {
		handleFilesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, fileResponse(uploaded))
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "FILE_SERVICE_UNAVAILABLE", "file service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	fileID, ok := pathID(w, r, "file_id")
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), identity.UserID, fileID)
	if err != nil {
		handleFilesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, fileResponse(rec))
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "FILE_SERVICE_UNAVAILABLE", "file service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	records, err := h.service.List(r.Context(), identity.UserID)
	if err != nil {
		handleFilesError(w, err)
		return
	}

	files := make([]dto.FileResponse, 0, len(records))
	for _, rec := range records {
		files = append(files, fileResponse(rec))
	}
	httperrors.Write(w, http.StatusOK, dto.FileListResponse{Files: files})
}

func handleFilesError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, filesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	case errors.Is(err, filesvc.ErrUnsupportedContentType):
		httperrors.Write(w, http.StatusUnsupportedMediaType, httperrors.APIError{
			Code:    "UNSUPPORTED_CONTENT_TYPE",
			Message: "content type is not allowed",
		})
	case errors.Is(err, filesvc.ErrFileTooLarge):
		httperrors.Write(w, http.StatusRequestEntityTooLarge, httperrors.APIError{
			Code:    "FILE_TOO_LARGE",
			Message: "file exceeds the size limit",
		})
	case errors.Is(err, filesvc.ErrFileNotFound):
		writeNotFound(w, "FILE_NOT_FOUND", "file not found")
	case errors.Is(err, filesvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "access denied")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func fileResponse(rec filesvc.File) dto.FileResponse {
	return dto.FileResponse{
		ID:          rec.ID,
		FileName:    rec.FileName,
		ContentType: rec.ContentType,
		SizeBytes:   rec.SizeBytes,
		URL:         rec.URL,
		CreatedAt:   rec.CreatedAt,
	}
}
