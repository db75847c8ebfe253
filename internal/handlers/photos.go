package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/services"
)

// multipartOverhead is allowed on top of the photo size for form framing.
const multipartOverhead = 1 << 20

// PhotoReplacer stores order photos.
type PhotoReplacer interface {
	ReplacePhoto(ctx context.Context, orderID string, kind services.PhotoKind, data []byte, contentType string) (*services.StoredPhoto, error)
}

// Compile-time interface compliance check
var _ PhotoReplacer = (*services.PhotoService)(nil)

// PhotosHandler serves order photo uploads.
type PhotosHandler struct {
	photos PhotoReplacer
	logger *zap.Logger
}

// NewPhotosHandler creates a new photos handler
func NewPhotosHandler(photos PhotoReplacer, logger *zap.Logger) *PhotosHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhotosHandler{photos: photos, logger: logger}
}

// Upload handles POST /api/v1/orders/{id}/photos/{kind} with a multipart "photo" field.
func (h *PhotosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPhotoSize+multipartOverhead)

	file, header, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFail(w, http.StatusRequestEntityTooLarge, "photo is too large")
			return
		}
		writeServiceError(w, h.logger, services.NewValidationError("photo", "multipart field is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxPhotoSize+1))
	if err != nil {
		writeServiceError(w, h.logger, services.NewValidationError("photo", "could not be read"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	stored, err := h.photos.ReplacePhoto(r.Context(), r.PathValue("id"), services.PhotoKind(r.PathValue("kind")), data, contentType)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "photo stored", stored)
}
