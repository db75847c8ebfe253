package services

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/metrics"
)

// MaxPhotoSize is the largest accepted order photo.
const MaxPhotoSize = 10 << 20

// PhotoKind identifies which order photo is being replaced.
type PhotoKind string

const (
	PhotoBefore PhotoKind = "before"
	PhotoAfter  PhotoKind = "after"
)

// StoredPhoto is the result of a photo upload.
type StoredPhoto struct {
	FileHandle string `json:"file_handle"`
	URL        string `json:"url"`
}

// linkForgetter is implemented by resolvers that remember results per file handle.
type linkForgetter interface {
	Forget(ctx context.Context, fileHandle string) error
}

// PhotoService stores order photos and turns them into publishable URLs.
type PhotoService struct {
	storage  StorageProvider
	resolver LinkResolver
	logger   *zap.Logger
}

// NewPhotoService creates a photo service.
func NewPhotoService(storage StorageProvider, resolver LinkResolver, logger *zap.Logger) *PhotoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhotoService{storage: storage, resolver: resolver, logger: logger}
}

// ReplacePhoto removes every stored photo of the given kind for the order, uploads the new
// one as {orderID}_{kind}{ext} and resolves its public URL.
func (s *PhotoService) ReplacePhoto(ctx context.Context, orderID string, kind PhotoKind, data []byte, contentType string) (*StoredPhoto, error) {
	orderID = strings.TrimSpace(orderID)
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}
	if kind != PhotoBefore && kind != PhotoAfter {
		return nil, NewValidationError("kind", "must be before or after")
	}
	if len(data) == 0 {
		return nil, NewValidationError("photo", "is empty")
	}
	if len(data) > MaxPhotoSize {
		return nil, NewValidationError("photo", fmt.Sprintf("must be at most %d bytes", MaxPhotoSize))
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, NewValidationError("photo", "must be an image")
	}

	baseName := orderID + "_" + string(kind)

	existing, err := s.storage.ListByNamePrefix(ctx, baseName)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing photos: %w", err)
	}
	for _, handle := range existing {
		if err := s.storage.Delete(ctx, handle); err != nil {
			metrics.BestEffortFailures.WithLabelValues("delete_photo").Inc()
			s.logger.Warn("failed to delete previous photo",
				zap.String("order_id", orderID),
				zap.String("file_handle", handle),
				zap.Error(err),
			)
			continue
		}
		s.forget(ctx, handle)
	}

	handle, err := s.storage.Upload(ctx, data, baseName+photoExtension(mediaType), mediaType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload photo: %w", err)
	}

	publicURL := s.resolver.Resolve(ctx, handle)
	s.logger.Info("order photo replaced",
		zap.String("order_id", orderID),
		zap.String("kind", string(kind)),
		zap.String("file_handle", handle),
		zap.Int("replaced", len(existing)),
	)
	return &StoredPhoto{FileHandle: handle, URL: publicURL}, nil
}

func (s *PhotoService) forget(ctx context.Context, handle string) {
	f, ok := s.resolver.(linkForgetter)
	if !ok {
		return
	}
	if err := f.Forget(ctx, handle); err != nil {
		s.logger.Debug("failed to forget cached link", zap.String("file_handle", handle), zap.Error(err))
	}
}

func photoExtension(mediaType string) string {
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	}
	return ""
}
