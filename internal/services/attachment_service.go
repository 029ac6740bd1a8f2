package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"salon-chat/internal/storage"
	salon_errors "salon-chat/pkg/errors"
)

// AttachmentService hands out presigned URLs for image/file message
// attachments. The object key it returns is what a message stores as its
// attachment reference.
type AttachmentService struct {
	store *storage.Client
}

func NewAttachmentService(store *storage.Client) *AttachmentService {
	return &AttachmentService{store: store}
}

var allowedContentPrefixes = []string{"image/", "application/", "text/"}

type PresignUploadResult struct {
	Key       string
	UploadURL string
	Headers   map[string]string
}

func (s *AttachmentService) PresignUpload(ctx context.Context, conversationID, uploaderID uuid.UUID, filename, contentType string, sizeBytes int64) (PresignUploadResult, error) {
	if s == nil || s.store == nil {
		return PresignUploadResult{}, salon_errors.ErrServiceUnavailable
	}
	if conversationID == uuid.Nil || filename == "" {
		return PresignUploadResult{}, salon_errors.ErrInvalidInput
	}
	if !contentTypeAllowed(contentType) {
		return PresignUploadResult{}, salon_errors.ErrInvalidInput
	}

	key := fmt.Sprintf("conversations/%s/%s/%s", conversationID, uuid.New(), sanitizeFilename(filename))
	url, headers, err := s.store.PresignPut(ctx, key, contentType, sizeBytes)
	if err != nil {
		return PresignUploadResult{}, err
	}
	return PresignUploadResult{Key: key, UploadURL: url, Headers: headers}, nil
}

func (s *AttachmentService) PresignDownload(ctx context.Context, key string) (string, error) {
	if s == nil || s.store == nil {
		return "", salon_errors.ErrServiceUnavailable
	}
	return s.store.PresignGet(ctx, key)
}

func contentTypeAllowed(contentType string) bool {
	for _, prefix := range allowedContentPrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}
