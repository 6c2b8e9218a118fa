// Package handler holds the business-level request handlers behind the HTTP
// routes. Handlers take plain Go inputs so they can be exercised without a
// running server.
package handler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/indexer"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/storage"
)

// Upload statuses returned to clients.
const (
	UploadStatusAccepted  = "ACCEPTED"  // queued for indexing
	UploadStatusDuplicate = "DUPLICATE" // identical raw file seen before
)

// UploadHandler accepts resume files, deduplicates them by raw-file MD5, and
// queues them for asynchronous indexing.
type UploadHandler struct {
	cfg   *config.Config
	store *storage.Storage
}

// NewUploadHandler builds the handler over the shared storage bundle.
func NewUploadHandler(cfg *config.Config, store *storage.Storage) *UploadHandler {
	return &UploadHandler{cfg: cfg, store: store}
}

// UploadResponse reports what happened to an uploaded file. ResumeID is only
// known for duplicates whose first copy already finished indexing.
type UploadResponse struct {
	FileMD5  string `json:"file_md5"`
	Status   string `json:"status"`
	ResumeID string `json:"resume_id,omitempty"`
}

// HandleUpload stores the raw file and publishes an upload event. The
// indexing itself happens in the consumer; this path only has to be fast
// and durable.
func (h *UploadHandler) HandleUpload(ctx context.Context, fileBytes []byte, filename string, metadata map[string]string) (*UploadResponse, error) {
	if len(fileBytes) == 0 {
		return nil, fmt.Errorf("uploaded file is empty")
	}

	fileMD5 := indexer.MD5Hex(fileBytes)
	fileKind := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if fileKind == "" {
		fileKind = "pdf"
	}

	seen, err := h.store.Redis.IsFileUploaded(ctx, fileMD5)
	if err != nil {
		// Dedup is best effort; MySQL's unique MD5 index is the backstop.
		logger.Warn().Err(err).Str("file_md5", fileMD5).Msg("dedup lookup failed, continuing")
	}
	if !seen {
		if _, err := h.store.MySQL.GetResumeByMD5(ctx, fileMD5); err == nil {
			seen = true
		}
	}
	if seen {
		resp := &UploadResponse{FileMD5: fileMD5, Status: UploadStatusDuplicate}
		if row, err := h.store.MySQL.GetResumeByMD5(ctx, fileMD5); err == nil {
			resp.ResumeID = row.ResumeID
		}
		logger.Info().Str("file_md5", fileMD5).Str("filename", filename).Msg("duplicate upload skipped")
		return resp, nil
	}

	objectKey, err := h.store.MinIO.UploadOriginal(ctx, fileMD5, fileKind, fileBytes, contentTypeFor(fileKind))
	if err != nil {
		return nil, fmt.Errorf("store uploaded file: %w", err)
	}

	if err := h.store.Redis.MarkFileUploaded(ctx, fileMD5); err != nil {
		logger.Warn().Err(err).Str("file_md5", fileMD5).Msg("failed to record file md5, dedup degraded")
	}

	msg := &storage.ResumeUploadedMessage{
		FileMD5:          fileMD5,
		OriginalFileName: filename,
		FileKind:         fileKind,
		RawObjectKey:     objectKey,
		Metadata:         metadata,
		SubmittedAt:      time.Now().UTC(),
	}
	if err := h.store.RabbitMQ.PublishResumeUploaded(ctx, msg); err != nil {
		return nil, fmt.Errorf("queue upload for indexing: %w", err)
	}

	return &UploadResponse{FileMD5: fileMD5, Status: UploadStatusAccepted}, nil
}

func contentTypeFor(fileKind string) string {
	switch fileKind {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
