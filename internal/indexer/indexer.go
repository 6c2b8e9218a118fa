// Package indexer turns raw resume files into searchable records: parse the
// text, derive the content ID, extract fields, embed, and upsert into the
// vector index, tracking lifecycle state in MySQL along the way.
package indexer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-match-go/internal/embedding"
	"resume-match-go/internal/extract"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/storage/models"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

var indexTracer = otel.Tracer("resume-match-go/indexer")

// Indexer coordinates parsing, extraction, embedding, and indexing.
type Indexer struct {
	store     *storage.Storage
	parser    *parser.TextExtractor
	extractor *extract.Extractor
	embedder  embedding.Embedder
}

// New builds an Indexer over the shared storage bundle.
func New(store *storage.Storage, textParser *parser.TextExtractor, extractor *extract.Extractor, embedder embedding.Embedder) *Indexer {
	return &Indexer{
		store:     store,
		parser:    textParser,
		extractor: extractor,
		embedder:  embedder,
	}
}

// MD5Hex returns the lowercase hex MD5 of raw file bytes, the dedup key for
// uploads.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// IndexUpload processes one upload event: fetch the raw file from object
// storage and index it. Parse failures mark the metadata row FAILED and
// return an error so the message is not requeued.
func (ix *Indexer) IndexUpload(ctx context.Context, msg *storage.ResumeUploadedMessage) error {
	ctx, span := indexTracer.Start(ctx, "Indexer.IndexUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.md5", msg.FileMD5),
		attribute.String("file.name", msg.OriginalFileName),
	)

	data, err := ix.store.MinIO.DownloadOriginal(ctx, msg.RawObjectKey)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return fmt.Errorf("download original %s: %w", msg.RawObjectKey, err)
	}

	record, err := ix.IndexDocument(ctx, IndexRequest{
		Data:             data,
		FileKind:         msg.FileKind,
		FileMD5:          msg.FileMD5,
		OriginalFileName: msg.OriginalFileName,
		RawObjectKey:     msg.RawObjectKey,
		Metadata:         msg.Metadata,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("resume_id", record.ID).
		Str("file_name", msg.OriginalFileName).
		Msg("resume indexed from upload event")
	return nil
}

// IndexRequest carries one document through the indexing flow.
type IndexRequest struct {
	Data             []byte
	FileKind         string
	FileMD5          string
	OriginalFileName string
	RawObjectKey     string
	Metadata         map[string]string
}

// IndexDocument runs the full flow on in-memory file bytes and returns the
// indexed record. The returned record's ID is derived from the parsed text,
// so re-indexing identical content is an upsert everywhere.
func (ix *Indexer) IndexDocument(ctx context.Context, req IndexRequest) (*types.ResumeRecord, error) {
	ctx, span := indexTracer.Start(ctx, "Indexer.IndexDocument")
	defer span.End()

	if req.FileMD5 == "" {
		req.FileMD5 = MD5Hex(req.Data)
	}

	text, err := ix.parser.ExtractFromBytes(req.Data, req.FileKind)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		ix.markFailedByMD5(ctx, req, err)
		return nil, fmt.Errorf("parse %s: %w", req.OriginalFileName, err)
	}

	resumeID := types.ContentID(text)
	span.SetAttributes(attribute.String("resume.id", resumeID))

	row := &models.Resume{
		ResumeID:         resumeID,
		FileMD5:          req.FileMD5,
		OriginalFileName: req.OriginalFileName,
		FileKind:         req.FileKind,
		RawObjectKey:     req.RawObjectKey,
		Status:           models.StatusParsed,
	}
	if err := row.SetMetadata(req.Metadata); err != nil {
		return nil, err
	}

	parsedKey, err := ix.store.MinIO.UploadParsedText(ctx, resumeID, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, fmt.Errorf("store parsed text: %w", err)
	}
	row.ParsedObjectKey = parsedKey

	fields := ix.extractor.Extract(text)
	if err := row.SetFields(fields); err != nil {
		return nil, err
	}
	if err := ix.store.MySQL.SaveResume(ctx, row); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("save resume metadata: %w", err)
	}

	vectors, err := ix.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		ix.markFailed(ctx, resumeID, err)
		return nil, fmt.Errorf("embed resume %s: %w", resumeID, err)
	}

	record := &types.ResumeRecord{
		ID:        resumeID,
		Text:      text,
		Fields:    fields,
		Embedding: vectors[0],
		Metadata:  req.Metadata,
	}

	if err := ix.store.Qdrant.UpsertResume(ctx, record); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		ix.markFailed(ctx, resumeID, err)
		return nil, fmt.Errorf("upsert resume %s into vector index: %w", resumeID, err)
	}

	if err := ix.store.MySQL.UpdateResumeStatus(ctx, resumeID, models.StatusIndexed, ""); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("failed to mark resume indexed")
	}

	// The pool changed; cached orderings are stale.
	if err := ix.store.Redis.InvalidateRankResults(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to invalidate rank result cache")
	}

	return record, nil
}

// markFailed records a terminal failure on an existing metadata row.
func (ix *Indexer) markFailed(ctx context.Context, resumeID string, cause error) {
	if err := ix.store.MySQL.UpdateResumeStatus(ctx, resumeID, models.StatusFailed, cause.Error()); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("failed to mark resume failed")
	}
}

// markFailedByMD5 records a parse failure. The content ID is unknown (the
// text never materialized), so the MD5 stands in as the row key.
func (ix *Indexer) markFailedByMD5(ctx context.Context, req IndexRequest, cause error) {
	existing, err := ix.store.MySQL.GetResumeByMD5(ctx, req.FileMD5)
	if err != nil && !errors.Is(err, storage.ErrResumeNotFound) {
		logger.Warn().Err(err).Str("file_md5", req.FileMD5).Msg("lookup by md5 failed")
		return
	}
	row := existing
	if row == nil {
		row = &models.Resume{
			ResumeID:         "md5:" + req.FileMD5,
			FileMD5:          req.FileMD5,
			OriginalFileName: req.OriginalFileName,
			FileKind:         req.FileKind,
			RawObjectKey:     req.RawObjectKey,
		}
	}
	row.Status = models.StatusFailed
	row.ErrorMessage = cause.Error()
	if err := ix.store.MySQL.SaveResume(ctx, row); err != nil {
		logger.Warn().Err(err).Str("file_md5", req.FileMD5).Msg("failed to record parse failure")
	}
}
