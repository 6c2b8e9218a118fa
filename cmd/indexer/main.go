// The indexer binary feeds the vector index. It consumes upload events from
// RabbitMQ and, with --dir, bulk-imports a local directory of resume files
// before starting (or instead of) the consumer.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/extract"
	"resume-match-go/internal/indexer"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
)

func main() {
	var (
		configPath string
		importDir  string
		importOnly bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "path to config file")
	pflag.StringVar(&importDir, "dir", "", "directory of resume files to bulk-import")
	pflag.BoolVar(&importOnly, "import-only", false, "exit after the bulk import instead of consuming the queue")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage backends")
	}
	defer store.Close()

	embedder, err := embedding.NewHTTPEmbedder(cfg.Embedding,
		embedding.WithRateLimit(cfg.Embedding.RateLimitQPM, 0))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize embedding client")
	}

	ix := indexer.New(store, parser.NewTextExtractor(), extract.NewExtractor(), embedder)

	if importDir != "" {
		imported, failed := importDirectory(ctx, ix, store, importDir)
		logger.Info().Int("imported", imported).Int("failed", failed).Str("dir", importDir).Msg("bulk import finished")
		if importOnly {
			return
		}
	}

	logger.Info().Msg("starting upload event consumer")
	if err := store.RabbitMQ.ConsumeResumeUploaded(ctx, ix.IndexUpload); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("upload consumer stopped unexpectedly")
	}
	logger.Info().Msg("indexer stopped")
}

// importDirectory indexes every supported file directly, bypassing the
// queue. Raw files still land in object storage so the records stay
// re-processable.
func importDirectory(ctx context.Context, ix *indexer.Indexer, store *storage.Storage, dir string) (imported, failed int) {
	supported := map[string]bool{}
	for _, ext := range parser.NewTextExtractor().SupportedExtensions() {
		supported[ext] = true
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supported[ext] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("failed to read file")
			failed++
			return nil
		}

		fileMD5 := indexer.MD5Hex(data)
		fileKind := strings.TrimPrefix(ext, ".")

		objectKey, err := store.MinIO.UploadOriginal(ctx, fileMD5, fileKind, data, "application/octet-stream")
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("failed to store original")
			failed++
			return nil
		}

		record, err := ix.IndexDocument(ctx, indexer.IndexRequest{
			Data:             data,
			FileKind:         fileKind,
			FileMD5:          fileMD5,
			OriginalFileName: filepath.Base(path),
			RawObjectKey:     objectKey,
			Metadata:         map[string]string{"source": "bulk_import"},
		})
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("failed to index file")
			failed++
			return nil
		}

		if err := store.Redis.MarkFileUploaded(ctx, fileMD5); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to record file md5")
		}

		logger.Info().Str("resume_id", record.ID).Str("path", path).Msg("imported")
		imported++
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Str("dir", dir).Msg("directory walk failed")
	}
	return imported, failed
}
