package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/config"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/usecase"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/chunking"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/embedding"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/extractor"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/extractor/external"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/extractor/pdf"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/extractor/plaintext"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/extractor/spreadsheet"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/llm/openaichat"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/queue/nats"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/repository/postgres"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/resilience"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/storage/localfs"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Embedder *embedding.Coordinator
	Ingest   ports.DocumentIngestor
	Process  ports.DocumentProcessor
	Delete   ports.DocumentDeleter
	Query    ports.QueryService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	chunkRepo := postgres.NewChunkRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var rdb *redis.Client
	var embedCache *embedding.Cache
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		embedCache = embedding.NewCache(rdb, time.Duration(cfg.EmbedCacheTTLHours)*time.Hour)
	}

	embedClient := embedding.NewClient(cfg.EmbeddingURL, cfg.EmbeddingModel)
	embedder := embedding.NewCoordinator(embedding.Config{
		BatchSize:        cfg.EmbedBatchSize,
		MaxInputChars:    cfg.EmbedMaxInputChars,
		RequestsPerSec:   cfg.EmbedRequestsPerSec,
		RateLimitRetries: cfg.EmbedRateLimitRetry,
	}, embedClient, embedCache)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	generator := openaichat.New(openaichat.Options{
		BaseURL:     cfg.GeneratorURL,
		APIKey:      cfg.GeneratorAPIKey,
		Model:       cfg.GeneratorModel,
		Temperature: cfg.GeneratorTemperature,
		MaxTokens:   cfg.GeneratorMaxTokens,
		Executor:    executor,
	})

	chunker := chunking.New(chunking.Config{
		MinChunkSize: cfg.ChunkMinSize,
		MaxChunkSize: cfg.ChunkMaxSize,
		OverlapSize:  cfg.ChunkOverlap,
		MinWordCount: cfg.ChunkMinWordCount,
	})

	textExtractor := buildExtractor(cfg, storage)

	locks := usecase.NewDocumentLocks()
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, chunkRepo, textExtractor, chunker, embedder, vectorDB, locks)
	deleteUC := usecase.NewDeleteDocumentUseCase(repo, chunkRepo, storage, vectorDB, locks)
	queryUC := usecase.NewQueryUseCase(embedder, vectorDB, repo, chunkRepo, generator)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Repo:     repo,
		Embedder: embedder,

		Ingest:  ingestUC,
		Process: processUC,
		Delete:  deleteUC,
		Query:   withQueryDefaults(queryUC, cfg),

		closeFn: func() {
			queue.Close()
			if rdb != nil {
				_ = rdb.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// buildExtractor routes stored documents to a format-specific extractor by
// MIME type, with plain text as the fallback for everything unrecognized.
func buildExtractor(cfg config.Config, storage ports.ObjectStorage) ports.TextExtractor {
	dispatcher := extractor.NewDispatcher(plaintext.NewExtractor(storage))

	pdfExtractor := pdf.NewExtractor(storage)
	dispatcher.RegisterMime("application/pdf", pdfExtractor)
	dispatcher.RegisterExtension(".pdf", pdfExtractor)

	sheetExtractor := spreadsheet.NewExtractor(storage)
	dispatcher.RegisterMime("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", sheetExtractor)
	dispatcher.RegisterExtension(".xlsx", sheetExtractor)

	pool := external.NewPool(cfg.ExtractorPoolSize)
	if cfg.OCRCommand != "" {
		command, args := splitCommand(cfg.OCRCommand)
		ocr := external.NewExtractor(storage, pool, command, args...)
		for _, mime := range []string{"image/png", "image/jpeg", "image/tiff"} {
			dispatcher.RegisterMime(mime, ocr)
		}
		for _, ext := range []string{".png", ".jpg", ".jpeg", ".tiff"} {
			dispatcher.RegisterExtension(ext, ocr)
		}
	}
	if cfg.PPTXCommand != "" {
		command, args := splitCommand(cfg.PPTXCommand)
		pptx := external.NewExtractor(storage, pool, command, args...)
		dispatcher.RegisterMime("application/vnd.openxmlformats-officedocument.presentationml.presentation", pptx)
		dispatcher.RegisterExtension(".pptx", pptx)
	}

	return dispatcher
}

func splitCommand(raw string) (string, []string) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
