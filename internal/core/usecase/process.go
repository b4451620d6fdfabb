package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
)

// ProcessDocumentUseCase runs the ingestion pipeline for one uploaded
// document: extract text, chunk, embed, index. A document producing zero
// chunks is valid output ("no retrievable content"), not a failure.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	chunkRepo ports.ChunkRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	locks     *DocumentLocks
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	chunkRepo ports.ChunkRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	locks *DocumentLocks,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		chunkRepo: chunkRepo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
		locks:     locks,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	release := uc.locks.Lock(documentID)
	defer release()

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunks := uc.chunker.Chunk(text, doc.ID, doc.Filename)

	if err := uc.repo.SaveExtractedText(ctx, doc.ID, text, len(chunks)); err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	if err := uc.chunkRepo.ReplaceForDocument(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	embedded, err := uc.embed(ctx, chunks)
	if err != nil {
		return err
	}
	if _, err := uc.vectorDB.IndexChunks(ctx, embedded); err != nil {
		return fmt.Errorf("index chunks in vector store: %w", err)
	}
	return nil
}

// embed pairs chunks with their vectors. Rows the provider could not embed
// come back nil and stay nil here; the vector store skips them so keyword
// retrieval still covers those chunks.
func (uc *ProcessDocumentUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrProvider,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	out := make([]domain.EmbeddedChunk, len(chunks))
	for i := range chunks {
		out[i] = domain.EmbeddedChunk{Chunk: chunks[i], Vector: vectors[i]}
	}
	return out, nil
}
