package usecase

import (
	"context"
	"fmt"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
)

// DeleteDocumentUseCase removes a document everywhere it is indexed. It
// shares per-document locks with processing, so a delete never races an
// in-flight ingestion of the same file.
type DeleteDocumentUseCase struct {
	repo      ports.DocumentRepository
	chunkRepo ports.ChunkRepository
	storage   ports.ObjectStorage
	vectorDB  ports.VectorStore
	locks     *DocumentLocks
}

func NewDeleteDocumentUseCase(
	repo ports.DocumentRepository,
	chunkRepo ports.ChunkRepository,
	storage ports.ObjectStorage,
	vectorDB ports.VectorStore,
	locks *DocumentLocks,
) *DeleteDocumentUseCase {
	return &DeleteDocumentUseCase{
		repo:      repo,
		chunkRepo: chunkRepo,
		storage:   storage,
		vectorDB:  vectorDB,
		locks:     locks,
	}
}

func (uc *DeleteDocumentUseCase) DeleteByID(ctx context.Context, documentID string) error {
	release := uc.locks.Lock(documentID)
	defer release()

	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.vectorDB.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vector points: %w", err)
	}
	if err := uc.chunkRepo.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := uc.storage.Remove(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("remove stored object: %w", err)
	}
	if err := uc.repo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	return nil
}
