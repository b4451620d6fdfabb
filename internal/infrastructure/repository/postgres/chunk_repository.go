package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForDocument swaps a document's chunk set atomically, so a reprocess
// never leaves chunks from two runs mixed together.
func (r *ChunkRepository) ReplaceForDocument(ctx context.Context, fileID string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO chunks (document_id, chunk_index, text, char_count, word_count, start_paragraph, end_paragraph)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, fileID, chunk.Index, chunk.Text, chunk.CharCount, chunk.WordCount, chunk.StartParagraph, chunk.EndParagraph)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, fileID string) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id, chunk_index, text, char_count, word_count, start_paragraph, end_paragraph
FROM chunks
WHERE document_id = $1
ORDER BY chunk_index
`, fileID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		if err := rows.Scan(
			&chunk.FileID, &chunk.Index, &chunk.Text, &chunk.CharCount,
			&chunk.WordCount, &chunk.StartParagraph, &chunk.EndParagraph,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
