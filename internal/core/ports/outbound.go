package ports

import (
	"context"
	"io"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

// DocumentRepository persists document metadata and the extracted text that
// backs the full-text index.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveExtractedText(ctx context.Context, id string, text string, chunkCount int) error
	Delete(ctx context.Context, id string) error
}

// DocumentSearcher is the external full-text index boundary: boolean/phrase
// match over whole documents with a per-document relevance score.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, query string, limit int) ([]domain.DocumentMatch, error)
}

// ChunkRepository persists the chunks produced at ingestion time.
type ChunkRepository interface {
	ReplaceForDocument(ctx context.Context, fileID string, chunks []domain.Chunk) error
	ListByDocument(ctx context.Context, fileID string) ([]domain.Chunk, error)
	DeleteByDocument(ctx context.Context, fileID string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits normalized text into quality-filtered chunks.
type Chunker interface {
	Chunk(text string, fileID, filename string) []domain.Chunk
}

// Embedder builds vectors for chunk and query text. EmbedBatch returns one
// row per input text; a nil row means "no usable embedding for that text"
// and must be treated as not-indexed, not as an error.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes embedded chunks and performs similarity search.
// Search results come back ordered by cosine similarity, highest first.
type VectorStore interface {
	IndexChunks(ctx context.Context, chunks []domain.EmbeddedChunk) (int, error)
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RankedCandidate, error)
	DeleteByDocument(ctx context.Context, fileID string) error
}

// AnswerGenerator creates the final user-facing answer from the assembled
// context. StreamAnswer delivers the answer as a cancellable fragment
// sequence with an explicit terminal element.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextText string, meta domain.RetrievalMetadata) (string, error)
	StreamAnswer(ctx context.Context, question, contextText string, meta domain.RetrievalMetadata) (<-chan domain.AnswerFragment, error)
}
