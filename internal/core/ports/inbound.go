package ports

import (
	"context"
	"io"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, ownerID string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentDeleter removes a document and everything indexed for it.
type DocumentDeleter interface {
	DeleteByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// QueryService is the inbound contract for retrieval-augmented answering.
type QueryService interface {
	Answer(ctx context.Context, question string, opts domain.QueryOptions) (*domain.Answer, error)
	StreamAnswer(ctx context.Context, question string, opts domain.QueryOptions) (<-chan domain.AnswerFragment, *domain.Answer, error)
}
