package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
)

// Dispatcher routes a document to the extractor registered for its MIME
// type, falling back to the filename extension and finally the default
// plain-text extractor.
type Dispatcher struct {
	byMime      map[string]ports.TextExtractor
	byExtension map[string]ports.TextExtractor
	fallback    ports.TextExtractor
}

func NewDispatcher(fallback ports.TextExtractor) *Dispatcher {
	return &Dispatcher{
		byMime:      make(map[string]ports.TextExtractor),
		byExtension: make(map[string]ports.TextExtractor),
		fallback:    fallback,
	}
}

func (d *Dispatcher) RegisterMime(mimeType string, e ports.TextExtractor) {
	d.byMime[strings.ToLower(mimeType)] = e
}

func (d *Dispatcher) RegisterExtension(ext string, e ports.TextExtractor) {
	d.byExtension[strings.ToLower(strings.TrimPrefix(ext, "."))] = e
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	if e := d.resolve(doc); e != nil {
		return e.Extract(ctx, doc)
	}
	if d.fallback == nil {
		return "", fmt.Errorf("no extractor for %q (%s)", doc.Filename, doc.MimeType)
	}
	return d.fallback.Extract(ctx, doc)
}

func (d *Dispatcher) resolve(doc *domain.Document) ports.TextExtractor {
	mime := strings.ToLower(doc.MimeType)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if e, ok := d.byMime[mime]; ok {
		return e
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(doc.Filename), "."))
	if e, ok := d.byExtension[ext]; ok {
		return e
	}
	return nil
}
