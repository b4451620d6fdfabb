package external

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
)

// Extractor shells out to an external converter (OCR, PPTX) that takes a
// file path argument and prints plain text to stdout. Invocations share a
// Pool so only a bounded number of converter processes run at once.
type Extractor struct {
	storage ports.ObjectStorage
	pool    *Pool
	command string
	args    []string
}

func NewExtractor(storage ports.ObjectStorage, pool *Pool, command string, args ...string) *Extractor {
	return &Extractor{storage: storage, pool: pool, command: command, args: args}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	var text string
	err := e.pool.Run(ctx, func(ctx context.Context) error {
		path, cleanup, err := e.materialize(ctx, doc)
		if err != nil {
			return err
		}
		defer cleanup()

		out, err := e.runConverter(ctx, path)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	return text, err
}

// materialize copies the stored object to a temp file so the converter can
// read it from disk.
func (e *Extractor) materialize(ctx context.Context, doc *domain.Document) (string, func(), error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	tmp, err := os.CreateTemp("", "extract-*"+filepath.Ext(doc.Filename))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("copy to temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func (e *Extractor) runConverter(ctx context.Context, path string) (string, error) {
	args := append(append([]string(nil), e.args...), path)
	cmd := exec.CommandContext(ctx, e.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("converter %s: %w: %s", e.command, err, msg)
		}
		return "", fmt.Errorf("converter %s: %w", e.command, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
