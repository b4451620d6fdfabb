package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

type ingestFake struct {
	err     error
	ownerID string
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType, ownerID string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	f.ownerID = ownerID

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_file.txt",
		OwnerID:     ownerID,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type queryFake struct {
	err    error
	answer *domain.Answer
}

func (f *queryFake) Answer(context.Context, string, domain.QueryOptions) (*domain.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.Answer{Text: "ok", Sources: []domain.FusedResult{}}, nil
}

func (f *queryFake) StreamAnswer(context.Context, string, domain.QueryOptions) (<-chan domain.AnswerFragment, *domain.Answer, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	out := make(chan domain.AnswerFragment, 2)
	out <- domain.AnswerFragment{Text: "streamed"}
	out <- domain.AnswerFragment{Done: true}
	close(out)
	answer := f.answer
	if answer == nil {
		answer = &domain.Answer{Sources: []domain.FusedResult{}}
	}
	return out, answer, nil
}

type deleterFake struct {
	err     error
	deleted []string
}

func (f *deleterFake) DeleteByID(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type readerFake struct {
	err error
}

func (f *readerFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "a.txt", MimeType: "text/plain", Status: domain.StatusReady}, nil
}

func newTestRouter(ingest *ingestFake, query *queryFake, deleter *deleterFake, reader *readerFake) http.Handler {
	if ingest == nil {
		ingest = &ingestFake{}
	}
	if query == nil {
		query = &queryFake{}
	}
	if deleter == nil {
		deleter = &deleterFake{}
	}
	if reader == nil {
		reader = &readerFake{}
	}
	return NewRouter(ingest, query, deleter, reader, "test", nil).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestRouter(ingest, nil, nil, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "file.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(ownerIDHeader, "user-7")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var docResp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&docResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if docResp["id"] != "doc-1" {
		t.Fatalf("unexpected response: %+v", docResp)
	}
	if ingest.ownerID != "user-7" {
		t.Fatalf("owner id not propagated, got %q", ingest.ownerID)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	deleter := &deleterFake{}
	handler := newTestRouter(nil, nil, deleter, nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-9", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(deleter.deleted) != 1 || deleter.deleted[0] != "doc-9" {
		t.Fatalf("delete not delegated: %+v", deleter.deleted)
	}
}

func TestGetDocumentNotFoundMapsTo404(t *testing.T) {
	reader := &readerFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("missing"))}
	handler := newTestRouter(nil, nil, nil, reader)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestQueryMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("bad")), http.StatusBadRequest},
		{"rate limited", domain.WrapError(domain.ErrRateLimited, "embed", errors.New("429")), http.StatusServiceUnavailable},
		{"temporary", domain.WrapError(domain.ErrTemporary, "nats", errors.New("down")), http.StatusServiceUnavailable},
		{"provider", domain.WrapError(domain.ErrProvider, "embed", errors.New("misaligned")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestRouter(nil, &queryFake{err: tc.err}, nil, nil)

			payload, _ := json.Marshal(map[string]any{"question": "test"})
			req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestQueryPassesOptionsThrough(t *testing.T) {
	answer := &domain.Answer{
		Text:      "answer",
		Sources:   []domain.FusedResult{{FileID: "d1", Filename: "a.txt", FusedScore: 0.5, FusionRank: 1}},
		Retrieval: domain.RetrievalMetadata{ChunksUsed: 1, FileCount: 1, Files: []string{"a.txt"}, Mode: domain.ModeHybrid},
	}
	handler := newTestRouter(nil, &queryFake{answer: answer}, nil, nil)

	payload, _ := json.Marshal(map[string]any{"question": "test", "mode": "hybrid", "top_k": 3})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["text"] != "answer" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestStreamQueryEmitsSSE(t *testing.T) {
	handler := newTestRouter(nil, &queryFake{}, nil, nil)

	payload, _ := json.Marshal(map[string]any{"question": "test"})
	req := httptest.NewRequest(http.MethodPost, "/v1/query/stream", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", got)
	}
	body := res.Body.String()
	if !strings.Contains(body, `"text":"streamed"`) {
		t.Fatalf("expected fragment event in body: %s", body)
	}
	if !strings.Contains(body, "event: sources") {
		t.Fatalf("expected trailing sources event: %s", body)
	}
}
