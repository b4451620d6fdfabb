package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

func embedded(fileID string, index int, text string, vector []float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk:  domain.Chunk{FileID: fileID, Filename: fileID + ".txt", Index: index, Text: text},
		Vector: vector,
	}
}

func TestIndexChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	chunks := []domain.EmbeddedChunk{
		embedded("doc-1", 0, "a", []float32{0.1, 0.2}),
		embedded("doc-1", 1, "b", []float32{0.3, 0.4}),
	}

	for i := 0; i < 2; i++ {
		indexed, err := client.IndexChunks(context.Background(), chunks)
		if err != nil {
			t.Fatalf("IndexChunks() #%d error = %v", i, err)
		}
		if indexed != 2 {
			t.Fatalf("expected 2 indexed, got %d", indexed)
		}
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestIndexChunksSkipsNilVectors(t *testing.T) {
	var upserted struct {
		Points []struct {
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points" {
			_ = json.NewDecoder(r.Body).Decode(&upserted)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	chunks := []domain.EmbeddedChunk{
		embedded("doc-1", 0, "usable", []float32{0.1}),
		embedded("doc-1", 1, "not embedded", nil),
	}

	indexed, err := client.IndexChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if indexed != 1 {
		t.Fatalf("expected 1 indexed, got %d", indexed)
	}
	if len(upserted.Points) != 1 {
		t.Fatalf("nil-vector rows must not be upserted: %+v", upserted.Points)
	}
	payload := upserted.Points[0].Payload
	if got := payload["text"]; got != "usable" {
		t.Fatalf("unexpected payload text: %v", got)
	}
	if got := payload["doc_id"]; got != "doc-1" {
		t.Fatalf("unexpected payload doc_id: %v", got)
	}
	if got := payload["filename"]; got != "doc-1.txt" {
		t.Fatalf("unexpected payload filename: %v", got)
	}
	if got, ok := payload["chunk_index"].(float64); !ok || int(got) != 0 {
		t.Fatalf("unexpected payload chunk_index: %v", payload["chunk_index"])
	}
}

func TestIndexChunksAllNilVectorsSkipsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Errorf("no request expected when nothing is embeddable")
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	indexed, err := client.IndexChunks(context.Background(), []domain.EmbeddedChunk{embedded("doc-1", 0, "x", nil)})
	if err != nil || indexed != 0 {
		t.Fatalf("expected 0, nil, got %d, %v", indexed, err)
	}
}

func TestSearchMapsPayloadToCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/docs/points/search" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.91,"payload":{"doc_id":"doc-1","filename":"a.txt","chunk_index":2,"text":"first"}},
			{"score":0.55,"payload":{"doc_id":"doc-2","filename":"b.txt","chunk_index":0,"text":"second"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	got, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	first := got[0]
	if first.FileID != "doc-1" || first.ChunkIndex != 2 || first.Score != 0.91 {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if first.Source != domain.SourceVector || first.Rank != 0 || got[1].Rank != 1 {
		t.Fatalf("source/rank not assigned: %+v", got)
	}
}

func TestDeleteByDocumentFiltersOnDocID(t *testing.T) {
	var filter map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/delete" {
			_ = json.NewDecoder(r.Body).Decode(&filter)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	if err := client.DeleteByDocument(context.Background(), "doc-9"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}
	raw, _ := json.Marshal(filter)
	if !strings.Contains(string(raw), "doc-9") {
		t.Fatalf("delete filter must target the document: %s", raw)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	_, err := client.IndexChunks(context.Background(), []domain.EmbeddedChunk{embedded("doc-1", 0, "a", []float32{0.1})})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error with response body, got %v", err)
	}
}

func TestPointIDIsStablePerChunk(t *testing.T) {
	a := pointID("doc-1", 3)
	b := pointID("doc-1", 3)
	c := pointID("doc-1", 4)
	if a != b {
		t.Fatalf("same chunk must map to the same point id: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different chunks must not collide: %s", a)
	}
}
