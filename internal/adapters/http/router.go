package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/observability/metrics"
)

const ownerIDHeader = "X-Owner-Id"

type Router struct {
	ingest  ports.DocumentIngestor
	query   ports.QueryService
	deleter ports.DocumentDeleter
	reader  ports.DocumentReader

	service string
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	ingest ports.DocumentIngestor,
	query ports.QueryService,
	deleter ports.DocumentDeleter,
	reader ports.DocumentReader,
	service string,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		ingest:  ingest,
		query:   query,
		deleter: deleter,
		reader:  reader,
		service: service,
		metrics: m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/query", rt.answerQuery)
	mux.HandleFunc("/v1/query/stream", rt.streamQuery)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		strings.TrimSpace(r.Header.Get(ownerIDHeader)),
		file,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.reader.GetByID(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)

	case http.MethodDelete:
		if err := rt.deleter.DeleteByID(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type queryRequest struct {
	Question         string  `json:"question"`
	Mode             string  `json:"mode"`
	TopK             int     `json:"top_k"`
	MinScore         float64 `json:"min_score"`
	MaxContextLength int     `json:"max_context_length"`
	RRFConstant      int     `json:"rrf_constant"`
	DiversityPenalty float64 `json:"diversity_penalty"`
	KeywordWeight    float64 `json:"keyword_weight"`
	VectorWeight     float64 `json:"vector_weight"`
}

func (req queryRequest) options() domain.QueryOptions {
	return domain.QueryOptions{
		Mode:             domain.SearchMode(req.Mode),
		TopK:             req.TopK,
		MinScore:         req.MinScore,
		MaxContextLength: req.MaxContextLength,
		RRFConstant:      req.RRFConstant,
		DiversityPenalty: req.DiversityPenalty,
		KeywordWeight:    req.KeywordWeight,
		VectorWeight:     req.VectorWeight,
	}
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	answer, err := rt.query.Answer(r.Context(), req.Question, req.options())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordQueryObservation(rt.service, "query", len(answer.Sources), time.Since(start))
		rt.metrics.RecordQueryMode(rt.service, "query", string(answer.Retrieval.Mode))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) streamQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	fragments, answer, err := rt.query.StreamAnswer(r.Context(), req.Question, req.options())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordQueryObservation(rt.service, "query_stream", len(answer.Sources), time.Since(start))
		rt.metrics.RecordQueryMode(rt.service, "query_stream", string(answer.Retrieval.Mode))
	}
	streamSSE(w, r, fragments, answer)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), err.Error())
}
