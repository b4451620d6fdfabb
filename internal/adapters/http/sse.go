package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

type streamEvent struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// streamSSE writes answer fragments as server-sent events, then a final
// "sources" event carrying provenance and retrieval metadata.
func streamSSE(w http.ResponseWriter, r *http.Request, fragments <-chan domain.AnswerFragment, answer *domain.Answer) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case fragment, open := <-fragments:
			if !open {
				writeSSEEvent(w, "sources", answer)
				flusher.Flush()
				return
			}

			event := streamEvent{Text: fragment.Text, Done: fragment.Done}
			if fragment.Err != nil {
				event.Error = fragment.Err.Error()
			}
			writeSSEEvent(w, "fragment", event)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, raw)
}
