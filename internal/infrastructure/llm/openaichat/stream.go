package openaichat

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

// StreamAnswer opens a streaming chat completion and forwards delta text as
// answer fragments. The channel always ends with a terminal fragment, either
// Done or Err, and closes after it.
func (c *Client) StreamAnswer(ctx context.Context, question, contextText string, meta domain.RetrievalMetadata) (<-chan domain.AnswerFragment, error) {
	resp, err := c.post(ctx, c.newRequest(question, contextText, meta, true))
	if err != nil {
		return nil, wrapTemporaryIfNeeded("chat_stream", err)
	}

	out := make(chan domain.AnswerFragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				emit(ctx, out, domain.AnswerFragment{Done: true})
				return
			}

			var event struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
				continue
			}
			if !emit(ctx, out, domain.AnswerFragment{Text: event.Choices[0].Delta.Content}) {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			emit(ctx, out, domain.AnswerFragment{Err: err, Done: true})
			return
		}
		emit(ctx, out, domain.AnswerFragment{Done: true})
	}()
	return out, nil
}

func emit(ctx context.Context, out chan<- domain.AnswerFragment, fragment domain.AnswerFragment) bool {
	select {
	case out <- fragment:
		return true
	case <-ctx.Done():
		return false
	}
}
