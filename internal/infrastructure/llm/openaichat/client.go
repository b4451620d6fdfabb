package openaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/infrastructure/resilience"
)

// Client generates answers through an OpenAI-compatible chat completions
// endpoint. Non-streaming calls run under the shared resilience executor;
// streaming calls are not retried once fragments start flowing.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	exec        *resilience.Executor
}

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Executor    *resilience.Executor
}

func New(opts Options) *Client {
	exec := opts.Executor
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultPolicy())
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		httpClient:  &http.Client{Timeout: 180 * time.Second},
		exec:        exec,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

func (c *Client) GenerateAnswer(ctx context.Context, question, contextText string, meta domain.RetrievalMetadata) (string, error) {
	req := c.newRequest(question, contextText, meta, false)

	var text string
	err := c.exec.Execute(ctx, "chat_completion", func(ctx context.Context) error {
		var response struct {
			Choices []struct {
				Message chatMessage `json:"message"`
			} `json:"choices"`
		}
		if err := c.postJSON(ctx, req, &response); err != nil {
			return err
		}
		if len(response.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}
		text = strings.TrimSpace(response.Choices[0].Message.Content)
		return nil
	}, classifyChatError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("chat_completion", err)
	}
	return text, nil
}

func (c *Client) newRequest(question, contextText string, meta domain.RetrievalMetadata, stream bool) chatRequest {
	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildAnswerPrompt(question, contextText, meta)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
}

func (c *Client) postJSON(ctx context.Context, payload chatRequest, out any) error {
	resp, err := c.post(ctx, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode chat response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, &HTTPStatusError{
			Operation:  "chat_completion",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	return resp, nil
}
