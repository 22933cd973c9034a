// Package upstream talks to the OpenAI-compatible completion provider.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lamnguyen-dev/chat-dispatch/internal/models"
)

// Completer is the completion-provider surface the dispatcher consumes.
// The credential is passed per call so the rotation pool stays in charge of
// key selection.
type Completer interface {
	Complete(ctx context.Context, modelID string, messages []models.Message, apiKey string) (string, error)
}

// Client streams chat completions from an OpenAI-compatible endpoint.
// No client-level timeout is set: every call is bounded by its context, and
// cancelling the context aborts the stream mid-flight.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []models.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete issues a streaming completion and accumulates the delta content.
// Output received before a cancellation or timeout is discarded with the
// request.
func (c *Client) Complete(ctx context.Context, modelID string, messages []models.Message, apiKey string) (string, error) {
	body, err := json.Marshal(chatRequest{Model: modelID, Messages: messages, Stream: true})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model %s: %w", modelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model %s: upstream status %d: %s", modelID, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return collectStream(resp.Body, modelID)
}

func collectStream(r io.Reader, modelID string) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 4096*16)

	var out strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			out.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("model %s: reading stream: %w", modelID, err)
	}

	text := out.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model %s: empty completion", modelID)
	}
	return text, nil
}
