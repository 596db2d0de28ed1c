package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Request is one templated completion call. Tag labels the call site for
// logging and audit output.
type Request struct {
	Prompt      string
	Temperature float64
	Model       string
	Tag         string
}

// Client is the completion oracle used by evaluation stages and the topic
// tracker.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	ExtractImageText(ctx context.Context, imageURL string) (string, error)
}

// HTTPClient talks to an OpenAI-compatible chat completion endpoint.
type HTTPClient struct {
	endpoint     string
	apiKey       string
	defaultModel string
	userAgent    string
	httpClient   *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(endpoint, apiKey, defaultModel, userAgent string) *HTTPClient {
	return &HTTPClient{
		endpoint:     endpoint,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		userAgent:    userAgent,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return "", fmt.Errorf("oracle client misconfigured")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	content, err := c.send(ctx, model, req.Temperature, []chatMessage{
		{Role: "user", Content: req.Prompt},
	})
	if err != nil {
		return "", fmt.Errorf("oracle call %q: %w", req.Tag, err)
	}

	slog.Debug("Oracle call completed", "tag", req.Tag, "model", model,
		"prompt_length", len(req.Prompt), "response_length", len(content))

	return content, nil
}

// ExtractImageText asks the vision-capable model to transcribe the text
// visible in the referenced image.
func (c *HTTPClient) ExtractImageText(ctx context.Context, imageURL string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return "", fmt.Errorf("oracle client misconfigured")
	}

	content, err := c.send(ctx, c.defaultModel, 0, []chatMessage{
		{Role: "user", Content: []map[string]any{
			{"type": "text", "text": "Transcribe all text visible in this image. Reply with the transcription only, or EMPTY if the image contains no readable text."},
			{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("oracle image extraction: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(content), "EMPTY") {
		return "", nil
	}

	return content, nil
}

func (c *HTTPClient) send(ctx context.Context, model string, temperature float64, messages []chatMessage) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       model,
		"temperature": temperature,
		"messages":    messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completion error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
