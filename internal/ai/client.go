// Package ai calls an OpenAI-compatible chat completions API for the image
// analysis and task extraction endpoints. Responses are passed through to
// callers as opaque text.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	visionModel        = "gpt-4o"
	extractionModel    = "gpt-4o-mini"
	imageSystemPrompt  = "You are an AI that extracts tasks and information from images."
	extractionSystem   = "Extract actionable tasks from user input."
	imageUserPrompt    = "Analyze this image and extract any tasks, bills, forms, or actionable items. Return a structured JSON with: title, description, urgency (low/medium/high), estimated_cost."
	extractionTemplate = "Extract task from: %s. Return JSON with title, description, task_type (ai/helper), urgency."
)

var ErrNotConfigured = errors.New("ai: api key not configured")

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeImage sends the image inline as a data URL and returns the model's
// text verbatim.
func (c *Client) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	return c.complete(ctx, visionModel, []message{
		{Role: "system", Content: imageSystemPrompt},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: imageUserPrompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		}},
	})
}

// ExtractTask asks the model to turn free text into a task suggestion.
func (c *Client) ExtractTask(ctx context.Context, text string) (string, error) {
	return c.complete(ctx, extractionModel, []message{
		{Role: "system", Content: extractionSystem},
		{Role: "user", Content: fmt.Sprintf(extractionTemplate, text)},
	})
}

func (c *Client) complete(ctx context.Context, model string, msgs []message) (string, error) {
	if c.APIKey == "" {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(completionRequest{Model: model, Messages: msgs})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("ai: %s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: unexpected status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("ai: empty completion")
	}
	return out.Choices[0].Message.Content, nil
}
