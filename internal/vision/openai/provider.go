// Package openai implements models.VisionProvider using the OpenAI chat
// completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wardrobehq/wardrobe/internal/config"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

const completionsURL = "https://api.openai.com/v1/chat/completions"

type Provider struct {
	cfg        config.OpenAIConfig
	baseURL    string
	httpClient *http.Client
}

func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:        cfg,
		baseURL:    completionsURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "openai" }

type request struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *Provider) Analyze(ctx context.Context, req models.VisionRequest) (models.VisionResult, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", req.MimeType,
		base64.StdEncoding.EncodeToString(req.ImageData))

	body, err := json.Marshal(request{
		Model: p.cfg.Model,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
	})
	if err != nil {
		return models.VisionResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return models.VisionResult{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return models.VisionResult{}, fmt.Errorf("openai: %w: %v", models.ErrVisionUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.VisionResult{}, fmt.Errorf("read response: %w", err)
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return models.VisionResult{}, fmt.Errorf("decode response: %w: %v", models.ErrVisionInvalidResponse, err)
	}
	if parsed.Error != nil {
		return models.VisionResult{}, fmt.Errorf("openai %s: %w: %s", parsed.Error.Type, models.ErrVisionUnavailable, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return models.VisionResult{}, fmt.Errorf("openai returned status %d: %w", resp.StatusCode, models.ErrVisionUnavailable)
	}
	if len(parsed.Choices) == 0 {
		return models.VisionResult{}, fmt.Errorf("openai response contained no choices: %w", models.ErrVisionInvalidResponse)
	}

	return models.VisionResult{Text: parsed.Choices[0].Message.Content}, nil
}

var _ models.VisionProvider = (*Provider)(nil)
