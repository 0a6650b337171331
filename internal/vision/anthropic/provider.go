// Package anthropic implements models.VisionProvider using the Anthropic
// Messages API.
package anthropic

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

const messagesURL = "https://api.anthropic.com/v1/messages"

type Provider struct {
	cfg        config.AnthropicConfig
	baseURL    string
	httpClient *http.Client
}

func NewProvider(cfg config.AnthropicConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:        cfg,
		baseURL:    messagesURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "anthropic" }

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *Provider) Analyze(ctx context.Context, req models.VisionRequest) (models.VisionResult, error) {
	body, err := json.Marshal(request{
		Model:     p.cfg.Model,
		MaxTokens: 1024,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: req.MimeType,
						Data:      base64.StdEncoding.EncodeToString(req.ImageData),
					},
				},
				{Type: "text", Text: req.Prompt},
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
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return models.VisionResult{}, fmt.Errorf("anthropic: %w: %v", models.ErrVisionUnavailable, err)
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
		return models.VisionResult{}, fmt.Errorf("anthropic %s: %w: %s", parsed.Error.Type, models.ErrVisionUnavailable, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return models.VisionResult{}, fmt.Errorf("anthropic returned status %d: %w", resp.StatusCode, models.ErrVisionUnavailable)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return models.VisionResult{Text: block.Text}, nil
		}
	}
	return models.VisionResult{}, fmt.Errorf("anthropic response contained no text block: %w", models.ErrVisionInvalidResponse)
}

var _ models.VisionProvider = (*Provider)(nil)
