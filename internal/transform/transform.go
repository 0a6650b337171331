// Package transform is the client for the external image transform
// service: resize, foreground segmentation, rotation, margin trims, and
// codec conversion over a bytes-in/bytes-out HTTP call.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/wardrobehq/wardrobe/internal/config"
)

// Spec describes the requested transform chain and output codec.
type Spec struct {
	Operations []Operation `json:"operations"`
	Output     Output      `json:"output"`
}

type Operation struct {
	Type    string `json:"type"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Degrees int    `json:"degrees,omitempty"`
	Margin  int    `json:"margin,omitempty"`
}

type Output struct {
	Format string `json:"format"`
}

// BackgroundRemover isolates the garment from its background, producing
// an alpha-channel image.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, data []byte) ([]byte, error)
}

// Client calls the transform service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.TransformConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Transform posts the image and spec, returning the transformed bytes.
func (c *Client) Transform(ctx context.Context, data []byte, spec Spec) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal transform spec: %w", err)
	}
	if err := mw.WriteField("spec", string(specJSON)); err != nil {
		return nil, fmt.Errorf("write spec field: %w", err)
	}

	fw, err := mw.CreateFormFile("image", "image")
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transform", &body)
	if err != nil {
		return nil, fmt.Errorf("build transform request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call transform service: %w", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transform response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transform service returned %d", resp.StatusCode)
	}
	return out, nil
}

// RemoveBackground runs foreground segmentation. Some transform backends
// silently skip the alpha channel; the call is retried once when the
// output carries no transparency, and the second output is used either
// way (a fully opaque image degrades to an uncropped thumbnail rather
// than failing the item).
func (c *Client) RemoveBackground(ctx context.Context, data []byte) ([]byte, error) {
	spec := Spec{
		Operations: []Operation{{Type: "foreground-segment"}},
		Output:     Output{Format: "png"},
	}

	out, err := c.Transform(ctx, data, spec)
	if err != nil {
		return nil, fmt.Errorf("remove background: %w", err)
	}

	transparent, err := HasTransparency(out)
	if err != nil {
		return nil, fmt.Errorf("inspect segmented image: %w", err)
	}
	if transparent {
		return out, nil
	}

	slog.Warn("segmented image carries no transparency, retrying transform once")
	retried, err := c.Transform(ctx, data, spec)
	if err != nil {
		return nil, fmt.Errorf("remove background retry: %w", err)
	}
	if transparent, err = HasTransparency(retried); err != nil {
		return nil, fmt.Errorf("inspect retried image: %w", err)
	}
	if !transparent {
		slog.Warn("retried segment output still opaque, continuing with it")
	}
	return retried, nil
}

// HasTransparency reports whether any pixel has alpha below full opacity.
func HasTransparency(data []byte) (bool, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true, nil
			}
		}
	}
	return false, nil
}

var _ BackgroundRemover = (*Client)(nil)
