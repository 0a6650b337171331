package trim

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Local runs the trim algorithm in-process. Used by the compute unit
// itself and by tests.
type Local struct {
	Opts Options
}

func (l Local) Trim(_ context.Context, data []byte) ([]byte, error) {
	return Trim(data, l.Opts)
}

// Client calls the trim compute unit over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Trim(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trim", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build trim request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call trim service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read trim response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trim service returned %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ Trimmer = (*Client)(nil)
var _ Trimmer = Local{}
