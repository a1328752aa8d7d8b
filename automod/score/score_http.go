package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPClient calls a remote scoring API. This is the most expensive detector
// dependency; callers should only reach it after all cheap detectors ran.
type HTTPClient struct {
	Host      string
	AuthToken string
	client    *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(host, authToken string) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	return &HTTPClient{
		Host:      host,
		AuthToken: authToken,
		client:    rc.StandardClient(),
	}
}

type scoreRequest struct {
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

func (c *HTTPClient) score(ctx context.Context, body scoreRequest) (float64, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.Host+"/v1/score", bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("score request failed: status %d", resp.StatusCode)
	}
	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("parsing score response: %w", err)
	}
	if out.Score < 0 || out.Score > 1 {
		return 0, fmt.Errorf("score out of range: %f", out.Score)
	}
	return out.Score, nil
}

func (c *HTTPClient) ScoreText(ctx context.Context, text string) (float64, error) {
	return c.score(ctx, scoreRequest{Text: text})
}

func (c *HTTPClient) ScoreMediaURL(ctx context.Context, url string) (float64, error) {
	return c.score(ctx, scoreRequest{MediaURL: url})
}
