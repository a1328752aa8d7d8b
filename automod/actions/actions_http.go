package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// HTTPClient talks to the platform action service over HTTP. Transient
// failures are retried with backoff by the underlying client; a limiter
// keeps us under the platform's rate limits.
type HTTPClient struct {
	Host      string
	AuthToken string
	client    *http.Client
	limiter   *rate.Limiter
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(host, authToken string, requestsPerSecond int) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	return &HTTPClient{
		Host:      host,
		AuthToken: authToken,
		client:    rc.StandardClient(),
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

type actionRequest struct {
	CommunityID string `json:"communityId"`
	ActorID     string `json:"actorId"`
	Kind        string `json:"kind"`
	DurationSec *int64 `json:"durationSec,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (c *HTTPClient) post(ctx context.Context, path string, body actionRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.Host+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("action request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("action request failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) ApplyPunishment(ctx context.Context, communityID, actorID, kind string, duration *time.Duration, reason string) error {
	body := actionRequest{
		CommunityID: communityID,
		ActorID:     actorID,
		Kind:        kind,
		Reason:      reason,
	}
	if duration != nil {
		sec := int64(duration.Seconds())
		body.DurationSec = &sec
	}
	return c.post(ctx, "/v1/punishments/apply", body)
}

func (c *HTTPClient) ReversePunishment(ctx context.Context, communityID, actorID, kind string) error {
	return c.post(ctx, "/v1/punishments/reverse", actionRequest{
		CommunityID: communityID,
		ActorID:     actorID,
		Kind:        kind,
	})
}
