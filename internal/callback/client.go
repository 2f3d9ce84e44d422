package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/deploy"
)

type Client struct {
	httpClient *http.Client
	delays     []time.Duration
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		delays:     []time.Duration{0, 2 * time.Second, 5 * time.Second},
	}
}

type StatusPayload struct {
	DeploymentID string          `json:"deploymentId"`
	Status       string          `json:"status"`
	Provider     string          `json:"provider"`
	URL          string          `json:"url,omitempty"`
	Outcome      *deploy.Outcome `json:"outcome,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// SendStatus posts payload to callbackURL. Delivery is best-effort: only a
// marshalling failure is returned, transport failures are retried and logged.
func (c *Client) SendStatus(ctx context.Context, callbackURL string, payload StatusPayload) error {
	if callbackURL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("callback marshal: %w", err)
	}

	c.postWithRetry(ctx, callbackURL, body)
	return nil
}

// postWithRetry attempts a POST once per configured delay.
// Never returns an error; callbacks must not fail deploys.
func (c *Client) postWithRetry(ctx context.Context, url string, body []byte) {
	for attempt, delay := range c.delays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				zap.S().Warnf("callback: POST %s abandoned: %v", url, ctx.Err())
				return
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			zap.S().Warnf("callback: build request for %s: %v", url, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			zap.S().Warnf("callback: POST %s attempt %d failed: %v", url, attempt+1, err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 500 {
			if resp.StatusCode >= 400 {
				zap.S().Warnf("callback: POST %s returned %d", url, resp.StatusCode)
			}
			return
		}

		zap.S().Warnf("callback: POST %s attempt %d returned %d", url, attempt+1, resp.StatusCode)
	}

	zap.S().Warnf("callback: POST %s failed after %d attempts, giving up", url, len(c.delays))
}
