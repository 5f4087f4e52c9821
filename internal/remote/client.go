package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"task-sync/backend/internal/protocol"
)

// Client reaches a remote authority over HTTP, speaking the batch wire
// contract. Batch submissions run through a circuit breaker so a dead
// endpoint fails fast instead of eating the full timeout on every
// batch.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *Breaker
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    NewBreaker(nil),
	}
}

func (c *Client) SendBatch(ctx context.Context, req protocol.BatchRequest) (*protocol.BatchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	var resp protocol.BatchResponse
	err = c.breaker.Execute(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.endpoint+"/batch", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("batch request failed: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
			return fmt.Errorf("remote returned %d: %s", httpResp.StatusCode, string(data))
		}
		return json.NewDecoder(httpResp.Body).Decode(&resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping checks the endpoint directly, bypassing the breaker: the probe
// must see a recovered remote even while the breaker is still open.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("remote unreachable: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		return fmt.Errorf("remote unhealthy: %d", httpResp.StatusCode)
	}
	return nil
}
