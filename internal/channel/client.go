package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatarchiver/internal/domain"
)

// Client sends control messages to a running Server. It satisfies domain.Sender.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. An empty token sends no Authorization header.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) Send(ctx context.Context, req domain.Request) (domain.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Response{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/messages", bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.Response{}, fmt.Errorf("send %s: %w", req.Action, err)
	}
	defer httpResp.Body.Close()

	var resp domain.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return domain.Response{}, fmt.Errorf("decode %s response (status %d): %w", req.Action, httpResp.StatusCode, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return resp, fmt.Errorf("%s: %s (status %d)", req.Action, resp.Error, httpResp.StatusCode)
	}
	return resp, nil
}

// Status fetches GET /status. A non-zero since asks for every event recorded after it.
func (c *Client) Status(ctx context.Context, since time.Time) (StatusReport, error) {
	var report StatusReport

	endpoint := c.baseURL + "/status"
	if !since.IsZero() {
		endpoint += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return report, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return report, fmt.Errorf("fetch status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return report, fmt.Errorf("fetch status: status %d", httpResp.StatusCode)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&report); err != nil {
		return report, fmt.Errorf("decode status: %w", err)
	}
	return report, nil
}
