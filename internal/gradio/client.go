// Package gradio implements the two-phase remote job protocol shared by the
// generation and upscale backends: submit a positional payload to receive a
// job handle, then fetch the job's terminal event stream and parse it for
// the complete event.
package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pyiy/zimage/internal/apierr"
)

// HTTPClient is the transport interface, mockable in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks the submit/result protocol. One client is shared by all
// adapters; the endpoint path is supplied per call because it differs per
// backend.
type Client struct {
	httpClient HTTPClient
	logger     *slog.Logger
}

// NewClient creates a client with a generously timed transport: remote jobs
// can queue for minutes before running.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger.With("component", "gradio"),
	}
}

// NewClientWithHTTP creates a client over a caller-supplied transport.
func NewClientWithHTTP(httpClient HTTPClient, logger *slog.Logger) *Client {
	return &Client{httpClient: httpClient, logger: logger.With("component", "gradio")}
}

type submitResponse struct {
	EventID string `json:"event_id"`
}

// Submit posts the positional payload to <endpoint>/submit and returns the
// job handle. An empty credential sends no Authorization header and falls
// back to the backend's anonymous quota.
func (c *Client) Submit(ctx context.Context, endpoint, credential string, data []any) (string, error) {
	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return "", fmt.Errorf("failed to encode job payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/submit", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apierr.Wrap(apierr.KindConnectivity, "job submission failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apierr.New(apierr.KindQuotaExhausted, "submission returned 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.Newf(apierr.KindConnectivity, "submission returned status %d: %s", resp.StatusCode, readExcerpt(resp.Body))
	}

	var submitResp submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return "", apierr.Wrap(apierr.KindInvalidResponse, "failed to decode submission response", err)
	}
	if submitResp.EventID == "" {
		return "", apierr.New(apierr.KindInvalidResponse, "submission returned no event_id")
	}

	c.logger.Debug("Job submitted", "endpoint", endpoint, "event_id", submitResp.EventID)
	return submitResp.EventID, nil
}

// Result fetches <endpoint>/result/<eventID> and parses the terminal event
// stream, returning the positional elements of the complete event's payload.
func (c *Client) Result(ctx context.Context, endpoint, credential, eventID string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/result/"+eventID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create result request: %w", err)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindConnectivity, "result fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apierr.New(apierr.KindQuotaExhausted, "result fetch returned 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.Newf(apierr.KindConnectivity, "result fetch returned status %d: %s", resp.StatusCode, readExcerpt(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindConnectivity, "failed to read event stream", err)
	}
	return ParseEventStream(string(body))
}

// ParseEventStream walks the event:/data: line pairs of a terminal stream.
// Only the payload following an "event: complete" line is significant; an
// "event: error" line signals quota exhaustion regardless of its payload.
func ParseEventStream(stream string) ([]json.RawMessage, error) {
	currentEvent := ""
	for _, line := range strings.Split(stream, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			if currentEvent == "error" {
				return nil, apierr.New(apierr.KindQuotaExhausted, "backend signaled an error event")
			}
		case strings.HasPrefix(line, "data:"):
			if currentEvent != "complete" {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var result []json.RawMessage
			if err := json.Unmarshal([]byte(payload), &result); err != nil {
				return nil, apierr.Wrap(apierr.KindInvalidResponse, "complete event carried malformed data", err)
			}
			return result, nil
		}
	}
	return nil, apierr.New(apierr.KindInvalidResponse, "event stream ended without a complete event")
}

// readExcerpt returns the first kilobyte of a body for error messages.
func readExcerpt(r io.Reader) string {
	excerpt, _ := io.ReadAll(io.LimitReader(r, 1024))
	return strings.TrimSpace(string(excerpt))
}
