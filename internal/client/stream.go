package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"llmlab/internal/event"
)

// StreamEvents follows a run's SSE stream, forwarding decoded events to out
// in order. Dropped connections reconnect with the last delivered seq as the
// replay offset, so an interrupted stream resumes without gaps or repeats.
// Returns nil once the terminal event has been forwarded.
func (c *Client) StreamEvents(ctx context.Context, runID string, fromSeq int64, out chan<- event.Event) error {
	lastSeq := fromSeq
	retryDelay := 500 * time.Millisecond
	for {
		terminal, err := c.streamOnce(ctx, runID, &lastSeq, out)
		if terminal {
			return nil
		}
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				// The run is gone or the request is bad; retrying
				// would loop forever.
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// streamOnce holds one SSE connection open until it drops, the context ends,
// or a terminal event arrives.
func (c *Client) streamOnce(ctx context.Context, runID string, lastSeq *int64, out chan<- event.Event) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/runs/%s/events", c.BaseURL, runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	if *lastSeq > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(*lastSeq, 10))
	}

	// Streaming must not be cut off by the request timeout.
	httpClient := &http.Client{Transport: c.HTTPClient.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return false, &APIError{StatusCode: resp.StatusCode, Detail: detail.Detail}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if data == "" {
				continue
			}
			var evt event.Event
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				// Unknown or malformed events are dropped, not fatal.
				data = ""
				continue
			}
			data = ""
			if !ShouldAccept(*lastSeq, float64(evt.Seq)) {
				continue
			}
			*lastSeq = evt.Seq
			select {
			case out <- evt:
			case <-ctx.Done():
				return false, ctx.Err()
			}
			if evt.Type.Terminal() {
				return true, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return false, err
	}
	return false, nil
}
