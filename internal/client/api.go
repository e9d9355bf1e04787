package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"llmlab/internal/packs"
	"llmlab/internal/run"
	"llmlab/internal/store"
)

// APIError is a non-2xx response with the server's detail message.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the run API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateRun starts a new training run on the given pack.
func (c *Client) CreateRun(ctx context.Context, packID string, cfg run.Config) (run.Summary, error) {
	body := map[string]any{"pack_id": packID, "config": cfg}
	var summary run.Summary
	err := c.do(ctx, http.MethodPost, "/api/v1/runs", body, &summary)
	return summary, err
}

// GetRun fetches the current summary of a run.
func (c *Client) GetRun(ctx context.Context, runID string) (run.Summary, error) {
	var summary run.Summary
	err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+runID, nil, &summary)
	return summary, err
}

// CancelRun requests cancellation and returns the reported state.
func (c *Client) CancelRun(ctx context.Context, runID string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/runs/"+runID+"/cancel", nil, &resp)
	return resp.Status, err
}

// ListPacks returns the builtin pack descriptors.
func (c *Client) ListPacks(ctx context.Context) ([]packs.Descriptor, error) {
	var descriptors []packs.Descriptor
	err := c.do(ctx, http.MethodGet, "/api/v1/packs", nil, &descriptors)
	return descriptors, err
}

// Upload sends a corpus file and returns the stored upload descriptor.
func (c *Client) Upload(ctx context.Context, filename string, content []byte) (store.Upload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return store.Upload{}, err
	}
	if _, err := fw.Write(content); err != nil {
		return store.Upload{}, err
	}
	if err := mw.Close(); err != nil {
		return store.Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/uploads", &buf)
	if err != nil {
		return store.Upload{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var up store.Upload
	return up, c.send(req, &up)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return &APIError{StatusCode: resp.StatusCode, Detail: detail.Detail}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
