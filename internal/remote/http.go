package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPBackend talks JSON over HTTP to the remote service. Per-attempt
// timeouts are a property of the underlying http.Client; retry policy
// lives in the executor, not here.
type HTTPBackend struct {
	baseURL   string
	authToken string
	client    *http.Client
}

func NewHTTPBackend(baseURL, authToken string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) CreateBooking(ctx context.Context, req BookingRequest) (*BookingResponse, error) {
	var resp BookingResponse
	if err := b.do(ctx, http.MethodPost, "/rpc/createBooking", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Status: http.StatusConflict, Message: resp.Error}
	}
	return &resp, nil
}

func (b *HTTPBackend) CreateDocument(ctx context.Context, collection string, doc map[string]interface{}) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/collections/%s/documents", url.PathEscape(collection))
	if err := b.do(ctx, http.MethodPost, path, doc, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (b *HTTPBackend) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	path := fmt.Sprintf("/collections/%s/documents/%s", url.PathEscape(collection), url.PathEscape(id))
	return b.do(ctx, http.MethodPatch, path, fields, nil)
}

func (b *HTTPBackend) DeleteDocument(ctx context.Context, collection, id string) error {
	path := fmt.Sprintf("/collections/%s/documents/%s", url.PathEscape(collection), url.PathEscape(id))
	return b.do(ctx, http.MethodDelete, path, nil, nil)
}

func (b *HTTPBackend) GetDocument(ctx context.Context, collection, id string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	path := fmt.Sprintf("/collections/%s/documents/%s", url.PathEscape(collection), url.PathEscape(id))
	if err := b.do(ctx, http.MethodGet, path, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.authToken)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
