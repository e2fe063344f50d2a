package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/letta-ai/letta-sync/internal/errkind"
)

var _ Client = (*HTTPClient)(nil)

// HTTPClient is the concrete control-plane implementation, talking to a
// Letta server over its REST API.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
	APIKey     string
	Password   string
}

// NewHTTPClient builds a client pointed at baseURL, authenticating with
// whichever of apiKey/password is non-empty (apiKey wins, matching
// spec.md §6: "LETTA_API_KEY is the fallback and the cloud default").
func NewHTTPClient(baseURL, apiKey, password string) *HTTPClient {
	return &HTTPClient{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StatusError carries the control-plane's HTTP status alongside the
// response body, so callers can apply the 409-as-success idempotency rule
// from spec.md §4.4 without string-matching error text.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("control plane returned status %d: %s", e.Status, e.Body)
}

// IsConflict reports whether err is (or wraps) a 409 response.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusConflict
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errkind.Wrap(errkind.Validation, fmt.Errorf("marshal request body: %w", err))
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return errkind.Wrap(errkind.Apply, fmt.Errorf("build request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	} else if c.Password != "" {
		req.Header.Set("X-LETTA-SERVER-PASSWORD", c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errkind.Wrap(errkind.Apply, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errkind.Wrap(errkind.Apply, fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		return &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errkind.Wrap(errkind.Apply, fmt.Errorf("decode response body: %w", err))
		}
	}
	return nil
}

func query(filter Filter) string {
	v := url.Values{}
	if filter.Name != "" {
		v.Set("name", filter.Name)
	}
	if filter.Label != "" {
		v.Set("label", filter.Label)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}
